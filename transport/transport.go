// Package transport defines the interfaces and types for deferral ingress
// transports. Each backend (kafka, rabbitmq, nats, etc.) lives in its own
// sub-package and registers itself with the transport registry.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines the publisher and subscriber pair produced by a builder.
// The subscriber feeds addressed URIs into the router; the publisher carries
// payloads the router did not claim to the unrouted queue.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Builder creates a transport from config. Each transport package provides
// one and registers it under its system name.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config exposes the configuration values transports need, so a transport
// package depends only on the getters it reads rather than the full config
// package.
type Config interface {
	// GetPubSubSystem returns the transport system name.
	GetPubSubSystem() string

	// Kafka
	GetKafkaBrokers() []string
	GetKafkaConsumerGroup() string

	// RabbitMQ
	GetRabbitMQURL() string

	// NATS core and JetStream
	GetNATSURL() string

	// HTTP
	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string
}

// CapabilitiesProvider is implemented by transports that report their
// capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
