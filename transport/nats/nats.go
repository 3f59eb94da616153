// Package nats provides a NATS Core ingress transport. Core NATS is
// fire-and-forget; use the jetstream transport when deliveries must survive
// a router outage.
package nats

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaykit/deferral/transport"
)

// TransportName is the name this transport registers under.
const TransportName = "nats"

// NewPublisher and NewSubscriber are seams tests use to swap the real NATS
// clients out.
var (
	NewPublisher = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return nats.NewPublisher(cfg, logger)
	}
	NewSubscriber = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return nats.NewSubscriber(cfg, logger)
	}
)

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSCapabilities)
}

// Build wires a publisher/subscriber pair against the configured NATS URL.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	marshaler := &nats.NATSMarshaler{}

	pub, err := NewPublisher(nats.PublisherConfig{URL: url, Marshaler: marshaler}, logger)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("nats publisher: %w", err)
	}
	sub, err := NewSubscriber(nats.SubscriberConfig{URL: url, Unmarshaler: marshaler}, logger)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("nats subscriber: %w", err)
	}
	return transport.Transport{Publisher: pub, Subscriber: sub}, nil
}

// Capabilities reports what this transport supports.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
