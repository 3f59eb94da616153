// Package kafka provides an Apache Kafka ingress transport. Partition
// ordering matches the arrival-order guarantee buffered replay depends on.
package kafka

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaykit/deferral/transport"
)

// TransportName is the name this transport registers under.
const TransportName = "kafka"

// NewPublisher and NewSubscriber are seams tests use to swap the real Kafka
// clients out.
var (
	NewPublisher = func(cfg kafka.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return kafka.NewPublisher(cfg, logger)
	}
	NewSubscriber = func(cfg kafka.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return kafka.NewSubscriber(cfg, logger)
	}
)

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.KafkaCapabilities)
}

// Build wires a publisher/subscriber pair against the configured brokers.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, err := NewPublisher(publisherConfig(cfg), logger)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("kafka publisher: %w", err)
	}
	sub, err := NewSubscriber(subscriberConfig(cfg), logger)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("kafka subscriber: %w", err)
	}
	return transport.Transport{Publisher: pub, Subscriber: sub}, nil
}

func publisherConfig(cfg transport.Config) kafka.PublisherConfig {
	return kafka.PublisherConfig{
		Brokers:   cfg.GetKafkaBrokers(),
		Marshaler: kafka.DefaultMarshaler{},
	}
}

func subscriberConfig(cfg transport.Config) kafka.SubscriberConfig {
	return kafka.SubscriberConfig{
		Brokers:       cfg.GetKafkaBrokers(),
		Unmarshaler:   kafka.DefaultMarshaler{},
		ConsumerGroup: cfg.GetKafkaConsumerGroup(),
	}
}

// Capabilities reports what this transport supports.
func Capabilities() transport.Capabilities {
	return transport.KafkaCapabilities
}
