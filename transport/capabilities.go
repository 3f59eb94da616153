package transport

// Capabilities describes the features a transport backend supports. Buffered
// replay relies on arrival order, so ordering is the property callers check
// most.
type Capabilities struct {
	// SupportsOrdering indicates the transport delivers messages in the
	// order they were published, within a partition or stream.
	SupportsOrdering bool

	// SupportsTracing indicates the transport propagates tracing headers.
	SupportsTracing bool

	// SupportsBatching indicates the transport can batch messages.
	SupportsBatching bool

	// SupportsAck indicates explicit message acknowledgment.
	SupportsAck bool

	// SupportsNack indicates negative acknowledgment with redelivery.
	SupportsNack bool

	// SupportsPartitioning indicates the transport partitions messages.
	SupportsPartitioning bool

	// MaxMessageSize is the maximum payload in bytes (0 = unlimited/unknown).
	MaxMessageSize int64

	// Name is the human-readable transport name.
	Name string

	// Version is the transport/driver version.
	Version string
}

// SupportsReliableDelivery reports whether the transport offers at-least-once
// semantics (ack + nack).
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.SupportsAck && c.SupportsNack
}

// RequiresOrderingEmulation reports whether arrival order must be restored at
// the application level because the transport does not guarantee it.
func (c Capabilities) RequiresOrderingEmulation() bool {
	return !c.SupportsOrdering
}

// Predefined capability sets for the built-in transports.
var (
	// ChannelCapabilities for the in-memory Go channel transport.
	ChannelCapabilities = Capabilities{
		Name:             "channel",
		SupportsOrdering: true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// KafkaCapabilities for the Apache Kafka transport.
	KafkaCapabilities = Capabilities{
		Name:                 "kafka",
		SupportsOrdering:     true,
		SupportsTracing:      true,
		SupportsBatching:     true,
		SupportsAck:          true,
		SupportsPartitioning: true,
		MaxMessageSize:       1048576, // Default 1MB
	}

	// RabbitMQCapabilities for the RabbitMQ/AMQP transport.
	RabbitMQCapabilities = Capabilities{
		Name:             "rabbitmq",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsAck:      true,
		SupportsNack:     true,
	}

	// NATSCapabilities for the NATS Core transport.
	NATSCapabilities = Capabilities{
		Name:            "nats",
		SupportsTracing: true,
		MaxMessageSize:  1048576, // Default 1MB
	}

	// NATSJetStreamCapabilities for the NATS JetStream transport.
	NATSJetStreamCapabilities = Capabilities{
		Name:             "nats-jetstream",
		SupportsOrdering: true,
		SupportsTracing:  true,
		SupportsBatching: true,
		SupportsAck:      true,
		SupportsNack:     true,
		MaxMessageSize:   1048576, // Default 1MB
	}

	// HTTPCapabilities for the HTTP webhook transport.
	HTTPCapabilities = Capabilities{
		Name:            "http",
		SupportsTracing: true,
	}
)

// GetCapabilities returns the capabilities registered for a transport name,
// or a zero value naming it when unknown.
func GetCapabilities(transportName string) Capabilities {
	return DefaultRegistry.GetCapabilities(transportName)
}
