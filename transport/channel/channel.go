// Package channel provides an in-memory Go channel transport. It is the
// default for tests and single-process setups where the ingress queue lives
// in the same binary as the router.
package channel

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/relaykit/deferral/transport"
)

// TransportName is the name this transport registers under.
const TransportName = "channel"

// NewPubSub is the seam tests use to swap the in-memory pubsub out.
var NewPubSub = func(cfg gochannel.Config, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber) {
	pubSub := gochannel.NewGoChannel(cfg, logger)
	return pubSub, pubSub
}

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.ChannelCapabilities)
}

// Build wires an in-memory publisher/subscriber pair. There is nothing to
// connect to, so it cannot fail.
func Build(_ context.Context, _ transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	pub, sub := NewPubSub(gochannel.Config{}, logger)
	return transport.Transport{Publisher: pub, Subscriber: sub}, nil
}

// Capabilities reports what this transport supports.
func Capabilities() transport.Capabilities {
	return transport.ChannelCapabilities
}
