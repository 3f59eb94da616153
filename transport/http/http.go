// Package http provides an HTTP ingress transport. Each inbound request body
// becomes an addressed URI for the router; unrouted payloads are POSTed to
// the configured publisher URL.
package http

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-http/v2/pkg/http"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/relaykit/deferral/transport"
)

// TransportName is the name this transport registers under.
const TransportName = "http"

// NewPublisher and NewSubscriber are seams tests use to swap the real HTTP
// clients out.
var (
	NewPublisher = func(cfg http.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
		return http.NewPublisher(cfg, logger)
	}
	NewSubscriber = func(addr string, cfg http.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
		return http.NewSubscriber(addr, cfg, logger)
	}
)

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.HTTPCapabilities)
}

// Build wires a publisher that POSTs to the configured base URL and a
// subscriber listening on the configured server address.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	baseURL := cfg.GetHTTPPublisherURL()

	pub, err := NewPublisher(http.PublisherConfig{
		MarshalMessageFunc: func(topic string, msg *message.Message) (*nethttp.Request, error) {
			return http.DefaultMarshalMessageFunc(baseURL+topic, msg)
		},
	}, logger)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("http publisher: %w", err)
	}

	sub, err := NewSubscriber(cfg.GetHTTPServerAddress(), http.SubscriberConfig{
		UnmarshalMessageFunc: http.DefaultUnmarshalMessageFunc,
	}, logger)
	if err != nil {
		return transport.Transport{}, fmt.Errorf("http subscriber: %w", err)
	}

	// The subscriber's server only starts serving once something subscribed.
	go func() {
		if s, ok := sub.(*http.Subscriber); ok {
			if err := s.StartHTTPServer(); err != nil {
				logger.Error("Failed to start HTTP subscriber server", err, nil)
			}
		}
	}()

	return transport.Transport{Publisher: pub, Subscriber: sub}, nil
}

// Capabilities reports what this transport supports.
func Capabilities() transport.Capabilities {
	return transport.HTTPCapabilities
}
