package runtime

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	configpkg "github.com/relaykit/deferral/internal/runtime/config"
	loggingpkg "github.com/relaykit/deferral/internal/runtime/logging"
	transportpkg "github.com/relaykit/deferral/transport"

	// Register the built-in ingress transports.
	_ "github.com/relaykit/deferral/transport/channel"
	_ "github.com/relaykit/deferral/transport/http"
	_ "github.com/relaykit/deferral/transport/jetstream"
	_ "github.com/relaykit/deferral/transport/kafka"
	_ "github.com/relaykit/deferral/transport/nats"
	_ "github.com/relaykit/deferral/transport/rabbitmq"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// TransportFactory abstracts how the broker ingress initialises its message
// transport.
type TransportFactory interface {
	Build(ctx context.Context, conf *configpkg.Config, logger watermill.LoggerAdapter) (transportpkg.Transport, error)
}

// DefaultTransportFactory returns the registry-backed factory.
func DefaultTransportFactory() TransportFactory {
	return defaultTransportFactory{}
}

type defaultTransportFactory struct{}

func (defaultTransportFactory) Build(ctx context.Context, conf *configpkg.Config, logger watermill.LoggerAdapter) (transportpkg.Transport, error) {
	return transportpkg.Build(ctx, conf, logger)
}

// runIngress consumes addressed URIs from the configured broker topic and
// feeds each payload to the router. Payloads the router reports as unrelated
// are republished to the unrouted queue when one is configured, so an outer
// handler chain can try them.
func (s *Service) runIngress(ctx context.Context) error {
	wmLogger := loggingpkg.NewWatermillAdapter(s.Logger)

	tr, err := s.transportFactory.Build(ctx, s.Conf, wmLogger)
	if err != nil {
		s.Logger.Error("Failed to build ingress transport", err, loggingpkg.LogFields{
			"pubsub_system": s.Conf.PubSubSystem,
		})
		return err
	}
	defer func() {
		if tr.Subscriber != nil {
			_ = tr.Subscriber.Close()
		}
		if tr.Publisher != nil {
			_ = tr.Publisher.Close()
		}
	}()

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return err
	}
	router.AddMiddleware(middleware.CorrelationID, middleware.Recoverer)

	if s.Conf.UnroutedQueue != "" {
		router.AddHandler(
			"deferral_ingress",
			s.Conf.IngressQueue,
			tr.Subscriber,
			s.Conf.UnroutedQueue,
			tr.Publisher,
			func(m *message.Message) ([]*message.Message, error) {
				msg := NewMessage(string(m.Payload))
				if _, ok := msg.Address(); !ok {
					// Not addressed to a subscriber; hand it to the outer
					// chain untouched.
					forward := message.NewMessage(watermill.NewUUID(), m.Payload)
					for k, v := range m.Metadata {
						forward.Metadata.Set(k, v)
					}
					return []*message.Message{forward}, nil
				}
				s.routeMessage(m.Context(), msg, false)
				return nil, nil
			},
		)
	} else {
		router.AddNoPublisherHandler(
			"deferral_ingress",
			s.Conf.IngressQueue,
			tr.Subscriber,
			func(m *message.Message) error {
				s.routeMessage(m.Context(), NewMessage(string(m.Payload)), false)
				return nil
			},
		)
	}

	s.Logger.Info("Starting broker ingress", loggingpkg.LogFields{
		"pubsub_system": s.Conf.PubSubSystem,
		"ingress_queue": s.Conf.IngressQueue,
	})
	return routerRun(router, ctx)
}
