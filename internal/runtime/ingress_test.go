package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	configpkg "github.com/relaykit/deferral/internal/runtime/config"
	transportpkg "github.com/relaykit/deferral/transport"
)

type gochannelFactory struct {
	pubSub *gochannel.GoChannel
}

func (f *gochannelFactory) Build(_ context.Context, _ *configpkg.Config, logger watermill.LoggerAdapter) (transportpkg.Transport, error) {
	if f.pubSub == nil {
		f.pubSub = gochannel.NewGoChannel(gochannel.Config{}, logger)
	}
	return transportpkg.Transport{Publisher: f.pubSub, Subscriber: f.pubSub}, nil
}

type failingFactory struct {
	err error
}

func (f failingFactory) Build(context.Context, *configpkg.Config, watermill.LoggerAdapter) (transportpkg.Transport, error) {
	return transportpkg.Transport{}, f.err
}

func TestIngressRoutesBrokerPayloads(t *testing.T) {
	conf := &configpkg.Config{
		PubSubSystem: "channel",
		IngressQueue: "deferral_ingress",
	}
	factory := &gochannelFactory{}
	fx := newTestServiceWith(t, conf, func(deps *ServiceDependencies) {
		deps.TransportFactory = factory
	})
	fx.knownSubscriber("mail.reader", "Mail Reader")

	handler := newRecordingHandler()
	if err := fx.svc.Register(context.Background(), "mail.reader", handler); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := fx.svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		if err := fx.svc.Stop(); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
	}()

	// Wait for the router to subscribe before publishing; gochannel drops
	// messages published before a subscription exists.
	waitUntil(t, func() bool { return factory.pubSub != nil }, "transport build")

	uri := "app://mail.reader/inbox?id=5"
	publish := func() error {
		return factory.pubSub.Publish(conf.IngressQueue,
			message.NewMessage(watermill.NewUUID(), []byte(uri)))
	}
	waitUntil(t, func() bool {
		if err := publish(); err != nil {
			return false
		}
		return len(handler.messages()) > 0
	}, "broker payload delivery")

	got := handler.messages()
	if got[0].URI != uri {
		t.Errorf("delivered %q, want %q", got[0].URI, uri)
	}
}

func TestIngressForwardsUnroutedPayloads(t *testing.T) {
	conf := &configpkg.Config{
		PubSubSystem:  "channel",
		IngressQueue:  "deferral_ingress",
		UnroutedQueue: "deferral_unrouted",
	}
	factory := &gochannelFactory{}
	fx := newTestServiceWith(t, conf, func(deps *ServiceDependencies) {
		deps.TransportFactory = factory
	})

	if err := fx.svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer fx.svc.Stop()

	waitUntil(t, func() bool { return factory.pubSub != nil }, "transport build")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	unrouted, err := factory.pubSub.Subscribe(ctx, conf.UnroutedQueue)
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	// A payload without a two-segment authority is not this system's
	// concern and must come out on the unrouted queue.
	payload := []byte("app://editor/open-settings")
	received := make(chan *message.Message, 1)
	go func() {
		m := <-unrouted
		m.Ack()
		received <- m
	}()

	waitUntil(t, func() bool {
		if err := factory.pubSub.Publish(conf.IngressQueue,
			message.NewMessage(watermill.NewUUID(), payload)); err != nil {
			return false
		}
		select {
		case m := <-received:
			if string(m.Payload) != string(payload) {
				t.Errorf("forwarded %q, want %q", m.Payload, payload)
			}
			return true
		default:
			return false
		}
	}, "unrouted forwarding")
}

func TestIngressBuildFailureStopsService(t *testing.T) {
	conf := &configpkg.Config{
		PubSubSystem: "kafka",
		KafkaBrokers: []string{"localhost:9092"},
		IngressQueue: "deferral_ingress",
	}
	wantErr := errors.New("no brokers")
	fx := newTestServiceWith(t, conf, func(deps *ServiceDependencies) {
		deps.TransportFactory = failingFactory{err: wantErr}
	})

	if err := fx.svc.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := fx.svc.Stop(); !errors.Is(err, wantErr) {
		t.Errorf("Stop error = %v, want %v", err, wantErr)
	}
}

func TestDefaultTransportFactoryUsesRegistry(t *testing.T) {
	conf := &configpkg.Config{PubSubSystem: "channel"}

	tr, err := DefaultTransportFactory().Build(context.Background(), conf, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tr.Publisher == nil || tr.Subscriber == nil {
		t.Error("registry-built channel transport is incomplete")
	}

	unknown := &configpkg.Config{PubSubSystem: "carrier-pigeon"}
	if _, err := DefaultTransportFactory().Build(context.Background(), unknown, watermill.NopLogger{}); err == nil {
		t.Error("Build accepted an unknown transport")
	}
}
