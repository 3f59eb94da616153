package jetstream

import (
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"

	"github.com/relaykit/deferral/transport"
)

func TestRegisteredOnImport(t *testing.T) {
	assert.True(t, transport.DefaultRegistry.Has(TransportName))

	caps := transport.GetCapabilities(TransportName)
	assert.Equal(t, "nats-jetstream", caps.Name)
	assert.True(t, caps.SupportsOrdering)
	assert.True(t, caps.SupportsReliableDelivery())
}

func TestTransportName(t *testing.T) {
	assert.Equal(t, "nats-jetstream", TransportName)
}

func TestConfigWithDefaults(t *testing.T) {
	t.Run("fills zero values", func(t *testing.T) {
		cfg := Config{}.withDefaults()

		assert.Equal(t, DefaultStreamName, cfg.StreamName)
		assert.Equal(t, DefaultMaxDeliver, cfg.MaxDeliver)
		assert.Equal(t, DefaultAckWait, cfg.AckWait)
		assert.Equal(t, 1, cfg.Replicas)
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		cfg := Config{
			StreamName: "CUSTOM",
			MaxDeliver: 7,
			AckWait:    time.Minute,
			Replicas:   3,
		}.withDefaults()

		assert.Equal(t, "CUSTOM", cfg.StreamName)
		assert.Equal(t, 7, cfg.MaxDeliver)
		assert.Equal(t, time.Minute, cfg.AckWait)
		assert.Equal(t, 3, cfg.Replicas)
	})
}

func TestTopicMapping(t *testing.T) {
	ps := &PubSub{cfg: Config{StreamName: "DEFERRAL"}}

	assert.Equal(t, "DEFERRAL.deferral_ingress", ps.subjectFor("deferral_ingress"))
	assert.Equal(t, "consumer_deferral_ingress", ps.consumerFor("deferral_ingress"))
}

func TestNATSConversion(t *testing.T) {
	t.Run("keeps published uuid and metadata", func(t *testing.T) {
		header := nats.Header{}
		header.Set(uuidHeader, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
		header.Set("correlation_id", "abc")

		msg := fromNATS(&nats.Msg{
			Data:   []byte("app://mail.reader/inbox"),
			Header: header,
		})

		assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", msg.UUID)
		assert.Equal(t, []byte("app://mail.reader/inbox"), []byte(msg.Payload))
		assert.Equal(t, "abc", msg.Metadata.Get("correlation_id"))
	})

	t.Run("mints uuid when the header is absent", func(t *testing.T) {
		msg := fromNATS(&nats.Msg{Data: []byte("payload")})
		assert.NotEmpty(t, msg.UUID)
	})

	t.Run("round-trips uuid and metadata through the wire shape", func(t *testing.T) {
		sent := toNATS("DEFERRAL.in", fromNATS(&nats.Msg{Data: []byte("x")}))
		back := fromNATS(sent)

		assert.Equal(t, "DEFERRAL.in", sent.Subject)
		assert.Equal(t, sent.Header.Get(uuidHeader), back.UUID)
	})
}

func TestCloseIsIdempotent(t *testing.T) {
	ps := &PubSub{done: make(chan struct{})}

	assert.NoError(t, ps.Close())
	assert.True(t, ps.closed())
	assert.NoError(t, ps.Close())

	assert.ErrorIs(t, ps.Publish("deferral_ingress"), errClosed)
}
