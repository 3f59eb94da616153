// Package jetstream provides a NATS JetStream ingress transport. Unlike core
// NATS it persists the stream, so addressed URIs published while the router
// is down are still delivered once it comes back.
package jetstream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/nats-io/nats.go"

	"github.com/relaykit/deferral/transport"
)

// TransportName is the name this transport registers under.
const TransportName = "nats-jetstream"

const (
	// DefaultStreamName is the JetStream stream used when none is set.
	DefaultStreamName = "DEFERRAL"

	// DefaultMaxDeliver is the default max delivery attempts per message.
	DefaultMaxDeliver = 3

	// DefaultAckWait is how long the broker waits for an ack before redelivering.
	DefaultAckWait = 30 * time.Second

	// uuidHeader carries the watermill message UUID through the stream so a
	// redelivered message keeps its identity.
	uuidHeader = "df_uuid"

	fetchBatch = 10
)

var errClosed = errors.New("jetstream: transport is closed")

func init() {
	transport.RegisterWithCapabilities(TransportName, Build, transport.NATSJetStreamCapabilities)
}

// Build connects to the configured NATS URL and returns the stream-backed
// publisher/subscriber pair.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	ps, err := Connect(Config{URL: cfg.GetNATSURL()}, logger)
	if err != nil {
		return transport.Transport{}, err
	}
	return transport.Transport{Publisher: ps, Subscriber: ps}, nil
}

// Capabilities reports what this transport supports.
func Capabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}

// Config holds JetStream-specific configuration.
type Config struct {
	// URL is the NATS server URL.
	URL string

	// StreamName names the JetStream stream; empty means DefaultStreamName.
	StreamName string

	// MaxDeliver caps delivery attempts per message.
	MaxDeliver int

	// AckWait is how long the broker waits for an ack.
	AckWait time.Duration

	// Replicas is the stream replica count for clustered NATS.
	Replicas int
}

func (c Config) withDefaults() Config {
	if c.StreamName == "" {
		c.StreamName = DefaultStreamName
	}
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = DefaultMaxDeliver
	}
	if c.AckWait <= 0 {
		c.AckWait = DefaultAckWait
	}
	if c.Replicas <= 0 {
		c.Replicas = 1
	}
	return c
}

// PubSub implements message.Publisher and message.Subscriber backed by one
// JetStream stream. Topics map to subjects under the stream name.
type PubSub struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	cfg    Config
	logger watermill.LoggerAdapter

	mu   sync.Mutex
	subs []*nats.Subscription

	done     chan struct{}
	shutdown sync.Once
}

// Connect dials NATS, ensures the stream exists, and returns the transport.
func Connect(cfg Config, logger watermill.LoggerAdapter) (*PubSub, error) {
	cfg = cfg.withDefaults()

	conn, err := nats.Connect(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("jetstream: connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: context: %w", err)
	}

	ps := &PubSub{
		conn:   conn,
		js:     js,
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := ps.ensureStream(); err != nil {
		conn.Close()
		return nil, err
	}
	return ps, nil
}

func (p *PubSub) ensureStream() error {
	stream := &nats.StreamConfig{
		Name:      p.cfg.StreamName,
		Subjects:  []string{p.cfg.StreamName + ".>"},
		MaxAge:    7 * 24 * time.Hour,
		Replicas:  p.cfg.Replicas,
		Retention: nats.LimitsPolicy,
	}
	if _, err := p.js.AddStream(stream); err != nil {
		// The stream may predate us with a different shape; try to align it.
		if _, err := p.js.UpdateStream(stream); err != nil {
			return fmt.Errorf("jetstream: stream %s: %w", p.cfg.StreamName, err)
		}
	}
	return nil
}

func (p *PubSub) closed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Publish writes each message to the stream subject derived from the topic.
func (p *PubSub) Publish(topic string, messages ...*message.Message) error {
	if p.closed() {
		return errClosed
	}

	subject := p.subjectFor(topic)
	for _, msg := range messages {
		if _, err := p.js.PublishMsg(toNATS(subject, msg)); err != nil {
			return fmt.Errorf("jetstream: publish %s: %w", subject, err)
		}
	}
	return nil
}

// Subscribe opens a durable pull consumer on the topic's subject and
// delivers fetched messages on the returned channel until ctx is cancelled
// or the transport closes.
func (p *PubSub) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if p.closed() {
		return nil, errClosed
	}

	subject := p.subjectFor(topic)
	consumer := &nats.ConsumerConfig{
		Durable:       p.consumerFor(topic),
		FilterSubject: subject,
		AckPolicy:     nats.AckExplicitPolicy,
		MaxDeliver:    p.cfg.MaxDeliver,
		AckWait:       p.cfg.AckWait,
		DeliverPolicy: nats.DeliverAllPolicy,
	}
	if _, err := p.js.AddConsumer(p.cfg.StreamName, consumer); err != nil {
		if _, err := p.js.UpdateConsumer(p.cfg.StreamName, consumer); err != nil {
			return nil, fmt.Errorf("jetstream: consumer %s: %w", consumer.Durable, err)
		}
	}

	sub, err := p.js.PullSubscribe(subject, consumer.Durable)
	if err != nil {
		return nil, fmt.Errorf("jetstream: subscribe %s: %w", subject, err)
	}
	p.mu.Lock()
	p.subs = append(p.subs, sub)
	p.mu.Unlock()

	out := make(chan *message.Message)
	go p.pump(ctx, sub, out, topic)
	return out, nil
}

// pump fetches batches from the pull subscription and bridges the watermill
// ack/nack protocol back onto the NATS messages.
func (p *PubSub) pump(ctx context.Context, sub *nats.Subscription, out chan<- *message.Message, topic string) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		default:
		}

		batch, err := sub.Fetch(fetchBatch, nats.MaxWait(time.Second))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				continue
			}
			p.logErr("Failed to fetch from JetStream", err, topic)
			continue
		}

		for _, natsMsg := range batch {
			if !p.deliver(ctx, natsMsg, out, topic) {
				return
			}
		}
	}
}

func (p *PubSub) deliver(ctx context.Context, natsMsg *nats.Msg, out chan<- *message.Message, topic string) bool {
	msg := fromNATS(natsMsg)

	select {
	case out <- msg:
	case <-ctx.Done():
		return false
	case <-p.done:
		return false
	}

	select {
	case <-msg.Acked():
		if err := natsMsg.Ack(); err != nil {
			p.logErr("Failed to ack", err, topic)
		}
	case <-msg.Nacked():
		if err := natsMsg.Nak(); err != nil {
			p.logErr("Failed to nak", err, topic)
		}
	case <-ctx.Done():
		return false
	case <-p.done:
		return false
	}
	return true
}

func (p *PubSub) logErr(msg string, err error, topic string) {
	if p.logger != nil {
		p.logger.Error(msg, err, watermill.LogFields{"topic": topic})
	}
}

func (p *PubSub) subjectFor(topic string) string {
	return p.cfg.StreamName + "." + topic
}

func (p *PubSub) consumerFor(topic string) string {
	return "consumer_" + topic
}

func toNATS(subject string, msg *message.Message) *nats.Msg {
	header := nats.Header{}
	for k, v := range msg.Metadata {
		header.Set(k, v)
	}
	header.Set(uuidHeader, msg.UUID)
	return &nats.Msg{Subject: subject, Data: msg.Payload, Header: header}
}

func fromNATS(natsMsg *nats.Msg) *message.Message {
	id := natsMsg.Header.Get(uuidHeader)
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, natsMsg.Data)
	for k, v := range natsMsg.Header {
		if len(v) > 0 {
			msg.Metadata.Set(k, v[0])
		}
	}
	return msg
}

// Close stops the fetch loops, drops all subscriptions, and closes the
// connection. Safe to call more than once.
func (p *PubSub) Close() error {
	p.shutdown.Do(func() {
		close(p.done)

		p.mu.Lock()
		for _, sub := range p.subs {
			_ = sub.Unsubscribe()
		}
		p.subs = nil
		p.mu.Unlock()

		if p.conn != nil {
			p.conn.Close()
		}
	})
	return nil
}

// GetCapabilities reports what this transport supports.
func (p *PubSub) GetCapabilities() transport.Capabilities {
	return transport.NATSJetStreamCapabilities
}
