// Package deferral routes addressed messages to subscribers that may not be
// running yet. A message is a URI whose authority names its subscriber as two
// dot-separated segments (for example app://mail.reader/inbox); Route decides
// whether a message is this system's concern, asks the user for consent,
// delivers it when a handler is registered, and otherwise buffers it with
// bounded retention while an activation is requested. Register binds a
// handler and immediately drains every buffered message for its address in
// arrival order, exactly once even when routing and registration race.
//
// When the subscriber is not even active, the activation coordinator works
// out the cheapest path to a live registration: restart the host when the
// subscriber is installed and enabled, enable it first when it is disabled,
// or install a compatible package from the catalog. Every mutating branch
// asks for consent, and a consented restart carries the triggering message
// across the restart through a StateStore so it is replayed, without a second
// prompt, on the next startup. A minimal setup fills Config, implements the
// small collaborator interfaces in ServiceDependencies, creates a Service,
// registers handlers, and calls Start.
//
// # Transports
//
// Messages can also arrive from a broker. Six ingress transports are built
// in, each registering itself on import:
//   - channel: In-memory Go channels for testing
//   - kafka: High-throughput streaming with consumer groups
//   - rabbitmq: AMQP-based durable queues
//   - nats: Fire-and-forget messaging
//   - nats-jetstream: Persistent NATS streams
//   - http: Webhook-style request ingress
//
// Payloads the router does not claim are forwarded to the configured
// unrouted queue so an outer handler chain can try them.
//
// # State
//
// The statestore package ships Memory, File, and Sqlite backends for the
// restart-carry slot; any implementation of StateStore works. Metrics are
// Prometheus collectors served alongside a JSON snapshot of the pending
// buffer when MetricsEnabled is set.
package deferral
