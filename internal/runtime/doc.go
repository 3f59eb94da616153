/*
Package runtime implements deferred delivery of addressed messages to
subscribers that may not be ready to receive them yet.

# Architecture Overview

A message names its target subscriber in the authority component of its URI
(two dot-separated segments, case-insensitive). Subscribers become ready only
after an external activation step; until then inbound messages are buffered
with bounded retention and replayed in arrival order once the subscriber
registers a handler.

# Package Structure

## Core Service (service.go)

The Service struct wires together:
  - Handler registry with replay-on-register (registry.go)
  - Retention store with a periodic eviction sweep (retention.go)
  - Routing decisions for inbound messages (router.go)
  - Activation coordination against the lifecycle resolver (activation.go)
  - Restart continuity for one in-flight message (carry.go)
  - Optional broker ingress built on Watermill (ingress.go)

## Collaborators (collaborators.go)

External contracts the core consumes: user confirmation, subscriber lifecycle
resolution, activation triggering, host restart, scoped persistence, and
notifications. All are injected so the routing policy stays testable.

## Routing

Route returns false only when the message is unrelated to this system
(malformed address) or when delivery belongs to a registration that raced the
call; every other path commits to handling, even when resolution continues
asynchronously.

# Sub-packages

  - config/: Service configuration with env loading and validation
  - errors/: Sentinel errors
  - ids/: ULID generation for message IDs
  - jsoncodec/: JSON marshaling utilities
  - logging/: Logger interface and adapters

# Usage Example

	cfg := &deferral.Config{}
	svc, err := deferral.NewService(cfg, logger, deferral.ServiceDependencies{
		Confirmer: dialogs,
		Resolver:  extensions,
		Activator: activator,
		Restarter: host,
		State:     statestore.NewFileStore(path),
		Notifier:  notifications,
	})
	if err != nil {
		return err
	}

	svc.Start(ctx)
	defer svc.Stop()

	handled := svc.Route(ctx, "app://vendor.tool/open?file=x", false)
*/
package runtime
