// Package transports imports all built-in transports for auto-registration.
// Import this package to have every transport registered with the default
// registry.
package transports

import (
	// Import all transports for side-effect registration
	_ "github.com/relaykit/deferral/transport/channel"
	_ "github.com/relaykit/deferral/transport/http"
	_ "github.com/relaykit/deferral/transport/jetstream"
	_ "github.com/relaykit/deferral/transport/kafka"
	_ "github.com/relaykit/deferral/transport/nats"
	_ "github.com/relaykit/deferral/transport/rabbitmq"
)
