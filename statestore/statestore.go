// Package statestore provides persistence backends for the restart-carry
// slot and any other scoped key/value state the deferral service keeps.
// Every backend satisfies the service's StateStore dependency: Get returns a
// nil blob for absent keys, and scopes partition keys so a workspace-scoped
// carry never leaks into another workspace.
package statestore

import "context"

// Store is the scoped key/value contract the backends implement.
type Store interface {
	Put(ctx context.Context, key string, blob []byte, scope string) error
	Get(ctx context.Context, key, scope string) ([]byte, error)
	Remove(ctx context.Context, key, scope string) error
}
