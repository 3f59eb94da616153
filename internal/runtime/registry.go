package runtime

import "sync"

// handlerRegistry maps addresses to their live handler. At most one binding
// exists per address; registering again replaces the prior binding.
type handlerRegistry struct {
	mu       sync.RWMutex
	bindings map[Address]Handler
}

func newHandlerRegistry() *handlerRegistry {
	return &handlerRegistry{bindings: make(map[Address]Handler)}
}

// Lookup returns the live handler for the address, or nil.
func (r *handlerRegistry) Lookup(addr Address) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bindings[addr]
}

// Bound reports whether a live binding exists for the address.
func (r *handlerRegistry) Bound(addr Address) bool {
	return r.Lookup(addr) != nil
}

// Bind installs or replaces the binding for the address.
func (r *handlerRegistry) Bind(addr Address, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings[addr] = h
}

// Unbind removes the binding if present.
func (r *handlerRegistry) Unbind(addr Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.bindings, addr)
}

// addressLocks hands out one mutex per address so the
// check-binding-then-buffer and register-then-drain sequences are atomic with
// respect to each other without serialising unrelated addresses.
type addressLocks struct {
	mu    sync.Mutex
	locks map[Address]*sync.Mutex
}

func newAddressLocks() *addressLocks {
	return &addressLocks{locks: make(map[Address]*sync.Mutex)}
}

// Lock acquires the per-address mutex and returns its unlock function.
func (l *addressLocks) Lock(addr Address) func() {
	l.mu.Lock()
	m, ok := l.locks[addr]
	if !ok {
		m = &sync.Mutex{}
		l.locks[addr] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
