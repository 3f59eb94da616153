package runtime

import (
	"sync"
	"time"
)

// pendingEntry is one buffered message awaiting its subscriber.
type pendingEntry struct {
	enqueuedAt time.Time
	msg        Message
}

// retentionStore buffers messages for addresses with no live handler. Entries
// for an address keep arrival order; the sweep evicts entries older than the
// retention window and removes addresses left empty.
type retentionStore struct {
	mu      sync.RWMutex
	entries map[Address][]pendingEntry

	window time.Duration
	clock  Clock
}

func newRetentionStore(window time.Duration, clock Clock) *retentionStore {
	return &retentionStore{
		entries: make(map[Address][]pendingEntry),
		window:  window,
		clock:   clock,
	}
}

// Enqueue buffers a message for the address, stamped with the current time.
func (s *retentionStore) Enqueue(addr Address, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[addr] = append(s.entries[addr], pendingEntry{enqueuedAt: s.clock.Now(), msg: msg})
}

// Drain removes and returns every buffered entry for the address in arrival
// order.
func (s *retentionStore) Drain(addr Address) []pendingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.entries[addr]
	if len(pending) == 0 {
		return nil
	}
	delete(s.entries, addr)
	return pending
}

// Len reports the number of buffered messages for the address.
func (s *retentionStore) Len(addr Address) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[addr])
}

// Total reports the number of buffered messages across all addresses.
func (s *retentionStore) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, pending := range s.entries {
		total += len(pending)
	}
	return total
}

// Sweep evicts entries older than the retention window and returns how many
// were dropped. The filtered map is built from a snapshot and swapped in so
// enqueues proceed while filtering runs; an entry added mid-sweep is merged
// back on swap and at worst waits one extra cycle for eviction. An address
// drained mid-sweep is never resurrected: the swap reconciles against the
// live map, not the snapshot.
func (s *retentionStore) Sweep() int {
	cutoff := s.clock.Now().Add(-s.window)

	s.mu.RLock()
	snapshot := make(map[Address][]pendingEntry, len(s.entries))
	for addr, pending := range s.entries {
		snapshot[addr] = pending
	}
	s.mu.RUnlock()

	evicted := 0
	filtered := make(map[Address][]pendingEntry, len(snapshot))
	for addr, pending := range snapshot {
		kept, dropped := filterStale(pending, cutoff)
		evicted += dropped
		if len(kept) > 0 {
			filtered[addr] = kept
		}
	}

	s.mu.Lock()
	next := make(map[Address][]pendingEntry, len(s.entries))
	for addr, current := range s.entries {
		prefix := snapshot[addr]
		var kept []pendingEntry
		switch {
		case len(prefix) == 0:
			// Address appeared after the snapshot; evict next cycle.
			kept = current
		case len(current) >= len(prefix) && current[0] == prefix[0]:
			// Same stream: keep the filtered prefix plus anything appended
			// after the snapshot.
			kept = append(filtered[addr], current[len(prefix):]...)
		default:
			// Drained and repopulated mid-sweep; the snapshot no longer
			// describes this address, so filter the live entries directly.
			var dropped int
			kept, dropped = filterStale(current, cutoff)
			evicted += dropped
		}
		if len(kept) > 0 {
			next[addr] = kept
		}
	}
	s.entries = next
	s.mu.Unlock()

	return evicted
}

func filterStale(pending []pendingEntry, cutoff time.Time) ([]pendingEntry, int) {
	kept := pending[:0:0]
	dropped := 0
	for _, entry := range pending {
		if entry.enqueuedAt.After(cutoff) {
			kept = append(kept, entry)
		} else {
			dropped++
		}
	}
	return kept, dropped
}

// PendingAddressSnapshot summarises the buffered entries for one address.
type PendingAddressSnapshot struct {
	Address  Address   `json:"address"`
	Count    int       `json:"count"`
	OldestAt time.Time `json:"oldest_at"`
	NewestAt time.Time `json:"newest_at"`
}

// PendingSnapshot is a point-in-time view of the whole pending buffer.
type PendingSnapshot struct {
	Total       int                      `json:"total"`
	Addresses   []PendingAddressSnapshot `json:"addresses"`
	CollectedAt time.Time                `json:"collected_at"`
}

// Snapshot reports the pending buffer without mutating it.
func (s *retentionStore) Snapshot() PendingSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := PendingSnapshot{CollectedAt: s.clock.Now()}
	for addr, pending := range s.entries {
		if len(pending) == 0 {
			continue
		}
		snap.Total += len(pending)
		snap.Addresses = append(snap.Addresses, PendingAddressSnapshot{
			Address:  addr,
			Count:    len(pending),
			OldestAt: pending[0].enqueuedAt,
			NewestAt: pending[len(pending)-1].enqueuedAt,
		})
	}
	return snap
}
