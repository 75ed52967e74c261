package moderation

import (
	"errors"
	"sync"

	"github.com/lumio-labs/lumiod/internal/metrics"
)

// ErrDuplicateRequest is returned by Insert when an entry already exists
// for the request id. The oracle generates unique ids, so a duplicate
// indicates a configuration bug; the insert still overwrites
// deterministically so the ledger never holds two entries per key.
var ErrDuplicateRequest = errors.New("duplicate moderation request id")

// Ledger is the in-memory table of moderation requests awaiting a
// verdict. It is the only mutable structure shared between the inbound
// taps (insert) and the verdict poller (snapshot/remove); all access is
// mutex-guarded and the raw map is never exposed.
type Ledger struct {
	mu      sync.Mutex
	entries map[string]PendingRequest
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		entries: make(map[string]PendingRequest),
	}
}

// Insert adds an entry keyed by req.RequestID. If an entry already
// exists it is overwritten and ErrDuplicateRequest is returned so the
// caller can log the anomaly.
func (l *Ledger) Insert(req PendingRequest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, exists := l.entries[req.RequestID]
	l.entries[req.RequestID] = req
	metrics.PendingRequests.Set(float64(len(l.entries)))

	if exists {
		return ErrDuplicateRequest
	}
	return nil
}

// Remove deletes an entry. Removing a non-existent id is a no-op.
func (l *Ledger) Remove(requestID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.entries, requestID)
	metrics.PendingRequests.Set(float64(len(l.entries)))
}

// Snapshot returns a copy of all entries. The copy is safe to iterate
// while the ledger is concurrently mutated; there is no ordering
// guarantee between entries.
func (l *Ledger) Snapshot() []PendingRequest {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make([]PendingRequest, 0, len(l.entries))
	for _, req := range l.entries {
		snapshot = append(snapshot, req)
	}
	return snapshot
}

// Len returns the number of outstanding entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
