package store

import (
	"sort"
	"sync"
	"time"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
type MemoryStore struct {
	mu          sync.RWMutex
	snapshots   map[string]Snapshot
	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots:   make(map[string]Snapshot),
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Update stores snap, replacing any previous snapshot for the same issue,
// and notifies subscribers.
func (m *MemoryStore) Update(snap Snapshot) {
	snap.Removed = false

	m.mu.Lock()
	m.snapshots[snap.IssueID] = snap
	m.mu.Unlock()

	m.notifySubscribers(snap)
}

// Get returns the snapshot stored for issueID.
func (m *MemoryStore) Get(issueID string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.snapshots[issueID]
	return snap, ok
}

// GetAll returns a copy of all snapshots ordered by IssueID.
func (m *MemoryStore) GetAll() []Snapshot {
	m.mu.RLock()
	results := make([]Snapshot, 0, len(m.snapshots))
	for _, snap := range m.snapshots {
		results = append(results, snap)
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		return results[i].IssueID < results[j].IssueID
	})
	return results
}

// Delete removes the snapshot for issueID. Subscribers receive a snapshot
// with Removed set.
func (m *MemoryStore) Delete(issueID string) bool {
	m.mu.Lock()
	_, ok := m.snapshots[issueID]
	delete(m.snapshots, issueID)
	m.mu.Unlock()

	if ok {
		m.notifySubscribers(Snapshot{IssueID: issueID, Removed: true, UpdatedAt: time.Now()})
	}
	return ok
}

// Subscribe creates a subscription with a buffer of 100 snapshots. When the
// buffer is full, further updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends snap to every subscriber without blocking.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber, drop
		}
	}
}
