// Package session is superFetch's in-memory MCP Session Store: a
// capacity-bounded, TTL'd table of session records keyed by session
// id, with an in-flight slot counter guarding admission of sessions
// that have been reserved but not yet completed initialization.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record is a single MCP session's bookkeeping entry. It is only ever
// present in the Store once its transport has signaled initialized.
type Record struct {
	ID                  string
	AuthFingerprint     string
	CreatedAt           time.Time
	LastSeen            time.Time
	ProtocolInitialized bool
}

// Store is a capacity-bounded, TTL-evicting table of session Records,
// fronted by an in-flight slot counter for admission control.
//
// Store.size() + inFlight < maxSessions gates every reservation, so
// the two numbers are always read and mutated together under mu.
type Store struct {
	mu       sync.Mutex
	records  map[string]*Record
	maxSize  int
	ttl      time.Duration
	inFlight int
	newID    func() string
}

// New builds a Store admitting at most maxSize concurrent sessions
// (store size plus in-flight reservations), evicting records whose
// lastSeen is older than ttl.
func New(maxSize int, ttl time.Duration) *Store {
	return &Store{
		records: make(map[string]*Record),
		maxSize: maxSize,
		ttl:     ttl,
		newID:   uuid.NewString,
	}
}

// Size returns the number of fully initialized session records.
func (s *Store) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// ReserveSlot attempts to admit a new, not-yet-initialized session. It
// first tries evictOldest if the store is at capacity; if still at
// capacity, admission is refused. On success it returns a fresh
// session id and a release func that must be called exactly once
// (further calls are no-ops) once initialization succeeds or fails.
func (s *Store) ReserveSlot() (id string, release func(), ok bool) {
	s.mu.Lock()
	if len(s.records)+s.inFlight >= s.maxSize {
		s.evictOldestLocked()
	}
	if len(s.records)+s.inFlight >= s.maxSize {
		s.mu.Unlock()
		return "", nil, false
	}
	s.inFlight++
	s.mu.Unlock()

	var once sync.Once
	release = func() {
		once.Do(func() {
			s.mu.Lock()
			s.inFlight--
			s.mu.Unlock()
		})
	}
	return s.newID(), release, true
}

// Set inserts or overwrites rec, keyed by rec.ID. Callers insert only
// after the session's transport has reported initialized.
func (s *Store) Set(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
}

// Get returns the record for id, if present.
func (s *Store) Get(id string) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	return rec, ok
}

// Touch advances id's lastSeen to now. lastSeen is monotonically
// increasing: a stale touch (now before the current lastSeen) is a
// no-op.
func (s *Store) Touch(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return
	}
	now := time.Now()
	if now.After(rec.LastSeen) {
		rec.LastSeen = now
	}
}

// Remove deletes id from the store, if present.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
}

// EvictOldest removes and returns the record with the smallest
// lastSeen, or nil if the store is empty.
func (s *Store) EvictOldest() *Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictOldestLocked()
}

func (s *Store) evictOldestLocked() *Record {
	var oldest *Record
	for _, rec := range s.records {
		if oldest == nil || rec.LastSeen.Before(oldest.LastSeen) {
			oldest = rec
		}
	}
	if oldest != nil {
		delete(s.records, oldest.ID)
	}
	return oldest
}

// EvictExpired removes and returns every record whose lastSeen is
// older than the store's ttl.
func (s *Store) EvictExpired() []*Record {
	if s.ttl <= 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.ttl)
	var expired []*Record
	for id, rec := range s.records {
		if rec.LastSeen.Before(cutoff) {
			expired = append(expired, rec)
			delete(s.records, id)
		}
	}
	return expired
}

// Clear removes and returns every record currently in the store.
func (s *Store) Clear() []*Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*Record, 0, len(s.records))
	for _, rec := range s.records {
		all = append(all, rec)
	}
	s.records = make(map[string]*Record)
	return all
}
