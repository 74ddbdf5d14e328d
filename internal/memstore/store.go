// Package memstore is an in-process ResultStore/NoteStore used by the
// memory driver and by tests. It mirrors the conditional-write and TTL
// semantics of the Postgres store.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/keyforge/keyforge/internal/interfaces"
)

type Store struct {
	mu      sync.Mutex
	records map[string]*interfaces.ResultRecord
	notes   map[string]map[string]*interfaces.Note
	now     func() time.Time
}

// New creates an empty store using the wall clock.
func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock creates a store with an injectable clock, so tests can
// move time past expiration deadlines.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		records: make(map[string]*interfaces.ResultRecord),
		notes:   make(map[string]map[string]*interfaces.Note),
		now:     now,
	}
}

func (s *Store) Create(_ context.Context, rec *interfaces.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[rec.RequestID]; ok && !existing.Expired(s.now()) {
		return interfaces.ErrAlreadyExists
	}

	cp := *rec
	s.records[rec.RequestID] = &cp
	return nil
}

func (s *Store) Get(_ context.Context, requestID string) (*interfaces.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[requestID]
	if !ok || rec.Expired(s.now()) {
		return nil, interfaces.ErrNotFound
	}

	cp := *rec
	return &cp, nil
}

func (s *Store) MarkPending(_ context.Context, requestID string) error {
	return s.transition(requestID, interfaces.StatusPending, func(rec *interfaces.ResultRecord) {})
}

func (s *Store) Complete(_ context.Context, requestID, publicKey, privateKey string) error {
	return s.transition(requestID, interfaces.StatusComplete, func(rec *interfaces.ResultRecord) {
		rec.PublicKey = publicKey
		rec.PrivateKey = privateKey
		rec.ErrorMessage = ""
	})
}

func (s *Store) Fail(_ context.Context, requestID, errorMessage string) error {
	return s.transition(requestID, interfaces.StatusError, func(rec *interfaces.ResultRecord) {
		rec.ErrorMessage = errorMessage
	})
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

// transition moves the record to the target status under the
// conditional-write rules: the record must exist, be unexpired and its
// current status must allow the move.
func (s *Store) transition(requestID string, to interfaces.Status, mutate func(*interfaces.ResultRecord)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[requestID]
	if !ok || rec.Expired(s.now()) {
		return interfaces.ErrNotFound
	}
	if !interfaces.CanTransition(rec.Status, to) {
		return interfaces.ErrConflict
	}

	mutate(rec)
	rec.Status = to
	rec.UpdatedAt = s.now()
	return nil
}

// Sweep evicts expired records and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}
