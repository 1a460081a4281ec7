// internal/testutil/store.go
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"billing-service/internal/domain/subscription"
	"billing-service/internal/domain/webhook"
	xerrors "billing-service/internal/pkg/errors"
)

// MemoryStore is an in-memory subscription.Store with the same uniqueness
// rules as the Postgres table. Errors can be injected per method name.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*subscription.Record
	Fail    map[string]error
	Now     func() time.Time
}

var _ subscription.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*subscription.Record),
		Fail:    make(map[string]error),
		Now:     time.Now,
	}
}

// Put seeds a record directly.
func (s *MemoryStore) Put(r *subscription.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	s.records[r.UserID] = &cp
}

// Get returns a copy of the user's record, or nil.
func (s *MemoryStore) Get(userID string) *subscription.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[userID]
	if !ok {
		return nil
	}
	cp := *r
	return &cp
}

// Len reports how many records exist.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *MemoryStore) FindByUserID(_ context.Context, userID string) (*subscription.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail["FindByUserID"]; err != nil {
		return nil, err
	}
	r, ok := s.records[userID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) FindByCustomerID(_ context.Context, customerID string) (*subscription.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail["FindByCustomerID"]; err != nil {
		return nil, err
	}
	r := s.byCustomer(customerID)
	if r == nil {
		return nil, xerrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) Create(_ context.Context, r *subscription.Record) (*subscription.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail["Create"]; err != nil {
		return nil, err
	}
	if _, ok := s.records[r.UserID]; ok {
		return nil, fmt.Errorf("create: %w", xerrors.ErrConflict)
	}
	if r.HasCustomer() && s.byCustomer(*r.CustomerID) != nil {
		return nil, fmt.Errorf("create: %w", xerrors.ErrConflict)
	}
	cp := *r
	now := s.Now()
	cp.CreatedAt, cp.ModifiedAt = now, now
	s.records[r.UserID] = &cp
	out := cp
	return &out, nil
}

func (s *MemoryStore) UpdateByUserID(_ context.Context, userID string, p subscription.Patch) (*subscription.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail["UpdateByUserID"]; err != nil {
		return nil, err
	}
	return s.apply(s.records[userID], p)
}

func (s *MemoryStore) UpdateByCustomerID(_ context.Context, customerID string, p subscription.Patch) (*subscription.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail["UpdateByCustomerID"]; err != nil {
		return nil, err
	}
	return s.apply(s.byCustomer(customerID), p)
}

func (s *MemoryStore) DeleteByUserID(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.Fail["DeleteByUserID"]; err != nil {
		return err
	}
	if _, ok := s.records[userID]; !ok {
		return xerrors.ErrNotFound
	}
	delete(s.records, userID)
	return nil
}

// apply mirrors the conditional UPDATE. Caller holds mu.
func (s *MemoryStore) apply(r *subscription.Record, p subscription.Patch) (*subscription.Record, error) {
	if r == nil {
		return nil, fmt.Errorf("update: %w", xerrors.ErrNotFound)
	}
	if p.StaleFor(r) {
		return nil, fmt.Errorf("update: %w", xerrors.ErrStaleEvent)
	}
	if p.CustomerID.Set && p.CustomerID.Value != nil {
		if other := s.byCustomer(*p.CustomerID.Value); other != nil && other.UserID != r.UserID {
			return nil, fmt.Errorf("update: %w", xerrors.ErrConflict)
		}
	}
	p.Apply(r, s.Now())
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) byCustomer(customerID string) *subscription.Record {
	for _, r := range s.records {
		if r.CustomerID != nil && *r.CustomerID == customerID {
			return r
		}
	}
	return nil
}

// MemoryLedger is an in-memory webhook.Ledger.
type MemoryLedger struct {
	mu     sync.Mutex
	events map[string]webhook.ProcessedEvent
	Fail   map[string]error
}

var _ webhook.Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		events: make(map[string]webhook.ProcessedEvent),
		Fail:   make(map[string]error),
	}
}

// Claim mirrors the Postgres upsert: a new id or an expired processing row
// is claimed, anything else reports its state.
func (l *MemoryLedger) Claim(_ context.Context, eventID, eventType string, now time.Time, lease time.Duration) (webhook.ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.Fail["Claim"]; err != nil {
		return "", err
	}
	if e, ok := l.events[eventID]; ok {
		if e.Outcome != webhook.OutcomeProcessing {
			return webhook.ClaimCompleted, nil
		}
		if !e.ProcessedAt.Before(now.Add(-lease)) {
			return webhook.ClaimInProgress, nil
		}
	}
	l.events[eventID] = webhook.ProcessedEvent{
		EventID:     eventID,
		EventType:   eventType,
		Outcome:     webhook.OutcomeProcessing,
		ProcessedAt: now,
	}
	return webhook.ClaimAcquired, nil
}

func (l *MemoryLedger) Record(_ context.Context, e *webhook.ProcessedEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.Fail["Record"]; err != nil {
		return err
	}
	if cur, ok := l.events[e.EventID]; !ok || cur.Outcome == webhook.OutcomeProcessing {
		l.events[e.EventID] = *e
	}
	return nil
}

func (l *MemoryLedger) Release(_ context.Context, eventID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.Fail["Release"]; err != nil {
		return err
	}
	if cur, ok := l.events[eventID]; ok && cur.Outcome == webhook.OutcomeProcessing {
		delete(l.events, eventID)
	}
	return nil
}

// Event returns the ledger row for an id.
func (l *MemoryLedger) Event(eventID string) (webhook.ProcessedEvent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.events[eventID]
	return e, ok
}
