package core

import (
	"context"
	"strings"
	"sync"
	"time"
)

// Ledger is the ordered, persisted log of submitted operations, newest first.
// Records only move from Pending to a terminal status.
type Ledger struct {
	mu      sync.RWMutex
	store   OperationStore
	records []OperationRecord
	index   map[string]int
	Now     func() time.Time
}

func NewLedger(store OperationStore) *Ledger {
	return &Ledger{
		store: store,
		index: map[string]int{},
		Now:   func() time.Time { return time.Now().UTC() },
	}
}

// Load replaces the in-memory log with the persisted one.
func (l *Ledger) Load(ctx context.Context) error {
	if l == nil || l.store == nil {
		return nil
	}
	records, err := l.store.List(ctx)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make([]OperationRecord, 0, len(records))
	for _, record := range records {
		l.records = append(l.records, cloneOperationRecord(record))
	}
	l.reindex()
	return nil
}

func (l *Ledger) Append(ctx context.Context, record OperationRecord) (OperationRecord, error) {
	record.ID = strings.TrimSpace(record.ID)
	if record.ID == "" {
		return OperationRecord{}, NewValidationError("id", "operation id is required")
	}
	if !record.Kind.Valid() {
		return OperationRecord{}, NewValidationError("kind", "operation kind is invalid")
	}
	now := l.now()
	record.Status = StatusPending
	if record.SubmittedAt.IsZero() {
		record.SubmittedAt = now
	}
	record.UpdatedAt = now
	record.Payload = copyAnyMap(record.Payload)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.index[record.ID]; exists {
		return OperationRecord{}, NewDuplicateIDError(record.ID)
	}
	if l.store != nil {
		if err := l.store.Insert(ctx, record); err != nil {
			return OperationRecord{}, err
		}
	}
	l.records = append([]OperationRecord{record}, l.records...)
	l.reindex()
	return cloneOperationRecord(record), nil
}

func (l *Ledger) Update(ctx context.Context, id string, patch OperationPatch) (OperationRecord, error) {
	id = strings.TrimSpace(id)

	l.mu.Lock()
	defer l.mu.Unlock()
	position, ok := l.index[id]
	if !ok {
		return OperationRecord{}, NewNotFoundError(id)
	}
	current := l.records[position]
	next := cloneOperationRecord(current)
	if patch.Status != nil {
		if !canTransition(current.Status, *patch.Status) {
			return OperationRecord{}, NewInvalidTransitionError(id, current.Status, *patch.Status)
		}
		next.Status = *patch.Status
	} else if current.Status.Terminal() {
		return OperationRecord{}, NewInvalidTransitionError(id, current.Status, current.Status)
	}
	if len(patch.Payload) > 0 {
		next.Payload = mergeAnyMap(next.Payload, patch.Payload)
	}
	next.UpdatedAt = l.now()

	if l.store != nil {
		if err := l.store.Update(ctx, next); err != nil {
			return OperationRecord{}, err
		}
	}
	l.records[position] = next
	return cloneOperationRecord(next), nil
}

func (l *Ledger) Get(id string) (OperationRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	position, ok := l.index[strings.TrimSpace(id)]
	if !ok {
		return OperationRecord{}, NewNotFoundError(id)
	}
	return cloneOperationRecord(l.records[position]), nil
}

func (l *Ledger) List() []OperationRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]OperationRecord, 0, len(l.records))
	for _, record := range l.records {
		out = append(out, cloneOperationRecord(record))
	}
	return out
}

// Pending lists the records still waiting on a terminal status, newest first.
func (l *Ledger) Pending() []OperationRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := []OperationRecord{}
	for _, record := range l.records {
		if record.Status == StatusPending {
			out = append(out, cloneOperationRecord(record))
		}
	}
	return out
}

func (l *Ledger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.store != nil {
		if err := l.store.Clear(ctx); err != nil {
			return err
		}
	}
	l.records = nil
	l.index = map[string]int{}
	return nil
}

func (l *Ledger) reindex() {
	l.index = make(map[string]int, len(l.records))
	for position, record := range l.records {
		l.index[record.ID] = position
	}
}

func (l *Ledger) now() time.Time {
	if l.Now == nil {
		return time.Now().UTC()
	}
	return l.Now().UTC()
}

func canTransition(from Status, to Status) bool {
	if !to.Valid() {
		return false
	}
	if from == StatusPending {
		return true
	}
	return false
}

func cloneOperationRecord(in OperationRecord) OperationRecord {
	out := in
	out.Payload = copyAnyMap(in.Payload)
	return out
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func mergeAnyMap(base map[string]any, patch map[string]any) map[string]any {
	out := copyAnyMap(base)
	for key, value := range patch {
		out[key] = value
	}
	return out
}
