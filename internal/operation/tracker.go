// Package operation tracks long-running background infrastructure
// operations in memory. Records are not persisted; a process restart
// loses them.
package operation

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status of a background operation.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Kind of work an operation performs.
type Kind string

const (
	KindProvision Kind = "provision"
	KindDestroy   Kind = "destroy"
)

// Record describes one background operation.
type Record struct {
	ID          string         `json:"operation_id"`
	Kind        Kind           `json:"kind"`
	ServiceName string         `json:"service_name"`
	ServiceType string         `json:"service_type,omitempty"`
	Environment string         `json:"environment"`
	Status      Status         `json:"status"`
	Progress    string         `json:"progress"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Tracker is an in-memory map of operation records guarded by a mutex.
// Each operation is driven by exactly one background goroutine; the
// lock only orders writes from unrelated operations and concurrent
// reads from HTTP handlers.
type Tracker struct {
	mu  sync.RWMutex
	ops map[string]*Record
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ops: make(map[string]*Record),
	}
}

// Begin allocates a fresh operation ID and stores a running record.
// It returns immediately; the caller hands the ID to the background
// goroutine that will drive the operation.
func (t *Tracker) Begin(kind Kind, serviceName, serviceType, environment, progress string) string {
	id := uuid.NewString()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops[id] = &Record{
		ID:          id,
		Kind:        kind,
		ServiceName: serviceName,
		ServiceType: serviceType,
		Environment: environment,
		Status:      StatusRunning,
		Progress:    progress,
		Outputs:     map[string]any{},
		StartedAt:   time.Now().UTC(),
	}

	return id
}

// SetProgress updates the human-readable progress string. Unknown IDs
// are ignored.
func (t *Tracker) SetProgress(id, progress string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if op, ok := t.ops[id]; ok {
		op.Progress = progress
	}
}

// Complete marks an operation as completed and records its outputs.
func (t *Tracker) Complete(id, progress string, outputs map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[id]
	if !ok {
		return
	}

	now := time.Now().UTC()
	op.Status = StatusCompleted
	op.Progress = progress
	op.CompletedAt = &now
	if outputs != nil {
		op.Outputs = outputs
	}
}

// Fail marks an operation as failed with the given error message.
func (t *Tracker) Fail(id, progress, errMsg string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[id]
	if !ok {
		return
	}

	now := time.Now().UTC()
	op.Status = StatusFailed
	op.Progress = progress
	op.Error = errMsg
	op.CompletedAt = &now
}

// Get returns a copy of the record for id.
func (t *Tracker) Get(id string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	op, ok := t.ops[id]
	if !ok {
		return Record{}, false
	}
	return *op, true
}

// List returns copies of all records.
func (t *Tracker) List() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := make([]Record, 0, len(t.ops))
	for _, op := range t.ops {
		records = append(records, *op)
	}
	return records
}

// Sweep removes completed and failed operations whose completion is
// older than maxAge. Running records are never removed. Returns the
// number of records removed.
func (t *Tracker) Sweep(maxAge time.Duration) int {
	cutoff := time.Now().UTC().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, op := range t.ops {
		if op.Status != StatusCompleted && op.Status != StatusFailed {
			continue
		}
		if op.CompletedAt != nil && op.CompletedAt.Before(cutoff) {
			delete(t.ops, id)
			removed++
		}
	}

	return removed
}

// Count returns the number of tracked operations.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.ops)
}
