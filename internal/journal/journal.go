// Package journal keeps a durable history of batch save attempts.
package journal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/labdesk/internal/scoring"
)

// DefaultLimit caps List when the caller passes a non-positive limit.
const DefaultLimit = 50

type Entry struct {
	ID         string           `json:"id"`
	ExerciseID int64            `json:"exerciseId"`
	Kind       scoring.SaveKind `json:"kind"`
	StudentIDs []string         `json:"studentIds"`
	Upserted   int              `json:"upserted"`
	Deleted    int              `json:"deleted"`
	OK         bool             `json:"ok"`
	Error      string           `json:"error,omitempty"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
}

// FromReport turns a save report into a journal entry with a fresh ID.
func FromReport(r scoring.SaveReport) Entry {
	e := Entry{
		ID:         uuid.NewString(),
		ExerciseID: r.ExerciseID,
		Kind:       r.Kind,
		StudentIDs: append([]string(nil), r.StudentIDs...),
		Upserted:   r.Upserted,
		Deleted:    r.Deleted,
		OK:         r.OK(),
		StartedAt:  r.Started,
		FinishedAt: r.Finished,
	}
	if r.Err != nil {
		e.Error = r.Err.Error()
	}
	return e
}

// Store persists entries. List returns the newest first.
type Store interface {
	Append(ctx context.Context, e Entry) error
	List(ctx context.Context, exerciseID int64, limit int) ([]Entry, error)
}

/* ---------------- in-memory ---------------- */

type Memory struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Append(_ context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	m.mu.Lock()
	m.entries = append(m.entries, e)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context, exerciseID int64, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if e.ExerciseID == exerciseID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
