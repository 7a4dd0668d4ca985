// Package scoring keeps one exercise's per-student point entries in sync
// with the lab-course backend.
//
// A Session owns the mapping for a single exercise. It is seeded from the
// roster and the server's score records, mutated by grader edits, and
// written back in batches. Save status per row is derived state: it is
// recomputed on every reconcile and never sent to the server.
package scoring

import (
	"context"
	"time"
)

// SaveStatus tracks a row's sync state against the backend.
type SaveStatus string

const (
	StatusIdle    SaveStatus = "idle"
	StatusPending SaveStatus = "pending"
	StatusSaving  SaveStatus = "saving"
	StatusGraded  SaveStatus = "graded"
	StatusError   SaveStatus = "error"
)

// StudentRef is a roster member as seen by the scoring view.
type StudentRef struct {
	Index    string `json:"index"`
	Name     string `json:"name,omitempty"`
	LastName string `json:"lastName,omitempty"`
}

// FullName is "Name LastName" with empty parts dropped.
func (s StudentRef) FullName() string {
	switch {
	case s.Name == "":
		return s.LastName
	case s.LastName == "":
		return s.Name
	default:
		return s.Name + " " + s.LastName
	}
}

// ServerScoreRecord is the backend's authoritative score for one student.
type ServerScoreRecord struct {
	StudentIndex string `json:"studentIndex"`
	CorePoints   int    `json:"corePoints"`
}

// StudentScore is the local, editable row for one student.
type StudentScore struct {
	StudentID  string     `json:"studentId"`
	CorePoints string     `json:"corePoints"`
	Selected   bool       `json:"selected"`
	SaveStatus SaveStatus `json:"saveStatus"`
	LastSaved  *time.Time `json:"lastSaved,omitempty"`
}

// Field names a raw-mutable StudentScore field.
type Field string

const (
	FieldCorePoints Field = "corePoints"
	FieldSelected   Field = "selected"
)

// Backend is the write side of the score API for one exercise.
type Backend interface {
	// BulkUpsert creates or replaces the given scores. Implementations may
	// return the stored records; a nil slice is accepted.
	BulkUpsert(ctx context.Context, exerciseID int64, scores []ServerScoreRecord) ([]ServerScoreRecord, error)
	// DeleteScore removes one student's score.
	DeleteScore(ctx context.Context, exerciseID int64, studentIndex string) error
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// SaveKind labels which save entry point produced a report.
type SaveKind string

const (
	KindBulkApply   SaveKind = "bulk_apply"
	KindSavePending SaveKind = "save_pending"
)

// SaveReport describes one batch save that reached the backend.
type SaveReport struct {
	ExerciseID int64     `json:"exerciseId"`
	Kind       SaveKind  `json:"kind"`
	StudentIDs []string  `json:"studentIds"`
	Upserted   int       `json:"upserted"`
	Deleted    int       `json:"deleted"`
	Err        error     `json:"-"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
}

// OK reports whether the save succeeded.
func (r SaveReport) OK() bool { return r.Err == nil }

// Duration is the wall time spent talking to the backend.
func (r SaveReport) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Summary is the derived read model for the scoring view.
type Summary struct {
	Total     int  `json:"total"`
	Pending   int  `json:"pending"`
	Errors    int  `json:"errors"`
	Graded    int  `json:"graded"`
	Completed int  `json:"completed"`
	Selected  int  `json:"selected"`
	Saving    bool `json:"saving"`
}
