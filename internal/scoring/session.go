package scoring

import (
	"fmt"
	"strconv"
	"sync"
	"time"
)

// ReconcileMode decides what Initialize does with rows that carry unsaved edits.
type ReconcileMode int

const (
	// ReconcileReplace rebuilds every row from the roster and server records.
	// Unsaved local edits are lost.
	ReconcileReplace ReconcileMode = iota
	// ReconcileMerge keeps rows that are pending or in error and rebuilds the rest.
	ReconcileMerge
)

// ParseReconcileMode maps "replace" or "merge" to a ReconcileMode.
func ParseReconcileMode(s string) (ReconcileMode, error) {
	switch s {
	case "", "replace":
		return ReconcileReplace, nil
	case "merge":
		return ReconcileMerge, nil
	default:
		return ReconcileReplace, fmt.Errorf("scoring: unknown reconcile mode %q", s)
	}
}

func (m ReconcileMode) String() string {
	if m == ReconcileMerge {
		return "merge"
	}
	return "replace"
}

type Option func(*Session)

func WithClock(c Clock) Option { return func(s *Session) { s.now = c } }

func WithReconcileMode(m ReconcileMode) Option { return func(s *Session) { s.mode = m } }

// Session holds one exercise's scoring state. It is safe for concurrent
// use; backend calls run without holding the lock so rows stay editable
// while a save is in flight.
type Session struct {
	exerciseID int64
	backend    Backend
	now        Clock
	mode       ReconcileMode

	mu     sync.Mutex
	bound  ExerciseBound
	roster []StudentRef
	scores map[string]*StudentScore
	server map[string]int
	saving bool
	// saveGen counts finished saves; a fetch taken at an older generation
	// may predate a write.
	saveGen uint64
}

// NewSession creates an empty session for one exercise. Call Initialize
// once the roster and server scores are loaded.
func NewSession(exerciseID int64, bound ExerciseBound, backend Backend, opts ...Option) *Session {
	s := &Session{
		exerciseID: exerciseID,
		backend:    backend,
		now:        time.Now,
		bound:      bound,
		scores:     map[string]*StudentScore{},
		server:     map[string]int{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Session) ExerciseID() int64 { return s.exerciseID }

func (s *Session) Mode() ReconcileMode { return s.mode }

// Bound returns the exercise bound currently used for validation.
func (s *Session) Bound() ExerciseBound {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// SetBound replaces the exercise bound, e.g. after the exercise is edited.
// Existing rows are not re-validated until their next edit or save.
func (s *Session) SetBound(b ExerciseBound) {
	s.mu.Lock()
	s.bound = b
	s.mu.Unlock()
}

// IsSaving reports whether a batch save is in flight.
func (s *Session) IsSaving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Initialize rebuilds the mapping from the roster and the server records.
// It refuses to run while a save is in flight.
func (s *Session) Initialize(roster []StudentRef, serverScores []ServerScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	s.initializeLocked(roster, serverScores)
	return nil
}

// SaveGeneration returns the number of saves that have finished. Read it
// before fetching and pass it to InitializeAt.
func (s *Session) SaveGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveGen
}

// InitializeAt is Initialize for data fetched at generation gen. It returns
// ErrStaleSnapshot when a save finished after gen, leaving the mapping as is.
func (s *Session) InitializeAt(gen uint64, roster []StudentRef, serverScores []ServerScoreRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saving {
		return ErrSaveInProgress
	}
	if s.saveGen != gen {
		return ErrStaleSnapshot
	}
	s.initializeLocked(roster, serverScores)
	return nil
}

func (s *Session) initializeLocked(roster []StudentRef, serverScores []ServerScoreRecord) {

	server := make(map[string]int, len(serverScores))
	for _, rec := range serverScores {
		server[rec.StudentIndex] = rec.CorePoints
	}

	prevScores := s.scores
	s.server = server

	scores := make(map[string]*StudentScore, len(roster))
	ordered := make([]StudentRef, 0, len(roster))
	for _, st := range roster {
		if _, dup := scores[st.Index]; dup {
			continue
		}
		ordered = append(ordered, st)

		if s.mode == ReconcileMerge {
			if prev, ok := prevScores[st.Index]; ok && s.keepOnMerge(prev) {
				row := *prev
				row.SaveStatus = s.statusFor(st.Index, row.CorePoints, Validate(row.CorePoints, s.bound))
				scores[st.Index] = &row
				continue
			}
		}

		row := &StudentScore{StudentID: st.Index, SaveStatus: StatusIdle}
		if pts, ok := server[st.Index]; ok {
			row.CorePoints = strconv.Itoa(pts)
			row.SaveStatus = StatusGraded
		}
		scores[st.Index] = row
	}

	s.roster = ordered
	s.scores = scores
}

// keepOnMerge reports whether a row still carries an unsaved edit against
// the freshly loaded server values.
func (s *Session) keepOnMerge(row *StudentScore) bool {
	if row.SaveStatus != StatusPending && row.SaveStatus != StatusError {
		return false
	}
	return row.CorePoints != s.serverText(row.StudentID)
}

// UpdateField mutates one field without validation. CorePoints takes a
// string, Selected a bool.
func (s *Session) UpdateField(studentID string, field Field, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.scores[studentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
	}
	switch field {
	case FieldCorePoints:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s wants string, got %T", ErrFieldType, field, value)
		}
		row.CorePoints = v
	case FieldSelected:
		v, ok := value.(bool)
		if !ok {
			return fmt.Errorf("%w: %s wants bool, got %T", ErrFieldType, field, value)
		}
		row.Selected = v
	default:
		return fmt.Errorf("%w: unknown field %q", ErrFieldType, field)
	}
	return nil
}

// ValidateAndUpdate sets a row's points and derives its save status.
func (s *Session) ValidateAndUpdate(studentID, value string) (Validation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.scores[studentID]
	if !ok {
		return Validation{}, fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
	}
	v := Validate(value, s.bound)
	row.CorePoints = value
	row.SaveStatus = s.statusFor(studentID, value, v)
	return v, nil
}

// statusFor is the edit transition: Error when invalid, Pending when the
// text differs from the last known server value, Idle otherwise.
func (s *Session) statusFor(studentID, value string, v Validation) SaveStatus {
	switch {
	case !v.Valid:
		return StatusError
	case value != s.serverText(studentID):
		return StatusPending
	default:
		return StatusIdle
	}
}

func (s *Session) serverText(studentID string) string {
	if pts, ok := s.server[studentID]; ok {
		return strconv.Itoa(pts)
	}
	return ""
}

// ClearScore empties a row. It becomes Pending when the server holds a
// score for the student, so the clear is synced as a delete.
func (s *Session) ClearScore(studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.scores[studentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
	}
	row.CorePoints = ""
	row.Selected = false
	if _, had := s.server[studentID]; had {
		row.SaveStatus = StatusPending
	} else {
		row.SaveStatus = StatusIdle
	}
	return nil
}

func (s *Session) ToggleSelection(studentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.scores[studentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStudent, studentID)
	}
	row.Selected = !row.Selected
	return nil
}

// SelectAll sets Selected on every listed row. Unknown IDs are skipped and
// reported after the known rows are updated.
func (s *Session) SelectAll(selected bool, studentIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var missing []string
	for _, id := range studentIDs {
		row, ok := s.scores[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		row.Selected = selected
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnknownStudent, missing)
	}
	return nil
}

// ResetSelections clears Selected on every row.
func (s *Session) ResetSelections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetSelectionsLocked()
}

func (s *Session) resetSelectionsLocked() {
	for _, row := range s.scores {
		row.Selected = false
	}
}

// RequeueFailed re-derives the status of every row in error: rows whose
// value is now valid go back to Pending (or Idle when equal to the server
// value). It returns how many rows left the error state.
func (s *Session) RequeueFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, row := range s.scores {
		if row.SaveStatus != StatusError {
			continue
		}
		row.SaveStatus = s.statusFor(id, row.CorePoints, Validate(row.CorePoints, s.bound))
		if row.SaveStatus != StatusError {
			n++
		}
	}
	return n
}
