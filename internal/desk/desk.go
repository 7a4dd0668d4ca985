// Package desk owns the open scoring sessions, one per exercise, and binds
// them to the lab backend, the save journal and metrics.
package desk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/mind-engage/labdesk/internal/journal"
	"github.com/mind-engage/labdesk/internal/logging"
	"github.com/mind-engage/labdesk/internal/metrics"
	"github.com/mind-engage/labdesk/internal/scoring"
)

// ErrNotOpen is returned for an exercise without an open session.
var ErrNotOpen = errors.New("desk: no open scoring session for exercise")

type Option func(*Desk)

func WithJournal(j journal.Store) Option { return func(d *Desk) { d.journal = j } }

func WithMetrics(m metrics.Recorder) Option { return func(d *Desk) { d.metrics = m } }

func WithLogger(l logging.Logger) Option { return func(d *Desk) { d.log = l } }

func WithReconcileMode(m scoring.ReconcileMode) Option { return func(d *Desk) { d.mode = m } }

func WithClock(c scoring.Clock) Option { return func(d *Desk) { d.now = c } }

type Desk struct {
	lab     Lab
	journal journal.Store
	metrics metrics.Recorder
	log     logging.Logger
	mode    scoring.ReconcileMode
	now     scoring.Clock

	sessions *xsync.Map[int64, *openSession]
}

type openSession struct {
	courseID int64
	opened   time.Time
	*scoring.Session
}

func New(lab Lab, opts ...Option) *Desk {
	d := &Desk{
		lab:      lab,
		journal:  journal.NewMemory(),
		metrics:  metrics.NewNop(),
		log:      logging.Nop(),
		now:      time.Now,
		sessions: xsync.NewMap[int64, *openSession](),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Info describes an open session.
type Info struct {
	ExerciseID int64     `json:"exerciseId"`
	CourseID   int64     `json:"courseId"`
	Opened     time.Time `json:"opened"`
}

// Open loads the exercise, its full roster and its scores, and registers a
// session for it. An already open session is returned as is. A zero
// courseID falls back to the exercise's own lab course.
func (d *Desk) Open(ctx context.Context, courseID, exerciseID int64) (*scoring.Session, error) {
	if o, ok := d.sessions.Load(exerciseID); ok {
		return o.Session, nil
	}

	ex, err := d.lab.Exercise(ctx, exerciseID)
	if err != nil {
		return nil, fmt.Errorf("load exercise %d: %w", exerciseID, err)
	}
	if courseID == 0 {
		courseID = ex.LabCourseID
	}
	roster, server, err := d.load(ctx, courseID, exerciseID)
	if err != nil {
		return nil, err
	}

	sess := scoring.NewSession(exerciseID, scoring.ExerciseBound{TotalPoints: ex.TotalPoints}, labBackend{d.lab},
		scoring.WithClock(d.now), scoring.WithReconcileMode(d.mode))
	if err := sess.Initialize(roster, server); err != nil {
		return nil, err
	}

	actual, loaded := d.sessions.LoadOrStore(exerciseID, &openSession{courseID: courseID, opened: d.now(), Session: sess})
	if !loaded {
		d.metrics.SetOpenSessions(d.sessions.Size())
		d.log.Info("scoring session opened",
			"exercise", exerciseID, "course", courseID, "students", len(roster), "scores", len(server))
	}
	return actual.Session, nil
}

func (d *Desk) load(ctx context.Context, courseID, exerciseID int64) ([]scoring.StudentRef, []scoring.ServerScoreRecord, error) {
	enrollees, err := d.lab.Roster(ctx, courseID)
	if err != nil {
		return nil, nil, fmt.Errorf("load roster for course %d: %w", courseID, err)
	}
	scores, err := d.lab.ExerciseScores(ctx, exerciseID)
	if err != nil {
		return nil, nil, fmt.Errorf("load scores for exercise %d: %w", exerciseID, err)
	}
	return toRoster(enrollees), toRecords(scores), nil
}

func (d *Desk) Get(exerciseID int64) (*scoring.Session, error) {
	o, ok := d.sessions.Load(exerciseID)
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrNotOpen, exerciseID)
	}
	return o.Session, nil
}

// Close drops the session. Unsaved edits are discarded.
func (d *Desk) Close(exerciseID int64) bool {
	o, ok := d.sessions.LoadAndDelete(exerciseID)
	if !ok {
		return false
	}
	d.metrics.SetOpenSessions(d.sessions.Size())
	d.log.Info("scoring session closed", "exercise", exerciseID, "pending", o.PendingCount())
	return true
}

// Sessions lists open sessions ordered by exercise.
func (d *Desk) Sessions() []Info {
	var out []Info
	d.sessions.Range(func(id int64, o *openSession) bool {
		out = append(out, Info{ExerciseID: id, CourseID: o.courseID, Opened: o.opened})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ExerciseID < out[j].ExerciseID })
	return out
}

// refreshAttempts bounds how often Refresh re-fetches when saves keep
// finishing during the fetch.
const refreshAttempts = 3

// Refresh re-fetches the exercise, roster and scores and reconciles the
// session with them. It is refused while a save is in flight. A fetch that
// a save overtook is discarded and taken again.
func (d *Desk) Refresh(ctx context.Context, exerciseID int64) error {
	o, ok := d.sessions.Load(exerciseID)
	if !ok {
		return fmt.Errorf("%w %d", ErrNotOpen, exerciseID)
	}
	var err error
	for attempt := 0; attempt < refreshAttempts; attempt++ {
		if o.IsSaving() {
			return scoring.ErrSaveInProgress
		}
		gen := o.SaveGeneration()
		ex, ferr := d.lab.Exercise(ctx, exerciseID)
		if ferr != nil {
			return fmt.Errorf("load exercise %d: %w", exerciseID, ferr)
		}
		roster, server, ferr := d.load(ctx, o.courseID, exerciseID)
		if ferr != nil {
			return ferr
		}
		o.SetBound(scoring.ExerciseBound{TotalPoints: ex.TotalPoints})
		err = o.InitializeAt(gen, roster, server)
		if !errors.Is(err, scoring.ErrStaleSnapshot) {
			break
		}
		d.log.Debug("refresh overtaken by a save, fetching again", "exercise", exerciseID, "attempt", attempt+1)
	}
	if err != nil {
		return err
	}
	d.log.Debug("scoring session refreshed", "exercise", exerciseID, "mode", o.Mode().String())
	return nil
}

// Apply bulk-applies points to the selected rows and saves them.
func (d *Desk) Apply(ctx context.Context, exerciseID int64, points string) (scoring.SaveReport, error) {
	sess, err := d.Get(exerciseID)
	if err != nil {
		return scoring.SaveReport{}, err
	}
	report, err := sess.ApplyPointsAndSave(ctx, points)
	d.record(ctx, exerciseID, scoring.KindBulkApply, report, err)
	return report, err
}

// SaveAll saves every pending row of the exercise.
func (d *Desk) SaveAll(ctx context.Context, exerciseID int64) (scoring.SaveReport, error) {
	sess, err := d.Get(exerciseID)
	if err != nil {
		return scoring.SaveReport{}, err
	}
	report, err := sess.SaveAllPending(ctx)
	d.record(ctx, exerciseID, scoring.KindSavePending, report, err)
	return report, err
}

func (d *Desk) Search(exerciseID int64, q string) ([]scoring.Row, error) {
	sess, err := d.Get(exerciseID)
	if err != nil {
		return nil, err
	}
	return sess.Search(q), nil
}

func (d *Desk) Presets(exerciseID int64) ([]int, error) {
	sess, err := d.Get(exerciseID)
	if err != nil {
		return nil, err
	}
	return scoring.Presets(sess.Bound()), nil
}

func (d *Desk) History(ctx context.Context, exerciseID int64, limit int) ([]journal.Entry, error) {
	return d.journal.List(ctx, exerciseID, limit)
}

// record journals a save that reached the backend, or counts one that was
// refused up front. Journal failures are logged and never fail the save.
func (d *Desk) record(ctx context.Context, exerciseID int64, kind scoring.SaveKind, report scoring.SaveReport, err error) {
	if report.Started.IsZero() {
		if err != nil {
			reason := blockReason(err)
			d.metrics.RecordBlocked(string(kind), reason)
			d.log.Warn("save refused", "exercise", exerciseID, "kind", kind, "reason", reason, "err", err)
		}
		return
	}

	d.metrics.RecordSave(string(kind), report.OK(), report.Duration())
	d.metrics.AddRows("upsert", report.Upserted)
	d.metrics.AddRows("delete", report.Deleted)

	if jerr := d.journal.Append(context.WithoutCancel(ctx), journal.FromReport(report)); jerr != nil {
		d.log.Error("journal append failed", "exercise", exerciseID, "err", jerr)
	}

	if err != nil {
		d.log.Error("save failed", "exercise", exerciseID, "kind", kind,
			"rows", len(report.StudentIDs), "deleted", report.Deleted, "err", err)
		return
	}
	d.log.Info("save completed", "exercise", exerciseID, "kind", kind,
		"upserted", report.Upserted, "deleted", report.Deleted, "took", report.Duration())
}

func blockReason(err error) string {
	var blocking *scoring.BlockingErrors
	switch {
	case errors.Is(err, scoring.ErrSaveInProgress):
		return "in_progress"
	case errors.As(err, &blocking), errors.Is(err, scoring.ErrInvalidPoints):
		return "validation"
	case errors.Is(err, scoring.ErrNoSelection):
		return "no_selection"
	case errors.Is(err, scoring.ErrNothingToSave):
		return "nothing_to_save"
	default:
		return "other"
	}
}
