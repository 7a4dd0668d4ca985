package scoring

import (
	"errors"
	"fmt"
)

var (
	// ErrSaveInProgress is returned when a save or reconcile is attempted
	// while another save for the same exercise is still in flight.
	ErrSaveInProgress = errors.New("scoring: save already in progress")
	// ErrNoSelection is returned by bulk-apply when no row is selected.
	ErrNoSelection = errors.New("scoring: please select at least one student")
	// ErrInvalidPoints is returned by bulk-apply for an out-of-range value.
	ErrInvalidPoints = errors.New("scoring: invalid point value")
	// ErrNothingToSave is returned when no row is pending.
	ErrNothingToSave = errors.New("scoring: no pending changes to save")
	// ErrUnknownStudent is returned for a student outside the roster.
	ErrUnknownStudent = errors.New("scoring: unknown student")
	// ErrSaveFailed wraps backend failures of a batch save.
	ErrSaveFailed = errors.New("scoring: failed to save scores")
	// ErrStaleSnapshot is returned by InitializeAt when a save finished
	// after the data was fetched.
	ErrStaleSnapshot = errors.New("scoring: fetched scores predate a finished save")
	// ErrFieldType is returned by UpdateField for a value of the wrong type.
	ErrFieldType = errors.New("scoring: wrong value type for field")
)

// BlockingErrors aborts save-all while rows still fail validation.
type BlockingErrors struct {
	Count int
}

func (e *BlockingErrors) Error() string {
	return fmt.Sprintf("scoring: please fix %d validation error(s) before saving", e.Count)
}

// InvalidPointsError carries the validator message for a rejected value.
type InvalidPointsError struct {
	Value   string
	Message string
}

func (e *InvalidPointsError) Error() string {
	return fmt.Sprintf("scoring: invalid point value %q: %s", e.Value, e.Message)
}

func (e *InvalidPointsError) Unwrap() error { return ErrInvalidPoints }
