package scoring

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// ApplyPointsAndSave writes one point value to every selected row in a
// single batched upsert. On success every affected row is Graded and all
// selections are cleared; on failure the affected rows are marked Error
// and selections are kept for a retry.
func (s *Session) ApplyPointsAndSave(ctx context.Context, points string) (SaveReport, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return SaveReport{}, ErrSaveInProgress
	}
	ids := s.selectedIDsLocked()
	if len(ids) == 0 {
		s.mu.Unlock()
		return SaveReport{}, ErrNoSelection
	}
	if v := Validate(points, s.bound); !v.Valid || points == "" {
		s.mu.Unlock()
		msg := v.Error
		if msg == "" {
			msg = msgInvalidNumber
		}
		return SaveReport{}, &InvalidPointsError{Value: points, Message: msg}
	}
	pts, err := ParsePoints(points)
	if err != nil {
		s.mu.Unlock()
		return SaveReport{}, &InvalidPointsError{Value: points, Message: msgInvalidNumber}
	}
	s.saving = true
	for _, id := range ids {
		s.scores[id].SaveStatus = StatusSaving
	}
	s.mu.Unlock()

	batch := make([]ServerScoreRecord, 0, len(ids))
	for _, id := range ids {
		batch = append(batch, ServerScoreRecord{StudentIndex: id, CorePoints: pts})
	}

	report := SaveReport{ExerciseID: s.exerciseID, Kind: KindBulkApply, StudentIDs: ids, Started: s.now()}
	stored, err := s.backend.BulkUpsert(ctx, s.exerciseID, batch)
	report.Finished = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.saveGen++

	if err != nil {
		report.Err = err
		s.markLocked(ids, StatusError, nil)
		return report, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	report.Upserted = len(batch)
	s.recordUpsertsLocked(batch, stored)
	text := strconv.Itoa(pts)
	for _, id := range ids {
		if row := s.scores[id]; row != nil && row.SaveStatus == StatusSaving {
			row.CorePoints = text
		}
	}
	finished := report.Finished
	s.markLocked(ids, StatusGraded, &finished)
	s.resetSelectionsLocked()
	return report, nil
}

// SaveAllPending syncs every pending row. Any row still in error blocks the
// whole save. Cleared rows that exist on the server are deleted one by one,
// then the remaining rows go out as one batched upsert. The outcome is
// applied to the whole pending set.
func (s *Session) SaveAllPending(ctx context.Context) (SaveReport, error) {
	s.mu.Lock()
	if s.saving {
		s.mu.Unlock()
		return SaveReport{}, ErrSaveInProgress
	}

	// Re-run validation before saving; rows that turned invalid through raw
	// edits become errors and block the save.
	errCount := 0
	var pending []string
	for _, st := range s.roster {
		row := s.scores[st.Index]
		if row.SaveStatus == StatusPending {
			if v := Validate(row.CorePoints, s.bound); !v.Valid {
				row.SaveStatus = StatusError
			}
		}
		switch row.SaveStatus {
		case StatusError:
			errCount++
		case StatusPending:
			pending = append(pending, st.Index)
		}
	}
	if errCount > 0 {
		s.mu.Unlock()
		return SaveReport{}, &BlockingErrors{Count: errCount}
	}
	if len(pending) == 0 {
		s.mu.Unlock()
		return SaveReport{}, ErrNothingToSave
	}

	var (
		toDelete []string
		toUpsert []ServerScoreRecord
	)
	for _, id := range pending {
		row := s.scores[id]
		if row.CorePoints == "" {
			if _, had := s.server[id]; had {
				toDelete = append(toDelete, id)
			}
			continue
		}
		pts, err := ParsePoints(row.CorePoints)
		if err != nil {
			// Validate accepted it above, so this cannot happen.
			s.mu.Unlock()
			return SaveReport{}, &InvalidPointsError{Value: row.CorePoints, Message: msgInvalidNumber}
		}
		toUpsert = append(toUpsert, ServerScoreRecord{StudentIndex: id, CorePoints: pts})
	}

	s.saving = true
	for _, id := range pending {
		s.scores[id].SaveStatus = StatusSaving
	}
	s.mu.Unlock()

	report := SaveReport{ExerciseID: s.exerciseID, Kind: KindSavePending, StudentIDs: pending, Started: s.now()}
	var (
		deleted []string
		stored  []ServerScoreRecord
		err     error
	)
	for _, id := range toDelete {
		if err = s.backend.DeleteScore(ctx, s.exerciseID, id); err != nil {
			err = fmt.Errorf("delete score for %s: %w", id, err)
			break
		}
		deleted = append(deleted, id)
	}
	if err == nil && len(toUpsert) > 0 {
		stored, err = s.backend.BulkUpsert(ctx, s.exerciseID, toUpsert)
	}
	report.Finished = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	s.saveGen++

	// Deletes that went through are gone on the server even if a later
	// request failed.
	report.Deleted = len(deleted)
	for _, id := range deleted {
		delete(s.server, id)
	}
	if err != nil {
		report.Err = err
		s.markLocked(pending, StatusError, nil)
		return report, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	report.Upserted = len(toUpsert)
	s.recordUpsertsLocked(toUpsert, stored)
	finished := report.Finished
	s.markLocked(pending, StatusGraded, &finished)
	return report, nil
}

// markLocked moves rows that are still Saving to st. Rows edited while the
// save was in flight get their status re-derived against the server values
// the save just wrote.
func (s *Session) markLocked(ids []string, st SaveStatus, saved *time.Time) {
	for _, id := range ids {
		row, ok := s.scores[id]
		if !ok {
			continue
		}
		if row.SaveStatus != StatusSaving {
			row.SaveStatus = s.statusFor(id, row.CorePoints, Validate(row.CorePoints, s.bound))
			continue
		}
		row.SaveStatus = st
		if saved != nil {
			t := *saved
			row.LastSaved = &t
		}
	}
}

// recordUpsertsLocked updates the known server values after a successful
// upsert, preferring the records echoed back by the backend.
func (s *Session) recordUpsertsLocked(sent, stored []ServerScoreRecord) {
	for _, rec := range sent {
		s.server[rec.StudentIndex] = rec.CorePoints
	}
	for _, rec := range stored {
		if rec.StudentIndex != "" {
			s.server[rec.StudentIndex] = rec.CorePoints
		}
	}
}

func (s *Session) selectedIDsLocked() []string {
	var ids []string
	for _, st := range s.roster {
		if row := s.scores[st.Index]; row != nil && row.Selected {
			ids = append(ids, st.Index)
		}
	}
	return ids
}
