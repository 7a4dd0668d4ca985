package desk

import (
	"context"

	"github.com/mind-engage/labdesk/internal/labapi"
	"github.com/mind-engage/labdesk/internal/scoring"
)

// Lab is the part of the REST client the desk needs. *labapi.Client
// satisfies it.
type Lab interface {
	Exercise(ctx context.Context, id int64) (labapi.Exercise, error)
	Roster(ctx context.Context, courseID int64) ([]labapi.Enrollee, error)
	ExerciseScores(ctx context.Context, exerciseID int64) ([]labapi.Score, error)
	BulkUpdateScores(ctx context.Context, exerciseID int64, scores []labapi.ScoreUpdate) ([]labapi.Score, error)
	DeleteStudentScore(ctx context.Context, exerciseID int64, index string) error
}

var _ Lab = (*labapi.Client)(nil)

// labBackend adapts Lab to scoring.Backend.
type labBackend struct{ lab Lab }

func (b labBackend) BulkUpsert(ctx context.Context, exerciseID int64, scores []scoring.ServerScoreRecord) ([]scoring.ServerScoreRecord, error) {
	req := make([]labapi.ScoreUpdate, 0, len(scores))
	for _, s := range scores {
		req = append(req, labapi.ScoreUpdate{StudentIndex: s.StudentIndex, CorePoints: s.CorePoints})
	}
	stored, err := b.lab.BulkUpdateScores(ctx, exerciseID, req)
	if err != nil {
		return nil, err
	}
	return toRecords(stored), nil
}

func (b labBackend) DeleteScore(ctx context.Context, exerciseID int64, studentIndex string) error {
	return b.lab.DeleteStudentScore(ctx, exerciseID, studentIndex)
}

func toRecords(scores []labapi.Score) []scoring.ServerScoreRecord {
	out := make([]scoring.ServerScoreRecord, 0, len(scores))
	for _, s := range scores {
		out = append(out, scoring.ServerScoreRecord{StudentIndex: s.StudentIndex, CorePoints: s.CorePoints})
	}
	return out
}

func toRoster(es []labapi.Enrollee) []scoring.StudentRef {
	out := make([]scoring.StudentRef, 0, len(es))
	for _, e := range es {
		out = append(out, scoring.StudentRef{Index: e.Index, Name: e.Name, LastName: e.LastName})
	}
	return out
}
