package labapi

import (
	"context"
	"fmt"
	"net/http"
)

type Score struct {
	ID            int64  `json:"id"`
	StudentIndex  string `json:"studentIndex"`
	StudentName   string `json:"studentName"`
	ExerciseID    int64  `json:"exerciseId"`
	ExerciseTitle string `json:"exerciseTitle"`
	CorePoints    int    `json:"corePoints"`
	DateGraded    string `json:"dateGraded,omitempty"`
}

type ScoreUpdate struct {
	StudentIndex string `json:"studentIndex"`
	CorePoints   int    `json:"corePoints"`
}

func scoresPath(exerciseID int64) string { return fmt.Sprintf("api/exercises/%d/scores", exerciseID) }

func studentScorePath(exerciseID int64, index string) string {
	return scoresPath(exerciseID) + "/student/" + index
}

// GET api/exercises/{id}/scores
func (c *Client) ExerciseScores(ctx context.Context, exerciseID int64) ([]Score, error) {
	var out []Score
	err := c.getJSON(ctx, scoresPath(exerciseID), nil, &out)
	return out, err
}

// PUT api/exercises/{id}/scores/student/{index}
func (c *Client) UpdateStudentScore(ctx context.Context, exerciseID int64, index string, points int) (Score, error) {
	var out Score
	err := c.sendJSON(ctx, http.MethodPut, studentScorePath(exerciseID, index),
		ScoreUpdate{StudentIndex: index, CorePoints: points}, &out)
	return out, err
}

// PUT api/exercises/{id}/scores/bulk
func (c *Client) BulkUpdateScores(ctx context.Context, exerciseID int64, scores []ScoreUpdate) ([]Score, error) {
	var out []Score
	err := c.sendJSON(ctx, http.MethodPut, scoresPath(exerciseID)+"/bulk",
		map[string]any{"scores": scores}, &out)
	return out, err
}

// DELETE api/exercises/{id}/scores/student/{index}
func (c *Client) DeleteStudentScore(ctx context.Context, exerciseID int64, index string) error {
	return c.do(ctx, http.MethodDelete, studentScorePath(exerciseID, index), nil, nil, "", nil)
}
