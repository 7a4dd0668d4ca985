package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/labdesk/internal/desk"
	"github.com/mind-engage/labdesk/internal/journal"
	"github.com/mind-engage/labdesk/internal/labapi"
	"github.com/mind-engage/labdesk/internal/scoring"
)

type fakeLab struct {
	mu      sync.Mutex
	scores  map[string]int
	bulkErr error
}

func (f *fakeLab) Exercise(_ context.Context, id int64) (labapi.Exercise, error) {
	if id != 7 {
		return labapi.Exercise{}, &labapi.APIError{Title: "Not Found", Detail: "exercise not found", Status: 404}
	}
	return labapi.Exercise{ID: 7, Title: "Lab 1", TotalPoints: 10, LabCourseID: 3}, nil
}

func (f *fakeLab) Roster(context.Context, int64) ([]labapi.Enrollee, error) {
	return []labapi.Enrollee{
		{Index: "S1", Name: "Ana", LastName: "Petrovska"},
		{Index: "S2", Name: "Marko", LastName: "Nikolov"},
		{Index: "S3", Name: "Iva", LastName: "Ristova"},
	}, nil
}

func (f *fakeLab) ExerciseScores(context.Context, int64) ([]labapi.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []labapi.Score
	for idx, pts := range f.scores {
		out = append(out, labapi.Score{StudentIndex: idx, CorePoints: pts})
	}
	return out, nil
}

func (f *fakeLab) BulkUpdateScores(_ context.Context, _ int64, in []labapi.ScoreUpdate) ([]labapi.Score, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bulkErr != nil {
		return nil, f.bulkErr
	}
	out := make([]labapi.Score, 0, len(in))
	for _, s := range in {
		f.scores[s.StudentIndex] = s.CorePoints
		out = append(out, labapi.Score{StudentIndex: s.StudentIndex, CorePoints: s.CorePoints})
	}
	return out, nil
}

func (f *fakeLab) DeleteStudentScore(_ context.Context, _ int64, index string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.scores, index)
	return nil
}

func newServer(t *testing.T) (*httptest.Server, *fakeLab) {
	t.Helper()
	lab := &fakeLab{scores: map[string]int{"S1": 8}}
	d := desk.New(lab, desk.WithJournal(journal.NewMemory()))
	srv := httptest.NewServer(NewRouter(d, RouterConfig{}))
	t.Cleanup(srv.Close)
	return srv, lab
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

const base = "/exercises/7/scoring"

func TestHealth(t *testing.T) {
	srv, _ := newServer(t)
	assert.Equal(t, http.StatusOK, call(t, srv, "GET", "/healthz", "").StatusCode)
	assert.Equal(t, http.StatusOK, call(t, srv, "GET", "/readyz", "").StatusCode)
}

func TestReadyzReportsFailure(t *testing.T) {
	d := desk.New(&fakeLab{scores: map[string]int{}})
	srv := httptest.NewServer(NewRouter(d, RouterConfig{
		Ready: func(context.Context) error { return errors.New("journal down") },
	}))
	defer srv.Close()
	resp := call(t, srv, "GET", "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	p := decodeBody[Problem](t, resp)
	assert.Equal(t, "journal down", p.Detail)
}

func TestGetScoring(t *testing.T) {
	srv, _ := newServer(t)

	resp := call(t, srv, "GET", base, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	v := decodeBody[scoringView](t, resp)
	assert.Equal(t, int64(7), v.ExerciseID)
	assert.Equal(t, 10, v.Bound.TotalPoints)
	assert.Equal(t, []int{0, 5, 10}, v.Presets)
	assert.Equal(t, 3, v.Summary.Total)
	assert.Equal(t, 1, v.Summary.Graded)
	require.Len(t, v.Rows, 3)
	assert.Equal(t, "8", v.Rows[0].CorePoints)

	resp = call(t, srv, "GET", base+"?q=ristova", "")
	v = decodeBody[scoringView](t, resp)
	require.Len(t, v.Rows, 1)
	assert.Equal(t, "S3", v.Rows[0].StudentID)

	sessions := decodeBody[[]desk.Info](t, call(t, srv, "GET", "/scoring/sessions", ""))
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(3), sessions[0].CourseID)
}

func TestGetScoring_BadIDs(t *testing.T) {
	srv, _ := newServer(t)
	assert.Equal(t, http.StatusBadRequest, call(t, srv, "GET", "/exercises/abc/scoring", "").StatusCode)
	assert.Equal(t, http.StatusBadRequest, call(t, srv, "GET", base+"?courseId=-1", "").StatusCode)

	resp := call(t, srv, "GET", "/exercises/99/scoring", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "application/problem+json", resp.Header.Get("Content-Type"))
}

func TestNotOpen(t *testing.T) {
	srv, _ := newServer(t)
	resp := call(t, srv, "PUT", base+"/rows/S1", `{"corePoints":"4"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, call(t, srv, "DELETE", base, "").StatusCode)
}

func TestEditAndSave(t *testing.T) {
	srv, lab := newServer(t)
	call(t, srv, "GET", base, "")

	resp := call(t, srv, "PUT", base+"/rows/S2", `{"corePoints":"6"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rr := decodeBody[rowResp](t, resp)
	assert.Equal(t, scoring.StatusPending, rr.Row.SaveStatus)
	assert.True(t, rr.Row.Validation.Valid)
	assert.Equal(t, 1, rr.Summary.Pending)

	resp = call(t, srv, "DELETE", base+"/rows/S1", "")
	rr = decodeBody[rowResp](t, resp)
	assert.Equal(t, "", rr.Row.CorePoints)
	assert.Equal(t, scoring.StatusPending, rr.Row.SaveStatus)

	resp = call(t, srv, "POST", base+"/save", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	report := decodeBody[scoring.SaveReport](t, resp)
	assert.Equal(t, 1, report.Upserted)
	assert.Equal(t, 1, report.Deleted)
	assert.Equal(t, map[string]int{"S2": 6}, lab.scores)

	hist := decodeBody[[]journal.Entry](t, call(t, srv, "GET", base+"/history?limit=5", ""))
	require.Len(t, hist, 1)
	assert.True(t, hist[0].OK)

	resp = call(t, srv, "POST", base+"/save", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestSaveBlockedByValidation(t *testing.T) {
	srv, _ := newServer(t)
	call(t, srv, "GET", base, "")

	resp := call(t, srv, "PUT", base+"/rows/S2", `{"corePoints":"12"}`)
	rr := decodeBody[rowResp](t, resp)
	assert.Equal(t, scoring.StatusError, rr.Row.SaveStatus)
	assert.Equal(t, "Max 10", rr.Row.Validation.Error)

	resp = call(t, srv, "POST", base+"/save", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	p := decodeBody[Problem](t, resp)
	assert.Equal(t, "Validation errors", p.Title)
	assert.Equal(t, 1, p.Count)
}

func TestApplyToSelection(t *testing.T) {
	srv, lab := newServer(t)
	call(t, srv, "GET", base, "")

	resp := call(t, srv, "POST", base+"/apply", `{"points":"5"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = call(t, srv, "POST", base+"/selection", `{"selected":true,"studentIds":["S2","S3"]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sum := decodeBody[scoring.Summary](t, resp)
	assert.Equal(t, 2, sum.Selected)

	resp = call(t, srv, "POST", base+"/apply", `{"points":"abc"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	p := decodeBody[Problem](t, resp)
	assert.Equal(t, "Invalid number", p.Errors["points"])

	resp = call(t, srv, "POST", base+"/apply", `{"points":"5"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]int{"S1": 8, "S2": 5, "S3": 5}, lab.scores)

	v := decodeBody[scoringView](t, call(t, srv, "GET", base, ""))
	assert.Equal(t, 0, v.Summary.Selected)
	assert.Equal(t, 3, v.Summary.Graded)
}

func TestToggleAndSelected(t *testing.T) {
	srv, _ := newServer(t)
	call(t, srv, "GET", base, "")

	rr := decodeBody[rowResp](t, call(t, srv, "POST", base+"/rows/S1/toggle", ""))
	assert.True(t, rr.Row.Selected)
	rr = decodeBody[rowResp](t, call(t, srv, "PUT", base+"/rows/S1/selected", `{"selected":false}`))
	assert.False(t, rr.Row.Selected)

	assert.Equal(t, http.StatusNotFound, call(t, srv, "POST", base+"/rows/NOPE/toggle", "").StatusCode)
}

func TestSaveFailureThenRequeue(t *testing.T) {
	srv, lab := newServer(t)
	call(t, srv, "GET", base, "")
	call(t, srv, "PUT", base+"/rows/S2", `{"corePoints":"6"}`)

	lab.mu.Lock()
	lab.bulkErr = &labapi.APIError{Title: "Unavailable", Status: 503}
	lab.mu.Unlock()
	assert.Equal(t, http.StatusBadGateway, call(t, srv, "POST", base+"/save", "").StatusCode)

	lab.mu.Lock()
	lab.bulkErr = nil
	lab.mu.Unlock()
	resp := call(t, srv, "POST", base+"/requeue", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeBody[map[string]any](t, resp)
	assert.EqualValues(t, 1, out["requeued"])

	assert.Equal(t, http.StatusOK, call(t, srv, "POST", base+"/save", "").StatusCode)

	hist := decodeBody[[]journal.Entry](t, call(t, srv, "GET", base+"/history", ""))
	require.Len(t, hist, 2)
}

func TestBodyValidation(t *testing.T) {
	srv, _ := newServer(t)
	call(t, srv, "GET", base, "")

	resp := call(t, srv, "PUT", base+"/rows/S1", `{}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	p := decodeBody[Problem](t, resp)
	assert.Contains(t, p.Errors, "corePoints")

	resp = call(t, srv, "PUT", base+"/rows/S1", `{"corePoints":"4","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = call(t, srv, "POST", base+"/selection", `{"selected":true,"studentIds":[]}`)
	p = decodeBody[Problem](t, resp)
	assert.Contains(t, p.Errors, "studentIds")

	assert.Equal(t, http.StatusBadRequest, call(t, srv, "GET", base+"/history?limit=x", "").StatusCode)
}

func TestCloseAndRefresh(t *testing.T) {
	srv, lab := newServer(t)
	call(t, srv, "GET", base, "")

	lab.mu.Lock()
	lab.scores["S3"] = 9
	lab.mu.Unlock()
	v := decodeBody[scoringView](t, call(t, srv, "POST", base+"/refresh", ""))
	assert.Equal(t, 2, v.Summary.Graded)

	assert.Equal(t, http.StatusNoContent, call(t, srv, "DELETE", base, "").StatusCode)
	assert.Equal(t, http.StatusNotFound, call(t, srv, "POST", base+"/refresh", "").StatusCode)
}

func TestWriteErrorConflicts(t *testing.T) {
	for _, err := range []error{scoring.ErrSaveInProgress, fmt.Errorf("refresh: %w", scoring.ErrStaleSnapshot)} {
		rec := httptest.NewRecorder()
		writeError(rec, httptest.NewRequest("POST", base+"/refresh", nil), err)
		assert.Equal(t, http.StatusConflict, rec.Code, err.Error())
	}
}
