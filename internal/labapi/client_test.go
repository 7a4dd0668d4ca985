package labapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLab is a tiny in-memory stand-in for the backend routes the client uses.
type fakeLab struct {
	mu       sync.Mutex
	scores   map[string]int
	roster   []Enrollee
	deleted  []string
	lastForm map[string][]string
	files    map[string]string
}

func newFakeLab(t *testing.T) (*fakeLab, *Client) {
	t.Helper()
	f := &fakeLab{scores: map[string]int{"201001": 8}}
	for i := 0; i < 230; i++ {
		f.roster = append(f.roster, Enrollee{Index: strconv.Itoa(300000 + i), Name: "N", LastName: "L"})
	}

	r := chi.NewRouter()
	r.Get("/api/exercises/{id}", func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "404" {
			w.Header().Set("Content-Type", problemJSON)
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"title":"Not Found","detail":"Exercise 404 not found","status":404}`))
			return
		}
		writeJSON(w, Exercise{ID: 7, Title: "Lab 1", TotalPoints: 10, LabCourseID: 3, Status: ExercisePublished})
	})
	r.Get("/api/exercises/{id}/scores", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		var out []Score
		for idx, pts := range f.scores {
			out = append(out, Score{StudentIndex: idx, CorePoints: pts})
		}
		writeJSON(w, out)
	})
	r.Put("/api/exercises/{id}/scores/bulk", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Scores []ScoreUpdate `json:"scores"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in.Scores) == 0 {
			http.Error(w, "bad body", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]Score, 0, len(in.Scores))
		for _, s := range in.Scores {
			f.scores[s.StudentIndex] = s.CorePoints
			out = append(out, Score{StudentIndex: s.StudentIndex, CorePoints: s.CorePoints})
		}
		writeJSON(w, out)
	})
	r.Put("/api/exercises/{id}/scores/student/{index}", func(w http.ResponseWriter, r *http.Request) {
		var in ScoreUpdate
		_ = json.NewDecoder(r.Body).Decode(&in)
		f.mu.Lock()
		f.scores[chi.URLParam(r, "index")] = in.CorePoints
		f.mu.Unlock()
		writeJSON(w, Score{StudentIndex: chi.URLParam(r, "index"), CorePoints: in.CorePoints})
	})
	r.Delete("/api/exercises/{id}/scores/student/{index}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		idx := chi.URLParam(r, "index")
		if _, ok := f.scores[idx]; !ok {
			w.Header().Set("Content-Type", problemJSON+"; charset=utf-8")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"title":"Not Found","detail":"no score"}`))
			return
		}
		delete(f.scores, idx)
		f.deleted = append(f.deleted, idx)
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get("/api/lab-courses/{courseId}/students/filter", func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("pageSize"))
		if page < 1 || size < 1 || size > MaxPageSize {
			http.Error(w, "bad paging", http.StatusBadRequest)
			return
		}
		start := (page - 1) * size
		end := start + size
		if start > len(f.roster) {
			start = len(f.roster)
		}
		if end > len(f.roster) {
			end = len(f.roster)
		}
		writeJSON(w, Page[Enrollee]{Count: len(f.roster), Items: f.roster[start:end]})
	})
	r.Post("/api/lab-courses/{courseId}/exercises", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f.mu.Lock()
		f.lastForm = r.MultipartForm.Value
		f.files = map[string]string{}
		for _, fh := range r.MultipartForm.File["files"] {
			rc, _ := fh.Open()
			b, _ := io.ReadAll(rc)
			rc.Close()
			f.files[fh.Filename] = string(b)
		}
		f.mu.Unlock()
		pts, _ := strconv.Atoi(r.FormValue("totalPoints"))
		writeJSON(w, Exercise{ID: 9, Title: r.FormValue("title"), TotalPoints: pts})
	})
	r.Get("/api/exercises/files/{fileId}/download", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("file:" + chi.URLParam(r, "fileId")))
	})
	r.Put("/api/lab-courses/{courseId}/update-signature-requirements", func(w http.ResponseWriter, r *http.Request) {
		var in map[string]int
		_ = json.NewDecoder(r.Body).Decode(&in)
		if in["requiredExercises"] != 4 {
			http.Error(w, "unexpected", http.StatusBadRequest)
			return
		}
	})
	r.Get("/api/semesters", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, []Semester{{Code: "2024W", IsActive: true}})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	return f, c
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_RequiresBaseURL(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestExercise_ProblemDetails(t *testing.T) {
	_, c := newFakeLab(t)
	ctx := context.Background()

	ex, err := c.Exercise(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, ex.TotalPoints)

	_, err = c.Exercise(ctx, 404)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "Not Found: Exercise 404 not found", ae.Error())
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
}

func TestScores_RoundTrip(t *testing.T) {
	f, c := newFakeLab(t)
	ctx := context.Background()

	stored, err := c.BulkUpdateScores(ctx, 7, []ScoreUpdate{{StudentIndex: "201002", CorePoints: 5}, {StudentIndex: "201003", CorePoints: 6}})
	require.NoError(t, err)
	assert.Len(t, stored, 2)

	one, err := c.UpdateStudentScore(ctx, 7, "201004", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, one.CorePoints)

	require.NoError(t, c.DeleteStudentScore(ctx, 7, "201001"))
	assert.Equal(t, []string{"201001"}, f.deleted)

	// Missing score: problem+json with a charset parameter still decodes,
	// and an absent status falls back to the response code.
	err = c.DeleteStudentScore(ctx, 7, "nope")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Equal(t, "Not Found: no score", err.Error())

	all, err := c.ExerciseScores(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPlainErrorFallsBackToStatusText(t *testing.T) {
	_, c := newFakeLab(t)
	_, err := c.BulkUpdateScores(context.Background(), 7, nil)
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.Status)
	assert.Equal(t, "Bad Request", ae.Title)
}

func TestRoster_WalksAllPages(t *testing.T) {
	f, c := newFakeLab(t)
	all, err := c.Roster(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, all, len(f.roster))
	assert.Equal(t, f.roster[0].Index, all[0].Index)
	assert.Equal(t, f.roster[229].Index, all[229].Index)
}

func TestCreateExercise_Multipart(t *testing.T) {
	f, c := newFakeLab(t)
	ex, err := c.CreateExercise(context.Background(), 3, CreateExercise{
		Title: "Lab 2", TotalPoints: 15, Status: ExerciseDraft,
	}, []Upload{{Name: "task.pdf", Body: bytes.NewBufferString("pdf-bytes")}})
	require.NoError(t, err)

	assert.Equal(t, "Lab 2", ex.Title)
	assert.Equal(t, 15, ex.TotalPoints)
	assert.Equal(t, []string{"DRAFT"}, f.lastForm["status"])
	assert.NotContains(t, f.lastForm, "description")
	assert.Equal(t, "pdf-bytes", f.files["task.pdf"])
}

func TestDownloadFile(t *testing.T) {
	_, c := newFakeLab(t)
	var buf strings.Builder
	n, err := c.DownloadFile(context.Background(), "abc", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(len("file:abc")), n)
	assert.Equal(t, "file:abc", buf.String())
}

func TestSignatureRequirementAndReferenceData(t *testing.T) {
	_, c := newFakeLab(t)
	ctx := context.Background()

	require.NoError(t, c.UpdateSignatureRequirement(ctx, 3, 4))
	assert.Error(t, c.UpdateSignatureRequirement(ctx, 3, -1))

	sems, err := c.Semesters(ctx)
	require.NoError(t, err)
	require.Len(t, sems, 1)
	assert.True(t, sems[0].IsActive)
}
