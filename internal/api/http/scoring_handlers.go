package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/labdesk/internal/desk"
	"github.com/mind-engage/labdesk/internal/journal"
	"github.com/mind-engage/labdesk/internal/scoring"
)

type scoringView struct {
	ExerciseID int64                 `json:"exerciseId"`
	Bound      scoring.ExerciseBound `json:"bound"`
	Summary    scoring.Summary       `json:"summary"`
	Presets    []int                 `json:"presets"`
	Rows       []scoring.Row         `json:"rows"`
}

type setPointsReq struct {
	CorePoints *string `json:"corePoints" validate:"required,max=16"`
}

type setSelectedReq struct {
	Selected *bool `json:"selected" validate:"required"`
}

type selectionReq struct {
	Selected   *bool    `json:"selected" validate:"required"`
	StudentIDs []string `json:"studentIds" validate:"required,min=1,dive,required"`
}

type applyReq struct {
	Points string `json:"points" validate:"required,max=16"`
}

type rowResp struct {
	Row     scoring.Row     `json:"row"`
	Summary scoring.Summary `json:"summary"`
}

func exerciseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "exerciseID")), 10, 64)
	if err != nil || id <= 0 {
		badRequest(w, r, "exerciseID must be a positive integer")
		return 0, false
	}
	return id, true
}

func view(id int64, sess *scoring.Session, q string) scoringView {
	b := sess.Bound()
	return scoringView{
		ExerciseID: id,
		Bound:      b,
		Summary:    sess.Summary(),
		Presets:    scoring.Presets(b),
		Rows:       sess.Search(q),
	}
}

func writeRow(w http.ResponseWriter, r *http.Request, sess *scoring.Session, studentID string) {
	row, ok := sess.Row(studentID)
	if !ok {
		writeError(w, r, scoring.ErrUnknownStudent)
		return
	}
	writeJSON(w, http.StatusOK, rowResp{Row: row, Summary: sess.Summary()})
}

// GET /exercises/{exerciseID}/scoring?courseId=&q=
func GetScoringHandler(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		var courseID int64
		if s := r.URL.Query().Get("courseId"); s != "" {
			c, err := strconv.ParseInt(s, 10, 64)
			if err != nil || c <= 0 {
				badRequest(w, r, "courseId must be a positive integer")
				return
			}
			courseID = c
		}
		sess, err := d.Open(r.Context(), courseID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view(id, sess, r.URL.Query().Get("q")))
	}
}

// POST /exercises/{exerciseID}/scoring/refresh
func RefreshScoringHandler(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		if err := d.Refresh(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		sess, err := d.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view(id, sess, ""))
	}
}

// DELETE /exercises/{exerciseID}/scoring
func CloseScoringHandler(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		if !d.Close(id) {
			writeError(w, r, desk.ErrNotOpen)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PUT /exercises/{exerciseID}/scoring/rows/{studentID}
func SetPointsHandler(d *desk.Desk, val *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		var req setPointsReq
		if !val.decode(w, r, &req) {
			return
		}
		sess, err := d.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		studentID := chi.URLParam(r, "studentID")
		if _, err := sess.ValidateAndUpdate(studentID, *req.CorePoints); err != nil {
			writeError(w, r, err)
			return
		}
		writeRow(w, r, sess, studentID)
	}
}

// PUT /exercises/{exerciseID}/scoring/rows/{studentID}/selected
func SetSelectedHandler(d *desk.Desk, val *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		var req setSelectedReq
		if !val.decode(w, r, &req) {
			return
		}
		sess, err := d.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		studentID := chi.URLParam(r, "studentID")
		if err := sess.UpdateField(studentID, scoring.FieldSelected, *req.Selected); err != nil {
			writeError(w, r, err)
			return
		}
		writeRow(w, r, sess, studentID)
	}
}

// POST /exercises/{exerciseID}/scoring/rows/{studentID}/toggle
func ToggleSelectionHandler(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		sess, err := d.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		studentID := chi.URLParam(r, "studentID")
		if err := sess.ToggleSelection(studentID); err != nil {
			writeError(w, r, err)
			return
		}
		writeRow(w, r, sess, studentID)
	}
}

// DELETE /exercises/{exerciseID}/scoring/rows/{studentID}
func ClearScoreHandler(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		sess, err := d.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		studentID := chi.URLParam(r, "studentID")
		if err := sess.ClearScore(studentID); err != nil {
			writeError(w, r, err)
			return
		}
		writeRow(w, r, sess, studentID)
	}
}

// POST /exercises/{exerciseID}/scoring/selection
func SelectionHandler(d *desk.Desk, val *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		var req selectionReq
		if !val.decode(w, r, &req) {
			return
		}
		sess, err := d.Get(id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := sess.SelectAll(*req.Selected, req.StudentIDs); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, sess.Summary())
	}
}

// POST /exercises/{exerciseID}/scoring/apply
func ApplyPointsHandler(d *desk.Desk, val *Validator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		var req applyReq
		if !val.decode(w, r, &req) {
			return
		}
		report, err := d.Apply(r.Context(), id, req.Points)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// POST /exercises/{exerciseID}/scoring/save
func SaveAllHandler(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		report, err := d.SaveAll(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, report)
	}
}

// GET /exercises/{exerciseID}/scoring/history?limit=
func HistoryHandler(d *desk.Desk) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := exerciseID(w, r)
		if !ok {
			return
		}
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				badRequest(w, r, "limit must be a non-negative integer")
				return
			}
			limit = n
		}
		entries, err := d.History(r.Context(), id, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if entries == nil {
			entries = []journal.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
