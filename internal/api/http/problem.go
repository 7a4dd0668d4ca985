package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/mind-engage/labdesk/internal/desk"
	"github.com/mind-engage/labdesk/internal/labapi"
	"github.com/mind-engage/labdesk/internal/scoring"
)

// Problem is an RFC 7807 problem document.
type Problem struct {
	Type     string            `json:"type,omitempty"`
	Title    string            `json:"title"`
	Status   int               `json:"status"`
	Detail   string            `json:"detail,omitempty"`
	Instance string            `json:"instance,omitempty"`
	Errors   map[string]string `json:"errors,omitempty"`
	Count    int               `json:"count,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, r *http.Request, p Problem) {
	if p.Title == "" {
		p.Title = http.StatusText(p.Status)
	}
	p.Instance = r.URL.Path
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

func badRequest(w http.ResponseWriter, r *http.Request, detail string) {
	writeProblem(w, r, Problem{Status: http.StatusBadRequest, Detail: detail})
}

// writeError maps desk, scoring and backend errors to a problem status.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		blocking *scoring.BlockingErrors
		invalid  *scoring.InvalidPointsError
		apiErr   *labapi.APIError
	)
	p := Problem{Detail: err.Error()}
	switch {
	case errors.Is(err, desk.ErrNotOpen), errors.Is(err, scoring.ErrUnknownStudent):
		p.Status = http.StatusNotFound
	case errors.Is(err, scoring.ErrSaveInProgress):
		p.Status = http.StatusConflict
		p.Title = "Save in progress"
	case errors.Is(err, scoring.ErrStaleSnapshot):
		p.Status = http.StatusConflict
	case errors.As(err, &blocking):
		p.Status = http.StatusUnprocessableEntity
		p.Title = "Validation errors"
		p.Count = blocking.Count
	case errors.As(err, &invalid):
		p.Status = http.StatusUnprocessableEntity
		p.Title = "Invalid points"
		p.Errors = map[string]string{"points": invalid.Message}
	case errors.Is(err, scoring.ErrNoSelection), errors.Is(err, scoring.ErrNothingToSave), errors.Is(err, scoring.ErrFieldType):
		p.Status = http.StatusUnprocessableEntity
	case errors.Is(err, scoring.ErrSaveFailed), errors.As(err, &apiErr):
		p.Status = http.StatusBadGateway
		if apiErr != nil && apiErr.Status == http.StatusNotFound && !errors.Is(err, scoring.ErrSaveFailed) {
			p.Status = http.StatusNotFound
		}
	default:
		p.Status = http.StatusInternalServerError
	}
	writeProblem(w, r, p)
}

// Validator checks request bodies and renders field errors in English.
type Validator struct {
	v     *validator.Validate
	trans ut.Translator
}

func NewValidator() *Validator {
	v := validator.New()
	_en := en.New()
	uni := ut.New(_en, _en)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, trans)

	// Use JSON tag names in errors.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v, trans: trans}
}

// decode reads a JSON body into dst and validates it. On failure it writes
// the problem response and returns false.
func (val *Validator) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, r, "bad json: "+err.Error())
		return false
	}
	err := val.v.Struct(dst)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		badRequest(w, r, err.Error())
		return false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Translate(val.trans)
	}
	writeProblem(w, r, Problem{Status: http.StatusBadRequest, Title: "Invalid request", Errors: fields})
	return false
}
