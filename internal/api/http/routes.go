package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mind-engage/labdesk/internal/desk"
)

type RouterConfig struct {
	CORSOrigins []string
	Timeout     time.Duration
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// Metrics is served at /metrics when set.
	Metrics http.Handler
}

func NewRouter(d *desk.Desk, rc RouterConfig) chi.Router {
	if rc.Timeout <= 0 {
		rc.Timeout = 30 * time.Second
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(rc.Timeout))
	if len(rc.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   rc.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if rc.Ready != nil {
			if err := rc.Ready(r.Context()); err != nil {
				writeProblem(w, r, Problem{Status: http.StatusServiceUnavailable, Detail: err.Error()})
				return
			}
		}
		w.WriteHeader(200)
	})
	if rc.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rc.Metrics)
	}

	r.Mount("/exercises/{exerciseID}/scoring", ScoringRoutes(d, NewValidator()))
	r.Get("/scoring/sessions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, d.Sessions())
	})
	return r
}

// ScoringRoutes serves one exercise's scoring session.
func ScoringRoutes(d *desk.Desk, val *Validator) chi.Router {
	r := chi.NewRouter()
	r.Get("/", GetScoringHandler(d))
	r.Delete("/", CloseScoringHandler(d))
	r.Post("/refresh", RefreshScoringHandler(d))
	r.Post("/selection", SelectionHandler(d, val))
	r.Post("/apply", ApplyPointsHandler(d, val))
	r.Post("/save", SaveAllHandler(d))
	r.Post("/requeue", RequeueHandler(d))
	r.Get("/history", HistoryHandler(d))
	r.Route("/rows/{studentID}", func(rr chi.Router) {
		rr.Put("/", SetPointsHandler(d, val))
		rr.Delete("/", ClearScoreHandler(d))
		rr.Put("/selected", SetSelectedHandler(d, val))
		rr.Post("/toggle", ToggleSelectionHandler(d))
	})
	return r
}

// POST /exercises/{exerciseID}/scoring/requeue
func RequeueHandler(d *desk.Desk) http.HandlerFunc {
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
		n := sess.RequeueFailed()
		writeJSON(w, http.StatusOK, map[string]any{"requeued": n, "summary": sess.Summary()})
	}
}
