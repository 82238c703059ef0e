// Package api provides the HTTP server for moneytime.
// It serves the transaction list with previews folded in, the reconstructed
// daily balance and calendar, smart entry, insights, and a live preview
// event feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/moneytime-app/moneytime/internal/app/balance"
	"github.com/moneytime-app/moneytime/internal/app/insights"
	"github.com/moneytime-app/moneytime/internal/app/preview"
	"github.com/moneytime-app/moneytime/internal/app/smartparse"
	"github.com/moneytime-app/moneytime/internal/domain"
	"github.com/moneytime-app/moneytime/internal/infra/observability"
)

// Server is the moneytime HTTP API server.
type Server struct {
	ledger   domain.Ledger
	previews *preview.Store
	balances *balance.Service
	insights *insights.Service
	smart    *smartparse.Service // nil when no parser is configured
	hub      *PreviewHub
	tracer   *observability.Tracer

	metricsEnabled bool
	now            func() time.Time
	loc            *time.Location
}

// NewServer creates a new API server. The preview store's lifecycle events
// are fanned out to the server's PreviewHub.
func NewServer(ledger domain.Ledger, previews *preview.Store) *Server {
	s := &Server{
		ledger:   ledger,
		previews: previews,
		balances: balance.NewService(ledger, previews),
		insights: insights.NewService(ledger),
		hub:      NewPreviewHub(),
		now:      time.Now,
		loc:      time.Local,
	}
	previews.Subscribe(s.hub.Publish)
	return s
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetSmartParser enables POST /api/smart-parse.
func (s *Server) SetSmartParser(p domain.SmartParser) { s.smart = smartparse.New(p, s.previews) }

// SetTracer exposes recent collaborator spans at /api/debug/spans.
func (s *Server) SetTracer(t *observability.Tracer) { s.tracer = t }

// SetClock overrides the clock and time zone used to decide "today".
func (s *Server) SetClock(now func() time.Time, loc *time.Location) {
	s.now = now
	if loc != nil {
		s.loc = loc
	}
}

// PreviewHub returns the live preview event hub.
func (s *Server) PreviewHub() *PreviewHub { return s.hub }

func (s *Server) today() string { return domain.Today(s.now(), s.loc) }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(traceMiddleware)
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"previews": s.previews.Len(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		// The event stream is long-lived; everything else gets a deadline.
		r.Get("/previews/events", s.hub.HandlePreviewSSE)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))

			r.Get("/previews", s.handleListPreviews)
			r.Post("/previews", s.handleAddPreview)
			r.Delete("/previews/{id}", s.handleRemovePreview)
			r.Post("/previews/{id}/save", s.handleSavePreview)

			r.Get("/transactions", s.handleListTransactions)
			r.Post("/transactions", s.handleCreateTransaction)
			r.Put("/transactions/{id}", s.handleUpdateTransaction)
			r.Delete("/transactions/{id}", s.handleDeleteTransaction)

			r.Get("/daily-balance", s.handleDailyBalance)
			r.Get("/calendar", s.handleCalendar)
			r.Get("/preferences", s.handleGetPreferences)
			r.Put("/preferences", s.handleUpdatePreferences)
			r.Get("/insights", s.handleInsights)
			r.Post("/smart-parse", s.handleSmartParse)

			r.Get("/categories", s.handleListCategories)
			r.Post("/categories", s.handleCreateCategory)
			r.Delete("/categories/{id}", s.handleDeleteCategory)

			r.Get("/recurring", s.handleListRecurring)
			r.Post("/recurring", s.handleCreateRecurring)
			r.Delete("/recurring/{id}", s.handleDeleteRecurring)
			r.Post("/recurring/materialize", s.handleMaterialize)

			if s.tracer != nil {
				r.Get("/debug/spans", s.handleSpans)
			}
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    "error",
		},
	})
}

// statusFor maps domain errors to HTTP status codes. Anything unrecognized
// is a failure of the finance collaborator.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrPreviewNotEditable), errors.Is(err, domain.ErrPromotionInFlight):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidTransaction), errors.Is(err, domain.ErrInvalidDate),
		errors.Is(err, domain.ErrInvalidThresholds):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrParseFailed), errors.Is(err, domain.ErrRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// writeDomainError writes err with the status statusFor picks.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
	}
	writeError(w, status, err.Error())
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// monthParams reads ?year=&month=, defaulting to the current month.
func (s *Server) monthParams(r *http.Request) (int, int, error) {
	now := s.now().In(s.loc)
	year, month := now.Year(), int(now.Month())

	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("year must be an integer")
		}
		year = n
	}
	if v := r.URL.Query().Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 12 {
			return 0, 0, errors.New("month must be 1-12")
		}
		month = n
	}
	return year, month, nil
}

// intParam parses a numeric URL parameter.
func intParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// traceMiddleware tags collaborator spans with the chi request id.
func traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(observability.WithTraceID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware adds CORS headers for the local UI.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSpans(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, s.tracer.Spans(limit))
}
