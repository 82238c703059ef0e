package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/moneytime-app/moneytime/internal/domain"
)

// ─── Categories ─────────────────────────────────────────────────────────────

// GET /api/categories
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	writeJSON(w, http.StatusOK, cats)
}

// POST /api/categories
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req domain.CategoryCreate
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	cat, err := s.ledger.CreateCategory(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

// DELETE /api/categories/{id}
func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	if err := s.ledger.DeleteCategory(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Recurring ──────────────────────────────────────────────────────────────

// GET /api/recurring
func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	rules, err := s.ledger.ListRecurring(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if rules == nil {
		rules = []domain.Recurring{}
	}
	writeJSON(w, http.StatusOK, rules)
}

// POST /api/recurring
func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req domain.RecurringCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	rule, err := s.ledger.CreateRecurring(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

// DELETE /api/recurring/{id}
func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid recurring id")
		return
	}
	if err := s.ledger.DeleteRecurring(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/recurring/materialize
// Body {"up_to_date": "YYYY-MM-DD"}; defaults to today.
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UpToDate string `json:"up_to_date"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UpToDate == "" {
		req.UpToDate = s.today()
	}
	if _, err := domain.ParseDate(req.UpToDate); err != nil {
		writeDomainError(w, r, err)
		return
	}
	res, err := s.ledger.MaterializeRecurring(r.Context(), req.UpToDate)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
