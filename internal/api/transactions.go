package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/moneytime-app/moneytime/internal/app/preview"
	"github.com/moneytime-app/moneytime/internal/domain"
)

// ─── Previews ───────────────────────────────────────────────────────────────

// GET /api/previews
func (s *Server) handleListPreviews(w http.ResponseWriter, r *http.Request) {
	entries := preview.Merge(nil, s.previews.List(), s.today(), s.now())
	writeJSON(w, http.StatusOK, entries)
}

// POST /api/previews
func (s *Server) handleAddPreview(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.previews.Add(req))
}

// DELETE /api/previews/{id}
// Idempotent: removing an unknown or already expired preview succeeds.
func (s *Server) handleRemovePreview(w http.ResponseWriter, r *http.Request) {
	s.previews.Remove(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/previews/{id}/save
// A client disconnect does not cancel the promotion: once the create has
// started, the preview must be removed whether or not anyone reads the reply.
func (s *Server) handleSavePreview(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tx, err := s.previews.Save(context.WithoutCancel(r.Context()), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if tx == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("preview %s not found or expired", id))
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// ─── Transactions ───────────────────────────────────────────────────────────

func parseFilter(r *http.Request) (domain.TransactionFilter, error) {
	q := r.URL.Query()
	f := domain.TransactionFilter{OnDate: q.Get("on_date")}
	if f.OnDate != "" {
		if _, err := domain.ParseDate(f.OnDate); err != nil {
			return f, err
		}
	}
	for _, p := range []struct {
		name string
		dst  *int
	}{{"skip", &f.Skip}, {"limit", &f.Limit}} {
		if v := q.Get(p.name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, fmt.Errorf("%w: %s must be a non-negative integer", domain.ErrInvalidTransaction, p.name)
			}
			*p.dst = n
		}
	}
	if v := q.Get("category_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return f, fmt.Errorf("%w: category_id must be an integer", domain.ErrInvalidTransaction)
		}
		f.CategoryID = n
	}
	return f, nil
}

// GET /api/transactions
// Persisted transactions with matching live previews folded in.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	txs, err := s.ledger.ListTransactions(r.Context(), f)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	previews := preview.Filter(s.previews.List(), f)
	writeJSON(w, http.StatusOK, preview.Merge(txs, previews, s.today(), s.now()))
}

// POST /api/transactions
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionCreate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	tx, err := s.ledger.CreateTransaction(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// PUT /api/transactions/{id}
// Previews cannot be edited; the client must save them first.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if domain.IsPreviewID(chi.URLParam(r, "id")) {
		writeDomainError(w, r, domain.ErrPreviewNotEditable)
		return
	}
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	var req domain.TransactionUpdate
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	tx, err := s.ledger.UpdateTransaction(r.Context(), id, req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// DELETE /api/transactions/{id}
// A preview id removes the preview locally; the server is never called.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	if domain.IsPreviewID(raw) {
		s.previews.Remove(raw)
		w.WriteHeader(http.StatusNoContent)
		return
	}
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}
	if err := s.ledger.DeleteTransaction(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
