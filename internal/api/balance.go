package api

import (
	"errors"
	"mime"
	"net/http"
	"strings"

	"github.com/moneytime-app/moneytime/internal/app/smartparse"
	"github.com/moneytime-app/moneytime/internal/domain"
)

// maxUploadBytes bounds smart-parse image and audio uploads.
const maxUploadBytes = 10 << 20

// ─── Balance ────────────────────────────────────────────────────────────────

// GET /api/daily-balance?year=&month=
func (s *Server) handleDailyBalance(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.monthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	series, err := s.balances.Month(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// GET /api/calendar?year=&month=
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.monthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	days, err := s.balances.Calendar(r.Context(), year, month, s.today())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"year":  year,
		"month": month,
		"today": s.today(),
		"days":  days,
	})
}

// ─── Preferences ────────────────────────────────────────────────────────────

// GET /api/preferences
func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.ledger.GetPreferences(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"configured":  prefs != nil,
		"preferences": prefs,
	})
}

// PUT /api/preferences
// Thresholds are checked here so a bad ordering never reaches the server.
func (s *Server) handleUpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req domain.UserPreferences
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeDomainError(w, r, err)
		return
	}
	prefs, err := s.ledger.UpdatePreferences(r.Context(), req)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// ─── Insights ───────────────────────────────────────────────────────────────

// GET /api/insights?year=&month=
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	year, month, err := s.monthParams(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	a, err := s.insights.Month(r.Context(), year, month)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ─── Smart Entry ────────────────────────────────────────────────────────────

// POST /api/smart-parse
// JSON {"command": "..."} or multipart/form-data with an "image" or "audio"
// file. A usable parse is staged as a preview.
func (s *Server) handleSmartParse(w http.ResponseWriter, r *http.Request) {
	if s.smart == nil {
		writeError(w, http.StatusNotImplemented, "smart entry is not available with this ledger backend")
		return
	}

	var (
		res *smartparse.Result
		err error
	)
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		res, err = s.smartParseUpload(r)
	} else {
		var req struct {
			Command string `json:"command"`
		}
		if derr := decodeJSON(r, &req); derr != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+derr.Error())
			return
		}
		res, err = s.smart.Command(r.Context(), req.Command)
	}
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

var errNoUpload = errors.New("multipart body needs an image or audio file")

func (s *Server) smartParseUpload(r *http.Request) (*smartparse.Result, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, errors.Join(domain.ErrParseFailed, err)
	}
	for _, kind := range []string{smartparse.KindImage, smartparse.KindAudio} {
		f, hdr, err := r.FormFile(kind)
		if err != nil {
			continue
		}
		defer f.Close()
		if kind == smartparse.KindImage {
			return s.smart.Image(r.Context(), hdr.Filename, f)
		}
		return s.smart.Audio(r.Context(), hdr.Filename, f)
	}
	return nil, errors.Join(domain.ErrParseFailed, errNoUpload)
}
