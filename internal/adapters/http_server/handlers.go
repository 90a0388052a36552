// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"review_harvester/internal/app"
	"review_harvester/internal/domain"
)

var validKey = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]*$`)

type Handlers struct {
	Q *app.QueryService
	// Ext is appended to keys given without it, e.g. /v1/targets/nike.com/reviews.
	Ext string
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/summary", h.getSummary)
	s.mux.Get("/v1/targets/{key}/reviews", h.listReviews)
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeJSON answers 304 when the client already holds this version.
func writeJSON(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "cannot encode response")
		return
	}
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write response body")
	}
}

func (h *Handlers) getSummary(w http.ResponseWriter, r *http.Request) {
	s, err := h.Q.Summary(r.Context())
	switch {
	case errors.Is(err, domain.ErrNotFound) || errors.Is(err, fs.ErrNotExist):
		writeProblem(w, http.StatusNotFound, "Not Found", "no run summary yet")
		return
	case err != nil:
		log.Error().Err(err).Msg("load summary failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "cannot load run summary")
		return
	}
	writeJSON(w, r, s)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	key := strings.ToLower(chi.URLParam(r, "key"))
	if !validKey.MatchString(key) || strings.Contains(key, "..") {
		writeProblem(w, http.StatusBadRequest, "Invalid key", "key must be an output key such as nike.com.jsonl")
		return
	}
	if h.Ext != "" && !strings.HasSuffix(key, h.Ext) {
		key += h.Ext
	}

	limit := app.DefaultListLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		l, err := strconv.Atoi(ls)
		if err != nil || l <= 0 || l > app.MaxListLimit {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
			return
		}
		limit = l
	}

	// newest first
	out, err := h.Q.ListReviews(r.Context(), key, limit)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "no reviews stored for "+key)
		return
	case err != nil:
		log.Error().Err(err).Str("key", key).Msg("list reviews failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "cannot read reviews")
		return
	}
	writeJSON(w, r, out)
}
