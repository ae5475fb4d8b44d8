package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleStatusGet returns one processing status or 404.
func (s *Server) handleStatusGet(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	st, ok := s.registry.Get(uploadID)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown upload id")
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// handleStatusAll returns every tracked status.
func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"statuses": s.registry.All(),
	})
}

// handleStatusDelete removes a status entry.
func (s *Server) handleStatusDelete(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	if !s.registry.Delete(uploadID) {
		respondError(w, http.StatusNotFound, "unknown upload id")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"deleted": uploadID})
}

// handleLogs returns the synthesized stage log lines for an upload.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	lines, ok := s.registry.Logs(uploadID)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown upload id")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"upload_id": uploadID,
		"logs":      lines,
	})
}

// handleQueue returns the queue snapshot plus rate limiter stats.
func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"queue": s.queue.Status(),
	}
	if s.limiter != nil {
		body["rate_limit"] = s.limiter.Stats()
	}
	respondJSON(w, http.StatusOK, body)
}
