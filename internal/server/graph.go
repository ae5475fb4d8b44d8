package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nicozefrench/diveteacher/internal/export"
)

// clearConfirmationCode must accompany a clear request. Typing it is
// the point.
const clearConfirmationCode = "DELETE_ALL_DATA"

// handleGraphStats returns basic node and relationship counts.
func (s *Server) handleGraphStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.graph.Stats(r.Context())
	if err != nil {
		s.logger.Error("graph stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read graph stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// handleGraphDocument returns one upload's subgraph for visualization.
func (s *Server) handleGraphDocument(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	sub, err := s.graph.DocumentSubgraph(r.Context(), uploadID)
	if err != nil {
		s.logger.Error("document subgraph failed", "upload_id", uploadID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read document subgraph")
		return
	}
	respondJSON(w, http.StatusOK, sub)
}

// handleBuildCommunities starts a community detection run in the
// background and returns immediately.
func (s *Server) handleBuildCommunities(w http.ResponseWriter, r *http.Request) {
	go func() {
		result, err := s.graph.BuildCommunities(context.Background())
		if err != nil {
			s.logger.Error("community build failed", "error", err)
			return
		}
		s.logger.Info("community build finished",
			"communities", result.Communities, "entities", result.Entities)
	}()

	respondJSON(w, http.StatusAccepted, map[string]any{"status": "building"})
}

// handleGraphDBStats returns label and relationship type breakdowns.
func (s *Server) handleGraphDBStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.graph.DetailedStats(r.Context())
	if err != nil {
		s.logger.Error("detailed graph stats failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to read graph stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// cypherRequest is the body of /api/graphdb/query.
type cypherRequest struct {
	Query string `json:"query"`
}

// handleGraphDBQuery executes arbitrary Cypher.
func (s *Server) handleGraphDBQuery(w http.ResponseWriter, r *http.Request) {
	var req cypherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusUnprocessableEntity, "query must not be empty")
		return
	}

	result, err := s.graph.Query(r.Context(), req.Query)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// handleGraphDBExport writes an export file and returns its download
// path. Format comes from the ?format query parameter, default json.
func (s *Server) handleGraphDBExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = export.FormatJSON
	}

	info, err := s.exporter.Write(r.Context(), format)
	if err != nil {
		if strings.Contains(err.Error(), "unknown export format") {
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Error("export failed", "format", format, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to export graph")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// handleGraphDBDownload serves a previously written export file.
func (s *Server) handleGraphDBDownload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "file")

	f, err := s.exporter.Open(name)
	if err != nil {
		respondError(w, http.StatusNotFound, "export not found")
		return
	}
	defer f.Close()

	contentType := "application/json"
	if strings.HasSuffix(name, ".cypher") {
		contentType = "text/plain"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	_, _ = io.Copy(w, f)
}

// clearRequest is the body of /api/graphdb/clear.
type clearRequest struct {
	Confirm bool   `json:"confirm"`
	Code    string `json:"code"`
}

// handleGraphDBClear wipes the graph after a backup. Requires both the
// confirm flag and the confirmation code.
func (s *Server) handleGraphDBClear(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if !req.Confirm || req.Code != clearConfirmationCode {
		respondError(w, http.StatusBadRequest,
			"clearing requires confirm=true and the confirmation code")
		return
	}

	backup, err := s.exporter.Backup(r.Context())
	if err != nil {
		s.logger.Error("pre-clear backup failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to back up graph before clearing")
		return
	}

	if err := s.graph.Clear(r.Context()); err != nil {
		s.logger.Error("graph clear failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to clear graph")
		return
	}

	s.logger.Warn("graph cleared by request", "backup", backup.Filename)
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "cleared",
		"backup": backup,
	})
}

// handleGraphDBHealth reports graph database health.
func (s *Server) handleGraphDBHealth(w http.ResponseWriter, r *http.Request) {
	report := s.graph.Health(r.Context())

	code := http.StatusOK
	if report.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	respondJSON(w, code, report)
}
