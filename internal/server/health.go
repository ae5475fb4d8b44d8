package server

import (
	"context"
	"net/http"
	"time"

	"github.com/nicozefrench/diveteacher/internal/graphstore"
	"github.com/nicozefrench/diveteacher/internal/version"
)

// healthCheckTimeout bounds each component probe.
const healthCheckTimeout = 5 * time.Second

// handleHealth aggregates component health into one response. The
// service is healthy when every checked component is, degraded when
// any is not. The reranker is optional, so its state never makes the
// service unhealthy.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	components := map[string]string{}
	overall := "healthy"

	if s.graph != nil {
		report := s.graph.Health(ctx)
		components["graph"] = report.Status
		if report.Status == graphstore.HealthUnhealthy {
			overall = "degraded"
		}
	}

	if s.converterHealth != nil {
		if err := s.converterHealth(ctx); err != nil {
			components["converter"] = "unhealthy"
			overall = "degraded"
		} else {
			components["converter"] = "healthy"
		}
	}

	if s.rerankerHealth != nil {
		if s.rerankerHealth(ctx) {
			components["reranker"] = "healthy"
		} else {
			components["reranker"] = "unhealthy"
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"status":     overall,
		"version":    version.Version,
		"components": components,
	})
}
