package graphstore

import "context"

// Health states for the graph database.
const (
	HealthHealthy   = "healthy"
	HealthDegraded  = "degraded"
	HealthUnhealthy = "unhealthy"
)

// HealthReport describes graph database health.
type HealthReport struct {
	Status  string   `json:"status"`
	Indexes []string `json:"indexes,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Health checks connectivity and index presence. Reachable with
// missing indexes reports degraded.
func (s *Store) Health(ctx context.Context) *HealthReport {
	if err := s.Ping(ctx); err != nil {
		return &HealthReport{Status: HealthUnhealthy, Error: err.Error()}
	}

	indexes, err := s.IndexNames(ctx)
	if err != nil || len(indexes) < len(ragIndexes) {
		report := &HealthReport{Status: HealthDegraded, Indexes: indexes}
		if err != nil {
			report.Error = err.Error()
		}
		return report
	}

	return &HealthReport{Status: HealthHealthy, Indexes: indexes}
}
