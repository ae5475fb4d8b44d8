package graphstore

import (
	"context"
	"strings"
)

// ragIndexes are the retrieval-critical indexes: full-text over episode
// content, entity name lookup, and episode date filtering. All are
// idempotent; "already indexed" responses count as success.
var ragIndexes = []struct {
	Name  string
	Query string
}{
	{"episode_content", "CALL db.idx.fulltext.createNodeIndex('Episode', 'content')"},
	{"entity_name_idx", "CREATE INDEX FOR (e:Entity) ON (e.normalized_name)"},
	{"episode_date_idx", "CREATE INDEX FOR (e:Episode) ON (e.valid_at)"},
	{"episode_upload_idx", "CREATE INDEX FOR (e:Episode) ON (e.upload_id)"},
}

// EnsureIndexes creates the retrieval indexes. Safe to call repeatedly.
// Returns the names of indexes that exist after the call.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.ensureIndexes(ctx)
	return err
}

// IndexNames returns the names of indexes that exist after ensuring.
func (s *Store) IndexNames(ctx context.Context) ([]string, error) {
	return s.ensureIndexes(ctx)
}

func (s *Store) ensureIndexes(ctx context.Context) ([]string, error) {
	var created []string
	for _, idx := range ragIndexes {
		if _, err := s.query(ctx, idx.Query); err != nil {
			if !indexExistsError(err) {
				s.logger.Error("failed to create index", "index", idx.Name, "error", err)
				continue
			}
		}
		created = append(created, idx.Name)
	}
	return created, nil
}

// ensureIndexesLocked runs index creation while the caller already
// holds the store mutex (Start).
func (s *Store) ensureIndexesLocked() error {
	for _, idx := range ragIndexes {
		if _, err := s.graph.Query(idx.Query); err != nil && !indexExistsError(err) {
			s.logger.Debug("index creation", "index", idx.Name, "error", err)
		}
	}
	return nil
}

// indexExistsError reports whether an index creation error just means
// the index is already there.
func indexExistsError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already indexed") ||
		strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "equivalent")
}
