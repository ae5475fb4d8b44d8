package graphstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nicozefrench/diveteacher/internal/chunker"
)

// AddEpisode ingests one chunk: extracts entities and relations,
// embeds the facts, and writes episode, entity, and relation records.
func (s *Store) AddEpisode(ctx context.Context, in EpisodeInput) (*IngestResult, error) {
	if s.extractor == nil {
		return nil, fmt.Errorf("no extractor configured")
	}

	extraction, err := s.extractor.Extract(ctx, in.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to extract episode knowledge; %w", err)
	}

	tokensUsed := extraction.TokensUsed
	if tokensUsed == 0 {
		// Provider reported no usage; approximate from the input.
		tokensUsed = chunker.CountTokens(in.Content)
	}

	// Embed every fact in one batch.
	var embeddings [][]float32
	if s.embedder != nil && len(extraction.Relations) > 0 {
		texts := make([]string, len(extraction.Relations))
		for i, r := range extraction.Relations {
			texts[i] = r.Fact
		}
		embeddings, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			// Facts without embeddings still serve full-text retrieval.
			s.logger.Warn("failed to embed facts, storing without vectors",
				"upload_id", in.UploadID, "error", err)
			embeddings = nil
		}
	}

	episodeUUID := uuid.NewString()
	validAt := in.ValidAt
	if validAt.IsZero() {
		validAt = time.Now()
	}

	episodeQuery := fmt.Sprintf(`
		CREATE (ep:Episode {
			uuid: '%s',
			content: '%s',
			upload_id: '%s',
			filename: '%s',
			chunk_index: %d,
			group_id: '%s',
			valid_at: %d
		})
	`, episodeUUID,
		escapeString(in.Content),
		escapeString(in.UploadID),
		escapeString(in.Filename),
		in.ChunkIndex,
		escapeString(in.GroupID),
		validAt.Unix())

	if _, err := s.query(ctx, episodeQuery); err != nil {
		return nil, fmt.Errorf("failed to create episode; %w", err)
	}

	for _, e := range extraction.Entities {
		entityQuery := fmt.Sprintf(`
			MERGE (n:Entity {normalized_name: '%s'})
			ON CREATE SET n.name = '%s', n.type = '%s', n.created_at = %d
			SET n.updated_at = %d
			WITH n
			MATCH (ep:Episode {uuid: '%s'})
			MERGE (ep)-[:MENTIONS]->(n)
		`, escapeString(normalizeName(e.Name)),
			escapeString(e.Name),
			escapeString(e.Type),
			time.Now().Unix(),
			time.Now().Unix(),
			episodeUUID)

		if _, err := s.query(ctx, entityQuery); err != nil {
			return nil, fmt.Errorf("failed to merge entity %q; %w", e.Name, err)
		}
	}

	for i, r := range extraction.Relations {
		vector := "[]"
		if embeddings != nil && i < len(embeddings) {
			vector = vectorLiteral(embeddings[i])
		}

		relationQuery := fmt.Sprintf(`
			MATCH (a:Entity {normalized_name: '%s'})
			MATCH (b:Entity {normalized_name: '%s'})
			CREATE (a)-[:RELATES_TO {
				uuid: '%s',
				fact: '%s',
				episode_uuid: '%s',
				upload_id: '%s',
				filename: '%s',
				group_id: '%s',
				valid_at: %d,
				embedding: %s
			}]->(b)
		`, escapeString(normalizeName(r.Source)),
			escapeString(normalizeName(r.Target)),
			uuid.NewString(),
			escapeString(r.Fact),
			episodeUUID,
			escapeString(in.UploadID),
			escapeString(in.Filename),
			escapeString(in.GroupID),
			validAt.Unix(),
			vector)

		if _, err := s.query(ctx, relationQuery); err != nil {
			return nil, fmt.Errorf("failed to create relation; %w", err)
		}
	}

	s.logger.Debug("episode ingested",
		"upload_id", in.UploadID,
		"chunk_index", in.ChunkIndex,
		"entities", len(extraction.Entities),
		"relations", len(extraction.Relations))

	return &IngestResult{
		EpisodeUUID: episodeUUID,
		Entities:    len(extraction.Entities),
		Relations:   len(extraction.Relations),
		TokensUsed:  tokensUsed,
	}, nil
}

// CountsForUpload returns distinct entity and relationship counts for
// one upload, read back after ingestion finishes.
func (s *Store) CountsForUpload(ctx context.Context, uploadID string) (entities, relationships int, err error) {
	entityQuery := fmt.Sprintf(`
		MATCH (ep:Episode {upload_id: '%s'})-[:MENTIONS]->(e:Entity)
		RETURN count(DISTINCT e)
	`, escapeString(uploadID))

	result, err := s.query(ctx, entityQuery)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count entities; %w", err)
	}
	if result.Next() {
		entities = getInt(result.Record(), 0)
	}

	relQuery := fmt.Sprintf(`
		MATCH ()-[r:RELATES_TO {upload_id: '%s'}]->()
		RETURN count(r)
	`, escapeString(uploadID))

	result, err = s.query(ctx, relQuery)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count relationships; %w", err)
	}
	if result.Next() {
		relationships = getInt(result.Record(), 0)
	}

	return entities, relationships, nil
}
