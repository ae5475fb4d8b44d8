package graphstore

import (
	"context"
	"fmt"
	"time"
)

// ExportCap bounds each section of an export so a runaway graph cannot
// produce multi-gigabyte files.
const ExportCap = 10000

// EpisodeRecord is one exported episode node.
type EpisodeRecord struct {
	UUID       string    `json:"uuid"`
	Filename   string    `json:"filename"`
	UploadID   string    `json:"upload_id"`
	ChunkIndex int       `json:"chunk_index"`
	GroupID    string    `json:"group_id,omitempty"`
	ValidAt    time.Time `json:"valid_at"`
	Content    string    `json:"content"`
}

// EntityRecord is one exported entity node.
type EntityRecord struct {
	Name           string `json:"name"`
	NormalizedName string `json:"normalized_name"`
	Type           string `json:"type"`
}

// RelationRecord is one exported fact edge.
type RelationRecord struct {
	Source   string    `json:"source"`
	Target   string    `json:"target"`
	UUID     string    `json:"uuid"`
	Fact     string    `json:"fact"`
	UploadID string    `json:"upload_id"`
	Filename string    `json:"filename"`
	ValidAt  time.Time `json:"valid_at"`
}

// MentionRecord is one exported episode-to-entity edge.
type MentionRecord struct {
	EpisodeUUID string `json:"episode_uuid"`
	Entity      string `json:"entity"`
}

// Dump is a bounded snapshot of the graph for export and backup.
type Dump struct {
	Episodes  []EpisodeRecord  `json:"episodes"`
	Entities  []EntityRecord   `json:"entities"`
	Relations []RelationRecord `json:"relationships"`
	Mentions  []MentionRecord  `json:"mentions"`

	// Truncated is set when any section hit the export cap.
	Truncated bool `json:"truncated,omitempty"`
}

// DumpGraph reads a capped snapshot of every node and relationship.
func (s *Store) DumpGraph(ctx context.Context) (*Dump, error) {
	dump := &Dump{
		Episodes:  []EpisodeRecord{},
		Entities:  []EntityRecord{},
		Relations: []RelationRecord{},
		Mentions:  []MentionRecord{},
	}

	result, err := s.query(ctx, fmt.Sprintf(`
		MATCH (ep:Episode)
		RETURN ep.uuid, ep.filename, ep.upload_id, ep.chunk_index, ep.group_id, ep.valid_at, ep.content
		LIMIT %d
	`, ExportCap))
	if err != nil {
		return nil, fmt.Errorf("failed to export episodes; %w", err)
	}
	for result.Next() {
		rec := result.Record()
		dump.Episodes = append(dump.Episodes, EpisodeRecord{
			UUID:       getString(rec, 0),
			Filename:   getString(rec, 1),
			UploadID:   getString(rec, 2),
			ChunkIndex: getInt(rec, 3),
			GroupID:    getString(rec, 4),
			ValidAt:    time.Unix(int64(getInt(rec, 5)), 0).UTC(),
			Content:    getString(rec, 6),
		})
	}

	result, err = s.query(ctx, fmt.Sprintf(`
		MATCH (e:Entity)
		RETURN e.name, e.normalized_name, e.type
		LIMIT %d
	`, ExportCap))
	if err != nil {
		return nil, fmt.Errorf("failed to export entities; %w", err)
	}
	for result.Next() {
		rec := result.Record()
		dump.Entities = append(dump.Entities, EntityRecord{
			Name:           getString(rec, 0),
			NormalizedName: getString(rec, 1),
			Type:           getString(rec, 2),
		})
	}

	result, err = s.query(ctx, fmt.Sprintf(`
		MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
		RETURN a.normalized_name, b.normalized_name, r.uuid, r.fact, r.upload_id, r.filename, r.valid_at
		LIMIT %d
	`, ExportCap))
	if err != nil {
		return nil, fmt.Errorf("failed to export relationships; %w", err)
	}
	for result.Next() {
		rec := result.Record()
		dump.Relations = append(dump.Relations, RelationRecord{
			Source:   getString(rec, 0),
			Target:   getString(rec, 1),
			UUID:     getString(rec, 2),
			Fact:     getString(rec, 3),
			UploadID: getString(rec, 4),
			Filename: getString(rec, 5),
			ValidAt:  time.Unix(int64(getInt(rec, 6)), 0).UTC(),
		})
	}

	result, err = s.query(ctx, fmt.Sprintf(`
		MATCH (ep:Episode)-[:MENTIONS]->(e:Entity)
		RETURN ep.uuid, e.normalized_name
		LIMIT %d
	`, ExportCap))
	if err != nil {
		return nil, fmt.Errorf("failed to export mentions; %w", err)
	}
	for result.Next() {
		rec := result.Record()
		dump.Mentions = append(dump.Mentions, MentionRecord{
			EpisodeUUID: getString(rec, 0),
			Entity:      getString(rec, 1),
		})
	}

	dump.Truncated = len(dump.Episodes) == ExportCap ||
		len(dump.Entities) == ExportCap ||
		len(dump.Relations) == ExportCap ||
		len(dump.Mentions) == ExportCap

	return dump, nil
}
