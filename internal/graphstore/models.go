// Package graphstore persists the knowledge graph in FalkorDB and
// implements episode ingestion, hybrid retrieval, and graph management.
package graphstore

import "time"

// EpisodeInput is one chunk of contextualized text to ingest.
type EpisodeInput struct {
	UploadID   string
	Filename   string
	ChunkIndex int
	GroupID    string
	Content    string
	ValidAt    time.Time
}

// Entity is an extracted named entity.
type Entity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Relation is an extracted relationship between two entities.
type Relation struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Fact   string `json:"fact"`
}

// Extraction is the result of entity and relation extraction over one
// episode's text.
type Extraction struct {
	Entities  []Entity   `json:"entities"`
	Relations []Relation `json:"relations"`

	// TokensUsed is the provider-reported input token count. Zero when
	// the provider does not report usage.
	TokensUsed int `json:"-"`
}

// IngestResult summarizes one ingested episode.
type IngestResult struct {
	EpisodeUUID string
	Entities    int
	Relations   int

	// TokensUsed is the extraction token usage for rate accounting.
	TokensUsed int
}

// Fact is one retrieved relationship with provenance, as consumed by
// retrieval and reranking.
type Fact struct {
	UUID         string    `json:"uuid"`
	Fact         string    `json:"fact"`
	SourceEntity string    `json:"source_entity"`
	TargetEntity string    `json:"target_entity"`
	UploadID     string    `json:"upload_id,omitempty"`
	Filename     string    `json:"filename,omitempty"`
	ValidAt      time.Time `json:"valid_at"`

	// Score is the retrieval score (RRF fusion, then reranker).
	Score float64 `json:"score"`

	embedding []float32
}

// Stats is the basic graph size summary.
type Stats struct {
	Nodes         int `json:"nodes"`
	Relationships int `json:"relationships"`
}

// DetailedStats breaks the graph down by label and relationship type.
type DetailedStats struct {
	Nodes         int            `json:"total_nodes"`
	Relationships int            `json:"total_relationships"`
	NodesByLabel  map[string]int `json:"nodes_by_label"`
	RelsByType    map[string]int `json:"relationships_by_type"`
}

// QueryStats reports write effects of a Cypher query.
type QueryStats struct {
	NodesCreated     int     `json:"nodes_created"`
	NodesDeleted     int     `json:"nodes_deleted"`
	RelationsCreated int     `json:"relationships_created"`
	RelationsDeleted int     `json:"relationships_deleted"`
	PropertiesSet    int     `json:"properties_set"`
	ExecutionTimeMs  float64 `json:"execution_time_ms"`
}

// QueryResult is a generic Cypher query result.
type QueryResult struct {
	Columns []string   `json:"columns"`
	Rows    [][]any    `json:"rows"`
	Stats   QueryStats `json:"stats"`
}

// GraphNode is a node formatted for the visualization API.
type GraphNode struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Type  string `json:"type"`
}

// GraphLink is an edge formatted for the visualization API.
type GraphLink struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Subgraph is a document-scoped view for visualization.
type Subgraph struct {
	Nodes []GraphNode `json:"nodes"`
	Links []GraphLink `json:"links"`
}
