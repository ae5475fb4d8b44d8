package graphstore

import (
	"context"
	"fmt"
)

// subgraphLimit caps the document visualization query.
const subgraphLimit = 100

// labelMaxLen truncates long entity names in visualization payloads.
const labelMaxLen = 50

// Stats returns total node and relationship counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{}

	result, err := s.query(ctx, "MATCH (n) RETURN count(n)")
	if err != nil {
		return nil, fmt.Errorf("failed to count nodes; %w", err)
	}
	if result.Next() {
		st.Nodes = getInt(result.Record(), 0)
	}

	result, err = s.query(ctx, "MATCH ()-[r]->() RETURN count(r)")
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships; %w", err)
	}
	if result.Next() {
		st.Relationships = getInt(result.Record(), 0)
	}

	return st, nil
}

// DetailedStats breaks the graph down by node label and relationship
// type.
func (s *Store) DetailedStats(ctx context.Context) (*DetailedStats, error) {
	totals, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	st := &DetailedStats{
		Nodes:         totals.Nodes,
		Relationships: totals.Relationships,
		NodesByLabel:  map[string]int{},
		RelsByType:    map[string]int{},
	}

	result, err := s.query(ctx, "MATCH (n) RETURN labels(n)[0], count(n)")
	if err != nil {
		return nil, fmt.Errorf("failed to count nodes by label; %w", err)
	}
	for result.Next() {
		rec := result.Record()
		if label := getString(rec, 0); label != "" {
			st.NodesByLabel[label] = getInt(rec, 1)
		}
	}

	result, err = s.query(ctx, "MATCH ()-[r]->() RETURN type(r), count(r)")
	if err != nil {
		return nil, fmt.Errorf("failed to count relationships by type; %w", err)
	}
	for result.Next() {
		rec := result.Record()
		if typ := getString(rec, 0); typ != "" {
			st.RelsByType[typ] = getInt(rec, 1)
		}
	}

	return st, nil
}

// DocumentSubgraph returns the entities and relations of one upload as
// a nodes-and-links payload for the frontend graph view.
func (s *Store) DocumentSubgraph(ctx context.Context, uploadID string) (*Subgraph, error) {
	query := fmt.Sprintf(`
		MATCH (a:Entity)-[r:RELATES_TO {upload_id: '%s'}]->(b:Entity)
		RETURN a.name, a.type, b.name, b.type, type(r)
		LIMIT %d
	`, escapeString(uploadID), subgraphLimit)

	result, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load document subgraph; %w", err)
	}

	sub := &Subgraph{Nodes: []GraphNode{}, Links: []GraphLink{}}
	seen := make(map[string]bool)

	addNode := func(name, typ string) {
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		sub.Nodes = append(sub.Nodes, GraphNode{
			ID:    name,
			Label: truncateLabel(name),
			Type:  typ,
		})
	}

	for result.Next() {
		rec := result.Record()
		src, srcType := getString(rec, 0), getString(rec, 1)
		dst, dstType := getString(rec, 2), getString(rec, 3)
		relType := getString(rec, 4)

		addNode(src, srcType)
		addNode(dst, dstType)
		if src != "" && dst != "" {
			sub.Links = append(sub.Links, GraphLink{Source: src, Target: dst, Type: relType})
		}
	}

	return sub, nil
}

func truncateLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= labelMaxLen {
		return s
	}
	return string(runes[:labelMaxLen-3]) + "..."
}
