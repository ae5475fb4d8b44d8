package graphstore

import (
	"context"
	"fmt"
	"sort"
)

// communityIterations bounds label propagation. Entity graphs from a
// manual corpus converge in a handful of passes.
const communityIterations = 10

// CommunityResult summarizes a community detection run.
type CommunityResult struct {
	Communities int `json:"communities"`
	Entities    int `json:"entities_labeled"`
}

// BuildCommunities assigns a community id to every entity using label
// propagation over the RELATES_TO edges, then writes the assignment
// back onto the nodes as a `community` property.
func (s *Store) BuildCommunities(ctx context.Context) (*CommunityResult, error) {
	result, err := s.query(ctx, `
		MATCH (a:Entity)-[:RELATES_TO]->(b:Entity)
		RETURN a.normalized_name, b.normalized_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load entity edges; %w", err)
	}

	adjacency := make(map[string][]string)
	for result.Next() {
		rec := result.Record()
		a, b := getString(rec, 0), getString(rec, 1)
		if a == "" || b == "" {
			continue
		}
		adjacency[a] = append(adjacency[a], b)
		adjacency[b] = append(adjacency[b], a)
	}

	if len(adjacency) == 0 {
		return &CommunityResult{}, nil
	}

	labels := propagateLabels(adjacency)

	// Renumber labels densely so community ids are stable and small.
	ids := make(map[string]int)
	for _, name := range sortedKeys(labels) {
		label := labels[name]
		if _, ok := ids[label]; !ok {
			ids[label] = len(ids)
		}
	}

	for name, label := range labels {
		update := fmt.Sprintf(
			"MATCH (e:Entity {normalized_name: '%s'}) SET e.community = %d",
			escapeString(name), ids[label])
		if _, err := s.query(ctx, update); err != nil {
			return nil, fmt.Errorf("failed to label entity %q; %w", name, err)
		}
	}

	s.logger.Info("communities built",
		"communities", len(ids),
		"entities", len(labels))

	return &CommunityResult{Communities: len(ids), Entities: len(labels)}, nil
}

// propagateLabels runs synchronous label propagation: each node adopts
// the most common label among its neighbors until stable. Ties break
// toward the lexically smallest label so runs are deterministic.
func propagateLabels(adjacency map[string][]string) map[string]string {
	labels := make(map[string]string, len(adjacency))
	nodes := sortedKeys(adjacency)
	for _, n := range nodes {
		labels[n] = n
	}

	for i := 0; i < communityIterations; i++ {
		changed := false
		for _, n := range nodes {
			counts := make(map[string]int)
			for _, neighbor := range adjacency[n] {
				counts[labels[neighbor]]++
			}

			best, bestCount := labels[n], 0
			for _, label := range sortedKeys(counts) {
				if counts[label] > bestCount {
					best, bestCount = label, counts[label]
				}
			}

			if best != labels[n] {
				labels[n] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	return labels
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
