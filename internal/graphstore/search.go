package graphstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// rrfK is the rank-fusion constant. Standard value from the RRF
// literature; higher values flatten the contribution of top ranks.
const rrfK = 60

// candidateMultiplier widens each retrieval leg beyond the requested
// limit so fusion has something to fuse.
const candidateMultiplier = 4

// SearchFacts runs hybrid retrieval: full-text episode matching and
// embedding similarity over stored facts, fused with reciprocal rank
// fusion. Returns up to limit facts, best first.
func (s *Store) SearchFacts(ctx context.Context, question string, limit int, groupIDs []string) ([]Fact, error) {
	if limit < 1 {
		limit = 1
	}
	wide := limit * candidateMultiplier

	episodes, err := s.lexicalEpisodes(ctx, question, wide, groupIDs)
	if err != nil {
		s.logger.Warn("full-text episode search failed", "error", err)
	}

	byUUID := make(map[string]*Fact)
	var lexicalOrder []string

	if len(episodes) > 0 {
		facts, err := s.factsForEpisodes(ctx, episodes, groupIDs)
		if err != nil {
			return nil, err
		}
		for i := range facts {
			f := facts[i]
			if _, seen := byUUID[f.UUID]; !seen {
				byUUID[f.UUID] = &f
				lexicalOrder = append(lexicalOrder, f.UUID)
			}
		}
	}

	entityFacts, err := s.entityFacts(ctx, question, wide, groupIDs)
	if err != nil {
		s.logger.Warn("entity name search failed", "error", err)
	}
	for i := range entityFacts {
		f := entityFacts[i]
		if _, seen := byUUID[f.UUID]; !seen {
			byUUID[f.UUID] = &f
			lexicalOrder = append(lexicalOrder, f.UUID)
		}
	}

	if len(byUUID) == 0 {
		return []Fact{}, nil
	}

	// Vector leg: rank every candidate by similarity to the question.
	var vectorOrder []string
	if s.embedder != nil {
		if vecs, err := s.embedder.Embed(ctx, []string{question}); err == nil && len(vecs) == 1 {
			vectorOrder = rankByCosine(byUUID, vecs[0])
		} else if err != nil {
			s.logger.Warn("failed to embed question, lexical ranks only", "error", err)
		}
	}

	scores := fuseRRF(lexicalOrder, vectorOrder)

	out := make([]Fact, 0, len(byUUID))
	for id, f := range byUUID {
		f.Score = scores[id]
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UUID < out[j].UUID
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// lexicalEpisodes returns episode uuids matching the question via the
// full-text index, best first.
func (s *Store) lexicalEpisodes(ctx context.Context, question string, limit int, groupIDs []string) ([]string, error) {
	ft := fulltextQuery(question)
	if ft == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`
		CALL db.idx.fulltext.queryNodes('Episode', '%s') YIELD node, score
		%s
		RETURN node.uuid
		ORDER BY score DESC
		LIMIT %d
	`, escapeString(ft), groupFilter("node", groupIDs), limit)

	result, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}

	var uuids []string
	for result.Next() {
		if id := getString(result.Record(), 0); id != "" {
			uuids = append(uuids, id)
		}
	}
	return uuids, nil
}

// factsForEpisodes loads the facts created by the given episodes,
// preserving episode order.
func (s *Store) factsForEpisodes(ctx context.Context, episodeUUIDs []string, groupIDs []string) ([]Fact, error) {
	quoted := make([]string, len(episodeUUIDs))
	for i, id := range episodeUUIDs {
		quoted[i] = "'" + escapeString(id) + "'"
	}

	filter := groupFilter("r", groupIDs)
	where := fmt.Sprintf("WHERE r.episode_uuid IN [%s]", strings.Join(quoted, ","))
	if filter != "" {
		where += " AND " + strings.TrimPrefix(filter, "WHERE ")
	}

	query := fmt.Sprintf(`
		MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
		%s
		RETURN r.uuid, r.fact, a.name, b.name, r.upload_id, r.filename, r.valid_at, r.embedding, r.episode_uuid
	`, where)

	result, err := s.query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load episode facts; %w", err)
	}

	order := make(map[string]int, len(episodeUUIDs))
	for i, id := range episodeUUIDs {
		order[id] = i
	}

	type episodeFact struct {
		fact    Fact
		episode string
	}

	var scanned []episodeFact
	for result.Next() {
		rec := result.Record()
		scanned = append(scanned, episodeFact{
			fact: Fact{
				UUID:         getString(rec, 0),
				Fact:         getString(rec, 1),
				SourceEntity: getString(rec, 2),
				TargetEntity: getString(rec, 3),
				UploadID:     getString(rec, 4),
				Filename:     getString(rec, 5),
				ValidAt:      time.Unix(int64(getInt(rec, 6)), 0),
				embedding:    getFloatSlice(rec, 7),
			},
			episode: getString(rec, 8),
		})
	}

	// Order facts by their episode's lexical rank.
	sort.SliceStable(scanned, func(i, j int) bool {
		return order[scanned[i].episode] < order[scanned[j].episode]
	})

	facts := make([]Fact, len(scanned))
	for i, ef := range scanned {
		facts[i] = ef.fact
	}
	return facts, nil
}

// entityFacts finds facts whose endpoint entity names contain a term
// from the question.
func (s *Store) entityFacts(ctx context.Context, question string, limit int, groupIDs []string) ([]Fact, error) {
	terms := strings.Fields(normalizeName(question))
	var conds []string
	for _, t := range terms {
		if len(t) < 4 {
			continue
		}
		e := escapeString(t)
		conds = append(conds, fmt.Sprintf("a.normalized_name CONTAINS '%s' OR b.normalized_name CONTAINS '%s'", e, e))
	}
	if len(conds) == 0 {
		return nil, nil
	}

	where := "WHERE (" + strings.Join(conds, " OR ") + ")"
	if filter := groupFilter("r", groupIDs); filter != "" {
		where += " AND " + strings.TrimPrefix(filter, "WHERE ")
	}

	query := fmt.Sprintf(`
		MATCH (a:Entity)-[r:RELATES_TO]->(b:Entity)
		%s
		RETURN r.uuid, r.fact, a.name, b.name, r.upload_id, r.filename, r.valid_at, r.embedding
		LIMIT %d
	`, where, limit)

	result, err := s.query(ctx, query)
	if err != nil {
		return nil, err
	}

	var facts []Fact
	for result.Next() {
		rec := result.Record()
		facts = append(facts, Fact{
			UUID:         getString(rec, 0),
			Fact:         getString(rec, 1),
			SourceEntity: getString(rec, 2),
			TargetEntity: getString(rec, 3),
			UploadID:     getString(rec, 4),
			Filename:     getString(rec, 5),
			ValidAt:      time.Unix(int64(getInt(rec, 6)), 0),
			embedding:    getFloatSlice(rec, 7),
		})
	}
	return facts, nil
}

// groupFilter builds a WHERE clause restricting to the given group ids.
// Empty input means no filtering (single-tenant default).
func groupFilter(varName string, groupIDs []string) string {
	if len(groupIDs) == 0 {
		return ""
	}
	quoted := make([]string, len(groupIDs))
	for i, g := range groupIDs {
		quoted[i] = "'" + escapeString(g) + "'"
	}
	return fmt.Sprintf("WHERE %s.group_id IN [%s]", varName, strings.Join(quoted, ","))
}

// rankByCosine orders candidate fact uuids by embedding similarity to
// the query vector, most similar first. Facts without embeddings are
// excluded from the vector ranking.
func rankByCosine(facts map[string]*Fact, queryVec []float32) []string {
	type scored struct {
		uuid string
		sim  float64
	}

	var ranked []scored
	for id, f := range facts {
		if len(f.embedding) == 0 {
			continue
		}
		ranked = append(ranked, scored{uuid: id, sim: cosine(queryVec, f.embedding)})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		return ranked[i].uuid < ranked[j].uuid
	})

	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.uuid
	}
	return out
}

// fuseRRF merges ranked uuid lists with reciprocal rank fusion.
func fuseRRF(lists ...[]string) map[string]float64 {
	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, id := range list {
			scores[id] += 1.0 / float64(rrfK+rank+1)
		}
	}
	return scores
}
