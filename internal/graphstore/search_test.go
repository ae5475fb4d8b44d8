package graphstore

import (
	"strings"
	"testing"
)

func TestFuseRRF(t *testing.T) {
	lexical := []string{"a", "b", "c"}
	vector := []string{"c", "a"}

	scores := fuseRRF(lexical, vector)

	// "a" appears at rank 1 lexically and rank 2 by vector; "c" at
	// rank 3 and rank 1. Both beat "b", which appears once.
	if scores["a"] <= scores["b"] {
		t.Errorf("a (%v) should outrank b (%v)", scores["a"], scores["b"])
	}
	if scores["c"] <= scores["b"] {
		t.Errorf("c (%v) should outrank b (%v)", scores["c"], scores["b"])
	}

	wantA := 1.0/61 + 1.0/62
	if diff := scores["a"] - wantA; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("score[a] = %v, want %v", scores["a"], wantA)
	}
}

func TestFuseRRFEmptyLists(t *testing.T) {
	scores := fuseRRF(nil, []string{})
	if len(scores) != 0 {
		t.Errorf("expected no scores, got %v", scores)
	}
}

func TestRankByCosine(t *testing.T) {
	facts := map[string]*Fact{
		"near":     {UUID: "near", embedding: []float32{1, 0.1}},
		"far":      {UUID: "far", embedding: []float32{0, 1}},
		"exact":    {UUID: "exact", embedding: []float32{1, 0}},
		"novector": {UUID: "novector"},
	}

	order := rankByCosine(facts, []float32{1, 0})

	if len(order) != 3 {
		t.Fatalf("ranked %d facts, want 3 (no-vector excluded)", len(order))
	}
	if order[0] != "exact" || order[1] != "near" || order[2] != "far" {
		t.Errorf("order = %v, want [exact near far]", order)
	}
}

func TestGroupFilter(t *testing.T) {
	if got := groupFilter("r", nil); got != "" {
		t.Errorf("empty groups = %q, want empty", got)
	}

	got := groupFilter("r", []string{"class-a", "class-b"})
	if !strings.Contains(got, "r.group_id IN ['class-a','class-b']") {
		t.Errorf("unexpected filter: %q", got)
	}
}

func TestPropagateLabels(t *testing.T) {
	// Two clusters joined internally, disconnected from each other.
	adjacency := map[string][]string{
		"mask":    {"snorkel", "fins"},
		"snorkel": {"mask", "fins"},
		"fins":    {"mask", "snorkel"},
		"nitrox":  {"mod"},
		"mod":     {"nitrox"},
	}

	labels := propagateLabels(adjacency)

	if labels["mask"] != labels["snorkel"] || labels["mask"] != labels["fins"] {
		t.Errorf("gear cluster split: %v", labels)
	}
	if labels["nitrox"] != labels["mod"] {
		t.Errorf("gas cluster split: %v", labels)
	}
	if labels["mask"] == labels["nitrox"] {
		t.Errorf("disconnected clusters merged: %v", labels)
	}
}

func TestTruncateLabel(t *testing.T) {
	short := "Safety Stop"
	if got := truncateLabel(short); got != short {
		t.Errorf("short label changed: %q", got)
	}

	long := strings.Repeat("x", 80)
	got := truncateLabel(long)
	if len([]rune(got)) != labelMaxLen {
		t.Errorf("truncated length = %d, want %d", len([]rune(got)), labelMaxLen)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("missing ellipsis: %q", got)
	}
}
