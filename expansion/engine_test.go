package expansion

import (
	"context"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/graph"
	"github.com/lawgraph/lawgraph/types"
)

// unitVec builds a 3-dim unit vector whose cosine similarity to (1,0,0) is x.
func unitVec(x float64) []float64 {
	return []float64{x, math.Sqrt(1 - x*x), 0}
}

var queryEmbedding = []float64{1, 0, 0}

const (
	lawID     = "국토의 계획 및 이용에 관한 법률(법률)"
	articleID = lawID + "::제4장::제36조"
	seedID    = articleID + "::1"
	siblingID = articleID + "::2"
)

func newFixture(t *testing.T) *graph.Client {
	t.Helper()
	store := graph.NewMemoryStore(3, zap.NewNop())
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	client := graph.NewClient(store, zap.NewNop())

	nodes := []*graph.Node{
		{ID: articleID, Kind: types.UnitArticle, Title: "용도지역의 지정"},
		{ID: seedID, Kind: types.UnitParagraph,
			Content: "용도지역을 지정한다", Embedding: unitVec(0.92)},
		{ID: siblingID, Kind: types.UnitParagraph,
			Content: "용도지역의 구분", Embedding: unitVec(0.80)},
	}
	edges := []*graph.Edge{
		{Source: articleID, Target: seedID, Type: graph.RelContains, Embedding: unitVec(0.90)},
		{Source: articleID, Target: siblingID, Type: graph.RelContains, Embedding: unitVec(0.78)},
	}
	if err := client.UpsertUnits(context.Background(), nodes, edges); err != nil {
		t.Fatalf("UpsertUnits: %v", err)
	}
	return client
}

func TestExpand_SiblingAdmittedBelowSeedScore(t *testing.T) {
	t.Parallel()

	client := newFixture(t)
	cfg := DefaultConfig()
	cfg.SeedCount = 1 // only the strongest paragraph seeds; the sibling must arrive via expansion
	engine := NewEngine(client, cfg, zap.NewNop())

	results, err := engine.Expand(context.Background(), "용도지역은 어떻게 지정되나요?", queryEmbedding, "", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected seed + sibling, got %d results", len(results))
	}

	if results[0].ID != seedID || !results[0].HasStage(types.StageVectorSeed) {
		t.Fatalf("expected the seed first, got %+v", results[0])
	}
	sibling := results[1]
	if sibling.ID != siblingID {
		t.Fatalf("expected the sibling second, got %s", sibling.ID)
	}
	if !sibling.HasStage(types.StageRelationshipExpansion) {
		t.Errorf("expected relationship_expansion stage, got %v", sibling.Stages)
	}
	if sibling.Score >= results[0].Score {
		t.Errorf("expansion score %f must be strictly below seed score %f",
			sibling.Score, results[0].Score)
	}
}

func TestExpand_BelowThresholdNotAdmitted(t *testing.T) {
	t.Parallel()

	client := newFixture(t)
	cfg := DefaultConfig()
	cfg.SeedCount = 1
	cfg.Threshold = 0.79 // the sibling edge similarity is 0.78
	engine := NewEngine(client, cfg, zap.NewNop())

	results, err := engine.Expand(context.Background(), "용도지역", queryEmbedding, "", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, r := range results {
		if r.ID == siblingID && r.HasStage(types.StageRelationshipExpansion) {
			t.Error("sibling must not be admitted below the threshold")
		}
	}
}

func TestExpand_ExactCitationRanksFirst(t *testing.T) {
	t.Parallel()

	client := newFixture(t)
	engine := NewEngine(client, DefaultConfig(), zap.NewNop())

	// A nearly orthogonal query embedding: exact-reference lookup must not
	// depend on vector similarity.
	results, err := engine.Expand(context.Background(), "36조", []float64{0, 0, 1}, "", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected results")
	}
	if !results[0].HasStage(types.StageExactMatch) {
		t.Fatalf("expected exact_match at rank 1, got %+v", results[0])
	}
	if results[0].Score != 1.0 {
		t.Errorf("expected maximal score for exact match, got %f", results[0].Score)
	}
}

func TestExpand_EachCitationKeepsItsOwnParagraph(t *testing.T) {
	t.Parallel()

	client := newFixture(t)
	otherParaID := lawID + "::제4장::제40조::3"
	err := client.UpsertUnits(context.Background(), []*graph.Node{
		{ID: lawID + "::제4장::제40조", Kind: types.UnitArticle, Title: "용도지역에서의 행위 제한"},
		{ID: otherParaID, Kind: types.UnitParagraph,
			Content: "행위 제한의 예외", Embedding: unitVec(0.1)},
	}, nil)
	if err != nil {
		t.Fatalf("UpsertUnits: %v", err)
	}
	engine := NewEngine(client, DefaultConfig(), zap.NewNop())

	results, err := engine.Expand(context.Background(),
		"제36조 제1항과 제40조 제3항을 비교해줘", []float64{0, 0, 1}, "", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	exact := make(map[string]bool)
	for _, r := range results {
		if r.HasStage(types.StageExactMatch) {
			exact[r.ID] = true
		}
	}
	if !exact[seedID] || !exact[otherParaID] {
		t.Fatalf("expected exact matches for %s and %s, got %v", seedID, otherParaID, exact)
	}
	if exact[siblingID] {
		t.Errorf("제36조 제2항 must not match a 제1항 citation")
	}
}

func TestExpand_ExactMatchOutsideScopedDomainHasNoProvenance(t *testing.T) {
	t.Parallel()

	client := newFixture(t)
	otherParaID := lawID + "::제4장::제40조::3"
	err := client.UpsertUnits(context.Background(), []*graph.Node{
		{ID: otherParaID, Kind: types.UnitParagraph,
			Content: "행위 제한의 예외", Embedding: unitVec(0.1)},
	}, nil)
	if err != nil {
		t.Fatalf("UpsertUnits: %v", err)
	}
	// Only the 제36조 paragraphs belong to the scoped domain.
	err = client.ReplaceDomains(context.Background(), []*graph.Domain{
		{ID: "d-zoning", Name: "용도지역", Centroid: unitVec(1), NodeCount: 2},
	}, map[string]string{seedID: "d-zoning", siblingID: "d-zoning"}, "v1")
	if err != nil {
		t.Fatalf("ReplaceDomains: %v", err)
	}
	engine := NewEngine(client, DefaultConfig(), zap.NewNop())

	results, err := engine.Expand(context.Background(),
		"제40조 제3항의 내용은?", queryEmbedding, "d-zoning", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}

	var sawExact, sawSeed bool
	for _, r := range results {
		switch r.ID {
		case otherParaID:
			sawExact = true
			if !r.HasStage(types.StageExactMatch) {
				t.Errorf("expected exact_match for %s, got %v", r.ID, r.Stages)
			}
			if len(r.SourceDomains) != 0 {
				t.Errorf("a corpus-wide exact hit must not claim the scoped domain, got %v",
					r.SourceDomains)
			}
		case seedID:
			sawSeed = true
			if len(r.SourceDomains) != 1 || r.SourceDomains[0] != "d-zoning" {
				t.Errorf("scoped seed must carry its domain, got %v", r.SourceDomains)
			}
		}
	}
	if !sawExact {
		t.Fatal("expected the cited paragraph despite being outside the scoped domain")
	}
	if !sawSeed {
		t.Fatal("expected the scoped seed in the results")
	}
}

func TestExpand_AbsentCitationIsIgnored(t *testing.T) {
	t.Parallel()

	client := newFixture(t)
	engine := NewEngine(client, DefaultConfig(), zap.NewNop())

	results, err := engine.Expand(context.Background(), "제99조의 내용은?", queryEmbedding, "", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for _, r := range results {
		if r.HasStage(types.StageExactMatch) {
			t.Errorf("no exact match should fire for an absent article, got %s", r.ID)
		}
	}
	if len(results) == 0 {
		t.Error("expected fallback to pure vector search")
	}
}

func TestExpand_EmptyCorpusYieldsEmptyResult(t *testing.T) {
	t.Parallel()

	store := graph.NewMemoryStore(3, zap.NewNop())
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	engine := NewEngine(graph.NewClient(store, zap.NewNop()), DefaultConfig(), zap.NewNop())

	results, err := engine.Expand(context.Background(), "용도지역", queryEmbedding, "", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected empty result, got %d", len(results))
	}
}

func TestExpand_SeedWithoutEmbeddedEdgesStandsAlone(t *testing.T) {
	t.Parallel()

	store := graph.NewMemoryStore(3, zap.NewNop())
	if err := store.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	client := graph.NewClient(store, zap.NewNop())
	err := client.UpsertUnits(context.Background(), []*graph.Node{
		{ID: "건축법::제1조", Kind: types.UnitArticle},
		{ID: "건축법::제1조::1", Kind: types.UnitParagraph,
			Content: "목적", Embedding: unitVec(0.9)},
		{ID: "건축법::제1조::2", Kind: types.UnitParagraph,
			Content: "정의", Embedding: unitVec(0.3)},
	}, []*graph.Edge{
		// No relationship embeddings anywhere: expansion has nothing to admit.
		{Source: "건축법::제1조", Target: "건축법::제1조::1", Type: graph.RelContains},
		{Source: "건축법::제1조", Target: "건축법::제1조::2", Type: graph.RelContains},
	})
	if err != nil {
		t.Fatalf("UpsertUnits: %v", err)
	}

	cfg := DefaultConfig()
	cfg.SeedCount = 1
	engine := NewEngine(client, cfg, zap.NewNop())

	results, err := engine.Expand(context.Background(), "건축법의 목적", queryEmbedding, "", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected the seed only, got %d results", len(results))
	}
	if results[0].ID != "건축법::제1조::1" {
		t.Errorf("unexpected result %s", results[0].ID)
	}
}

func TestExpand_DecayIsMonotonicAcrossHops(t *testing.T) {
	t.Parallel()

	client := newFixture(t)
	cfg := DefaultConfig()
	cfg.SeedCount = 1
	engine := NewEngine(client, cfg, zap.NewNop())

	results, err := engine.Expand(context.Background(), "용도지역", queryEmbedding, "", 10)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	var seedScore float64
	for _, r := range results {
		if r.HasStage(types.StageVectorSeed) && r.Score > seedScore {
			seedScore = r.Score
		}
	}
	for _, r := range results {
		if !r.HasStage(types.StageVectorSeed) && r.HasStage(types.StageRelationshipExpansion) {
			if r.Score >= seedScore {
				t.Errorf("expanded result %s score %f not below seed score %f",
					r.ID, r.Score, seedScore)
			}
		}
	}
}

func TestExpand_ResultLimitApplied(t *testing.T) {
	t.Parallel()

	client := newFixture(t)
	engine := NewEngine(client, DefaultConfig(), zap.NewNop())

	results, err := engine.Expand(context.Background(), "용도지역", queryEmbedding, "", 1)
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}
