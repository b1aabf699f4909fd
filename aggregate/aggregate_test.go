package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/types"
)

func statuteResult(article string, score float64) *types.Result {
	return &types.Result{
		ID:      "국토의 계획 및 이용에 관한 법률::" + article + "::1",
		Content: article + " 내용",
		Score:   score,
		Stages:  []types.Stage{types.StageVectorSeed},
	}
}

func decreeResult(article string, score float64) *types.Result {
	return &types.Result{
		ID:      "국토의 계획 및 이용에 관한 법률 시행령::" + article + "::1",
		Content: article + " 시행령 내용",
		Score:   score,
		Stages:  []types.Stage{types.StageRelationshipExpansion},
	}
}

func TestMerge_DeduplicatesAcrossDomains(t *testing.T) {
	t.Parallel()

	shared := statuteResult("제36조", 0.9)
	shared.SourceDomains = []string{"d-1"}
	duplicate := statuteResult("제36조", 0.7)
	duplicate.SourceDomains = []string{"d-2"}
	duplicate.Stages = []types.Stage{types.StageRelationshipExpansion}

	merged := Merge([][]*types.Result{
		{shared, statuteResult("제37조", 0.5)},
		{duplicate},
	})
	require.Len(t, merged, 2)

	top := merged[0]
	assert.Equal(t, shared.ID, top.ID)
	assert.Equal(t, 0.9, top.Score, "duplicate must keep the highest score")
	assert.ElementsMatch(t, []string{"d-1", "d-2"}, top.SourceDomains)
	assert.True(t, top.HasStage(types.StageVectorSeed))
	assert.True(t, top.HasStage(types.StageRelationshipExpansion))
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	groups := [][]*types.Result{
		{statuteResult("제36조", 0.9), decreeResult("제45조", 0.8)},
		{statuteResult("제36조", 0.6)},
	}
	once := Merge(groups)
	twice := Merge([][]*types.Result{once})

	require.Equal(t, len(once), len(twice))
	for i := range once {
		assert.Equal(t, once[i].ID, twice[i].ID)
		assert.Equal(t, once[i].Score, twice[i].Score)
		assert.ElementsMatch(t, once[i].Stages, twice[i].Stages)
	}
}

func TestMerge_ExactMatchRanksFirst(t *testing.T) {
	t.Parallel()

	exact := statuteResult("제36조", 1.0)
	exact.Stages = []types.Stage{types.StageExactMatch}
	merged := Merge([][]*types.Result{
		{statuteResult("제2조", 0.95), exact},
	})
	require.Len(t, merged, 2)
	assert.True(t, merged[0].HasStage(types.StageExactMatch))
}

func TestEnrich_PopulatesCitationAndTier(t *testing.T) {
	t.Parallel()

	r := &types.Result{ID: "국토의 계획 및 이용에 관한 법률 시행령::제4장::제45조::2"}
	Enrich(r)
	assert.Equal(t, "제45조 제2항", r.Article)
	assert.Equal(t, "국토의 계획 및 이용에 관한 법률 시행령", r.LawName)
	assert.Equal(t, types.TierDecree, r.LawTier)
}

func TestEnrich_MalformedIDKeepsResult(t *testing.T) {
	t.Parallel()

	r := &types.Result{ID: "garbage-without-structure", Score: 0.4}
	Enrich(r)
	assert.Equal(t, CitationUnavailable, r.Article)
	assert.Equal(t, types.TierStatute, r.LawTier)
	assert.Equal(t, 0.4, r.Score)
}

func TestDiversify_PromotesDecreeIntoHomogeneousWindow(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(Config{DiversifyWindow: 3, MaxPromotions: 1}, zap.NewNop())
	results := []*types.Result{
		statuteResult("제36조", 0.9),
		statuteResult("제37조", 0.85),
		statuteResult("제38조", 0.8),
		decreeResult("제45조", 0.7),
		statuteResult("제39조", 0.6),
	}
	for _, r := range results {
		Enrich(r)
	}

	reordered := aggregator.Diversify(results)
	require.Len(t, reordered, 5)
	assert.Equal(t, results[0].ID, reordered[0].ID, "top result keeps rank 1")
	assert.Equal(t, types.TierDecree, reordered[2].LawTier,
		"decree must be interleaved into the statute window")
	for _, r := range reordered {
		assert.NotZero(t, r.Score, "diversification must not touch scores")
	}
}

func TestDiversify_NoOpWhenWindowAlreadyMixed(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(DefaultConfig(), zap.NewNop())
	results := []*types.Result{
		statuteResult("제36조", 0.9),
		decreeResult("제45조", 0.85),
		statuteResult("제37조", 0.8),
	}
	for _, r := range results {
		Enrich(r)
	}

	reordered := aggregator.Diversify(results)
	for i := range results {
		assert.Equal(t, results[i].ID, reordered[i].ID)
	}
}

func TestDiversify_NoOpWithoutCrossTierCandidates(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(Config{DiversifyWindow: 2, MaxPromotions: 2}, zap.NewNop())
	results := []*types.Result{
		statuteResult("제36조", 0.9),
		statuteResult("제37조", 0.8),
		statuteResult("제38조", 0.7),
	}
	for _, r := range results {
		Enrich(r)
	}

	reordered := aggregator.Diversify(results)
	for i := range results {
		assert.Equal(t, results[i].ID, reordered[i].ID)
	}
}

func TestAggregate_EndToEnd(t *testing.T) {
	t.Parallel()

	aggregator := NewAggregator(DefaultConfig(), zap.NewNop())
	merged := aggregator.Aggregate([][]*types.Result{
		{statuteResult("제36조", 0.9), statuteResult("제37조", 0.8)},
		{statuteResult("제36조", 0.7), decreeResult("제45조", 0.6)},
	}, 2)

	require.Len(t, merged, 2)
	assert.Equal(t, "제36조 제1항", merged[0].Article)
	assert.NotEmpty(t, merged[0].LawTier)
}
