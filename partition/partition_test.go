package partition

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/graph"
	"github.com/lawgraph/lawgraph/types"
)

func TestKMeans_SeparatesTwoBlobs(t *testing.T) {
	t.Parallel()

	points := [][]float64{
		{1, 0, 0}, {0.9, 0.1, 0}, {0.95, 0.05, 0},
		{0, 1, 0}, {0.1, 0.9, 0}, {0.05, 0.95, 0},
	}
	centroids, assignments := KMeans(points, 2, 50)
	require.Len(t, centroids, 2)
	require.Len(t, assignments, 6)

	require.Equal(t, assignments[0], assignments[1])
	require.Equal(t, assignments[0], assignments[2])
	require.Equal(t, assignments[3], assignments[4])
	require.Equal(t, assignments[3], assignments[5])
	require.NotEqual(t, assignments[0], assignments[3])
}

func TestKMeans_ReducesOversizedK(t *testing.T) {
	t.Parallel()

	points := [][]float64{{1, 0}, {0, 1}}
	centroids, assignments := KMeans(points, 5, 50)
	require.Len(t, centroids, 2)
	require.Len(t, assignments, 2)
}

func TestKMeans_EmptyInput(t *testing.T) {
	t.Parallel()

	centroids, assignments := KMeans(nil, 3, 50)
	require.Nil(t, centroids)
	require.Nil(t, assignments)
}

// seedParagraphs writes count paragraphs scattered around the given centers.
func seedParagraphs(t *testing.T, client *graph.Client, prefix string, centers [][]float64, perCenter int) int {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	var nodes []*graph.Node
	for c, center := range centers {
		for i := 0; i < perCenter; i++ {
			emb := make([]float64, len(center))
			for d := range emb {
				emb[d] = center[d] + rng.Float64()*0.05
			}
			nodes = append(nodes, &graph.Node{
				ID:        fmt.Sprintf("%s법%d::제%d조::%d", prefix, c+1, c+1, i+1),
				Kind:      types.UnitParagraph,
				Content:   fmt.Sprintf("조항 내용 %d-%d", c+1, i+1),
				Embedding: emb,
			})
		}
	}
	require.NoError(t, client.UpsertUnits(context.Background(), nodes, nil))
	return len(nodes)
}

func newPartitionFixture(t *testing.T) (*graph.Client, *Partitioner, Config) {
	t.Helper()
	store := graph.NewMemoryStore(3, zap.NewNop())
	require.NoError(t, store.Connect(context.Background()))
	client := graph.NewClient(store, zap.NewNop())

	cfg := DefaultConfig()
	cfg.MinDomainSize = 3
	cfg.MaxDomainSize = 8
	return client, NewPartitioner(client, nil, cfg, zap.NewNop()), cfg
}

func TestPartition_ExactClusterCountAndDisjointMembership(t *testing.T) {
	t.Parallel()

	client, partitioner, _ := newPartitionFixture(t)
	total := seedParagraphs(t, client, "국토",
		[][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, 5)
	ctx := context.Background()

	report, err := partitioner.Partition(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, 3, report.Domains)
	require.Equal(t, total, report.Members)
	require.False(t, report.Degraded)
	require.NotEmpty(t, report.Version)

	domains, err := client.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 3)

	seen := make(map[string]bool)
	memberSum := 0
	for _, d := range domains {
		members, err := client.DomainMembers(ctx, d.ID)
		require.NoError(t, err)
		require.Equal(t, d.NodeCount, len(members))
		memberSum += len(members)
		for _, m := range members {
			require.False(t, seen[m.ID], "paragraph %s assigned to two domains", m.ID)
			seen[m.ID] = true
		}
	}
	require.Equal(t, total, memberSum)
}

func TestPartition_ReducesClusterCountGracefully(t *testing.T) {
	t.Parallel()

	client, partitioner, _ := newPartitionFixture(t)
	seedParagraphs(t, client, "국토", [][]float64{{1, 0, 0}}, 2)

	report, err := partitioner.Partition(context.Background(), 10)
	require.NoError(t, err)
	require.True(t, report.Degraded)
	require.LessOrEqual(t, report.Domains, 2)
}

func TestPartition_EmptyCorpus(t *testing.T) {
	t.Parallel()

	_, partitioner, _ := newPartitionFixture(t)
	report, err := partitioner.Partition(context.Background(), 5)
	require.NoError(t, err)
	require.True(t, report.Degraded)
	require.Zero(t, report.Domains)
}

func TestPartition_ReplacesPriorPartition(t *testing.T) {
	t.Parallel()

	client, partitioner, _ := newPartitionFixture(t)
	seedParagraphs(t, client, "국토", [][]float64{{1, 0, 0}, {0, 1, 0}}, 4)
	ctx := context.Background()

	first, err := partitioner.Partition(ctx, 2)
	require.NoError(t, err)
	second, err := partitioner.Partition(ctx, 2)
	require.NoError(t, err)
	require.NotEqual(t, first.Version, second.Version)

	domains, err := client.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 2, "old domains must be fully replaced")
}

func TestRebalance_NoOpOnBalancedSet(t *testing.T) {
	t.Parallel()

	client, partitioner, _ := newPartitionFixture(t)
	seedParagraphs(t, client, "국토", [][]float64{{1, 0, 0}, {0, 1, 0}}, 5)
	ctx := context.Background()

	_, err := partitioner.Partition(ctx, 2)
	require.NoError(t, err)
	versionBefore, err := client.PartitionVersion(ctx)
	require.NoError(t, err)

	report, err := partitioner.Rebalance(ctx)
	require.NoError(t, err)
	require.Empty(t, report.Actions)
	require.Equal(t, report.DomainsBefore, report.DomainsAfter)

	versionAfter, err := client.PartitionVersion(ctx)
	require.NoError(t, err)
	require.Equal(t, versionBefore, versionAfter, "a no-op rebalance must not write")
}

func TestRebalance_SplitsOversizedDomain(t *testing.T) {
	t.Parallel()

	client, partitioner, cfg := newPartitionFixture(t)
	// Two separable blobs forced into one oversized domain.
	seedParagraphs(t, client, "국토", [][]float64{{1, 0, 0}, {0, 1, 0}}, 6)
	ctx := context.Background()

	_, err := partitioner.Partition(ctx, 1)
	require.NoError(t, err)

	report, err := partitioner.Rebalance(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.Actions)
	require.Equal(t, "split", report.Actions[0].Type)
	require.Greater(t, report.DomainsAfter, report.DomainsBefore)

	domains, err := client.ListDomains(ctx)
	require.NoError(t, err)
	for _, d := range domains {
		require.LessOrEqual(t, d.NodeCount, cfg.MaxDomainSize,
			"domain %s still exceeds the upper bound", d.ID)
		require.GreaterOrEqual(t, d.NodeCount, cfg.MinDomainSize,
			"domain %s fell below the lower bound", d.ID)
	}

	// Idempotence: a second pass performs zero actions.
	again, err := partitioner.Rebalance(ctx)
	require.NoError(t, err)
	require.Empty(t, again.Actions)
}

func TestRebalance_UnevenSplitKeepsLowerBound(t *testing.T) {
	t.Parallel()

	client, partitioner, cfg := newPartitionFixture(t)
	// A tight cluster plus a single outlier, forced into one oversized domain.
	// The natural k-means cut is 8/1; the rebalanced halves must both respect
	// the bounds anyway.
	seedParagraphs(t, client, "국토", [][]float64{{1, 0, 0}}, 8)
	seedParagraphs(t, client, "건축", [][]float64{{0, 1, 0}}, 1)
	ctx := context.Background()

	_, err := partitioner.Partition(ctx, 1)
	require.NoError(t, err)

	report, err := partitioner.Rebalance(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, report.Actions)
	for _, a := range report.Actions {
		require.Equal(t, "split", a.Type)
		for _, size := range a.SizesAfter {
			require.GreaterOrEqual(t, size, cfg.MinDomainSize)
			require.LessOrEqual(t, size, cfg.MaxDomainSize)
		}
	}

	domains, err := client.ListDomains(ctx)
	require.NoError(t, err)
	for _, d := range domains {
		require.GreaterOrEqual(t, d.NodeCount, cfg.MinDomainSize,
			"domain %s fell below the lower bound", d.ID)
		require.LessOrEqual(t, d.NodeCount, cfg.MaxDomainSize,
			"domain %s still exceeds the upper bound", d.ID)
	}

	again, err := partitioner.Rebalance(ctx)
	require.NoError(t, err)
	require.Empty(t, again.Actions, "a rebalanced set must rebalance to zero actions")
}

func TestRebalance_SkipsSplitWhenBoundsUnsatisfiable(t *testing.T) {
	t.Parallel()

	store := graph.NewMemoryStore(3, zap.NewNop())
	require.NoError(t, store.Connect(context.Background()))
	client := graph.NewClient(store, zap.NewNop())

	// 9 members cannot form two domains of 5+; the domain stays oversized
	// and re-running stays a no-op.
	cfg := DefaultConfig()
	cfg.MinDomainSize = 5
	cfg.MaxDomainSize = 8
	partitioner := NewPartitioner(client, nil, cfg, zap.NewNop())
	seedParagraphs(t, client, "국토", [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}, 3)
	ctx := context.Background()

	_, err := partitioner.Partition(ctx, 1)
	require.NoError(t, err)

	report, err := partitioner.Rebalance(ctx)
	require.NoError(t, err)
	require.Empty(t, report.Actions)

	domains, err := client.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 1)
	require.Equal(t, 9, domains[0].NodeCount)
}

func TestRebalance_MergesUndersizedDomain(t *testing.T) {
	t.Parallel()

	client, partitioner, _ := newPartitionFixture(t)
	// One healthy blob and one tiny blob nearby.
	seedParagraphs(t, client, "국토", [][]float64{{1, 0, 0}}, 5)
	seedParagraphs(t, client, "건축", [][]float64{{0.8, 0.2, 0}}, 1)
	ctx := context.Background()

	_, err := partitioner.Partition(ctx, 2)
	require.NoError(t, err)

	report, err := partitioner.Rebalance(ctx)
	require.NoError(t, err)

	hasMerge := false
	for _, a := range report.Actions {
		if a.Type == "merge" {
			hasMerge = true
		}
	}
	require.True(t, hasMerge, "expected a merge action, got %+v", report.Actions)

	domains, err := client.ListDomains(ctx)
	require.NoError(t, err)
	require.Len(t, domains, 1)
}
