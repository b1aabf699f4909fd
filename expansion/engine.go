// Package expansion implements relationship-aware neighborhood expansion:
// vector-seeded retrieval over paragraph embeddings, expanded through the
// statute graph's CONTAINS/IMPLEMENTS relationships. Each hop is gated by
// relationship-embedding similarity and decays the inherited score, so an
// expanded result can never outrank the seed it came from.
package expansion

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lawgraph/lawgraph/graph"
	"github.com/lawgraph/lawgraph/statute"
	"github.com/lawgraph/lawgraph/types"
)

// Config tunes the expansion walk. Threshold and decay are tunables, not
// algorithmic constants; validate them against a labeled relevance set before
// changing the defaults.
type Config struct {
	// SeedCount is the number of vector-similarity seeds kept per query.
	SeedCount int `yaml:"seed_count" json:"seed_count"`

	// MaxDepth bounds the expansion walk, in relationship hops from a seed.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`

	// Threshold is the minimum relationship-embedding similarity for a hop.
	Threshold float64 `yaml:"threshold" json:"threshold"`

	// Decay multiplies the inherited score at every hop.
	Decay float64 `yaml:"decay" json:"decay"`

	// Concurrency caps parallel seed walks per request.
	Concurrency int `yaml:"concurrency" json:"concurrency"`
}

// DefaultConfig returns the default expansion tunables.
func DefaultConfig() Config {
	return Config{
		SeedCount:   20,
		MaxDepth:    2,
		Threshold:   0.75,
		Decay:       0.85,
		Concurrency: 4,
	}
}

// Engine runs the expansion pipeline against a graph client.
type Engine struct {
	client *graph.Client
	config Config
	logger *zap.Logger
}

// NewEngine creates an expansion engine.
func NewEngine(client *graph.Client, config Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.SeedCount <= 0 {
		config.SeedCount = DefaultConfig().SeedCount
	}
	if config.Decay <= 0 || config.Decay >= 1 {
		config.Decay = DefaultConfig().Decay
	}
	if config.Concurrency <= 0 {
		config.Concurrency = DefaultConfig().Concurrency
	}
	return &Engine{
		client: client,
		config: config,
		logger: logger.With(zap.String("component", "expansion_engine")),
	}
}

// admitted is one node reached during a seed walk.
type admitted struct {
	node  *graph.Node
	score float64
}

// Expand turns a query embedding into a ranked, deduplicated list of
// paragraph evidence. domainID restricts the candidate set; empty means the
// whole corpus. Traversal failure degrades to seed-only results; an empty
// corpus yields an empty, non-error result.
func (e *Engine) Expand(ctx context.Context, queryText string, queryEmbedding []float64, domainID string, limit int) ([]types.Result, error) {
	seeds, err := e.client.SearchParagraphs(ctx, queryEmbedding, domainID, e.config.SeedCount)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]*types.Result)

	for _, seed := range seeds {
		addResult(merged, seed.Node, seed.Score, types.StageVectorSeed, domainID)
	}

	// Relationship expansion across seeds, bounded by the per-request cap.
	// Failures here degrade to seed-only results.
	expansions, err := e.expandSeeds(ctx, queryEmbedding, seeds)
	if err != nil {
		e.logger.Warn("relationship expansion failed, returning seeds only", zap.Error(err))
	} else {
		for _, adm := range expansions {
			addResult(merged, adm.node, adm.score, types.StageRelationshipExpansion, domainID)
		}
	}

	// Exact-reference override: a statutory citation in the query must never
	// miss due to embedding drift. A citation absent from the corpus is
	// silently ignored. The lookup is corpus-wide, so a hit is not attributed
	// to the scoped domain; a node also reached through the scoped walk keeps
	// the domain it was actually found in.
	for _, citation := range statute.FindCitations(queryText) {
		nodes, err := e.client.ParagraphsByCitation(ctx, citation)
		if err != nil {
			e.logger.Warn("citation lookup failed, falling back to vector results",
				zap.String("article", citation.Article), zap.Error(err))
			continue
		}
		for _, node := range nodes {
			addResult(merged, node, 1.0, types.StageExactMatch, "")
		}
	}

	results := make([]types.Result, 0, len(merged))
	for _, r := range merged {
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		iExact := results[i].HasStage(types.StageExactMatch)
		jExact := results[j].HasStage(types.StageExactMatch)
		if iExact != jExact {
			return iExact
		}
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// expandSeeds walks every seed's neighborhood concurrently and returns all
// admitted nodes. Seed walks share no mutable state until the final merge.
func (e *Engine) expandSeeds(ctx context.Context, queryEmbedding []float64, seeds []graph.ScoredNode) ([]admitted, error) {
	if e.config.MaxDepth <= 0 || len(seeds) == 0 {
		return nil, nil
	}

	var (
		mu  sync.Mutex
		all []admitted
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.Concurrency)

	for _, seed := range seeds {
		if seed.Score <= 0 {
			// Decay cannot shrink a non-positive score; such seeds stand on
			// their own without expansion.
			continue
		}
		seed := seed
		g.Go(func() error {
			walked, err := e.walk(ctx, queryEmbedding, seed)
			if err != nil {
				return err
			}
			mu.Lock()
			all = append(all, walked...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

// frontierEntry is one node on the iterative expansion frontier.
type frontierEntry struct {
	id    string
	score float64
	depth int
}

// walk performs the iterative expansion from one seed. Structural units
// (articles, chapters) are traversed as waypoints; only paragraphs reached
// over an embedded relationship that clears the threshold are admitted.
func (e *Engine) walk(ctx context.Context, queryEmbedding []float64, seed graph.ScoredNode) ([]admitted, error) {
	visited := map[string]bool{seed.Node.ID: true}
	frontier := []frontierEntry{{id: seed.Node.ID, score: seed.Score, depth: 0}}
	var results []admitted

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]
		if current.depth >= e.config.MaxDepth {
			continue
		}

		neighbors, err := e.client.Neighborhood(ctx, current.id)
		if err != nil {
			return nil, err
		}
		for _, nb := range neighbors {
			if visited[nb.Node.ID] {
				continue
			}
			visited[nb.Node.ID] = true

			hopScore := current.score * e.config.Decay
			embedded := nb.Edge != nil && len(nb.Edge.Embedding) > 0
			if embedded {
				sim, err := graph.CosineSimilarity(queryEmbedding, nb.Edge.Embedding)
				if err != nil {
					return nil, err
				}
				if sim < e.config.Threshold {
					continue
				}
			}

			if nb.Node.Kind == types.UnitParagraph {
				// A paragraph is only admitted over an embedded, threshold-
				// clearing relationship; a bare edge yields no expansion.
				if !embedded {
					continue
				}
				results = append(results, admitted{node: nb.Node, score: hopScore})
			}
			frontier = append(frontier, frontierEntry{
				id:    nb.Node.ID,
				score: hopScore,
				depth: current.depth + 1,
			})
		}
	}
	return results, nil
}

// addResult merges a node into the result map, keeping the highest score and
// the union of stage tags.
func addResult(merged map[string]*types.Result, node *graph.Node, score float64, stage types.Stage, domainID string) {
	existing, ok := merged[node.ID]
	if !ok {
		r := &types.Result{
			ID:      node.ID,
			Content: node.Content,
			Score:   score,
			Stages:  []types.Stage{stage},
		}
		r.AddSourceDomain(domainID)
		merged[node.ID] = r
		return
	}
	if score > existing.Score {
		existing.Score = score
	}
	existing.AddStage(stage)
	existing.AddSourceDomain(domainID)
}
