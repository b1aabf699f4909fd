// Package aggregate merges per-domain retrieval outputs into one presentable
// list: cross-domain deduplication, law-tier diversification, and citation
// enrichment. Aggregation re-ranks but never re-scores. The underlying
// similarity values pass through untouched.
package aggregate

import (
	"sort"

	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/statute"
	"github.com/lawgraph/lawgraph/types"
)

// CitationUnavailable fills the article field when the identifier cannot be
// parsed into a citation. Enrichment failures annotate, they never drop.
const CitationUnavailable = "(citation unavailable)"

// Config tunes the diversification pass.
type Config struct {
	// DiversifyWindow is the size of the top window checked for tier
	// homogeneity.
	DiversifyWindow int `yaml:"diversify_window" json:"diversify_window"`

	// MaxPromotions bounds how many cross-tier results are promoted into a
	// homogeneous window.
	MaxPromotions int `yaml:"max_promotions" json:"max_promotions"`
}

// DefaultConfig returns the default aggregation tunables.
func DefaultConfig() Config {
	return Config{
		DiversifyWindow: 5,
		MaxPromotions:   2,
	}
}

// Aggregator combines per-domain result sets.
type Aggregator struct {
	config Config
	logger *zap.Logger
}

// NewAggregator creates an aggregator. logger may be nil.
func NewAggregator(config Config, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DiversifyWindow <= 0 {
		config.DiversifyWindow = DefaultConfig().DiversifyWindow
	}
	if config.MaxPromotions < 0 {
		config.MaxPromotions = 0
	}
	return &Aggregator{
		config: config,
		logger: logger.With(zap.String("component", "aggregator")),
	}
}

// Aggregate merges the per-domain result groups, enriches every survivor with
// its citation, diversifies across law tiers, and truncates to limit.
// limit <= 0 means unlimited.
func (a *Aggregator) Aggregate(groups [][]*types.Result, limit int) []*types.Result {
	merged := Merge(groups)
	for _, r := range merged {
		Enrich(r)
	}
	merged = a.Diversify(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Merge deduplicates results across groups by full identifier. A unit reached
// from multiple domains keeps its highest score and the union of its stage
// tags and source domains, so merging the output of a merge changes nothing.
func Merge(groups [][]*types.Result) []*types.Result {
	byID := make(map[string]*types.Result)
	var order []string
	for _, group := range groups {
		for _, r := range group {
			existing, ok := byID[r.ID]
			if !ok {
				copied := *r
				copied.Stages = append([]types.Stage(nil), r.Stages...)
				copied.SourceDomains = append([]string(nil), r.SourceDomains...)
				byID[r.ID] = &copied
				order = append(order, r.ID)
				continue
			}
			if r.Score > existing.Score {
				existing.Score = r.Score
			}
			for _, s := range r.Stages {
				existing.AddStage(s)
			}
			for _, d := range r.SourceDomains {
				existing.AddSourceDomain(d)
			}
		}
	}

	merged := make([]*types.Result, 0, len(order))
	for _, id := range order {
		merged = append(merged, byID[id])
	}
	// Exact matches first, then score, then identifier for a stable total order.
	sort.SliceStable(merged, func(i, j int) bool {
		ei, ej := merged[i].HasStage(types.StageExactMatch), merged[j].HasStage(types.StageExactMatch)
		if ei != ej {
			return ei
		}
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}

// Enrich annotates a result with its human-readable citation, law name and
// tier. A malformed identifier gets the explicit unavailable marker instead of
// being dropped.
func Enrich(r *types.Result) {
	components := statute.Parse(r.ID)
	r.LawName = components.LawName
	r.LawTier = components.Tier
	if ref := statute.ArticleReference(r.ID); ref != "" {
		r.Article = ref
	} else {
		r.Article = CitationUnavailable
	}
}

// Diversify interleaves cross-tier results into a tier-homogeneous top window.
// When the window already mixes tiers the pass is a no-op; otherwise up to
// MaxPromotions results of other tiers are lifted from below the window,
// alternating with the incumbents so the top result keeps rank 1. This is a
// stable re-ranking pass over enriched results; scores are not modified.
func (a *Aggregator) Diversify(results []*types.Result) []*types.Result {
	window := a.config.DiversifyWindow
	if window > len(results) {
		window = len(results)
	}
	if window < 2 || a.config.MaxPromotions == 0 {
		return results
	}

	tier := results[0].LawTier
	for _, r := range results[:window] {
		if r.LawTier != tier {
			return results
		}
	}

	var promoted []*types.Result
	var rest []*types.Result
	for _, r := range results[window:] {
		if r.LawTier != tier && len(promoted) < a.config.MaxPromotions {
			promoted = append(promoted, r)
		} else {
			rest = append(rest, r)
		}
	}
	if len(promoted) == 0 {
		return results
	}
	promotedCount := len(promoted)

	reordered := make([]*types.Result, 0, len(results))
	reordered = append(reordered, results[0])
	remaining := results[1:window]
	for len(promoted) > 0 || len(remaining) > 0 {
		if len(remaining) > 0 {
			reordered = append(reordered, remaining[0])
			remaining = remaining[1:]
		}
		if len(promoted) > 0 {
			reordered = append(reordered, promoted[0])
			promoted = promoted[1:]
		}
	}
	reordered = append(reordered, rest...)

	a.logger.Debug("tier diversification applied",
		zap.String("dominant_tier", string(tier)),
		zap.Int("promoted", promotedCount))
	return reordered
}
