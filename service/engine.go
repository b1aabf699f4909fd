// Package service orchestrates the full search pipeline: query embedding,
// domain routing, concurrent per-domain expansion, aggregation, and optional
// answer synthesis. Partitioning and rebalancing run through the same engine
// so the snapshot cache is invalidated the moment the domain set changes.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lawgraph/lawgraph/aggregate"
	"github.com/lawgraph/lawgraph/embedding"
	"github.com/lawgraph/lawgraph/expansion"
	"github.com/lawgraph/lawgraph/llm"
	"github.com/lawgraph/lawgraph/partition"
	"github.com/lawgraph/lawgraph/routing"
	"github.com/lawgraph/lawgraph/types"
)

// Config tunes the orchestration layer.
type Config struct {
	// DefaultLimit is the result count when the request does not set one.
	DefaultLimit int `yaml:"default_limit" json:"default_limit"`

	// PerDomainLimit caps how many results each domain expansion returns
	// before aggregation.
	PerDomainLimit int `yaml:"per_domain_limit" json:"per_domain_limit"`

	// SynthesisTimeout bounds the optional synthesis call. Synthesis running
	// past it is dropped, not failed.
	SynthesisTimeout time.Duration `yaml:"synthesis_timeout" json:"synthesis_timeout"`
}

// DefaultConfig returns the default orchestration tunables.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:     10,
		PerDomainLimit:   20,
		SynthesisTimeout: 30 * time.Second,
	}
}

// SearchRequest is one search invocation.
type SearchRequest struct {
	Query       string `json:"query"`
	Limit       int    `json:"limit,omitempty"`
	Synthesize  bool   `json:"synthesize,omitempty"`
	Collaborate bool   `json:"collaborate,omitempty"`
}

// SearchResponse is the search outcome. SynthesizedAnswer is absent whenever
// synthesis was not requested or did not complete.
type SearchResponse struct {
	Results           []*types.Result `json:"results"`
	DomainsQueried    []string        `json:"domains_queried"`
	SynthesizedAnswer string          `json:"synthesized_answer,omitempty"`
	ResponseTimeMS    int64           `json:"response_time_ms"`
}

// Engine wires the retrieval pipeline together.
type Engine struct {
	embedder    embedding.Provider
	router      *routing.Router
	expander    *expansion.Engine
	aggregator  *aggregate.Aggregator
	synthesizer *llm.Synthesizer       // optional
	partitioner *partition.Partitioner // optional
	snapshots   *SnapshotSource
	config      Config
	logger      *zap.Logger
}

// NewEngine creates the orchestration engine. synthesizer and partitioner may
// be nil; the corresponding operations then report upstream unavailability.
func NewEngine(
	embedder embedding.Provider,
	router *routing.Router,
	expander *expansion.Engine,
	aggregator *aggregate.Aggregator,
	synthesizer *llm.Synthesizer,
	partitioner *partition.Partitioner,
	snapshots *SnapshotSource,
	config Config,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.DefaultLimit <= 0 {
		config.DefaultLimit = DefaultConfig().DefaultLimit
	}
	if config.PerDomainLimit <= 0 {
		config.PerDomainLimit = DefaultConfig().PerDomainLimit
	}
	return &Engine{
		embedder:    embedder,
		router:      router,
		expander:    expander,
		aggregator:  aggregator,
		synthesizer: synthesizer,
		partitioner: partitioner,
		snapshots:   snapshots,
		config:      config,
		logger:      logger.With(zap.String("component", "search_engine")),
	}
}

// Search runs the full pipeline for one query. Embedding and graph failures
// surface as service errors; routing refinement and synthesis failures degrade
// silently per their own fallbacks.
func (e *Engine) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	start := time.Now()
	query := strings.TrimSpace(req.Query)
	if query == "" {
		searchTotal.WithLabelValues("invalid").Inc()
		return nil, types.NewError(types.ErrEmptyQuery, "query text is empty").WithStage("search")
	}
	limit := req.Limit
	if limit <= 0 {
		limit = e.config.DefaultLimit
	}

	queryEmbedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		return nil, types.NewError(types.ErrEmbeddingUnavailable, "query embedding failed").
			WithStage("embedding").WithCause(err)
	}

	domainIDs, err := e.selectDomains(ctx, query, queryEmbedding, req.Collaborate)
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	groups, err := e.expandDomains(ctx, query, queryEmbedding, domainIDs)
	if err != nil {
		searchTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	results := e.aggregator.Aggregate(groups, limit)
	for _, r := range results {
		for _, stage := range r.Stages {
			resultStageTotal.WithLabelValues(string(stage)).Inc()
		}
	}

	response := &SearchResponse{
		Results:        results,
		DomainsQueried: domainIDs,
	}
	if req.Synthesize {
		response.SynthesizedAnswer = e.synthesize(ctx, query, results)
	}
	response.ResponseTimeMS = time.Since(start).Milliseconds()

	searchTotal.WithLabelValues("ok").Inc()
	searchDuration.Observe(time.Since(start).Seconds())
	domainsQueried.Observe(float64(len(domainIDs)))
	e.logger.Info("search completed",
		zap.Int("results", len(results)),
		zap.Strings("domains", domainIDs),
		zap.Int64("elapsed_ms", response.ResponseTimeMS))
	return response, nil
}

// selectDomains routes the query against the current snapshot. An unpartitioned
// corpus routes to the whole corpus rather than failing: the empty domain list
// means unscoped expansion.
func (e *Engine) selectDomains(ctx context.Context, query string, queryEmbedding []float64, collaborate bool) ([]string, error) {
	snapshot, err := e.snapshots.Snapshot(ctx)
	if err != nil {
		var engineErr *types.Error
		if errors.As(err, &engineErr) && engineErr.Code == types.ErrEmptySnapshot {
			e.logger.Debug("no domain partition, searching the whole corpus")
			return nil, nil
		}
		return nil, err
	}

	decision, err := e.router.Route(ctx, query, queryEmbedding, snapshot, collaborate)
	if err != nil {
		return nil, err
	}
	domainIDs := make([]string, 0, len(decision.Selected))
	for _, s := range decision.Selected {
		domainIDs = append(domainIDs, s.DomainID)
	}
	return domainIDs, nil
}

// expandDomains runs the expansion engine once per selected domain,
// concurrently. The walks are read-only and independent.
func (e *Engine) expandDomains(ctx context.Context, query string, queryEmbedding []float64, domainIDs []string) ([][]*types.Result, error) {
	scopes := domainIDs
	if len(scopes) == 0 {
		scopes = []string{""}
	}

	groups := make([][]*types.Result, len(scopes))
	g, gctx := errgroup.WithContext(ctx)
	for i, domainID := range scopes {
		i, domainID := i, domainID
		g.Go(func() error {
			results, err := e.expander.Expand(gctx, query, queryEmbedding, domainID, e.config.PerDomainLimit)
			if err != nil {
				return err
			}
			group := make([]*types.Result, len(results))
			for j := range results {
				group[j] = &results[j]
			}
			groups[i] = group
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return groups, nil
}

// synthesize produces the optional prose answer. Any failure leaves the field
// absent; the result list is the contract, the answer is best-effort.
func (e *Engine) synthesize(ctx context.Context, query string, results []*types.Result) string {
	if e.synthesizer == nil || len(results) == 0 {
		synthesisTotal.WithLabelValues("skipped").Inc()
		return ""
	}
	callCtx := ctx
	if e.config.SynthesisTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.config.SynthesisTimeout)
		defer cancel()
	}

	evidence := make([]types.Result, len(results))
	for i, r := range results {
		evidence[i] = *r
	}
	answer, err := e.synthesizer.Synthesize(callCtx, query, evidence)
	if err != nil {
		synthesisTotal.WithLabelValues("error").Inc()
		e.logger.Warn("synthesis failed, returning results without an answer", zap.Error(err))
		return ""
	}
	synthesisTotal.WithLabelValues("ok").Inc()
	return answer
}

// Partition re-clusters the corpus into targetClusters domains and refreshes
// the snapshot cache.
func (e *Engine) Partition(ctx context.Context, targetClusters int) (*partition.Report, error) {
	if e.partitioner == nil {
		return nil, types.NewError(types.ErrInternal, "no partitioner configured").WithStage("partition")
	}
	report, err := e.partitioner.Partition(ctx, targetClusters)
	if err != nil {
		return nil, err
	}
	e.snapshots.Invalidate()
	return report, nil
}

// Rebalance fixes domain size-bound violations and refreshes the snapshot
// cache when anything changed.
func (e *Engine) Rebalance(ctx context.Context) (*partition.RebalanceReport, error) {
	if e.partitioner == nil {
		return nil, types.NewError(types.ErrInternal, "no partitioner configured").WithStage("rebalance")
	}
	report, err := e.partitioner.Rebalance(ctx)
	if err != nil {
		return nil, err
	}
	if len(report.Actions) > 0 {
		e.snapshots.Invalidate()
	}
	return report, nil
}
