package routing

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lawgraph/lawgraph/graph"
	"github.com/lawgraph/lawgraph/llm"
	"github.com/lawgraph/lawgraph/types"
)

// Config tunes domain selection. The vector/LLM weights are deliberately
// configuration: tune them against real traffic rather than assuming a ratio.
type Config struct {
	// TopN is how many domains a plain query consults.
	TopN int `yaml:"top_n" json:"top_n"`

	// CollaborationTopN is how many domains a cross-domain query consults.
	CollaborationTopN int `yaml:"collaboration_top_n" json:"collaboration_top_n"`

	// RefineTopN is how many of the vector-ranked domains get an LLM
	// confidence judgment.
	RefineTopN int `yaml:"refine_top_n" json:"refine_top_n"`

	// VectorWeight and LLMWeight combine the two scores. VectorWeight must be
	// non-zero so routing still works when refinement is unavailable.
	VectorWeight float64 `yaml:"vector_weight" json:"vector_weight"`
	LLMWeight    float64 `yaml:"llm_weight" json:"llm_weight"`

	// AdmissionFloor is the minimum combined score for selection. When no
	// domain clears it, the single best domain is selected anyway.
	AdmissionFloor float64 `yaml:"admission_floor" json:"admission_floor"`

	// RefineTimeout bounds each LLM refinement call.
	RefineTimeout time.Duration `yaml:"refine_timeout" json:"refine_timeout"`

	// CacheTTL bounds how long routing decisions are reused.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`

	// EnableRefinement turns the LLM confidence judgment on.
	EnableRefinement bool `yaml:"enable_refinement" json:"enable_refinement"`
}

// DefaultConfig returns the default routing tunables.
func DefaultConfig() Config {
	return Config{
		TopN:              1,
		CollaborationTopN: 3,
		RefineTopN:        3,
		VectorWeight:      0.6,
		LLMWeight:         0.4,
		AdmissionFloor:    0.35,
		RefineTimeout:     10 * time.Second,
		CacheTTL:          10 * time.Minute,
		EnableRefinement:  true,
	}
}

// DomainScore is the routing score of one domain for one query.
type DomainScore struct {
	DomainID         string  `json:"domain_id"`
	DomainName       string  `json:"domain_name"`
	VectorSimilarity float64 `json:"vector_similarity"`
	LLMConfidence    float64 `json:"llm_confidence,omitempty"`
	CanAnswer        bool    `json:"can_answer,omitempty"`
	Combined         float64 `json:"combined_score"`
	Reasoning        string  `json:"reasoning,omitempty"`
	Refined          bool    `json:"refined"`
}

// Decision is the audit record of one routing invocation.
type Decision struct {
	Query        string        `json:"query"`
	Scores       []DomainScore `json:"scores"`
	Selected     []DomainScore `json:"selected"`
	FallbackUsed bool          `json:"fallback_used"`
	Timestamp    time.Time     `json:"timestamp"`
}

// Router scores domains against queries.
type Router struct {
	assessor *llm.Assessor // optional; nil disables refinement
	config   Config
	cache    *decisionCache
	logger   *zap.Logger
}

// NewRouter creates a router. assessor may be nil.
func NewRouter(assessor *llm.Assessor, config Config, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TopN <= 0 {
		config.TopN = DefaultConfig().TopN
	}
	if config.CollaborationTopN <= 0 {
		config.CollaborationTopN = DefaultConfig().CollaborationTopN
	}
	if config.VectorWeight <= 0 {
		// Routing must keep working with the LLM down.
		config.VectorWeight = DefaultConfig().VectorWeight
	}
	var cache *decisionCache
	if config.CacheTTL > 0 {
		cache = newDecisionCache(config.CacheTTL)
	}
	return &Router{
		assessor: assessor,
		config:   config,
		cache:    cache,
		logger:   logger.With(zap.String("component", "router")),
	}
}

// Route selects the domains to consult for a query. It always selects at
// least one domain for a non-empty query, falling back to the single
// highest-scoring domain when nothing clears the admission floor.
func (r *Router) Route(ctx context.Context, queryText string, queryEmbedding []float64, snapshot *Snapshot, collaborate bool) (*Decision, error) {
	if strings.TrimSpace(queryText) == "" {
		return nil, types.NewError(types.ErrEmptyQuery, "query text is empty").WithStage("routing")
	}
	if snapshot == nil || len(snapshot.Domains) == 0 {
		return nil, types.NewError(types.ErrEmptySnapshot, "no domain snapshot").WithStage("routing")
	}

	cacheKey := snapshot.Version + "|" + queryText
	if collaborate {
		cacheKey += "|collab"
	}
	if r.cache != nil {
		if cached, ok := r.cache.get(cacheKey); ok {
			r.logger.Debug("routing cache hit", zap.String("query", queryText))
			return cached, nil
		}
	}

	scores := make([]DomainScore, 0, len(snapshot.Domains))
	for _, d := range snapshot.Domains {
		sim, err := graph.CosineSimilarity(queryEmbedding, d.Centroid)
		if err != nil {
			return nil, err
		}
		scores = append(scores, DomainScore{
			DomainID:         d.ID,
			DomainName:       d.Name,
			VectorSimilarity: sim,
			Combined:         sim,
		})
	}
	sortScores(scores)

	if r.config.EnableRefinement && r.assessor != nil {
		r.refine(ctx, queryText, snapshot, scores)
		sortScores(scores)
	}

	topN := r.config.TopN
	if collaborate {
		topN = r.config.CollaborationTopN
	}
	var selected []DomainScore
	for _, s := range scores {
		if len(selected) >= topN {
			break
		}
		if s.Combined >= r.config.AdmissionFloor {
			selected = append(selected, s)
		}
	}
	fallback := false
	if len(selected) == 0 {
		// Never return zero domains for a non-empty query.
		selected = scores[:1]
		fallback = true
	}

	decision := &Decision{
		Query:        queryText,
		Scores:       scores,
		Selected:     selected,
		FallbackUsed: fallback,
		Timestamp:    time.Now(),
	}
	if r.cache != nil {
		r.cache.set(cacheKey, decision)
	}
	r.logger.Info("routing decision",
		zap.String("query", truncate(queryText, 50)),
		zap.Int("selected", len(selected)),
		zap.Bool("fallback", fallback))
	return decision, nil
}

// refine obtains LLM confidence for the top vector-ranked domains,
// concurrently with a per-call timeout. A failed or timed-out call leaves
// that domain on vector-only scoring.
func (r *Router) refine(ctx context.Context, queryText string, snapshot *Snapshot, scores []DomainScore) {
	descriptions := make(map[string]string, len(snapshot.Domains))
	for _, d := range snapshot.Domains {
		descriptions[d.ID] = d.Description
	}

	refineCount := r.config.RefineTopN
	if refineCount <= 0 || refineCount > len(scores) {
		refineCount = len(scores)
	}

	g, gctx := errgroup.WithContext(ctx)
	var mu sync.Mutex
	for i := 0; i < refineCount; i++ {
		i := i
		g.Go(func() error {
			callCtx := gctx
			if r.config.RefineTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(gctx, r.config.RefineTimeout)
				defer cancel()
			}
			assessment, err := r.assessor.Assess(callCtx,
				scores[i].DomainName, descriptions[scores[i].DomainID], queryText)
			if err != nil {
				r.logger.Warn("refinement failed, using vector-only score",
					zap.String("domain", scores[i].DomainID), zap.Error(err))
				return nil
			}
			mu.Lock()
			scores[i].LLMConfidence = assessment.Confidence
			scores[i].CanAnswer = assessment.CanAnswer
			scores[i].Reasoning = assessment.Reasoning
			scores[i].Refined = true
			scores[i].Combined = (r.config.VectorWeight*scores[i].VectorSimilarity +
				r.config.LLMWeight*assessment.Confidence) /
				(r.config.VectorWeight + r.config.LLMWeight)
			mu.Unlock()
			return nil
		})
	}
	// Workers swallow their own failures; Wait only synchronizes.
	_ = g.Wait()
}

func sortScores(scores []DomainScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].Combined > scores[j].Combined
	})
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// decisionCache caches routing decisions per partition version with a TTL.
type decisionCache struct {
	entries map[string]*Decision
	ttl     time.Duration
	mu      sync.RWMutex
}

func newDecisionCache(ttl time.Duration) *decisionCache {
	return &decisionCache{entries: make(map[string]*Decision), ttl: ttl}
}

func (c *decisionCache) get(key string) (*Decision, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	decision, ok := c.entries[key]
	if !ok || time.Since(decision.Timestamp) > c.ttl {
		return nil, false
	}
	return decision, true
}

func (c *decisionCache) set(key string, decision *Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = decision
}
