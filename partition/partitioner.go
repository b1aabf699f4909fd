package partition

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/graph"
	"github.com/lawgraph/lawgraph/llm"
)

// Config tunes partitioning and rebalancing.
type Config struct {
	// TargetClusters is the default cluster count for a full partition.
	TargetClusters int `yaml:"target_clusters" json:"target_clusters"`

	// MaxIterations caps the k-means loop.
	MaxIterations int `yaml:"max_iterations" json:"max_iterations"`

	// MinDomainSize / MaxDomainSize are the rebalancing bounds.
	MinDomainSize int `yaml:"min_domain_size" json:"min_domain_size"`
	MaxDomainSize int `yaml:"max_domain_size" json:"max_domain_size"`

	// SampleTexts is how many member texts are summarized into a domain label.
	SampleTexts int `yaml:"sample_texts" json:"sample_texts"`
}

// DefaultConfig returns the default partitioning tunables.
func DefaultConfig() Config {
	return Config{
		TargetClusters: 8,
		MaxIterations:  50,
		MinDomainSize:  50,
		MaxDomainSize:  600,
		SampleTexts:    10,
	}
}

// Partitioner owns the write path of the domain layer. Partition and
// Rebalance are mutually exclusive; reads of domain membership are never
// blocked and observe either the old or the new partition.
type Partitioner struct {
	client *graph.Client
	namer  *llm.Namer // optional; nil falls back to generated names
	config Config
	logger *zap.Logger
	mu     sync.Mutex
}

// NewPartitioner creates a partitioner. namer may be nil.
func NewPartitioner(client *graph.Client, namer *llm.Namer, config Config, logger *zap.Logger) *Partitioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TargetClusters <= 0 {
		config.TargetClusters = DefaultConfig().TargetClusters
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultConfig().MaxIterations
	}
	return &Partitioner{
		client: client,
		namer:  namer,
		config: config,
		logger: logger.With(zap.String("component", "partitioner")),
	}
}

// Report summarizes a full partition run.
type Report struct {
	Domains  int    `json:"domains"`
	Members  int    `json:"members"`
	Version  string `json:"version"`
	Degraded bool   `json:"degraded"`
}

// Partition clusters every embedded paragraph into targetClusters domains and
// replaces the persisted domain set atomically. Fewer source points than
// clusters reduces the cluster count and reports degraded mode.
func (p *Partitioner) Partition(ctx context.Context, targetClusters int) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if targetClusters <= 0 {
		targetClusters = p.config.TargetClusters
	}

	paragraphs, err := p.client.EmbeddedParagraphs(ctx)
	if err != nil {
		return nil, err
	}

	version := uuid.NewString()
	if len(paragraphs) == 0 {
		p.logger.Warn("no embedded paragraphs; persisting an empty partition")
		if err := p.client.ReplaceDomains(ctx, nil, nil, version); err != nil {
			return nil, err
		}
		return &Report{Version: version, Degraded: true}, nil
	}

	degraded := false
	if targetClusters > len(paragraphs) {
		p.logger.Warn("fewer paragraphs than requested clusters, reducing",
			zap.Int("requested", targetClusters), zap.Int("paragraphs", len(paragraphs)))
		targetClusters = len(paragraphs)
		degraded = true
	}

	points := make([][]float64, len(paragraphs))
	for i, node := range paragraphs {
		points[i] = node.Embedding
	}
	_, assignments := KMeans(points, targetClusters, p.config.MaxIterations)

	clusters := make(map[int][]*graph.Node)
	for i, c := range assignments {
		clusters[c] = append(clusters[c], paragraphs[i])
	}

	domains := make([]*graph.Domain, 0, len(clusters))
	membership := make(map[string]string, len(paragraphs))
	ordinal := 0
	for c := 0; c < targetClusters; c++ {
		members := clusters[c]
		if len(members) == 0 {
			continue
		}
		ordinal++
		domain := p.buildDomain(ctx, members, ordinal)
		domains = append(domains, domain)
		for _, m := range members {
			membership[m.ID] = domain.ID
		}
	}

	if err := p.client.ReplaceDomains(ctx, domains, membership, version); err != nil {
		return nil, err
	}
	p.logger.Info("partition applied",
		zap.Int("domains", len(domains)),
		zap.Int("members", len(membership)),
		zap.String("version", version))
	return &Report{
		Domains:  len(domains),
		Members:  len(membership),
		Version:  version,
		Degraded: degraded,
	}, nil
}

// buildDomain creates a domain entity for a member set, naming it via the
// LLM when available and deterministically otherwise.
func (p *Partitioner) buildDomain(ctx context.Context, members []*graph.Node, ordinal int) *graph.Domain {
	embeddings := make([][]float64, len(members))
	for i, m := range members {
		embeddings[i] = m.Embedding
	}
	domain := &graph.Domain{
		ID:        uuid.NewString(),
		Centroid:  Mean(embeddings),
		NodeCount: len(members),
	}

	sampleCount := p.config.SampleTexts
	if sampleCount <= 0 {
		sampleCount = DefaultConfig().SampleTexts
	}
	var samples []string
	for _, m := range members {
		if len(samples) >= sampleCount {
			break
		}
		if m.Content != "" {
			samples = append(samples, m.Content)
		}
	}

	if p.namer != nil && len(samples) > 0 {
		if label, err := p.namer.Name(ctx, samples); err == nil {
			domain.Name = label.Name
			domain.Description = label.Description
			return domain
		} else {
			p.logger.Warn("domain naming failed, using generated name", zap.Error(err))
		}
	}
	domain.Name = fmt.Sprintf("domain-%02d", ordinal)
	if len(samples) > 0 {
		desc := samples[0]
		if len([]rune(desc)) > 120 {
			desc = string([]rune(desc)[:120])
		}
		domain.Description = desc
	}
	return domain
}
