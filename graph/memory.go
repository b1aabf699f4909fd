package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/statute"
	"github.com/lawgraph/lawgraph/types"
)

// MemoryStore is an in-process property graph used by the engine and tests.
// All reads take the read lock; the domain replace path takes the write lock
// for its whole duration, so a concurrent reader observes either the previous
// partition or the new one, never a mix.
type MemoryStore struct {
	dimensions int

	nodes    map[string]*Node
	edges    map[string]*Edge
	outEdges map[string][]string // node ID -> edge IDs
	inEdges  map[string][]string // node ID -> edge IDs

	domains    map[string]*Domain
	membership map[string]string // paragraph ID -> domain ID
	version    string

	connected bool
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewMemoryStore creates a store whose vector index expects embeddings of the
// given dimensionality.
func NewMemoryStore(dimensions int, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemoryStore{
		dimensions: dimensions,
		nodes:      make(map[string]*Node),
		edges:      make(map[string]*Edge),
		outEdges:   make(map[string][]string),
		inEdges:    make(map[string][]string),
		domains:    make(map[string]*Domain),
		membership: make(map[string]string),
		logger:     logger.With(zap.String("component", "memory_store")),
	}
}

// Connect marks the store ready.
func (s *MemoryStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

// Close releases the store.
func (s *MemoryStore) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// RunQuery executes one of the known query templates with bound parameters.
func (s *MemoryStore) RunQuery(ctx context.Context, template string, params map[string]any) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.NewError(types.ErrGraphUnavailable, "context cancelled").
			WithStage("graph").WithCause(err)
	}
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	if !connected {
		return nil, types.NewError(types.ErrGraphUnavailable, "store is not connected").
			WithStage("graph").WithRetryable(true)
	}

	switch template {
	case QueryParagraphSearch:
		return s.paragraphSearch(params)
	case QueryCitationLookup:
		return s.citationLookup(params)
	case QueryNeighborhood:
		return s.neighborhood(params)
	case QueryUpsertUnits:
		return nil, s.upsertUnits(params)
	case QueryReplaceDomains:
		return nil, s.replaceDomains(params)
	case QueryListDomains:
		return s.listDomains()
	case QueryDomainMembers:
		return s.domainMembers(params)
	case QueryPartitionVersion:
		s.mu.RLock()
		defer s.mu.RUnlock()
		return []Record{{"version": s.version}}, nil
	case QueryIndexDimensions:
		return []Record{{"dimensions": s.dimensions}}, nil
	case QueryParagraphCount:
		return s.paragraphCount()
	case QueryParagraphAll:
		return s.paragraphAll()
	default:
		return nil, types.NewError(types.ErrInternal,
			fmt.Sprintf("unknown query template %q", template)).WithStage("graph")
	}
}

func (s *MemoryStore) paragraphSearch(params map[string]any) ([]Record, error) {
	embedding, _ := params["embedding"].([]float64)
	domainID, _ := params["domain_id"].(string)
	limit, _ := params["limit"].(int)
	if len(embedding) != s.dimensions {
		return nil, types.NewError(types.ErrDimensionMismatch,
			fmt.Sprintf("query embedding has %d dimensions, index expects %d",
				len(embedding), s.dimensions)).WithStage("graph")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		node  *Node
		score float64
	}
	var matches []scored
	for _, n := range s.nodes {
		if n.Kind != types.UnitParagraph || n.Embedding == nil {
			continue
		}
		if domainID != "" && s.membership[n.ID] != domainID {
			continue
		}
		sim, err := CosineSimilarity(embedding, n.Embedding)
		if err != nil {
			return nil, err
		}
		matches = append(matches, scored{node: n, score: sim})
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].node.ID < matches[j].node.ID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	records := make([]Record, 0, len(matches))
	for _, m := range matches {
		records = append(records, Record{"node": m.node, "score": m.score})
	}
	return records, nil
}

func (s *MemoryStore) citationLookup(params map[string]any) ([]Record, error) {
	article, _ := params["article"].(string)
	paragraph, _ := params["paragraph"].(string)
	citation := statute.Citation{Article: article, Paragraph: paragraph}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record
	for _, n := range s.nodes {
		if n.Kind != types.UnitParagraph {
			continue
		}
		if citation.Matches(n.ID) {
			records = append(records, Record{"node": n})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i]["node"].(*Node).ID < records[j]["node"].(*Node).ID
	})
	return records, nil
}

func (s *MemoryStore) neighborhood(params map[string]any) ([]Record, error) {
	id, _ := params["id"].(string)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record
	for _, edgeID := range s.outEdges[id] {
		edge := s.edges[edgeID]
		if node, ok := s.nodes[edge.Target]; ok {
			records = append(records, Record{"node": node, "rel": edge})
		}
	}
	for _, edgeID := range s.inEdges[id] {
		edge := s.edges[edgeID]
		if node, ok := s.nodes[edge.Source]; ok {
			records = append(records, Record{"node": node, "rel": edge})
		}
	}
	return records, nil
}

func (s *MemoryStore) upsertUnits(params map[string]any) error {
	nodes, _ := params["nodes"].([]*Node)
	edges, _ := params["edges"].([]*Edge)

	for _, n := range nodes {
		if n.Kind == types.UnitParagraph && n.Embedding != nil && len(n.Embedding) != s.dimensions {
			return types.NewError(types.ErrDimensionMismatch,
				fmt.Sprintf("paragraph %s has %d dimensions, index expects %d",
					n.ID, len(n.Embedding), s.dimensions)).WithStage("graph")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range nodes {
		s.nodes[n.ID] = n
	}
	for _, e := range edges {
		if e.ID == "" {
			e.ID = fmt.Sprintf("%s-%s-%s", e.Type, e.Source, e.Target)
		}
		if _, exists := s.edges[e.ID]; exists {
			s.edges[e.ID] = e
			continue
		}
		s.edges[e.ID] = e
		s.outEdges[e.Source] = append(s.outEdges[e.Source], e.ID)
		s.inEdges[e.Target] = append(s.inEdges[e.Target], e.ID)
	}
	return nil
}

// replaceDomains swaps the full domain set and membership map in one critical
// section. Partial partitions are never observable.
func (s *MemoryStore) replaceDomains(params map[string]any) error {
	domains, _ := params["domains"].([]*Domain)
	membership, _ := params["membership"].(map[string]string)
	version, _ := params["version"].(string)
	if version == "" {
		return types.NewError(types.ErrInternal, "replace_domains requires a version marker").
			WithStage("graph")
	}

	newDomains := make(map[string]*Domain, len(domains))
	for _, d := range domains {
		newDomains[d.ID] = d
	}
	newMembership := make(map[string]string, len(membership))
	for paragraphID, domainID := range membership {
		newMembership[paragraphID] = domainID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains = newDomains
	s.membership = newMembership
	s.version = version
	s.logger.Info("domain partition replaced",
		zap.Int("domains", len(newDomains)),
		zap.Int("members", len(newMembership)),
		zap.String("version", version))
	return nil
}

func (s *MemoryStore) listDomains() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]Record, 0, len(s.domains))
	for _, d := range s.domains {
		records = append(records, Record{"domain": d})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i]["domain"].(*Domain).ID < records[j]["domain"].(*Domain).ID
	})
	return records, nil
}

func (s *MemoryStore) domainMembers(params map[string]any) ([]Record, error) {
	domainID, _ := params["domain_id"].(string)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record
	for paragraphID, member := range s.membership {
		if member != domainID {
			continue
		}
		if node, ok := s.nodes[paragraphID]; ok {
			records = append(records, Record{"node": node})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i]["node"].(*Node).ID < records[j]["node"].(*Node).ID
	})
	return records, nil
}

func (s *MemoryStore) paragraphAll() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []Record
	for _, n := range s.nodes {
		if n.Kind == types.UnitParagraph && n.Embedding != nil {
			records = append(records, Record{"node": n})
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i]["node"].(*Node).ID < records[j]["node"].(*Node).ID
	})
	return records, nil
}

func (s *MemoryStore) paragraphCount() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, n := range s.nodes {
		if n.Kind == types.UnitParagraph && n.Embedding != nil {
			count++
		}
	}
	return []Record{{"count": count}}, nil
}
