package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/statute"
	"github.com/lawgraph/lawgraph/types"
)

// Client wraps a Store with typed accessors so the rest of the engine never
// handles raw records.
type Client struct {
	store  Store
	logger *zap.Logger
}

// NewClient creates a typed client over the given store.
func NewClient(store Store, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{store: store, logger: logger.With(zap.String("component", "graph_client"))}
}

// ScoredNode is a paragraph node with its query similarity.
type ScoredNode struct {
	Node  *Node
	Score float64
}

// Neighbor is a node reached over a single relationship.
type Neighbor struct {
	Node *Node
	Edge *Edge
}

// SearchParagraphs runs vector similarity search over paragraph embeddings,
// optionally restricted to one domain. Fewer than limit results is not an
// error; an empty corpus yields an empty slice.
func (c *Client) SearchParagraphs(ctx context.Context, embedding []float64, domainID string, limit int) ([]ScoredNode, error) {
	records, err := c.store.RunQuery(ctx, QueryParagraphSearch, map[string]any{
		"embedding": embedding,
		"domain_id": domainID,
		"limit":     limit,
	})
	if err != nil {
		return nil, err
	}
	results := make([]ScoredNode, 0, len(records))
	for _, rec := range records {
		node, ok := rec["node"].(*Node)
		if !ok {
			continue
		}
		score, _ := rec["score"].(float64)
		results = append(results, ScoredNode{Node: node, Score: score})
	}
	return results, nil
}

// ParagraphsByCitation returns the paragraphs matching an explicit citation.
// A citation with no match is a valid empty result.
func (c *Client) ParagraphsByCitation(ctx context.Context, citation statute.Citation) ([]*Node, error) {
	records, err := c.store.RunQuery(ctx, QueryCitationLookup, map[string]any{
		"article":   citation.Article,
		"paragraph": citation.Paragraph,
	})
	if err != nil {
		return nil, err
	}
	return decodeNodes(records), nil
}

// Neighborhood returns every node adjacent to id together with the
// connecting relationship.
func (c *Client) Neighborhood(ctx context.Context, id string) ([]Neighbor, error) {
	records, err := c.store.RunQuery(ctx, QueryNeighborhood, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	neighbors := make([]Neighbor, 0, len(records))
	for _, rec := range records {
		node, ok := rec["node"].(*Node)
		if !ok {
			continue
		}
		edge, _ := rec["rel"].(*Edge)
		neighbors = append(neighbors, Neighbor{Node: node, Edge: edge})
	}
	return neighbors, nil
}

// UpsertUnits writes lexical units and their relationships.
func (c *Client) UpsertUnits(ctx context.Context, nodes []*Node, edges []*Edge) error {
	_, err := c.store.RunQuery(ctx, QueryUpsertUnits, map[string]any{
		"nodes": nodes,
		"edges": edges,
	})
	return err
}

// ReplaceDomains replaces the whole domain partition in one atomic pass and
// stamps the given version marker.
func (c *Client) ReplaceDomains(ctx context.Context, domains []*Domain, membership map[string]string, version string) error {
	_, err := c.store.RunQuery(ctx, QueryReplaceDomains, map[string]any{
		"domains":    domains,
		"membership": membership,
		"version":    version,
	})
	return err
}

// ListDomains returns the current domain set.
func (c *Client) ListDomains(ctx context.Context) ([]*Domain, error) {
	records, err := c.store.RunQuery(ctx, QueryListDomains, nil)
	if err != nil {
		return nil, err
	}
	domains := make([]*Domain, 0, len(records))
	for _, rec := range records {
		if d, ok := rec["domain"].(*Domain); ok {
			domains = append(domains, d)
		}
	}
	return domains, nil
}

// DomainMembers returns the paragraphs assigned to a domain.
func (c *Client) DomainMembers(ctx context.Context, domainID string) ([]*Node, error) {
	records, err := c.store.RunQuery(ctx, QueryDomainMembers, map[string]any{"domain_id": domainID})
	if err != nil {
		return nil, err
	}
	return decodeNodes(records), nil
}

// PartitionVersion returns the version marker of the persisted partition,
// empty when no partition has run yet.
func (c *Client) PartitionVersion(ctx context.Context) (string, error) {
	records, err := c.store.RunQuery(ctx, QueryPartitionVersion, nil)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	version, _ := records[0]["version"].(string)
	return version, nil
}

// EmbeddedParagraphs returns every paragraph carrying an embedding.
func (c *Client) EmbeddedParagraphs(ctx context.Context) ([]*Node, error) {
	records, err := c.store.RunQuery(ctx, QueryParagraphAll, nil)
	if err != nil {
		return nil, err
	}
	return decodeNodes(records), nil
}

// EmbeddedParagraphCount returns how many paragraphs carry an embedding.
func (c *Client) EmbeddedParagraphCount(ctx context.Context) (int, error) {
	records, err := c.store.RunQuery(ctx, QueryParagraphCount, nil)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	count, _ := records[0]["count"].(int)
	return count, nil
}

// CheckDimensions verifies that the store's vector index matches the
// configured embedding dimensionality. A mismatch is fatal: similarity
// scores against a mismatched index are meaningless.
func (c *Client) CheckDimensions(ctx context.Context, providerDims int) error {
	records, err := c.store.RunQuery(ctx, QueryIndexDimensions, nil)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	indexDims, _ := records[0]["dimensions"].(int)
	if indexDims != 0 && providerDims != 0 && indexDims != providerDims {
		return types.NewError(types.ErrDimensionMismatch,
			"vector index and embedding provider dimensionality differ").
			WithStage("init")
	}
	return nil
}

func decodeNodes(records []Record) []*Node {
	nodes := make([]*Node, 0, len(records))
	for _, rec := range records {
		if n, ok := rec["node"].(*Node); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
