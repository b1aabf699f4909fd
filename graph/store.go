// Package graph defines the boundary to the property graph holding the
// statute corpus, and provides an in-memory store implementing it. All
// variable inputs cross the boundary as bound parameters. The engine never
// interpolates untrusted text into a query template.
package graph

import (
	"context"
	"math"

	"github.com/lawgraph/lawgraph/types"
)

// Relationship types persisted in the graph.
const (
	RelContains        = "CONTAINS"
	RelImplements      = "IMPLEMENTS"
	RelBelongsToDomain = "BELONGS_TO_DOMAIN"
)

// Query templates understood by a Store. Parameters are passed by name; a
// store must reject templates it does not recognize.
const (
	QueryParagraphSearch   = "paragraph_search"   // embedding, domain_id?, limit
	QueryCitationLookup    = "citation_lookup"    // article, paragraph?
	QueryNeighborhood      = "neighborhood"       // id
	QueryUpsertUnits       = "upsert_units"       // nodes, edges
	QueryReplaceDomains    = "replace_domains"    // domains, membership, version
	QueryListDomains       = "list_domains"       //
	QueryDomainMembers     = "domain_members"     // domain_id
	QueryPartitionVersion  = "partition_version"  //
	QueryIndexDimensions   = "index_dimensions"   //
	QueryParagraphCount    = "paragraph_count"    //
	QueryParagraphAll      = "paragraph_all"      //
)

// Record is one row returned by a graph query.
type Record map[string]any

// Store executes parametrized graph queries with an explicit
// connect/disconnect lifecycle.
type Store interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
	RunQuery(ctx context.Context, template string, params map[string]any) ([]Record, error)
}

// Node is a node in the statute graph. ID is the composite path identifier
// for lexical units and the domain id for Domain nodes; it is the only
// globally unique key.
type Node struct {
	ID        string         `json:"id"`
	Kind      types.UnitKind `json:"kind"`
	Number    string         `json:"number,omitempty"`
	Title     string         `json:"title,omitempty"`
	Content   string         `json:"content,omitempty"`
	LawName   string         `json:"law_name,omitempty"`
	LawTier   types.LawTier  `json:"law_tier,omitempty"`
	Embedding []float64      `json:"embedding,omitempty"`
}

// Edge is a directed typed relationship. Embedding is the optional
// relationship embedding used to gate expansion.
type Edge struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Type      string    `json:"type"`
	Embedding []float64 `json:"embedding,omitempty"`
	Weight    float64   `json:"weight,omitempty"`
}

// Domain is a topic cluster of paragraphs served by one routing target.
type Domain struct {
	ID          string    `json:"domain_id"`
	Name        string    `json:"domain_name"`
	Description string    `json:"description"`
	Centroid    []float64 `json:"centroid"`
	NodeCount   int       `json:"node_count"`
}

// CosineSimilarity computes the cosine similarity of two vectors. A length
// mismatch is a data-integrity failure and reports ErrDimensionMismatch.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, types.NewError(types.ErrDimensionMismatch,
			"embedding dimension mismatch").WithStage("similarity")
	}
	if len(a) == 0 {
		return 0, nil
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// EuclideanDistance computes the L2 distance between two equal-length vectors.
func EuclideanDistance(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
