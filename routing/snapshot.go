// Package routing decides which domain(s) should answer a query. Routing is
// stateless across requests: every invocation is a pure function of the query
// embedding and an immutable domain snapshot acquired at request start.
package routing

import (
	"context"
	"time"

	"github.com/lawgraph/lawgraph/graph"
	"github.com/lawgraph/lawgraph/types"
)

// Snapshot is an immutable view of the persisted domain set at one partition
// version. Repartitioning produces a new snapshot; existing snapshots are
// never mutated.
type Snapshot struct {
	Version  string          `json:"version"`
	Domains  []*graph.Domain `json:"domains"`
	LoadedAt time.Time       `json:"loaded_at"`
}

// NewSnapshot validates and wraps a domain set. A domain with a zero centroid
// would score every query identically, so it is rejected as a data-integrity
// failure rather than served.
func NewSnapshot(version string, domains []*graph.Domain) (*Snapshot, error) {
	if len(domains) == 0 {
		return nil, types.NewError(types.ErrEmptySnapshot, "no domains in partition").
			WithStage("routing")
	}
	for _, d := range domains {
		if isZeroVector(d.Centroid) {
			return nil, types.NewError(types.ErrZeroCentroid,
				"domain "+d.ID+" has a zero centroid").WithStage("routing")
		}
	}
	return &Snapshot{Version: version, Domains: domains, LoadedAt: time.Now()}, nil
}

// LoadSnapshot reads the current domain set and partition version from the
// graph.
func LoadSnapshot(ctx context.Context, client *graph.Client) (*Snapshot, error) {
	version, err := client.PartitionVersion(ctx)
	if err != nil {
		return nil, err
	}
	domains, err := client.ListDomains(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(version, domains)
}

func isZeroVector(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
