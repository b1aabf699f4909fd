package partition

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lawgraph/lawgraph/graph"
)

// Action records one split or merge taken by a rebalancing pass.
type Action struct {
	Type        string   `json:"type"` // "split" or "merge"
	Sources     []string `json:"sources"`
	Results     []string `json:"results"`
	SizesBefore []int    `json:"sizes_before"`
	SizesAfter  []int    `json:"sizes_after"`
}

// RebalanceReport is the audit record of a rebalancing pass.
type RebalanceReport struct {
	Actions       []Action `json:"actions"`
	DomainsBefore int      `json:"domains_before"`
	DomainsAfter  int      `json:"domains_after"`
	Version       string   `json:"version,omitempty"`
}

// working is a domain plus its loaded members during rebalancing.
type working struct {
	domain  *graph.Domain
	members []*graph.Node

	// unsplittable marks an oversized domain no split can fix without
	// violating the lower bound. It stays oversized, keeping re-runs no-ops.
	unsplittable bool
}

// Rebalance merges every domain below the lower size bound into its
// nearest-centroid neighbor, then splits every domain above the upper bound
// in two, and applies the outcome atomically. A balanced domain set performs
// zero actions and writes nothing, so re-running is a no-op.
func (p *Partitioner) Rebalance(ctx context.Context) (*RebalanceReport, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	domains, err := p.client.ListDomains(ctx)
	if err != nil {
		return nil, err
	}
	set := make([]*working, 0, len(domains))
	for _, d := range domains {
		members, err := p.client.DomainMembers(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		copied := *d
		set = append(set, &working{domain: &copied, members: members})
	}

	report := &RebalanceReport{DomainsBefore: len(set)}

	set = p.mergeUndersized(set, report)
	set = p.splitOversized(set, report)

	report.DomainsAfter = len(set)
	if len(report.Actions) == 0 {
		p.logger.Info("rebalance: domain set already balanced")
		return report, nil
	}

	newDomains := make([]*graph.Domain, 0, len(set))
	membership := make(map[string]string)
	for _, w := range set {
		w.domain.NodeCount = len(w.members)
		newDomains = append(newDomains, w.domain)
		for _, m := range w.members {
			membership[m.ID] = w.domain.ID
		}
	}
	version := uuid.NewString()
	if err := p.client.ReplaceDomains(ctx, newDomains, membership, version); err != nil {
		return nil, err
	}
	report.Version = version
	p.logger.Info("rebalance applied",
		zap.Int("actions", len(report.Actions)),
		zap.Int("domains_before", report.DomainsBefore),
		zap.Int("domains_after", report.DomainsAfter))
	return report, nil
}

// mergeUndersized folds domains below the lower bound into their nearest
// neighbor. The last remaining domain is never merged away, even when the
// corpus is too small to satisfy the bound.
func (p *Partitioner) mergeUndersized(set []*working, report *RebalanceReport) []*working {
	if p.config.MinDomainSize <= 0 {
		return set
	}
	for {
		idx := -1
		for i, w := range set {
			if len(w.members) < p.config.MinDomainSize {
				idx = i
				break
			}
		}
		if idx < 0 || len(set) < 2 {
			return set
		}

		small := set[idx]
		nearest := -1
		nearestDist := 0.0
		for i, w := range set {
			if i == idx {
				continue
			}
			d := graph.EuclideanDistance(small.domain.Centroid, w.domain.Centroid)
			if nearest < 0 || d < nearestDist {
				nearest = i
				nearestDist = d
			}
		}
		target := set[nearest]

		action := Action{
			Type:        "merge",
			Sources:     []string{small.domain.ID, target.domain.ID},
			SizesBefore: []int{len(small.members), len(target.members)},
		}
		target.members = append(target.members, small.members...)
		target.domain.Centroid = Mean(memberEmbeddings(target.members))
		action.Results = []string{target.domain.ID}
		action.SizesAfter = []int{len(target.members)}
		report.Actions = append(report.Actions, action)

		set = append(set[:idx], set[idx+1:]...)
	}
}

// splitOversized re-clusters domains above the upper bound into two
// sub-domains, repeating until every remaining domain either fits or cannot
// be split within the bounds. A split never produces a half below the lower
// bound, so the merge pass that ran first stays final.
func (p *Partitioner) splitOversized(set []*working, report *RebalanceReport) []*working {
	if p.config.MaxDomainSize <= 0 {
		return set
	}
	for {
		idx := -1
		for i, w := range set {
			if len(w.members) > p.config.MaxDomainSize && !w.unsplittable {
				idx = i
				break
			}
		}
		if idx < 0 {
			return set
		}

		oversize := set[idx]
		halves := p.splitInTwo(oversize)
		if halves == nil {
			// Either the embeddings are inseparable or both halves cannot
			// clear the lower bound. The domain stays oversized.
			oversize.unsplittable = true
			p.logger.Warn("no bound-respecting split exists, leaving domain oversized",
				zap.String("domain", oversize.domain.ID),
				zap.Int("size", len(oversize.members)))
			continue
		}

		report.Actions = append(report.Actions, Action{
			Type:        "split",
			Sources:     []string{oversize.domain.ID},
			Results:     []string{halves[0].domain.ID, halves[1].domain.ID},
			SizesBefore: []int{len(oversize.members)},
			SizesAfter:  []int{len(halves[0].members), len(halves[1].members)},
		})
		set = append(set[:idx], set[idx+1:]...)
		set = append(set, halves[0], halves[1])
	}
}

func (p *Partitioner) splitInTwo(w *working) []*working {
	if p.config.MinDomainSize > 0 && len(w.members) < 2*p.config.MinDomainSize {
		return nil
	}
	points := memberEmbeddings(w.members)
	_, assignments := KMeans(points, 2, p.config.MaxIterations)

	var left, right []*graph.Node
	for i, a := range assignments {
		if a == 0 {
			left = append(left, w.members[i])
		} else {
			right = append(right, w.members[i])
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return nil
	}
	left, right = p.balanceHalves(left, right)

	halves := make([]*working, 2)
	for i, members := range [][]*graph.Node{left, right} {
		halves[i] = &working{
			domain: &graph.Domain{
				ID:          uuid.NewString(),
				Name:        fmt.Sprintf("%s/%d", w.domain.Name, i+1),
				Description: w.domain.Description,
				Centroid:    Mean(memberEmbeddings(members)),
				NodeCount:   len(members),
			},
			members: members,
		}
	}
	return halves
}

// balanceHalves tops up a half below the lower bound with the other half's
// members nearest to its centroid. An uneven k-means cut, a tight cluster
// plus a few outliers, would otherwise leave an undersized domain behind.
func (p *Partitioner) balanceHalves(left, right []*graph.Node) ([]*graph.Node, []*graph.Node) {
	min := p.config.MinDomainSize
	if min <= 0 {
		return left, right
	}
	if len(left) < min {
		left, right = topUp(left, right, min)
	}
	if len(right) < min {
		right, left = topUp(right, left, min)
	}
	return left, right
}

func topUp(small, large []*graph.Node, min int) ([]*graph.Node, []*graph.Node) {
	for len(small) < min && len(large) > 0 {
		centroid := Mean(memberEmbeddings(small))
		nearest := 0
		nearestDist := graph.EuclideanDistance(large[0].Embedding, centroid)
		for i := 1; i < len(large); i++ {
			if d := graph.EuclideanDistance(large[i].Embedding, centroid); d < nearestDist {
				nearest = i
				nearestDist = d
			}
		}
		small = append(small, large[nearest])
		large = append(large[:nearest], large[nearest+1:]...)
	}
	return small, large
}

func memberEmbeddings(members []*graph.Node) [][]float64 {
	embeddings := make([][]float64, len(members))
	for i, m := range members {
		embeddings[i] = m.Embedding
	}
	return embeddings
}
