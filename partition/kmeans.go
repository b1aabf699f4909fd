// Package partition clusters embedded paragraphs into topic domains and keeps
// the persisted domain set balanced. Partitioning is re-runnable: it computes
// a full candidate partition and applies it as one atomic replace, so a
// concurrent reader never observes a half-applied assignment.
package partition

import (
	"github.com/lawgraph/lawgraph/graph"
)

// KMeans clusters points into at most k clusters using Lloyd iterations with
// farthest-first initialization. Initialization is deterministic so repeated
// partition runs over the same corpus converge to the same result. When k
// exceeds the number of points it is reduced; the returned centroid count is
// the effective k.
func KMeans(points [][]float64, k, maxIterations int) (centroids [][]float64, assignments []int) {
	if len(points) == 0 || k <= 0 {
		return nil, nil
	}
	if k > len(points) {
		k = len(points)
	}
	if maxIterations <= 0 {
		maxIterations = 50
	}

	centroids = initFarthestFirst(points, k)
	assignments = make([]int, len(points))
	for i := range assignments {
		assignments[i] = -1
	}

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			best := nearestCentroid(p, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		recomputeCentroids(points, assignments, centroids)
	}
	return centroids, assignments
}

// initFarthestFirst seeds centroids with the first point, then repeatedly
// picks the point farthest from its nearest chosen centroid.
func initFarthestFirst(points [][]float64, k int) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, cloneVector(points[0]))
	for len(centroids) < k {
		farthestIdx := 0
		farthestDist := -1.0
		for i, p := range points {
			nearest := graph.EuclideanDistance(p, centroids[0])
			for _, c := range centroids[1:] {
				if d := graph.EuclideanDistance(p, c); d < nearest {
					nearest = d
				}
			}
			if nearest > farthestDist {
				farthestDist = nearest
				farthestIdx = i
			}
		}
		centroids = append(centroids, cloneVector(points[farthestIdx]))
	}
	return centroids
}

func nearestCentroid(point []float64, centroids [][]float64) int {
	best := 0
	bestDist := graph.EuclideanDistance(point, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := graph.EuclideanDistance(point, centroids[i]); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// recomputeCentroids replaces each centroid with the mean of its assigned
// points. A cluster left empty keeps its previous centroid.
func recomputeCentroids(points [][]float64, assignments []int, centroids [][]float64) {
	dims := len(points[0])
	sums := make([][]float64, len(centroids))
	counts := make([]int, len(centroids))
	for i := range sums {
		sums[i] = make([]float64, dims)
	}
	for i, p := range points {
		c := assignments[i]
		for d := 0; d < dims; d++ {
			sums[c][d] += p[d]
		}
		counts[c]++
	}
	for c := range centroids {
		if counts[c] == 0 {
			continue
		}
		for d := 0; d < dims; d++ {
			centroids[c][d] = sums[c][d] / float64(counts[c])
		}
	}
}

// Mean computes the component-wise mean of vectors. Returns nil for an empty
// input.
func Mean(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for d := range mean {
			mean[d] += v[d]
		}
	}
	for d := range mean {
		mean[d] /= float64(len(vectors))
	}
	return mean
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}
