// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package compute

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Noise is the label DBSCAN gives to points outside every cluster.
const Noise = -1

func clusterDBSCAN(ctx context.Context, x *mat.Dense, params any) ([]int, error) {
	p := params.(*DBSCANParams)

	dist, err := distances(ctx, x)
	if err != nil {
		return nil, err
	}
	n := dist.SymmetricDim()

	neighbors := make([][]int, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			// A point is its own neighbour, as in sklearn.
			if dist.At(i, j) <= p.Eps {
				neighbors[i] = append(neighbors[i], j)
			}
		}
	}

	const unvisited = -2
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	cluster := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		if len(neighbors[i]) < p.MinSamples {
			labels[i] = Noise
			continue
		}

		labels[i] = cluster
		queue := append([]int(nil), neighbors[i]...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == Noise {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			if len(neighbors[j]) >= p.MinSamples {
				queue = append(queue, neighbors[j]...)
			}
		}
		cluster++

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return labels, nil
}

func clusterKMeans(ctx context.Context, x *mat.Dense, params any) ([]int, error) {
	p := params.(*KMeansParams)
	labels, _, err := kmeans(ctx, x, p.NClusters, newRand())
	return labels, err
}

const (
	kmeansMaxIter = 300
	kmeansTol     = 1e-4
)

// kmeans runs Lloyd's algorithm from a k-means++ seeding and returns the
// labels and centroids.
func kmeans(ctx context.Context, x *mat.Dense, k int, rng *rand.Rand) ([]int, *mat.Dense, error) {
	n, d := x.Dims()
	if k > n {
		return nil, nil, fmt.Errorf("%w: n_clusters=%d exceeds %d samples", ErrInvalidInput, k, n)
	}

	centroids := kmeansPlusPlus(x, k, rng)
	labels := make([]int, n)
	counts := make([]int, k)
	next := mat.NewDense(k, d, nil)

	for iter := 0; iter < kmeansMaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		for i := 0; i < n; i++ {
			labels[i] = nearestCentroid(x.RawRowView(i), centroids)
		}

		next.Zero()
		for c := range counts {
			counts[c] = 0
		}
		for i := 0; i < n; i++ {
			floats.Add(next.RawRowView(labels[i]), x.RawRowView(i))
			counts[labels[i]]++
		}

		var shift float64
		for c := 0; c < k; c++ {
			row := next.RawRowView(c)
			if counts[c] == 0 {
				// Re-seed an empty cluster on the point farthest from its centroid.
				far := farthestPoint(x, labels, centroids)
				copy(row, x.RawRowView(far))
			} else {
				floats.Scale(1/float64(counts[c]), row)
			}
			shift += sqDist(row, centroids.RawRowView(c))
		}
		centroids.Copy(next)
		if shift <= kmeansTol {
			break
		}
	}

	for i := 0; i < n; i++ {
		labels[i] = nearestCentroid(x.RawRowView(i), centroids)
	}
	return labels, centroids, nil
}

func kmeansPlusPlus(x *mat.Dense, k int, rng *rand.Rand) *mat.Dense {
	n, d := x.Dims()
	centroids := mat.NewDense(k, d, nil)
	copy(centroids.RawRowView(0), x.RawRowView(rng.IntN(n)))

	closest := make([]float64, n)
	for i := range closest {
		closest[i] = sqDist(x.RawRowView(i), centroids.RawRowView(0))
	}

	for c := 1; c < k; c++ {
		total := floats.Sum(closest)
		pick := 0
		if total > 0 {
			target := rng.Float64() * total
			for i, w := range closest {
				target -= w
				if target <= 0 {
					pick = i
					break
				}
			}
		} else {
			pick = rng.IntN(n)
		}
		copy(centroids.RawRowView(c), x.RawRowView(pick))
		for i := range closest {
			closest[i] = math.Min(closest[i], sqDist(x.RawRowView(i), centroids.RawRowView(c)))
		}
	}
	return centroids
}

func nearestCentroid(row []float64, centroids *mat.Dense) int {
	k, _ := centroids.Dims()
	best, bestDist := 0, math.Inf(1)
	for c := 0; c < k; c++ {
		if d := sqDist(row, centroids.RawRowView(c)); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

func farthestPoint(x *mat.Dense, labels []int, centroids *mat.Dense) int {
	far, farDist := 0, -1.0
	for i, l := range labels {
		if d := sqDist(x.RawRowView(i), centroids.RawRowView(l)); d > farDist {
			far, farDist = i, d
		}
	}
	return far
}

// clusterAgglomerative builds a Ward linkage bottom-up and stops merging at
// the first merge whose linkage distance reaches the threshold.
func clusterAgglomerative(ctx context.Context, x *mat.Dense, params any) ([]int, error) {
	p := params.(*AgglomerativeParams)
	threshold := float64(p.DistanceThreshold)

	dist, err := distances(ctx, x)
	if err != nil {
		return nil, err
	}
	n := dist.SymmetricDim()

	// d holds Ward distances between active clusters, updated with the
	// Lance-Williams recurrence.
	d := mat.DenseCopyOf(dist)
	size := make([]float64, n)
	parent := make([]int, n)
	active := make([]bool, n)
	for i := 0; i < n; i++ {
		size[i], parent[i], active[i] = 1, i, true
	}

	for remaining := n; remaining > 1; remaining-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		a, b, best := -1, -1, math.Inf(1)
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if active[j] && d.At(i, j) < best {
					a, b, best = i, j, d.At(i, j)
				}
			}
		}
		if best >= threshold {
			break
		}

		// Merge b into a.
		for k := 0; k < n; k++ {
			if !active[k] || k == a || k == b {
				continue
			}
			t := size[a] + size[b] + size[k]
			v := ((size[a]+size[k])*sq(d.At(a, k)) +
				(size[b]+size[k])*sq(d.At(b, k)) -
				size[k]*sq(best)) / t
			v = math.Sqrt(math.Max(v, 0))
			d.Set(a, k, v)
			d.Set(k, a, v)
		}
		size[a] += size[b]
		active[b] = false
		parent[b] = a
	}

	root := func(i int) int {
		for parent[i] != i {
			i = parent[i]
		}
		return i
	}
	return relabel(n, root), nil
}

func sq(v float64) float64 { return v * v }

// relabel assigns consecutive labels in order of first appearance.
func relabel(n int, group func(int) int) []int {
	ids := make(map[int]int)
	labels := make([]int, n)
	for i := 0; i < n; i++ {
		g := group(i)
		id, ok := ids[g]
		if !ok {
			id = len(ids)
			ids[g] = id
		}
		labels[i] = id
	}
	return labels
}

const (
	apDamping     = 0.5
	apMaxIter     = 200
	apConvergence = 15
)

// clusterAffinityPropagation uses negative squared Euclidean similarity
// with the median similarity as preference.
func clusterAffinityPropagation(ctx context.Context, x *mat.Dense, _ any) ([]int, error) {
	sqd, err := squaredDistances(ctx, x)
	if err != nil {
		return nil, err
	}
	n := sqd.SymmetricDim()
	if n == 1 {
		return []int{0}, nil
	}

	s := mat.NewDense(n, n, nil)
	offDiag := make([]float64, 0, n*(n-1))
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				v := -sqd.At(i, j)
				s.Set(i, j, v)
				offDiag = append(offDiag, v)
			}
		}
	}
	sort.Float64s(offDiag)
	preference := median(offDiag)
	for i := 0; i < n; i++ {
		s.Set(i, i, preference)
	}

	// Break ties between identical points deterministically.
	rng := newRand()
	tiny := math.SmallestNonzeroFloat64 * 100
	for i := 0; i < n; i++ {
		row := s.RawRowView(i)
		for j := range row {
			row[j] += (1e-12*math.Abs(row[j]) + tiny) * rng.Float64()
		}
	}

	r := mat.NewDense(n, n, nil)
	a := mat.NewDense(n, n, nil)
	exemplars := make([]bool, n)
	stable := 0

	for iter := 0; iter < apMaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Responsibilities.
		for i := 0; i < n; i++ {
			first, second, firstIdx := math.Inf(-1), math.Inf(-1), -1
			for k := 0; k < n; k++ {
				v := a.At(i, k) + s.At(i, k)
				if v > first {
					second = first
					first, firstIdx = v, k
				} else if v > second {
					second = v
				}
			}
			for k := 0; k < n; k++ {
				maxOther := first
				if k == firstIdx {
					maxOther = second
				}
				newR := s.At(i, k) - maxOther
				r.Set(i, k, apDamping*r.At(i, k)+(1-apDamping)*newR)
			}
		}

		// Availabilities.
		for k := 0; k < n; k++ {
			var sumPos float64
			for i := 0; i < n; i++ {
				if i != k {
					sumPos += math.Max(0, r.At(i, k))
				}
			}
			for i := 0; i < n; i++ {
				var newA float64
				if i == k {
					newA = sumPos
				} else {
					newA = math.Min(0, r.At(k, k)+sumPos-math.Max(0, r.At(i, k)))
				}
				a.Set(i, k, apDamping*a.At(i, k)+(1-apDamping)*newA)
			}
		}

		changed := false
		for k := 0; k < n; k++ {
			e := a.At(k, k)+r.At(k, k) > 0
			if e != exemplars[k] {
				changed = true
				exemplars[k] = e
			}
		}
		if changed {
			stable = 0
		} else {
			stable++
		}
		if stable >= apConvergence && iter >= apConvergence {
			break
		}
	}

	var centers []int
	for k, e := range exemplars {
		if e {
			centers = append(centers, k)
		}
	}
	if len(centers) == 0 {
		return nil, fmt.Errorf("%w: affinity propagation found no exemplars", ErrNotConverged)
	}

	labels := make([]int, n)
	for i := 0; i < n; i++ {
		best, bestSim := 0, math.Inf(-1)
		for c, k := range centers {
			if i == k {
				best = c
				break
			}
			if v := s.At(i, k); v > bestSim {
				best, bestSim = c, v
			}
		}
		labels[i] = best
	}
	return labels, nil
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
