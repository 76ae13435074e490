// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package compute

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Scores are the summary quality scores of a clustering.
type Scores struct {
	CalinskiHarabasz float64 `json:"calinski_harabasz_score"`
	DaviesBouldin    float64 `json:"davies_bouldin_score"`
}

// QualityGuard reports whether quality metrics are defined for labels:
// at least two distinct labels and fewer distinct labels than samples.
// Noise counts as a label.
func QualityGuard(labels []int) bool {
	distinct := make(map[int]struct{}, len(labels))
	for _, l := range labels {
		distinct[l] = struct{}{}
	}
	return len(distinct) >= 2 && len(distinct) < len(labels)
}

// Quality computes per-sample silhouettes and the summary scores. ok is
// false when QualityGuard does not hold, in which case both are empty.
func Quality(ctx context.Context, data [][]float64, labels []int) (silhouette []float64, scores *Scores, ok bool, err error) {
	if !QualityGuard(labels) {
		return []float64{}, nil, false, nil
	}
	x, err := ToDense(data)
	if err != nil {
		return nil, nil, false, err
	}

	silhouette, err = SilhouetteSamples(ctx, x, labels)
	if err != nil {
		return nil, nil, false, err
	}
	return silhouette, &Scores{
		CalinskiHarabasz: CalinskiHarabasz(x, labels),
		DaviesBouldin:    DaviesBouldin(x, labels),
	}, true, nil
}

// groups maps each label to a dense index and returns the sizes.
func groups(labels []int) (index map[int]int, sizes []int) {
	index = make(map[int]int)
	for _, l := range labels {
		if _, ok := index[l]; !ok {
			index[l] = len(index)
			sizes = append(sizes, 0)
		}
		sizes[index[l]]++
	}
	return index, sizes
}

// SilhouetteSamples returns the silhouette coefficient of every sample.
// Samples in singleton clusters score 0.
func SilhouetteSamples(ctx context.Context, x *mat.Dense, labels []int) ([]float64, error) {
	dist, err := distances(ctx, x)
	if err != nil {
		return nil, err
	}
	index, sizes := groups(labels)
	n := len(labels)
	k := len(sizes)

	out := make([]float64, n)
	sums := make([]float64, k)
	for i := 0; i < n; i++ {
		for c := range sums {
			sums[c] = 0
		}
		for j := 0; j < n; j++ {
			sums[index[labels[j]]] += dist.At(i, j)
		}

		own := index[labels[i]]
		if sizes[own] <= 1 {
			out[i] = 0
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for c := 0; c < k; c++ {
			if c != own {
				b = math.Min(b, sums[c]/float64(sizes[c]))
			}
		}
		if denom := math.Max(a, b); denom > 0 {
			out[i] = (b - a) / denom
		}
	}
	return out, nil
}

func centroids(x *mat.Dense, labels []int) (*mat.Dense, map[int]int, []int) {
	index, sizes := groups(labels)
	_, d := x.Dims()
	cent := mat.NewDense(len(sizes), d, nil)
	for i, l := range labels {
		floats.Add(cent.RawRowView(index[l]), x.RawRowView(i))
	}
	for c, size := range sizes {
		floats.Scale(1/float64(size), cent.RawRowView(c))
	}
	return cent, index, sizes
}

// CalinskiHarabasz is the ratio of between-cluster to within-cluster
// dispersion, scaled by degrees of freedom.
func CalinskiHarabasz(x *mat.Dense, labels []int) float64 {
	n, d := x.Dims()
	cent, index, sizes := centroids(x, labels)
	k := len(sizes)

	mean := make([]float64, d)
	for i := 0; i < n; i++ {
		floats.Add(mean, x.RawRowView(i))
	}
	floats.Scale(1/float64(n), mean)

	var extra, intra float64
	for c, size := range sizes {
		extra += float64(size) * sqDist(cent.RawRowView(c), mean)
	}
	for i, l := range labels {
		intra += sqDist(x.RawRowView(i), cent.RawRowView(index[l]))
	}

	if intra == 0 {
		return 1
	}
	return extra * float64(n-k) / (intra * float64(k-1))
}

// DaviesBouldin is the mean, over clusters, of the worst ratio of summed
// intra-cluster spread to centroid separation. Lower is better.
func DaviesBouldin(x *mat.Dense, labels []int) float64 {
	cent, index, sizes := centroids(x, labels)
	k := len(sizes)

	spread := make([]float64, k)
	for i, l := range labels {
		c := index[l]
		spread[c] += math.Sqrt(sqDist(x.RawRowView(i), cent.RawRowView(c)))
	}
	for c, size := range sizes {
		spread[c] /= float64(size)
	}

	sep := make([][]float64, k)
	allZeroSep := true
	for a := 0; a < k; a++ {
		sep[a] = make([]float64, k)
		for b := 0; b < k; b++ {
			sep[a][b] = math.Sqrt(sqDist(cent.RawRowView(a), cent.RawRowView(b)))
			if a != b && sep[a][b] > 1e-12 {
				allZeroSep = false
			}
		}
	}
	if allZeroSep || floats.Max(spread) <= 1e-12 {
		return 0
	}

	var total float64
	for a := 0; a < k; a++ {
		worst := 0.0
		for b := 0; b < k; b++ {
			if a == b {
				continue
			}
			s := sep[a][b]
			if s == 0 {
				continue
			}
			worst = math.Max(worst, (spread[a]+spread[b])/s)
		}
		total += worst
	}
	return total / float64(k)
}
