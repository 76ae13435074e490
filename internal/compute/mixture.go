// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package compute

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// clusterSpectral embeds the rows with the normalised Laplacian of an RBF
// affinity (gamma 1) and runs k-means in the embedding.
func clusterSpectral(ctx context.Context, x *mat.Dense, params any) ([]int, error) {
	p := params.(*KMeansParams)

	sqd, err := squaredDistances(ctx, x)
	if err != nil {
		return nil, err
	}
	n := sqd.SymmetricDim()
	if p.NClusters > n {
		return nil, fmt.Errorf("%w: n_clusters=%d exceeds %d samples", ErrInvalidInput, p.NClusters, n)
	}

	w := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			w.SetSym(i, j, math.Exp(-sqd.At(i, j)))
		}
	}

	vecs, degrees, err := laplacianEigenmap(ctx, w, p.NClusters)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		row := vecs.RawRowView(i)
		floats.Scale(1/math.Sqrt(degrees[i]), row)
	}

	labels, _, err := kmeans(ctx, vecs, p.NClusters, newRand())
	return labels, err
}

const (
	gmmMaxIter  = 100
	gmmTol      = 1e-3
	gmmRegCovar = 1e-6
)

// clusterGaussianMixture fits a full-covariance Gaussian mixture with EM,
// initialised from k-means, and labels each row with its most likely
// component.
func clusterGaussianMixture(ctx context.Context, x *mat.Dense, params any) ([]int, error) {
	p := params.(*GaussianMixtureParams)
	n, d := x.Dims()
	k := p.NComponents

	init, _, err := kmeans(ctx, x, k, newRand())
	if err != nil {
		return nil, err
	}
	resp := mat.NewDense(n, k, nil)
	for i, l := range init {
		resp.Set(i, l, 1)
	}

	weights := make([]float64, k)
	means := mat.NewDense(k, d, nil)
	covs := make([]*mat.SymDense, k)
	logProb := make([]float64, k)
	prev := math.Inf(-1)

	for iter := 0; iter < gmmMaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// M step.
		for c := 0; c < k; c++ {
			col := mat.Col(nil, c, resp)
			nk := floats.Sum(col) + 10*floatEps
			weights[c] = nk / float64(n)

			mean := means.RawRowView(c)
			for j := range mean {
				mean[j] = 0
			}
			for i := 0; i < n; i++ {
				floats.AddScaled(mean, col[i], x.RawRowView(i))
			}
			floats.Scale(1/nk, mean)

			cov := mat.NewSymDense(d, nil)
			diff := make([]float64, d)
			for i := 0; i < n; i++ {
				if col[i] == 0 {
					continue
				}
				floats.SubTo(diff, x.RawRowView(i), mean)
				cov.SymRankOne(cov, col[i]/nk, mat.NewVecDense(d, diff))
			}
			for j := 0; j < d; j++ {
				cov.SetSym(j, j, cov.At(j, j)+gmmRegCovar)
			}
			covs[c] = cov
		}

		// E step.
		dists := make([]*distmv.Normal, k)
		for c := 0; c < k; c++ {
			normal, ok := distmv.NewNormal(means.RawRowView(c), covs[c], nil)
			if !ok {
				return nil, fmt.Errorf("%w: covariance of component %d is not positive definite", ErrNotConverged, c)
			}
			dists[c] = normal
		}

		var total float64
		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			for c := 0; c < k; c++ {
				logProb[c] = math.Log(weights[c]) + dists[c].LogProb(row)
			}
			norm := floats.LogSumExp(logProb)
			total += norm
			for c := 0; c < k; c++ {
				resp.Set(i, c, math.Exp(logProb[c]-norm))
			}
		}
		bound := total / float64(n)
		if math.IsNaN(bound) {
			return nil, fmt.Errorf("%w: gaussian mixture log-likelihood is NaN", ErrNotConverged)
		}
		if math.Abs(bound-prev) < gmmTol {
			break
		}
		prev = bound
	}

	labels := make([]int, n)
	for i := 0; i < n; i++ {
		labels[i] = floats.MaxIdx(resp.RawRowView(i))
	}
	return labels, nil
}

// floatEps is the float64 machine epsilon.
const floatEps = 2.220446049250313e-16
