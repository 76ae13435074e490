// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package compute

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	tsneExaggeration     = 12.0
	tsneExaggerationIter = 250
	tsneMinGain          = 0.01
	tsneEntropyTol       = 1e-5
	tsneSearchSteps      = 100
)

// reduceTSNE is exact (O(n²) per iteration) t-SNE with early exaggeration,
// momentum and adaptive gains.
func reduceTSNE(ctx context.Context, x *mat.Dense, k int, params any) (*mat.Dense, error) {
	p := params.(*TSNEParams)
	n, _ := x.Dims()
	if float64(p.Perplexity) >= float64(n) {
		return nil, fmt.Errorf("%w: perplexity %d must be less than the %d samples", ErrInvalidInput, p.Perplexity, n)
	}

	sq, err := squaredDistances(ctx, x)
	if err != nil {
		return nil, err
	}
	P := jointProbabilities(sq, float64(p.Perplexity))

	rng := newRand()
	y := make([]float64, n*k)
	for i := range y {
		y[i] = rng.NormFloat64() * 1e-4
	}
	update := make([]float64, n*k)
	gains := make([]float64, n*k)
	for i := range gains {
		gains[i] = 1
	}
	grad := make([]float64, n*k)
	num := make([]float64, n*n)
	lr := float64(p.LearningRate)

	for iter := 0; iter < p.Iterations; iter++ {
		if iter%10 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		exaggeration, momentum := 1.0, 0.8
		if iter < tsneExaggerationIter {
			exaggeration, momentum = tsneExaggeration, 0.5
		}

		// Student-t kernel between embedded points.
		var sum float64
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				var d float64
				for c := 0; c < k; c++ {
					diff := y[i*k+c] - y[j*k+c]
					d += diff * diff
				}
				q := 1 / (1 + d)
				num[i*n+j], num[j*n+i] = q, q
				sum += 2 * q
			}
		}
		if sum == 0 {
			return nil, fmt.Errorf("%w: t-SNE collapsed", ErrNotConverged)
		}

		for i := range grad {
			grad[i] = 0
		}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				mult := (exaggeration*P[i*n+j] - num[i*n+j]/sum) * num[i*n+j]
				for c := 0; c < k; c++ {
					grad[i*k+c] += 4 * mult * (y[i*k+c] - y[j*k+c])
				}
			}
		}

		for i := range y {
			if (grad[i] > 0) != (update[i] > 0) {
				gains[i] += 0.2
			} else {
				gains[i] *= 0.8
			}
			gains[i] = math.Max(gains[i], tsneMinGain)
			update[i] = momentum*update[i] - lr*gains[i]*grad[i]
			y[i] += update[i]
		}

		// Re-centre to keep the embedding from drifting.
		for c := 0; c < k; c++ {
			var mean float64
			for i := 0; i < n; i++ {
				mean += y[i*k+c]
			}
			mean /= float64(n)
			for i := 0; i < n; i++ {
				y[i*k+c] -= mean
			}
		}
	}

	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: t-SNE diverged", ErrNotConverged)
		}
	}
	return mat.NewDense(n, k, y), nil
}

// jointProbabilities calibrates a Gaussian per point to the target
// perplexity and returns the symmetrised joint distribution, row-major.
func jointProbabilities(sq mat.Symmetric, perplexity float64) []float64 {
	n := sq.SymmetricDim()
	target := math.Log(perplexity)
	cond := make([]float64, n*n)
	row := make([]float64, n)

	for i := 0; i < n; i++ {
		beta, lo, hi := 1.0, math.Inf(-1), math.Inf(1)
		for step := 0; step < tsneSearchSteps; step++ {
			var sum, weighted float64
			for j := 0; j < n; j++ {
				if j == i {
					row[j] = 0
					continue
				}
				row[j] = math.Exp(-sq.At(i, j) * beta)
				sum += row[j]
				weighted += sq.At(i, j) * row[j]
			}
			if sum == 0 {
				sum = 1e-12
			}
			entropy := math.Log(sum) + beta*weighted/sum
			for j := range row {
				row[j] /= sum
			}

			diff := entropy - target
			if math.Abs(diff) < tsneEntropyTol {
				break
			}
			if diff > 0 {
				lo = beta
				if math.IsInf(hi, 1) {
					beta *= 2
				} else {
					beta = (beta + hi) / 2
				}
			} else {
				hi = beta
				if math.IsInf(lo, -1) {
					beta /= 2
				} else {
					beta = (beta + lo) / 2
				}
			}
		}
		copy(cond[i*n:(i+1)*n], row)
	}

	joint := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			joint[i*n+j] = math.Max((cond[i*n+j]+cond[j*n+i])/(2*float64(n)), 1e-12)
		}
	}
	return joint
}
