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
	"gonum.org/v1/gonum/stat"
)

// seed keeps stochastic algorithms reproducible across runs.
const seed = 42

func newRand() *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

// ToDense converts row-major embeddings to a matrix. Rows must be non-empty,
// equally sized and finite.
func ToDense(data [][]float64) (*mat.Dense, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty dataset", ErrInvalidInput)
	}
	cols := len(data[0])
	if cols == 0 {
		return nil, fmt.Errorf("%w: empty rows", ErrInvalidInput)
	}

	flat := make([]float64, 0, len(data)*cols)
	for i, row := range data {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidInput, i, len(row), cols)
		}
		for _, v := range row {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: row %d is not finite", ErrInvalidInput, i)
			}
		}
		flat = append(flat, row...)
	}
	return mat.NewDense(len(data), cols, flat), nil
}

// FromDense converts a matrix back to row-major slices.
func FromDense(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		row := make([]float64, c)
		for j := range row {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}

// center returns x with every column mean removed.
func center(x *mat.Dense) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		mean := stat.Mean(col, nil)
		for i := 0; i < r; i++ {
			out.Set(i, j, col[i]-mean)
		}
	}
	return out
}

// squaredDistances returns the n×n matrix of squared Euclidean distances
// between the rows of x.
func squaredDistances(ctx context.Context, x *mat.Dense) (*mat.SymDense, error) {
	n, _ := x.Dims()
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ri := x.RawRowView(i)
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, sqDist(ri, x.RawRowView(j)))
		}
	}
	return d, nil
}

// distances returns Euclidean distances between the rows of x.
func distances(ctx context.Context, x *mat.Dense) (*mat.SymDense, error) {
	d, err := squaredDistances(ctx, x)
	if err != nil {
		return nil, err
	}
	n := d.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, math.Sqrt(d.At(i, j)))
		}
	}
	return d, nil
}

func sqDist(a, b []float64) float64 {
	var s float64
	for k := range a {
		diff := a[k] - b[k]
		s += diff * diff
	}
	return s
}

// nearestNeighbors returns, for each row, the indices of its k nearest
// other rows under dist.
func nearestNeighbors(dist mat.Symmetric, k int) [][]int {
	n := dist.SymmetricDim()
	k = min(k, n-1)
	out := make([][]int, n)
	idx := make([]int, 0, n)
	for i := 0; i < n; i++ {
		idx = idx[:0]
		for j := 0; j < n; j++ {
			if j != i {
				idx = append(idx, j)
			}
		}
		sort.SliceStable(idx, func(a, b int) bool { return dist.At(i, idx[a]) < dist.At(i, idx[b]) })
		out[i] = append([]int(nil), idx[:k]...)
	}
	return out
}

// topEigen returns the k eigenpairs of the symmetric matrix s with the
// largest eigenvalues, largest first. Eigenvectors are the columns of the
// returned matrix.
func topEigen(s mat.Symmetric, k int) ([]float64, *mat.Dense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(s, true); !ok {
		return nil, nil, fmt.Errorf("%w: eigendecomposition failed", ErrNotConverged)
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	n := len(values)
	k = min(k, n)
	outVals := make([]float64, k)
	out := mat.NewDense(n, k, nil)
	col := make([]float64, n)
	// Values come back in ascending order.
	for c := 0; c < k; c++ {
		src := n - 1 - c
		outVals[c] = values[src]
		mat.Col(col, src, &vecs)
		out.SetCol(c, col)
	}
	return outVals, out, nil
}

// bottomEigen returns the k eigenpairs with the smallest eigenvalues,
// smallest first.
func bottomEigen(s mat.Symmetric, k int) ([]float64, *mat.Dense, error) {
	var eig mat.EigenSym
	if ok := eig.Factorize(s, true); !ok {
		return nil, nil, fmt.Errorf("%w: eigendecomposition failed", ErrNotConverged)
	}
	values := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	n := len(values)
	k = min(k, n)
	out := mat.NewDense(n, k, nil)
	col := make([]float64, n)
	for c := 0; c < k; c++ {
		mat.Col(col, c, &vecs)
		out.SetCol(c, col)
	}
	return append([]float64(nil), values[:k]...), out, nil
}

// fixSigns flips each column so its largest-magnitude entry is positive,
// which makes eigen and SVD based outputs deterministic.
func fixSigns(m *mat.Dense) {
	r, c := m.Dims()
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, m)
		if col[floats.MaxIdx(absAll(col))] < 0 {
			floats.Scale(-1, col)
			m.SetCol(j, col)
		}
	}
}

func absAll(v []float64) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = math.Abs(x)
	}
	return out
}
