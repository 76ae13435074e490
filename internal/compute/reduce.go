// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package compute

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func reducePCA(ctx context.Context, x *mat.Dense, k int, _ any) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("%w: principal components", ErrNotConverged)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	d, avail := vecs.Dims()
	if k > avail {
		return nil, fmt.Errorf("%w: %d components need at least %d samples", ErrInvalidInput, k, k)
	}

	var out mat.Dense
	out.Mul(center(x), vecs.Slice(0, d, 0, k))
	fixSigns(&out)
	return &out, nil
}

func reduceTruncatedSVD(ctx context.Context, x *mat.Dense, k int, _ any) (*mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, fmt.Errorf("%w: svd", ErrNotConverged)
	}
	var v mat.Dense
	svd.VTo(&v)

	d, avail := v.Dims()
	if k > avail {
		return nil, fmt.Errorf("%w: %d components need at least %d samples", ErrInvalidInput, k, k)
	}

	var out mat.Dense
	out.Mul(x, v.Slice(0, d, 0, k))
	fixSigns(&out)
	return &out, nil
}

// classicalMDS embeds points given their squared pairwise distances by
// double centering and an eigendecomposition.
func classicalMDS(ctx context.Context, sq mat.Symmetric, k int) (*mat.Dense, error) {
	n := sq.SymmetricDim()
	if k >= n {
		return nil, fmt.Errorf("%w: %d components need more than %d samples", ErrInvalidInput, k, n)
	}

	rowMean := make([]float64, n)
	var grand float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			rowMean[i] += sq.At(i, j)
		}
		grand += rowMean[i]
		rowMean[i] /= float64(n)
	}
	grand /= float64(n * n)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			b.SetSym(i, j, -0.5*(sq.At(i, j)-rowMean[i]-rowMean[j]+grand))
		}
	}

	values, vecs, err := topEigen(b, k)
	if err != nil {
		return nil, err
	}
	for c, v := range values {
		scale := math.Sqrt(math.Max(v, 0))
		for i := 0; i < n; i++ {
			vecs.Set(i, c, vecs.At(i, c)*scale)
		}
	}
	fixSigns(vecs)
	return vecs, nil
}

func reduceMDS(ctx context.Context, x *mat.Dense, k int, _ any) (*mat.Dense, error) {
	sq, err := squaredDistances(ctx, x)
	if err != nil {
		return nil, err
	}
	return classicalMDS(ctx, sq, k)
}

// reduceIsomap runs classical MDS on geodesic distances over the
// k-nearest-neighbour graph.
func reduceIsomap(ctx context.Context, x *mat.Dense, k int, params any) (*mat.Dense, error) {
	p := params.(*NeighborsParams)

	dist, err := distances(ctx, x)
	if err != nil {
		return nil, err
	}
	n := dist.SymmetricDim()

	g := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for i, nbrs := range nearestNeighbors(dist, p.Neighbors) {
		for _, j := range nbrs {
			g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(i), simple.Node(j), dist.At(i, j)))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shortest := path.DijkstraAllPaths(g)

	geo := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w := shortest.Weight(int64(i), int64(j))
			if math.IsInf(w, 1) {
				return nil, fmt.Errorf("%w: neighbourhood graph is disconnected, increase neighbors", ErrInvalidInput)
			}
			geo.SetSym(i, j, w*w)
		}
	}
	return classicalMDS(ctx, geo, k)
}

// reduceSpectralEmbedding embeds the rows with the eigenvectors of the
// normalised Laplacian of the symmetrised k-nearest-neighbour graph.
func reduceSpectralEmbedding(ctx context.Context, x *mat.Dense, k int, params any) (*mat.Dense, error) {
	p := params.(*NeighborsParams)

	dist, err := distances(ctx, x)
	if err != nil {
		return nil, err
	}
	n := dist.SymmetricDim()
	if k+1 > n {
		return nil, fmt.Errorf("%w: %d components need more than %d samples", ErrInvalidInput, k, n)
	}

	w := mat.NewSymDense(n, nil)
	for i, nbrs := range nearestNeighbors(dist, p.Neighbors) {
		for _, j := range nbrs {
			w.SetSym(i, j, w.At(i, j)+0.5)
		}
	}

	vecs, degrees, err := laplacianEigenmap(ctx, w, k+1)
	if err != nil {
		return nil, err
	}

	// The first eigenvector is trivial.
	out := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for c := 0; c < k; c++ {
			out.Set(i, c, vecs.At(i, c+1)/math.Sqrt(degrees[i]))
		}
	}
	fixSigns(out)
	return out, nil
}

// laplacianEigenmap returns the m eigenvectors of the symmetric normalised
// Laplacian of w with the smallest eigenvalues, and the node degrees.
func laplacianEigenmap(ctx context.Context, w mat.Symmetric, m int) (*mat.Dense, []float64, error) {
	n := w.SymmetricDim()
	degrees := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			degrees[i] += w.At(i, j)
		}
		if degrees[i] == 0 {
			return nil, nil, fmt.Errorf("%w: isolated sample %d in affinity graph", ErrInvalidInput, i)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	lap := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := -w.At(i, j) / math.Sqrt(degrees[i]*degrees[j])
			if i == j {
				v += 1
			}
			lap.SetSym(i, j, v)
		}
	}

	_, vecs, err := bottomEigen(lap, m)
	if err != nil {
		return nil, nil, err
	}
	return vecs, degrees, nil
}
