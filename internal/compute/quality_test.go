// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package compute

import (
	"context"
	"math"
	"testing"
)

const tolerance = 1e-6

func TestQualityGuard(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		labels []int
		want   bool
	}{
		{"two clusters", []int{0, 0, 1, 1}, true},
		{"noise counts as a label", []int{0, 0, -1}, true},
		{"single cluster", []int{0, 0, 0}, false},
		{"every sample its own label", []int{0, 1, 2}, false},
		{"empty", []int{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := QualityGuard(tt.labels); got != tt.want {
				t.Errorf("QualityGuard(%v) = %v, want %v", tt.labels, got, tt.want)
			}
		})
	}
}

func TestQualityScores(t *testing.T) {
	t.Parallel()

	data := [][]float64{{0}, {1}, {10}, {11}}
	labels := []int{0, 0, 1, 1}

	silhouette, scores, ok, err := Quality(context.Background(), data, labels)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("Expected quality to be defined")
	}

	want := 9.5 / 10.5
	for i, s := range silhouette {
		if math.Abs(s-want) > tolerance {
			t.Errorf("silhouette[%d] = %v, want %v", i, s, want)
		}
	}
	if math.Abs(scores.CalinskiHarabasz-200) > tolerance {
		t.Errorf("CalinskiHarabasz = %v, want 200", scores.CalinskiHarabasz)
	}
	if math.Abs(scores.DaviesBouldin-0.1) > tolerance {
		t.Errorf("DaviesBouldin = %v, want 0.1", scores.DaviesBouldin)
	}
}

func TestQualityUndefined(t *testing.T) {
	t.Parallel()

	silhouette, scores, ok, err := Quality(context.Background(), [][]float64{{0}, {1}, {2}}, []int{0, 0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Expected quality to be undefined for a single cluster")
	}
	if silhouette == nil || len(silhouette) != 0 {
		t.Errorf("Expected an empty, non-nil silhouette slice, got %v", silhouette)
	}
	if scores != nil {
		t.Errorf("Expected nil scores, got %+v", scores)
	}
}

func TestSilhouetteSingletonScoresZero(t *testing.T) {
	t.Parallel()

	x, err := ToDense([][]float64{{0}, {1}, {10}})
	if err != nil {
		t.Fatal(err)
	}
	got, err := SilhouetteSamples(context.Background(), x, []int{0, 0, 1})
	if err != nil {
		t.Fatal(err)
	}
	if got[2] != 0 {
		t.Errorf("Singleton silhouette = %v, want 0", got[2])
	}
	// a = 1, b = 10 for the first sample.
	if math.Abs(got[0]-0.9) > tolerance {
		t.Errorf("silhouette[0] = %v, want 0.9", got[0])
	}
}

func TestCalinskiHarabaszWithoutSpread(t *testing.T) {
	t.Parallel()

	x, err := ToDense([][]float64{{1, 1}, {1, 1}, {5, 5}, {5, 5}})
	if err != nil {
		t.Fatal(err)
	}
	if got := CalinskiHarabasz(x, []int{0, 0, 1, 1}); got != 1 {
		t.Errorf("CalinskiHarabasz = %v, want 1", got)
	}
	if got := DaviesBouldin(x, []int{0, 0, 1, 1}); got != 0 {
		t.Errorf("DaviesBouldin = %v, want 0", got)
	}
}
