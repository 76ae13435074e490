// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package validation

import (
	"strings"
	"testing"
)

func TestGetValidatorIsShared(t *testing.T) {
	t.Parallel()
	if v := GetValidator(); v == nil || v != GetValidator() {
		t.Error("GetValidator should return one shared instance")
	}
}

type clusterParams struct {
	Eps        float64 `json:"eps" validate:"gte=0.01,lte=1"`
	MinSamples int     `json:"min_samples" validate:"gte=1,lte=300"`
	Metric     string  `json:"metric,omitempty" validate:"omitempty,oneof=euclidean cosine"`
}

type namedRequest struct {
	Experiment string `json:"experiment_id" validate:"required,pathsegment"`
	Name       string `validate:"max=5"`
}

func TestValidateStruct(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      any
		wantFields []string
		wantMsg    string
	}{
		{
			name:  "valid params",
			input: &clusterParams{Eps: 0.5, MinSamples: 5},
		},
		{
			name:       "eps below range",
			input:      &clusterParams{Eps: 0.001, MinSamples: 5},
			wantFields: []string{"eps"},
			wantMsg:    "eps must be greater than or equal to 0.01",
		},
		{
			name:       "two fields out of range",
			input:      &clusterParams{Eps: 2, MinSamples: 0},
			wantFields: []string{"eps", "min_samples"},
		},
		{
			name:       "oneof",
			input:      &clusterParams{Eps: 0.5, MinSamples: 1, Metric: "manhattan"},
			wantFields: []string{"metric"},
			wantMsg:    "metric must be one of: euclidean cosine",
		},
		{
			name:       "path traversal",
			input:      &namedRequest{Experiment: ".."},
			wantFields: []string{"experiment_id"},
			wantMsg:    "experiment_id must be a single path segment",
		},
		{
			name:       "struct field name without json tag",
			input:      &namedRequest{Experiment: "e1", Name: "toolong"},
			wantFields: []string{"Name"},
			wantMsg:    "Name must be at most 5 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := ValidateStruct(tt.input)
			if len(tt.wantFields) == 0 {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("Expected a validation error")
			}

			fields := err.Fields()
			if strings.Join(fields, ",") != strings.Join(tt.wantFields, ",") {
				t.Errorf("Fields() = %v, want %v", fields, tt.wantFields)
			}
			if tt.wantMsg != "" && err.Error() != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestIsPathSegment(t *testing.T) {
	t.Parallel()

	valid := []string{"e1", "demo-mnist", "0190a5c4-7b7e-7000-8000-000000000000", "img 01.png"}
	invalid := []string{"", ".", "..", "a/b", `a\b`, "x\x00"}

	for _, s := range valid {
		if !IsPathSegment(s) {
			t.Errorf("IsPathSegment(%q) = false", s)
		}
	}
	for _, s := range invalid {
		if IsPathSegment(s) {
			t.Errorf("IsPathSegment(%q) = true", s)
		}
	}
}

func TestNewRequestValidationError(t *testing.T) {
	t.Parallel()

	err := NewRequestValidationError("algorithm", "algorithm not available")
	if err.Error() != "algorithm not available" {
		t.Errorf("Unexpected message %q", err.Error())
	}
	if got := err.Fields(); len(got) != 1 || got[0] != "algorithm" {
		t.Errorf("Unexpected fields %v", got)
	}

	if fe := err.FieldErrors[0]; fe.Tag != "custom" || fe.Message != "algorithm not available" {
		t.Errorf("FieldError = %+v", fe)
	}

	empty := &RequestValidationError{}
	if empty.Error() != "validation failed" {
		t.Errorf("Unexpected empty message %q", empty.Error())
	}
}
