// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package hierarchy

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError with errors.Is.
var ErrNotFound = errors.New("hierarchy: not found")

// ErrNotDemo is returned by EnsureDemoSandbox for owned experiments.
var ErrNotDemo = errors.New("hierarchy: not a demo experiment")

// Messages reported to clients. Existence is checked from the experiment
// down to individual files and the first missing level wins.
const (
	MsgExperimentInvalid  = "Experiment id not valid"
	MsgExperimentMetadata = "Experiment metadata file not exist"
	MsgEmbeddingsMissing  = "Experiment embeddings file not exist"
	MsgLabelsMissing      = "Labels file not exist"
	MsgImageMissing       = "The image doesn't exist"
)

// NotFoundError carries the most specific missing level of a lookup.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrNotFound) hold.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func notFound(msg string) error {
	return &NotFoundError{Message: msg}
}

func msgCollectionInvalid(kind Kind) string {
	return fmt.Sprintf("%ss dir not valid", kind.title())
}

func msgResultInvalid(kind Kind) string {
	return fmt.Sprintf("%s id not valid", kind.title())
}

func msgResultMetadata(kind Kind) string {
	return fmt.Sprintf("%s metadata file not exist", kind.title())
}

func msgPayloadMissing(kind Kind) string {
	return fmt.Sprintf("%s file not exist", kind.title())
}

func msgLabelsMissing(kind Kind) string {
	return fmt.Sprintf("%s label file not exist", kind.title())
}
