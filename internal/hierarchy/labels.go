// Latentspace - Embedding Reduction and Clustering Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/latentspace

package hierarchy

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// labelColumn names the point label column of a labels manifest.
const labelColumn = "file_name"

var errLabelsShape = errors.New("labels manifest is neither a record array nor a split table")

type splitTable struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

// ParseLabels extracts one label per point from a labels manifest. Two
// manifest shapes are accepted: an array of records carrying file_name,
// and a split table {columns, index, data} whose file_name column (or first
// column) holds the labels.
func ParseLabels(data []byte) ([]string, error) {
	var records []map[string]any
	if err := json.Unmarshal(data, &records); err == nil {
		out := make([]string, len(records))
		for i, r := range records {
			out[i] = labelString(r[labelColumn])
		}
		return out, nil
	}

	var table splitTable
	if err := json.Unmarshal(data, &table); err != nil || table.Data == nil {
		return nil, errLabelsShape
	}
	col := 0
	for i, c := range table.Columns {
		if c == labelColumn {
			col = i
			break
		}
	}
	out := make([]string, len(table.Data))
	for i, row := range table.Data {
		if col >= len(row) {
			return nil, fmt.Errorf("labels row %d has %d columns", i, len(row))
		}
		out[i] = labelString(row[col])
	}
	return out, nil
}

func labelString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
