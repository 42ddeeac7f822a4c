// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/sra-fetch/internal/filter"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// ReadQueryFile loads a query file and validates its filters. A query file
// lets a researcher save a search with its filters and rerun it later:
//
//	search: chicken[Organism] AND "strategy rna seq"[Properties]
//	max_records: 5000
//	filters:
//	  - field: library_layout
//	    op: "="
//	    value: paired
//	  - field: read_average
//	    op: ">="
//	    value: "100"
func ReadQueryFile(path string) (types.Query, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.Query{}, fmt.Errorf("reading query file: %w", err)
	}
	var q types.Query
	if err := yaml.Unmarshal(data, &q); err != nil {
		return types.Query{}, fmt.Errorf("parsing query file: %w", err)
	}
	if _, err := filter.Compile(q.Filters); err != nil {
		return types.Query{}, fmt.Errorf("query file %s: %w", path, err)
	}
	return q, nil
}

// WriteQueryFile saves q as YAML.
func WriteQueryFile(path string, q types.Query) error {
	data, err := yaml.Marshal(&q)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
