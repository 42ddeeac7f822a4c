// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/natefinch/atomic"
	"go.yaml.in/yaml/v3"
)

// Summary holds the counts from one run.
type Summary struct {
	Search           string `yaml:"search"`
	QueryTranslation string `yaml:"query_translation,omitempty"`
	Output           string `yaml:"output"`

	// Found is the service's total-count hint for the search.
	Found int `yaml:"found"`

	// Searched is the number of identifiers the search yielded, at most
	// max_records.
	Searched int `yaml:"searched"`

	DocumentsFetched  int `yaml:"documents_fetched"`
	RecordsParsed     int `yaml:"records_parsed"`
	RecordsAdmitted   int `yaml:"records_admitted"`
	RecordsWritten    int `yaml:"records_written"`
	UnfilteredWritten int `yaml:"unfiltered_written,omitempty"`
	Taxa              int `yaml:"taxa,omitempty"`

	ParseFailures   int `yaml:"parse_failures"`
	FieldWarnings   int `yaml:"field_warnings"`
	Duplicates      int `yaml:"duplicates"`
	LineageFailures int `yaml:"lineage_failures"`
	FailedBatches   int `yaml:"failed_batches"`

	// DroppedIDs lists identifiers that produced no document, from failed
	// batches and from omissions by the service.
	DroppedIDs []string `yaml:"dropped_ids,omitempty"`
}

// HasWarnings reports whether anything was dropped or degraded.
func (s Summary) HasWarnings() bool {
	return s.ParseFailures > 0 || s.FieldWarnings > 0 || s.Duplicates > 0 ||
		s.LineageFailures > 0 || s.FailedBatches > 0 || len(s.DroppedIDs) > 0
}

// Print writes the end-of-run report to w.
func (s Summary) Print(w io.Writer) {
	ok := color.New(color.FgGreen)
	warn := color.New(color.FgYellow)

	fmt.Fprintf(w, "\nRun summary: %s\n", s.Search)
	if s.QueryTranslation != "" && s.QueryTranslation != s.Search {
		fmt.Fprintf(w, "  translated:         %s\n", s.QueryTranslation)
	}
	fmt.Fprintf(w, "  identifiers:        %d of %d found\n", s.Searched, s.Found)
	fmt.Fprintf(w, "  documents fetched:  %d\n", s.DocumentsFetched)
	fmt.Fprintf(w, "  records parsed:     %d\n", s.RecordsParsed)
	ok.Fprintf(w, "  records admitted:   %d\n", s.RecordsAdmitted)
	fmt.Fprintf(w, "  written to %s: %d\n", s.Output, s.RecordsWritten)

	counts := []struct {
		label string
		n     int
	}{
		{"parse failures", s.ParseFailures},
		{"field warnings", s.FieldWarnings},
		{"duplicates", s.Duplicates},
		{"lineage failures", s.LineageFailures},
		{"failed batches", s.FailedBatches},
		{"dropped ids", len(s.DroppedIDs)},
	}
	for _, c := range counts {
		if c.n > 0 {
			warn.Fprintf(w, "  %-18s  %d\n", c.label+":", c.n)
		}
	}
	if len(s.DroppedIDs) > 0 {
		warn.Fprintf(w, "  dropped: %v\n", s.DroppedIDs)
	}
}

// WriteSummary atomically writes s as YAML to path.
func WriteSummary(path string, s Summary) error {
	data, err := yaml.Marshal(&s)
	if err != nil {
		return fmt.Errorf("marshaling summary: %w", err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing summary %s: %w", path, err)
	}
	return nil
}
