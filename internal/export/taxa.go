// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"slices"
	"strings"

	"github.com/natefinch/atomic"

	"github.com/pdiddy/sra-fetch/internal/parse"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// TaxaSet collects the distinct lineages seen in a run.
type TaxaSet struct {
	seen map[string]bool
}

// Add records r's lineage. Records without a lineage are ignored.
func (s *TaxaSet) Add(r types.Record) {
	if len(r.TaxonomicLineage) == 0 {
		return
	}
	if s.seen == nil {
		s.seen = map[string]bool{}
	}
	s.seen[parse.JoinLineage(r.TaxonomicLineage)] = true
}

// Lineages returns the collected lineages sorted.
func (s *TaxaSet) Lineages() []string {
	out := make([]string, 0, len(s.seen))
	for l := range s.seen {
		out = append(out, l)
	}
	slices.Sort(out)
	return out
}

// Len returns the number of distinct lineages.
func (s *TaxaSet) Len() int { return len(s.seen) }

// WriteTaxa atomically replaces path with the lineages in s, one per line.
func WriteTaxa(s *TaxaSet, path string) (int, error) {
	lineages := s.Lineages()
	var b strings.Builder
	for _, l := range lineages {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := atomic.WriteFile(path, strings.NewReader(b.String())); err != nil {
		return 0, &types.IOError{Path: path, Op: "write", Err: err}
	}
	return len(lineages), nil
}
