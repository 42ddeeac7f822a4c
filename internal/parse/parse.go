// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package parse converts raw esummary documents into Records. It performs
// no I/O and is deterministic.
package parse

import (
	"slices"
	"strings"
	"time"

	"github.com/pdiddy/sra-fetch/pkg/types"
)

// Document paths read by the parser.
const (
	pathUID            = "uid"
	pathAccession      = "expxml.Experiment.@acc"
	pathTitle          = "expxml.Summary.Title"
	pathStudyTitle     = "expxml.Study.@name"
	pathStrategy       = "expxml.Library_descriptor.LIBRARY_STRATEGY"
	pathLayout         = "expxml.Library_descriptor.LIBRARY_LAYOUT"
	pathInstrument     = "expxml.Summary.Platform.@instrument_model"
	PathTaxID          = "expxml.Organism.@taxid"
	pathScientificName = "expxml.Organism.@ScientificName"
	pathRunAccession   = "runs.Run.@acc"
	pathRunSpots       = "runs.Run.@total_spots"
	pathRunBases       = "runs.Run.@total_bases"
	pathStatSpots      = "expxml.Summary.Statistics.@total_spots"
	pathStatBases      = "expxml.Summary.Statistics.@total_bases"
	pathStatSize       = "expxml.Summary.Statistics.@total_size"
	pathCreateDate     = "createdate"
)

const (
	// PathLineage is the document key the taxonomy resolver fills with a
	// delimited lineage.
	PathLineage = "lineage"

	// LineageSeparator joins taxa in exports and resolver output.
	LineageSeparator = "; "
)

var dateLayouts = []string{
	"2006/01/02",
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04",
	time.RFC3339,
}

// Parse builds a Record from doc. A missing accession or run accession is
// a *types.ParseError. Optional fields that are absent become null; those
// present but not coercible become null and are reported as warnings.
func Parse(doc types.Document) (types.Record, []types.FieldWarning, error) {
	uid, _ := doc.String(pathUID)

	accession, ok := doc.String(pathAccession)
	if !ok {
		return types.Record{}, nil, &types.ParseError{ID: uid, Field: "accession"}
	}
	run, ok := doc.String(pathRunAccession)
	if !ok {
		return types.Record{}, nil, &types.ParseError{ID: accession, Field: "run_accession"}
	}

	p := parser{doc: doc, accession: accession}
	r := types.Record{
		Accession:        accession,
		RunAccession:     run,
		StudyTitle:       p.text(pathStudyTitle),
		LibraryStrategy:  p.text(pathStrategy),
		InstrumentModel:  p.text(pathInstrument),
		ScientificName:   p.text(pathScientificName),
		TaxonID:          p.integer("taxon_id", PathTaxID),
		TotalSpots:       p.integer("total_spots", pathRunSpots, pathStatSpots),
		TotalBases:       p.integer("total_bases", pathRunBases, pathStatBases),
		Size:             p.integer("size", pathStatSize),
		Published:        p.date("published", pathCreateDate),
		TaxonomicLineage: ParseLineage(p.text(PathLineage)),
	}

	r.Title = p.text(pathTitle)
	if r.Title == "" {
		r.Title = r.StudyTitle
	}

	r.LibraryLayout, r.LayoutRecognized = p.layout()
	r.NReads = nreads(r.LibraryLayout, r.LayoutRecognized)
	r.ReadAverage = ReadAverage(r.TotalBases, r.TotalSpots, r.NReads)

	return r, p.warnings, nil
}

type parser struct {
	doc       types.Document
	accession string
	warnings  []types.FieldWarning
}

func (p *parser) text(path string) string {
	s, _ := p.doc.String(path)
	return s
}

// integer reads the first present path. A negative value is treated as a
// coercion failure.
func (p *parser) integer(field string, paths ...string) *int64 {
	for _, path := range paths {
		n, present, ok := p.doc.Int(path)
		if !present {
			continue
		}
		if !ok || n < 0 {
			raw, _ := p.doc.String(path)
			p.warn(field, raw)
			return nil
		}
		return &n
	}
	return nil
}

func (p *parser) date(field, path string) *time.Time {
	raw, ok := p.doc.String(path)
	if !ok {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &d
		}
	}
	p.warn(field, raw)
	return nil
}

// layout returns the normalized library layout. In esummary the layout is
// the name of the single child element of LIBRARY_LAYOUT; some feeds carry
// it as text instead.
func (p *parser) layout() (string, bool) {
	var raw string
	if m, ok := p.doc.Map(pathLayout); ok {
		var children []string
		for k := range m {
			if !strings.HasPrefix(k, "@") && k != types.TextKey {
				children = append(children, k)
			}
		}
		if len(children) > 0 {
			slices.Sort(children)
			raw = children[0]
		}
		if raw == "" {
			raw, _ = m[types.TextKey].(string)
		}
	} else {
		raw, _ = p.doc.String(pathLayout)
	}
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case types.LayoutSingle:
		return types.LayoutSingle, true
	case types.LayoutPaired:
		return types.LayoutPaired, true
	default:
		return raw, false
	}
}

func (p *parser) warn(field, raw string) {
	p.warnings = append(p.warnings, types.FieldWarning{Accession: p.accession, Field: field, Raw: raw})
}

// nreads derives reads per spot from the layout; unrecognized layouts
// yield null.
func nreads(layout string, recognized bool) *int64 {
	if !recognized {
		return nil
	}
	n := int64(1)
	if layout == types.LayoutPaired {
		n = 2
	}
	return &n
}

// ReadAverage computes total_bases / (total_spots × nreads), or nil when
// any input is nil or zero.
func ReadAverage(bases, spots, nreads *int64) *float64 {
	if bases == nil || spots == nil || nreads == nil {
		return nil
	}
	if *bases == 0 || *spots == 0 || *nreads == 0 {
		return nil
	}
	avg := float64(*bases) / (float64(*spots) * float64(*nreads))
	return &avg
}

// ParseLineage splits a "; "-delimited lineage into its taxa, root first.
// An empty string yields an empty, non-nil slice.
func ParseLineage(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// JoinLineage is the inverse of ParseLineage.
func JoinLineage(taxa []string) string {
	return strings.Join(taxa, LineageSeparator)
}
