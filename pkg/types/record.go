// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the sra-fetch pipeline:
// the Record model, raw Documents, queries, predicates, configuration, and
// the pipeline error taxonomy.
package types

import "time"

// Layout values recognized in the SRA feed. Anything else is kept verbatim
// and flagged through Record.LayoutRecognized.
const (
	LayoutSingle = "single"
	LayoutPaired = "paired"
)

// Record is one archive entry plus its derived fields. A Record is built once
// by the field parser and never mutated afterwards; nil pointer fields are
// nulls.
type Record struct {
	// Accession is the experiment accession (e.g. "SRX123456"). Never empty.
	Accession string `json:"accession" yaml:"accession"`

	// Title is the experiment title, or the study title when the experiment
	// carries none.
	Title string `json:"title" yaml:"title"`

	// StudyTitle is the title of the study the experiment belongs to.
	StudyTitle string `json:"study_title" yaml:"study_title"`

	// LibraryStrategy is the sequencing strategy (e.g. "RNA-Seq", "WGS").
	LibraryStrategy string `json:"library_strategy" yaml:"library_strategy"`

	// LibraryLayout is "single" or "paired" when recognized; otherwise the
	// raw value as found in the document.
	LibraryLayout string `json:"library_layout" yaml:"library_layout"`

	// LayoutRecognized is false when LibraryLayout is outside the
	// categorical set. It is not exported.
	LayoutRecognized bool `json:"-" yaml:"-"`

	InstrumentModel string `json:"instrument_model" yaml:"instrument_model"`

	TaxonID *int64 `json:"taxon_id" yaml:"taxon_id"`

	ScientificName string `json:"scientific_name" yaml:"scientific_name"`

	// TaxonomicLineage lists taxa from root to leaf. Empty, never nil, when
	// the lineage is unknown.
	TaxonomicLineage []string `json:"taxonomic_lineage" yaml:"taxonomic_lineage"`

	// RunAccession is the first run of the experiment (e.g. "SRR123456").
	RunAccession string `json:"run_accession" yaml:"run_accession"`

	TotalSpots *int64 `json:"total_spots" yaml:"total_spots"`
	TotalBases *int64 `json:"total_bases" yaml:"total_bases"`

	// Size is the total size of the runs in bytes.
	Size *int64 `json:"size" yaml:"size"`

	Published *time.Time `json:"published" yaml:"published"`

	// NReads is the number of reads per spot derived from the layout.
	NReads *int64 `json:"nreads" yaml:"nreads"`

	// ReadAverage is total_bases / (total_spots × nreads); nil whenever any
	// input is nil or zero.
	ReadAverage *float64 `json:"read_average" yaml:"read_average"`
}

// Columns lists the Record field names in export order.
var Columns = []string{
	"accession",
	"title",
	"study_title",
	"library_strategy",
	"library_layout",
	"instrument_model",
	"taxon_id",
	"scientific_name",
	"taxonomic_lineage",
	"run_accession",
	"total_spots",
	"total_bases",
	"size",
	"published",
	"nreads",
	"read_average",
}

// FieldKind classifies a Record field for predicate validation.
type FieldKind int

const (
	KindText FieldKind = iota
	KindInteger
	KindFloat
	KindDate
	KindList
)

// String returns the kind name used in error messages.
func (k FieldKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// IsOrdered reports whether ordering comparators apply to the kind.
func (k FieldKind) IsOrdered() bool {
	return k == KindInteger || k == KindFloat || k == KindDate
}

// FieldKinds maps every Record column to its kind.
var FieldKinds = map[string]FieldKind{
	"accession":         KindText,
	"title":             KindText,
	"study_title":       KindText,
	"library_strategy":  KindText,
	"library_layout":    KindText,
	"instrument_model":  KindText,
	"taxon_id":          KindInteger,
	"scientific_name":   KindText,
	"taxonomic_lineage": KindList,
	"run_accession":     KindText,
	"total_spots":       KindInteger,
	"total_bases":       KindInteger,
	"size":              KindInteger,
	"published":         KindDate,
	"nreads":            KindInteger,
	"read_average":      KindFloat,
}

// DateLayout is the format used for published dates in exports and
// predicate literals.
const DateLayout = "2006-01-02"

// Text returns the value of a text field and whether it is set. Empty
// strings are nulls.
func (r Record) Text(field string) (string, bool) {
	var v string
	switch field {
	case "accession":
		v = r.Accession
	case "title":
		v = r.Title
	case "study_title":
		v = r.StudyTitle
	case "library_strategy":
		v = r.LibraryStrategy
	case "library_layout":
		v = r.LibraryLayout
	case "instrument_model":
		v = r.InstrumentModel
	case "scientific_name":
		v = r.ScientificName
	case "run_accession":
		v = r.RunAccession
	}
	return v, v != ""
}

// Number returns the value of a numeric field as float64 and whether it is
// set. Integer fields are exact up to 2^53, well beyond any SRA count.
func (r Record) Number(field string) (float64, bool) {
	var p *int64
	switch field {
	case "taxon_id":
		p = r.TaxonID
	case "total_spots":
		p = r.TotalSpots
	case "total_bases":
		p = r.TotalBases
	case "size":
		p = r.Size
	case "nreads":
		p = r.NReads
	case "read_average":
		if r.ReadAverage == nil {
			return 0, false
		}
		return *r.ReadAverage, true
	}
	if p == nil {
		return 0, false
	}
	return float64(*p), true
}

// Date returns the value of a date field and whether it is set.
func (r Record) Date(field string) (time.Time, bool) {
	if field != "published" || r.Published == nil {
		return time.Time{}, false
	}
	return *r.Published, true
}

// IsNull reports whether the named field holds no value.
func (r Record) IsNull(field string) bool {
	switch FieldKinds[field] {
	case KindInteger, KindFloat:
		_, ok := r.Number(field)
		return !ok
	case KindDate:
		_, ok := r.Date(field)
		return !ok
	case KindList:
		return len(r.TaxonomicLineage) == 0
	default:
		_, ok := r.Text(field)
		return !ok
	}
}
