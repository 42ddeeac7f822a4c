// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sra-fetch/pkg/types"
)

func i64(n int64) *int64 { return &n }

func f64(f float64) *float64 { return &f }

func record(acc, layout string, avg *float64) types.Record {
	published := time.Date(2015, time.June, 1, 0, 0, 0, 0, time.UTC)
	return types.Record{
		Accession:        acc,
		Title:            "Liver transcriptome of Gallus gallus",
		LibraryStrategy:  "RNA-Seq",
		LibraryLayout:    layout,
		LayoutRecognized: true,
		TaxonID:          i64(9031),
		ScientificName:   "Gallus gallus",
		TaxonomicLineage: []string{"Eukaryota", "Metazoa", "Aves"},
		RunAccession:     "SRR" + acc[3:],
		TotalSpots:       i64(1000),
		Published:        &published,
		ReadAverage:      avg,
	}
}

func mustCompile(t *testing.T, preds ...types.Predicate) *Filter {
	t.Helper()
	f, err := Compile(preds)
	require.NoError(t, err)
	return f
}

func TestCompileRejectsInvalidPredicates(t *testing.T) {
	tests := []struct {
		name string
		pred types.Predicate
	}{
		{"unknown field", types.Predicate{Field: "read_length", Op: types.OpGreater, Value: "100"}},
		{"unknown comparator", types.Predicate{Field: "title", Op: "~", Value: "x"}},
		{"ordering on text", types.Predicate{Field: "library_layout", Op: types.OpLess, Value: "paired"}},
		{"ordering on list", types.Predicate{Field: "taxonomic_lineage", Op: types.OpGreaterEqual, Value: "Aves"}},
		{"contains on numeric", types.Predicate{Field: "total_spots", Op: types.OpContains, Value: "1"}},
		{"matches on date", types.Predicate{Field: "published", Op: types.OpMatches, Value: "2015"}},
		{"bad integer literal", types.Predicate{Field: "total_spots", Op: types.OpGreater, Value: "many"}},
		{"fractional integer literal", types.Predicate{Field: "taxon_id", Op: types.OpEqual, Value: "1.5"}},
		{"bad float literal", types.Predicate{Field: "read_average", Op: types.OpGreater, Value: "long"}},
		{"bad date literal", types.Predicate{Field: "published", Op: types.OpLess, Value: "June 2015"}},
		{"bad regexp", types.Predicate{Field: "title", Op: types.OpMatches, Value: "(liver"}},
		{"empty in", types.Predicate{Field: "library_strategy", Op: types.OpIn}},
		{"missing value", types.Predicate{Field: "title", Op: types.OpEqual}},
		{"bad literal in set", types.Predicate{Field: "nreads", Op: types.OpIn, Values: []string{"1", "two"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]types.Predicate{tt.pred})
			var ce *types.ConfigError
			require.True(t, errors.As(err, &ce), "want *types.ConfigError, got %v", err)
			assert.Contains(t, ce.Field, tt.pred.Field)
		})
	}
}

func TestEmptyFilterAdmitsEverything(t *testing.T) {
	f := mustCompile(t)
	assert.Equal(t, 0, f.Len())
	assert.True(t, f.Admit(types.Record{Accession: "SRX1"}))

	var nilFilter *Filter
	assert.True(t, nilFilter.Admit(types.Record{}))
}

func TestLayoutPredicateAdmitsOnlyPaired(t *testing.T) {
	f := mustCompile(t, types.Predicate{Field: "library_layout", Op: types.OpEqual, Value: "paired"})

	mixed := []types.Record{
		record("SRX1", types.LayoutSingle, nil),
		record("SRX2", types.LayoutPaired, nil),
		record("SRX3", types.LayoutSingle, nil),
	}
	var admitted []string
	for _, r := range mixed {
		if f.Admit(r) {
			admitted = append(admitted, r.Accession)
		}
	}
	assert.Equal(t, []string{"SRX2"}, admitted)

	allSingle := []types.Record{record("SRX4", types.LayoutSingle, nil), record("SRX5", types.LayoutSingle, nil)}
	for _, r := range allSingle {
		assert.False(t, f.Admit(r), "%s should be rejected", r.Accession)
	}
}

func TestAdmit(t *testing.T) {
	r := record("SRX1", types.LayoutPaired, f64(101.5))

	tests := []struct {
		name string
		pred types.Predicate
		want bool
	}{
		{"equal is case-insensitive", types.Predicate{Field: "library_strategy", Op: types.OpEqual, Value: "rna-seq"}, true},
		{"equal mismatch", types.Predicate{Field: "library_strategy", Op: types.OpEqual, Value: "WGS"}, false},
		{"in text set", types.Predicate{Field: "library_strategy", Op: types.OpIn, Values: []string{"WGS", "RNA-SEQ"}}, true},
		{"in from comma value", types.Predicate{Field: "library_strategy", Op: types.OpIn, Value: "WGS, AMPLICON"}, false},
		{"contains is case-insensitive", types.Predicate{Field: "title", Op: types.OpContains, Value: "LIVER"}, true},
		{"matches regexp", types.Predicate{Field: "title", Op: types.OpMatches, Value: `^Liver\b`}, true},
		{"matches is case-sensitive", types.Predicate{Field: "title", Op: types.OpMatches, Value: `^liver`}, false},
		{"read_average >=", types.Predicate{Field: "read_average", Op: types.OpGreaterEqual, Value: "100"}, true},
		{"read_average <", types.Predicate{Field: "read_average", Op: types.OpLess, Value: "100"}, false},
		{"read_average = exact", types.Predicate{Field: "read_average", Op: types.OpEqual, Value: "101.5"}, true},
		{"integer <=", types.Predicate{Field: "total_spots", Op: types.OpLessEqual, Value: "1000"}, true},
		{"integer >", types.Predicate{Field: "total_spots", Op: types.OpGreater, Value: "1000"}, false},
		{"integer in", types.Predicate{Field: "taxon_id", Op: types.OpIn, Values: []string{"9606", "9031"}}, true},
		{"date >", types.Predicate{Field: "published", Op: types.OpGreater, Value: "2015-01-01"}, true},
		{"date =", types.Predicate{Field: "published", Op: types.OpEqual, Value: "2015-06-01"}, true},
		{"date <", types.Predicate{Field: "published", Op: types.OpLess, Value: "2015-06-01"}, false},
		{"lineage contains element-wise", types.Predicate{Field: "taxonomic_lineage", Op: types.OpContains, Value: "aves"}, true},
		{"lineage equal element", types.Predicate{Field: "taxonomic_lineage", Op: types.OpEqual, Value: "Metazoa"}, true},
		{"lineage equal not substring", types.Predicate{Field: "taxonomic_lineage", Op: types.OpEqual, Value: "Meta"}, false},
		{"is_null on set field", types.Predicate{Field: "read_average", Op: types.OpIsNull}, false},
		{"is_null on null field", types.Predicate{Field: "size", Op: types.OpIsNull}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := mustCompile(t, tt.pred)
			assert.Equal(t, tt.want, f.Admit(r))
		})
	}
}

func TestNullFieldFailsEveryComparatorButIsNull(t *testing.T) {
	r := record("SRX1", types.LayoutPaired, nil)
	r.InstrumentModel = ""
	r.TaxonomicLineage = []string{}

	preds := []types.Predicate{
		{Field: "read_average", Op: types.OpLess, Value: "1000000"},
		{Field: "read_average", Op: types.OpGreaterEqual, Value: "0"},
		{Field: "read_average", Op: types.OpIn, Values: []string{"0"}},
		{Field: "instrument_model", Op: types.OpContains, Value: "x"},
		{Field: "instrument_model", Op: types.OpMatches, Value: ".*"},
		{Field: "taxonomic_lineage", Op: types.OpContains, Value: ""},
		{Field: "size", Op: types.OpEqual, Value: "0"},
	}
	for _, p := range preds {
		f, err := Compile([]types.Predicate{p})
		if err != nil {
			// An empty literal is rejected up front, which also never admits.
			continue
		}
		assert.False(t, f.Admit(r), "%s should not admit a null field", Format(p))
	}

	for _, field := range []string{"read_average", "instrument_model", "taxonomic_lineage", "size"} {
		f := mustCompile(t, types.Predicate{Field: field, Op: types.OpIsNull})
		assert.True(t, f.Admit(r), "%s is_null", field)
	}
}

func TestPredicatesAreConjunctive(t *testing.T) {
	f := mustCompile(t,
		types.Predicate{Field: "library_layout", Op: types.OpEqual, Value: "paired"},
		types.Predicate{Field: "read_average", Op: types.OpGreaterEqual, Value: "100"},
	)
	assert.Equal(t, 2, f.Len())
	assert.True(t, f.Admit(record("SRX1", types.LayoutPaired, f64(150))))
	assert.False(t, f.Admit(record("SRX2", types.LayoutPaired, f64(50))))
	assert.False(t, f.Admit(record("SRX3", types.LayoutSingle, f64(150))))
}

func TestAdmitUnrecognizedLayoutVerbatim(t *testing.T) {
	r := record("SRX1", "MATE_PAIR", nil)
	r.LayoutRecognized = false
	assert.True(t, mustCompile(t, types.Predicate{Field: "library_layout", Op: types.OpEqual, Value: "mate_pair"}).Admit(r))
	assert.False(t, mustCompile(t, types.Predicate{Field: "library_layout", Op: types.OpEqual, Value: "paired"}).Admit(r))
}
