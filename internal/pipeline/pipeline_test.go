// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sra-fetch/internal/cache"
	"github.com/pdiddy/sra-fetch/internal/entreztest"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// --- helpers ---

func testConfig(t *testing.T, srv *entreztest.Server) types.FetchConfig {
	t.Helper()
	return types.FetchConfig{
		Entrez: types.EntrezConfig{
			RetryConfig:       types.RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
			BaseURL:           srv.URL,
			Email:             "test@example.com",
			RequestsPerSecond: 1000,
		},
		Query:       types.Query{Search: "chicken[Organism]", MaxRecords: 100},
		PageSize:    5,
		BatchSize:   3,
		Concurrency: 2,
		Output:      filepath.Join(t.TempDir(), "out.csv"),
	}
}

// populate registers n experiments with ids 101.. and the given layout
// element name.
func populate(srv *entreztest.Server, n int, layout string) []string {
	var ids []string
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("%d", 100+i)
		srv.Add(id, entreztest.Experiment{
			Accession:      "SRX" + id,
			Title:          "Experiment " + id,
			Strategy:       "RNA-Seq",
			Layout:         layout,
			TaxID:          "9031",
			ScientificName: "Gallus gallus",
			Run:            "SRR" + id,
			Spots:          "1000",
			Bases:          "200000",
			Size:           "4096",
			CreateDate:     "2015/06/01",
		})
		ids = append(ids, id)
	}
	return ids
}

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func accessions(rows [][]string) []string {
	var out []string
	for _, row := range rows[1:] {
		out = append(out, row[0])
	}
	return out
}

func runOK(t *testing.T, cfg types.FetchConfig) (Summary, string) {
	t.Helper()
	var log bytes.Buffer
	s, err := Run(context.Background(), nil, cfg, &log)
	require.NoError(t, err, log.String())
	return s, log.String()
}

// --- Run ---

func TestRunExportsInSearchOrder(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 11, "PAIRED")
	cfg := testConfig(t, srv)

	s, _ := runOK(t, cfg)

	rows := readRows(t, cfg.Output)
	assert.Equal(t, types.Columns, rows[0])
	want := []string{"SRX101", "SRX102", "SRX103", "SRX104", "SRX105", "SRX106", "SRX107", "SRX108", "SRX109", "SRX110", "SRX111"}
	assert.Equal(t, want, accessions(rows))

	assert.Equal(t, 11, s.Found)
	assert.Equal(t, 11, s.Searched)
	assert.Equal(t, 11, s.RecordsParsed)
	assert.Equal(t, 11, s.RecordsAdmitted)
	assert.Equal(t, 11, s.RecordsWritten)
	assert.False(t, s.HasWarnings())
}

func TestRunTruncatesAtMaxRecords(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 12, "PAIRED")
	cfg := testConfig(t, srv)
	cfg.Query.MaxRecords = 5
	cfg.PageSize = 3

	s, _ := runOK(t, cfg)

	assert.Equal(t, 5, s.Searched)
	assert.Equal(t, 12, s.Found)
	assert.Equal(t, []string{"SRX101", "SRX102", "SRX103", "SRX104", "SRX105"}, accessions(readRows(t, cfg.Output)))
}

func TestRunIsByteIdenticalAcrossRuns(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 7, "SINGLE")
	cfg := testConfig(t, srv)

	runOK(t, cfg)
	first, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)

	runOK(t, cfg)
	second, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunLayoutFilterAdmitsNoneWhenAllSingle(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 6, "SINGLE")
	cfg := testConfig(t, srv)
	cfg.Query.Filters = []types.Predicate{{Field: "library_layout", Op: types.OpEqual, Value: "paired"}}

	s, _ := runOK(t, cfg)

	assert.Equal(t, 6, s.RecordsParsed)
	assert.Equal(t, 0, s.RecordsAdmitted)
	assert.Equal(t, [][]string{types.Columns}, readRows(t, cfg.Output))
}

func TestRunLayoutFilterAdmitsOnlyPaired(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 4, "SINGLE")
	srv.Add("201", entreztest.Experiment{Accession: "SRX201", Run: "SRR201", Layout: "PAIRED", Spots: "10", Bases: "3000"})
	cfg := testConfig(t, srv)
	cfg.Query.Filters = []types.Predicate{
		{Field: "library_layout", Op: types.OpEqual, Value: "paired"},
		{Field: "read_average", Op: types.OpGreaterEqual, Value: "150"},
	}

	s, _ := runOK(t, cfg)

	rows := readRows(t, cfg.Output)
	assert.Equal(t, []string{"SRX201"}, accessions(rows))
	assert.Equal(t, "paired", rows[1][4])
	assert.Equal(t, "150", rows[1][15])
	assert.Equal(t, 1, s.RecordsAdmitted)
}

func TestRunSurvivesFailedBatch(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 9, "PAIRED")
	// Batch 2 of 3 (ids 104-106) exhausts its retries.
	srv.FailIDs["105"] = true
	cfg := testConfig(t, srv)
	cfg.Concurrency = 1

	s, log := runOK(t, cfg)

	assert.Equal(t, []string{"SRX101", "SRX102", "SRX103", "SRX107", "SRX108", "SRX109"}, accessions(readRows(t, cfg.Output)))
	assert.Equal(t, 1, s.FailedBatches)
	assert.Equal(t, []string{"104", "105", "106"}, s.DroppedIDs)
	assert.True(t, s.HasWarnings())
	assert.Contains(t, log, "batch 1 dropped")
}

func TestRunSkipsDocumentMissingAccession(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 3, "PAIRED")
	srv.Raw["102"] = entreztest.Entry("102", entreztest.Experiment{Run: "SRR102", Layout: "PAIRED"})
	cfg := testConfig(t, srv)

	s, log := runOK(t, cfg)

	assert.Equal(t, []string{"SRX101", "SRX103"}, accessions(readRows(t, cfg.Output)))
	assert.Equal(t, 1, s.ParseFailures)
	assert.Equal(t, 3, s.DocumentsFetched)
	assert.Equal(t, 2, s.RecordsParsed)
	assert.Contains(t, log, `missing required field "accession"`)
}

func TestRunReportsOmittedIdentifiers(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 4, "PAIRED")
	delete(srv.Docs, "103")
	cfg := testConfig(t, srv)

	s, _ := runOK(t, cfg)

	assert.Equal(t, []string{"103"}, s.DroppedIDs)
	assert.Equal(t, 0, s.FailedBatches)
	assert.Equal(t, 3, s.RecordsWritten)
}

func TestRunCountsFieldWarnings(t *testing.T) {
	srv := entreztest.NewServer(t)
	srv.Add("1", entreztest.Experiment{Accession: "SRX1", Run: "SRR1", Layout: "SINGLE", Spots: "n/a", Bases: "100"})
	cfg := testConfig(t, srv)

	s, log := runOK(t, cfg)

	assert.Equal(t, 1, s.FieldWarnings)
	assert.Contains(t, log, "field total_spots")
	rows := readRows(t, cfg.Output)
	assert.Equal(t, "", rows[1][10], "total_spots is null")
	assert.Equal(t, "", rows[1][15], "read_average is null")
}

func TestRunDropsDuplicateAccessions(t *testing.T) {
	srv := entreztest.NewServer(t)
	srv.Add("1", entreztest.Experiment{Accession: "SRX1", Run: "SRR1"})
	srv.Add("2", entreztest.Experiment{Accession: "SRX1", Run: "SRR2"})
	cfg := testConfig(t, srv)

	s, _ := runOK(t, cfg)

	assert.Equal(t, []string{"SRX1"}, accessions(readRows(t, cfg.Output)))
	assert.Equal(t, 1, s.Duplicates)
}

func TestRunRejectsBadConfigBeforeNetwork(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 3, "PAIRED")

	tests := []struct {
		name string
		edit func(*types.FetchConfig)
	}{
		{"unknown field", func(c *types.FetchConfig) {
			c.Query.Filters = []types.Predicate{{Field: "read_length", Op: types.OpGreater, Value: "1"}}
		}},
		{"ordering on text", func(c *types.FetchConfig) {
			c.Query.Filters = []types.Predicate{{Field: "title", Op: types.OpLess, Value: "a"}}
		}},
		{"empty search", func(c *types.FetchConfig) { c.Query.Search = " " }},
		{"zero max records", func(c *types.FetchConfig) { c.Query.MaxRecords = 0 }},
		{"missing email", func(c *types.FetchConfig) { c.Entrez.Email = "" }},
		{"missing output", func(c *types.FetchConfig) { c.Output = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t, srv)
			tt.edit(&cfg)
			_, err := Run(context.Background(), nil, cfg, &bytes.Buffer{})
			var ce *types.ConfigError
			require.True(t, errors.As(err, &ce), "want *types.ConfigError, got %v", err)
		})
	}
	assert.Equal(t, 0, srv.Calls("esearch.fcgi"))
	assert.Equal(t, 0, srv.Calls("esummary.fcgi"))
}

func TestRunFailsWhenSearchExhausted(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 3, "PAIRED")
	srv.FailSearch = true
	cfg := testConfig(t, srv)

	_, err := Run(context.Background(), nil, cfg, &bytes.Buffer{})
	var fe *types.FetchError
	require.True(t, errors.As(err, &fe), "want *types.FetchError, got %v", err)
	assert.Equal(t, 3, fe.Attempts)
	assert.Equal(t, 0, srv.Calls("esummary.fcgi"))

	// The output holds a parseable header and nothing else.
	assert.Equal(t, [][]string{types.Columns}, readRows(t, cfg.Output))
}

func TestRunHonorsCancellation(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 3, "PAIRED")
	cfg := testConfig(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, nil, cfg, &bytes.Buffer{})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, srv.Calls("esummary.fcgi"))
	assert.Equal(t, [][]string{types.Columns}, readRows(t, cfg.Output))
}

func TestRunWritesUnfilteredLineageAndTaxa(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 2, "PAIRED")
	srv.Add("301", entreztest.Experiment{Accession: "SRX301", Run: "SRR301", Layout: "SINGLE", TaxID: "9606", ScientificName: "Homo sapiens"})
	srv.Taxa["9031"] = entreztest.Taxon{ScientificName: "Gallus gallus", Lineage: "Eukaryota; Aves; Gallus"}
	srv.Taxa["9606"] = entreztest.Taxon{ScientificName: "Homo sapiens", Lineage: "Eukaryota; Mammalia; Homo"}

	cfg := testConfig(t, srv)
	dir := filepath.Dir(cfg.Output)
	cfg.UnfilteredOutput = filepath.Join(dir, "all.csv")
	cfg.TaxaOutput = filepath.Join(dir, "taxa.txt")
	cfg.ResolveLineage = true
	cfg.Query.Filters = []types.Predicate{{Field: "taxonomic_lineage", Op: types.OpContains, Value: "aves"}}

	s, _ := runOK(t, cfg)

	filtered := readRows(t, cfg.Output)
	assert.Equal(t, []string{"SRX101", "SRX102"}, accessions(filtered))
	assert.Equal(t, "Eukaryota; Aves; Gallus; Gallus gallus", filtered[1][8])

	all := readRows(t, cfg.UnfilteredOutput)
	assert.Equal(t, []string{"SRX101", "SRX102", "SRX301"}, accessions(all))
	assert.Equal(t, "Eukaryota; Mammalia; Homo; Homo sapiens", all[3][8])

	taxa, err := os.ReadFile(cfg.TaxaOutput)
	require.NoError(t, err)
	assert.Equal(t, "Eukaryota; Aves; Gallus; Gallus gallus\n", string(taxa))

	assert.Equal(t, 3, s.UnfilteredWritten)
	assert.Equal(t, 2, s.RecordsWritten)
	assert.Equal(t, 1, s.Taxa)
	assert.Equal(t, 2, srv.Calls("efetch.fcgi"), "each taxon is looked up once")
}

func TestRunLineageFailureIsWarning(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 2, "PAIRED")
	cfg := testConfig(t, srv)
	cfg.ResolveLineage = true

	s, _ := runOK(t, cfg)

	assert.Equal(t, 2, s.RecordsWritten)
	// Failures are not memoized, so each record's lookup fails.
	assert.Equal(t, 2, s.LineageFailures)
	rows := readRows(t, cfg.Output)
	assert.Equal(t, "", rows[1][8])
}

func TestRunUsesCacheAcrossRuns(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 6, "PAIRED")
	cfg := testConfig(t, srv)
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")

	runOK(t, cfg)
	first, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	calls := srv.Calls("esummary.fcgi")
	assert.Equal(t, 2, calls)

	runOK(t, cfg)
	second, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	assert.Equal(t, calls, srv.Calls("esummary.fcgi"), "cached documents are not refetched")
	assert.Equal(t, first, second)
}

func TestRunRefetchesExpiredCacheEntries(t *testing.T) {
	srv := entreztest.NewServer(t)
	populate(srv, 6, "PAIRED")
	cfg := testConfig(t, srv)
	cfg.CacheDir = filepath.Join(t.TempDir(), "cache")
	cfg.CacheMaxAge = 24 * time.Hour

	runOK(t, cfg)
	calls := srv.Calls("esummary.fcgi")

	runOK(t, cfg)
	assert.Equal(t, calls, srv.Calls("esummary.fcgi"), "fresh entries are served from the cache")

	db, err := sql.Open("sqlite3", filepath.Join(cfg.CacheDir, cache.DBFile))
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE documents SET fetched_at = ?`, time.Now().Add(-48*time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, db.Close())

	runOK(t, cfg)
	assert.Equal(t, 2*calls, srv.Calls("esummary.fcgi"), "expired entries are fetched again")
}

// --- summary and query files ---

func TestSummaryPrintAndWrite(t *testing.T) {
	s := Summary{
		Search:          "chicken[Organism]",
		Output:          "out.csv",
		Found:           12,
		Searched:        5,
		RecordsParsed:   4,
		RecordsAdmitted: 3,
		RecordsWritten:  3,
		ParseFailures:   1,
		DroppedIDs:      []string{"104"},
	}

	var buf bytes.Buffer
	s.Print(&buf)
	out := buf.String()
	assert.Contains(t, out, "5 of 12 found")
	assert.Contains(t, out, "records admitted:   3")
	assert.Contains(t, out, "parse failures")
	assert.Contains(t, out, "104")
	assert.NotContains(t, out, "failed batches")

	path := filepath.Join(t.TempDir(), "summary.yaml")
	require.NoError(t, WriteSummary(path, s))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "records_admitted: 3")
	assert.Contains(t, string(data), "- \"104\"")
}

func TestQueryFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	q := types.Query{
		Search:     `chicken[Organism] AND "strategy rna seq"[Properties]`,
		MaxRecords: 5000,
		Filters: []types.Predicate{
			{Field: "library_layout", Op: types.OpEqual, Value: "paired"},
			{Field: "library_strategy", Op: types.OpIn, Values: []string{"RNA-Seq", "WGS"}},
		},
	}
	require.NoError(t, WriteQueryFile(path, q))

	got, err := ReadQueryFile(path)
	require.NoError(t, err)
	assert.Equal(t, q, got)
}

func TestReadQueryFileRejectsBadFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.yaml")
	require.NoError(t, os.WriteFile(path, []byte("search: x\nmax_records: 1\nfilters:\n  - field: nope\n    op: \"=\"\n    value: a\n"), 0o644))

	_, err := ReadQueryFile(path)
	var ce *types.ConfigError
	assert.True(t, errors.As(err, &ce))
}
