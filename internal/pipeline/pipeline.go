// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline wires search, fetch, lineage enrichment, parsing,
// filtering and export into one run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"

	"github.com/pdiddy/sra-fetch/internal/cache"
	"github.com/pdiddy/sra-fetch/internal/eutils"
	"github.com/pdiddy/sra-fetch/internal/export"
	"github.com/pdiddy/sra-fetch/internal/fetch"
	"github.com/pdiddy/sra-fetch/internal/filter"
	"github.com/pdiddy/sra-fetch/internal/parse"
	"github.com/pdiddy/sra-fetch/internal/search"
	"github.com/pdiddy/sra-fetch/internal/taxonomy"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// Run executes one fetch run described by cfg, writing progress and
// warnings to w. Configuration and predicates are validated before any
// network call.
//
// Dropped batches, parse failures and field warnings are counted in the
// Summary and do not fail the run. A search failure, an output failure or
// cancellation returns an error along with the Summary so far; rows already
// written stay on disk.
func Run(ctx context.Context, client *http.Client, cfg types.FetchConfig, w io.Writer) (Summary, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Summary{}, err
	}
	flt, err := filter.Compile(cfg.Query.Filters)
	if err != nil {
		return Summary{}, err
	}

	if client == nil {
		client = &http.Client{Timeout: cfg.Entrez.Timeout}
	}
	ec := eutils.New(client, cfg.Entrez)

	r := &run{
		cfg:     cfg,
		w:       w,
		filter:  flt,
		summary: Summary{Search: cfg.Query.Search, Output: cfg.Output},
	}

	if cfg.CacheDir != "" {
		store, err := cache.Open(cfg.CacheDir)
		if err != nil {
			fmt.Fprintf(w, "warning: cache disabled: %v\n", err)
		} else {
			defer store.Close()
			store.MaxAge = cfg.CacheMaxAge
			r.store = store
		}
	}

	err = r.execute(ctx, ec)
	return r.summary, err
}

type run struct {
	cfg     types.FetchConfig
	w       io.Writer
	filter  *filter.Filter
	store   *cache.Store
	taxa    export.TaxaSet
	summary Summary
}

func (r *run) execute(ctx context.Context, ec *eutils.Client) error {
	sc := search.New(ec, r.cfg.PageSize)
	sc.OnPage = r.onPage

	fc := fetch.New(ec, r.cfg.BatchSize, r.cfg.Concurrency)
	fc.Log = r.w
	if r.store != nil {
		fc.Cache = r.store
	}

	fmt.Fprintf(r.w, "searching sra: %s (max %d)\n", r.cfg.Query.Search, r.cfg.Query.MaxRecords)
	ids := r.countIDs(sc.Search(ctx, r.cfg.Query))
	docs := fc.Fetch(ctx, ids, r.onBatchWarning)

	if r.cfg.ResolveLineage {
		res := taxonomy.New(ec)
		res.Log = r.w
		if r.store != nil {
			res.Cache = r.store
		}
		docs = res.Enrich(ctx, docs, r.onLineageWarning)
	}

	var unfiltered *export.File
	if r.cfg.UnfilteredOutput != "" {
		f, err := export.ForPath(r.cfg.UnfilteredOutput).Create(r.cfg.UnfilteredOutput)
		if err != nil {
			return err
		}
		unfiltered = f
	}

	n, err := export.ForPath(r.cfg.Output).Write(r.admitted(r.records(docs), unfiltered), r.cfg.Output)
	r.summary.RecordsWritten = n

	if unfiltered != nil {
		r.summary.UnfilteredWritten = unfiltered.Count()
		if cerr := unfiltered.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		return err
	}

	if r.cfg.TaxaOutput != "" {
		n, err := export.WriteTaxa(&r.taxa, r.cfg.TaxaOutput)
		if err != nil {
			return err
		}
		r.summary.Taxa = n
	}
	return nil
}

func (r *run) onPage(p search.Page) {
	if p.Offset == 0 || r.summary.Found == 0 {
		r.summary.Found = p.Count
		r.summary.QueryTranslation = p.QueryTranslation
	}
	fmt.Fprintf(r.w, "  page at %d: %d id(s) of %d\n", p.Offset, len(p.IDs), p.Count)
}

func (r *run) onBatchWarning(bw *types.BatchFetchWarning) {
	if bw.Err != nil {
		r.summary.FailedBatches++
	}
	r.summary.DroppedIDs = append(r.summary.DroppedIDs, bw.IDs...)
	fmt.Fprintf(r.w, "  warning: %v\n", bw)
}

func (r *run) onLineageWarning(err error) {
	r.summary.LineageFailures++
	fmt.Fprintf(r.w, "  warning: %v\n", err)
}

// countIDs counts the identifiers the search yields.
func (r *run) countIDs(ids iter.Seq2[string, error]) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for id, err := range ids {
			if err == nil {
				r.summary.Searched++
			}
			if !yield(id, err) {
				return
			}
		}
	}
}

// records parses docs, reporting and skipping documents that fail and
// records whose accession was already seen.
func (r *run) records(docs iter.Seq2[types.Document, error]) iter.Seq2[types.Record, error] {
	return func(yield func(types.Record, error) bool) {
		seen := map[string]bool{}
		for doc, err := range docs {
			if err != nil {
				yield(types.Record{}, err)
				return
			}
			r.summary.DocumentsFetched++

			rec, warnings, err := parse.Parse(doc)
			if err != nil {
				var pe *types.ParseError
				if !errors.As(err, &pe) {
					yield(types.Record{}, err)
					return
				}
				r.summary.ParseFailures++
				fmt.Fprintf(r.w, "  skipped: %v\n", err)
				continue
			}
			for _, fw := range warnings {
				r.summary.FieldWarnings++
				fmt.Fprintf(r.w, "  warning: %s\n", fw)
			}
			if seen[rec.Accession] {
				r.summary.Duplicates++
				fmt.Fprintf(r.w, "  skipped: duplicate accession %s\n", rec.Accession)
				continue
			}
			seen[rec.Accession] = true
			r.summary.RecordsParsed++

			if !yield(rec, nil) {
				return
			}
		}
	}
}

// admitted writes every record to unfiltered, when set, and yields those
// the filter admits.
func (r *run) admitted(records iter.Seq2[types.Record, error], unfiltered *export.File) iter.Seq2[types.Record, error] {
	return func(yield func(types.Record, error) bool) {
		for rec, err := range records {
			if err != nil {
				yield(types.Record{}, err)
				return
			}
			if unfiltered != nil {
				if err := unfiltered.Append(rec); err != nil {
					yield(types.Record{}, err)
					return
				}
			}
			if !r.filter.Admit(rec) {
				continue
			}
			r.summary.RecordsAdmitted++
			r.taxa.Add(rec)
			if !yield(rec, nil) {
				return
			}
		}
	}
}
