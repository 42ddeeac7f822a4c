// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package fetch resolves SRA identifiers to raw documents through Entrez
// esummary, in bounded batches with per-batch retry and failure isolation.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strings"
	"sync"

	"github.com/pdiddy/sra-fetch/internal/eutils"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// DocumentCache stores raw esummary entries keyed by identifier.
type DocumentCache interface {
	GetDocuments(ctx context.Context, ids []string) (map[string][]byte, error)
	PutDocuments(ctx context.Context, docs map[string][]byte) error
}

// Fetcher is the batch fetcher.
type Fetcher struct {
	eutils      *eutils.Client
	batchSize   int
	concurrency int

	// Cache, when set, serves identifiers fetched by earlier runs.
	Cache DocumentCache

	// Log receives cache warnings. Nil discards them.
	Log io.Writer
}

// New returns a Fetcher resolving batchSize identifiers per request
// (clamped to types.MaxBatchSize) with up to concurrency batches in flight.
func New(c *eutils.Client, batchSize, concurrency int) *Fetcher {
	if batchSize <= 0 {
		batchSize = types.DefaultBatchSize
	}
	if batchSize > types.MaxBatchSize {
		batchSize = types.MaxBatchSize
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Fetcher{eutils: c, batchSize: batchSize, concurrency: concurrency}
}

// BatchSize returns the effective batch size.
func (f *Fetcher) BatchSize() int { return f.batchSize }

type batchResult struct {
	docs    []types.Document
	missing []string
	err     error

	// warnings are logged by the consumer in batch order.
	warnings []string
}

// Fetch partitions ids into batches and yields one Document per resolved
// identifier, in identifier order within a batch and batches in submission
// order. The sequence is not restartable: it consumes ids.
//
// A batch that exhausts its retries is skipped and reported; identifiers the
// service omits are reported too. Neither ends the sequence. An error from
// ids (a failed search) or a cancelled context ends it with that error. No
// batch is started once ctx is done.
func (f *Fetcher) Fetch(ctx context.Context, ids iter.Seq2[string, error], report func(*types.BatchFetchWarning)) iter.Seq2[types.Document, error] {
	if report == nil {
		report = func(*types.BatchFetchWarning) {}
	}
	return func(yield func(types.Document, error) bool) {
		next, stop := iter.Pull2(ids)
		defer stop()

		batchNo := 0
		exhausted := false
		for !exhausted {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			var window [][]string
			for len(window) < f.concurrency && !exhausted {
				batch, done, err := pullBatch(next, f.batchSize)
				if err != nil {
					yield(nil, err)
					return
				}
				if len(batch) > 0 {
					window = append(window, batch)
				}
				exhausted = done
			}
			if len(window) == 0 {
				return
			}

			results := make([]batchResult, len(window))
			var wg sync.WaitGroup
			for i, batch := range window {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[i] = f.fetchBatch(ctx, batch)
				}()
			}
			wg.Wait()

			for i, res := range results {
				n := batchNo + i
				for _, w := range res.warnings {
					f.logf("warning: batch %d: %s\n", n, w)
				}
				if res.err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(res.err, ctxErr) {
						yield(nil, ctxErr)
						return
					}
					report(&types.BatchFetchWarning{Batch: n, IDs: window[i], Err: res.err})
					continue
				}
				if len(res.missing) > 0 {
					report(&types.BatchFetchWarning{Batch: n, IDs: res.missing})
				}
				for _, doc := range res.docs {
					if !yield(doc, nil) {
						return
					}
				}
			}
			batchNo += len(window)
		}
	}
}

// pullBatch reads up to size identifiers. done reports that ids is
// exhausted.
func pullBatch(next func() (string, error, bool), size int) (batch []string, done bool, err error) {
	for len(batch) < size {
		id, err, ok := next()
		if !ok {
			return batch, true, nil
		}
		if err != nil {
			return batch, true, err
		}
		batch = append(batch, id)
	}
	return batch, false, nil
}

// fetchBatch resolves one batch, consulting the cache first.
// It runs on a worker goroutine and must not touch f.Log.
func (f *Fetcher) fetchBatch(ctx context.Context, ids []string) batchResult {
	var warnings []string
	raw := make(map[string][]byte, len(ids))
	if f.Cache != nil {
		cached, err := f.Cache.GetDocuments(ctx, ids)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("document cache read failed: %v", err))
		}
		for id, body := range cached {
			raw[id] = body
		}
	}

	var need []string
	for _, id := range ids {
		if _, ok := raw[id]; !ok {
			need = append(need, id)
		}
	}

	if len(need) > 0 {
		data, err := f.eutils.Post(ctx, "esummary.fcgi", url.Values{
			"db":      {"sra"},
			"id":      {strings.Join(need, ",")},
			"retmode": {"json"},
		})
		if err != nil {
			return batchResult{err: err, warnings: warnings}
		}
		fetched, err := parseSummary(data)
		if err != nil {
			return batchResult{err: err, warnings: warnings}
		}
		for id, body := range fetched {
			raw[id] = body
		}
		if f.Cache != nil && len(fetched) > 0 {
			if err := f.Cache.PutDocuments(ctx, fetched); err != nil {
				warnings = append(warnings, fmt.Sprintf("document cache write failed: %v", err))
			}
		}
	}

	res := batchResult{warnings: warnings}
	for _, id := range ids {
		body, ok := raw[id]
		if !ok {
			res.missing = append(res.missing, id)
			continue
		}
		doc, err := DecodeDocument(id, body)
		if err != nil {
			res.missing = append(res.missing, id)
			continue
		}
		res.docs = append(res.docs, doc)
	}
	return res
}

func (f *Fetcher) logf(format string, args ...any) {
	if f.Log != nil {
		fmt.Fprintf(f.Log, format, args...)
	}
}

// parseSummary splits an esummary JSON response into per-identifier raw
// entries. Entries the service marks with an error are left out.
func parseSummary(data []byte) (map[string][]byte, error) {
	var resp struct {
		Result map[string]json.RawMessage `json:"result"`
		Error  string                     `json:"error"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parsing esummary response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("esummary: %s", resp.Error)
	}

	var uids []string
	if raw, ok := resp.Result["uids"]; ok {
		if err := json.Unmarshal(raw, &uids); err != nil {
			return nil, fmt.Errorf("parsing esummary uids: %w", err)
		}
	}

	out := make(map[string][]byte, len(uids))
	for _, uid := range uids {
		raw, ok := resp.Result[uid]
		if !ok {
			continue
		}
		var probe struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &probe) == nil && probe.Error != "" {
			continue
		}
		out[uid] = []byte(raw)
	}
	return out, nil
}

// DecodeDocument turns one raw esummary entry into a Document, expanding
// the expxml and runs XML fragments into nested mappings. A fragment that
// does not decode is left out; the field parser then reports what is
// missing.
func DecodeDocument(id string, raw []byte) (types.Document, error) {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decoding document %s: %w", id, err)
	}
	if msg, ok := fields["error"].(string); ok && msg != "" {
		return nil, fmt.Errorf("document %s: %s", id, msg)
	}

	doc := make(types.Document, len(fields)+1)
	for k, v := range fields {
		if k == "expxml" || k == "runs" {
			s, ok := v.(string)
			if !ok {
				continue
			}
			m, err := FragmentToMap(s)
			if err != nil {
				continue
			}
			doc[k] = m
			continue
		}
		doc[k] = v
	}
	if _, ok := doc["uid"]; !ok {
		doc["uid"] = id
	}
	return doc, nil
}
