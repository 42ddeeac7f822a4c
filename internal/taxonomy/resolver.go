// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package taxonomy resolves NCBI taxon identifiers to lineages through
// Entrez efetch on the taxonomy database.
package taxonomy

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"iter"
	"net/url"
	"strconv"
	"sync"

	"github.com/pdiddy/sra-fetch/internal/eutils"
	"github.com/pdiddy/sra-fetch/internal/parse"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// Cache stores resolved taxa across runs.
type Cache interface {
	GetTaxon(ctx context.Context, id int64) (types.Taxon, bool, error)
	PutTaxon(ctx context.Context, t types.Taxon) error
}

// Resolver looks up taxa, consulting an in-memory memo, then Cache, then
// the service. It is safe for concurrent use.
type Resolver struct {
	eutils *eutils.Client

	// Cache, when set, persists resolved taxa.
	Cache Cache

	// Log receives cache warnings. Nil discards them.
	Log io.Writer

	mu   sync.Mutex
	memo map[int64]types.Taxon
}

// New returns a Resolver using c.
func New(c *eutils.Client) *Resolver {
	return &Resolver{eutils: c, memo: map[int64]types.Taxon{}}
}

// NotFoundError reports a taxon the service does not know.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("taxon %d not found", e.ID)
}

// Resolve returns the taxon for id.
func (r *Resolver) Resolve(ctx context.Context, id int64) (types.Taxon, error) {
	r.mu.Lock()
	t, ok := r.memo[id]
	r.mu.Unlock()
	if ok {
		return t, nil
	}

	if r.Cache != nil {
		t, ok, err := r.Cache.GetTaxon(ctx, id)
		if err != nil {
			r.logf("warning: taxonomy cache read failed: %v\n", err)
		}
		if ok {
			r.remember(t)
			return t, nil
		}
	}

	t, err := r.fetch(ctx, id)
	if err != nil {
		return types.Taxon{}, err
	}
	r.remember(t)
	if r.Cache != nil {
		if err := r.Cache.PutTaxon(ctx, t); err != nil {
			r.logf("warning: taxonomy cache write failed: %v\n", err)
		}
	}
	return t, nil
}

// Enrich sets the lineage key of each document that names a taxon. A
// lookup failure is passed to warn and the document continues without a
// lineage. Errors from docs are passed through.
func (r *Resolver) Enrich(ctx context.Context, docs iter.Seq2[types.Document, error], warn func(error)) iter.Seq2[types.Document, error] {
	if warn == nil {
		warn = func(error) {}
	}
	return func(yield func(types.Document, error) bool) {
		for doc, err := range docs {
			if err == nil {
				r.enrichOne(ctx, doc, warn)
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}

func (r *Resolver) enrichOne(ctx context.Context, doc types.Document, warn func(error)) {
	id, present, ok := doc.Int(parse.PathTaxID)
	if !present || !ok || id < 0 {
		return
	}
	t, err := r.Resolve(ctx, id)
	if err != nil {
		warn(fmt.Errorf("resolving lineage: %w", err))
		return
	}
	doc[parse.PathLineage] = t.Lineage
}

func (r *Resolver) remember(t types.Taxon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.memo[t.ID] = t
}

func (r *Resolver) logf(format string, args ...any) {
	if r.Log != nil {
		fmt.Fprintf(r.Log, format, args...)
	}
}

type taxaSet struct {
	Taxa []taxonXML `xml:"Taxon"`
}

type taxonXML struct {
	TaxID          string `xml:"TaxId"`
	ScientificName string `xml:"ScientificName"`
	Lineage        string `xml:"Lineage"`
}

func (r *Resolver) fetch(ctx context.Context, id int64) (types.Taxon, error) {
	data, err := r.eutils.Get(ctx, "efetch.fcgi", url.Values{
		"db":      {"taxonomy"},
		"id":      {strconv.FormatInt(id, 10)},
		"retmode": {"xml"},
	})
	if err != nil {
		return types.Taxon{}, err
	}

	var set taxaSet
	if err := xml.Unmarshal(data, &set); err != nil {
		return types.Taxon{}, fmt.Errorf("parsing taxonomy response: %w", err)
	}
	want := strconv.FormatInt(id, 10)
	for _, x := range set.Taxa {
		if x.TaxID != want {
			continue
		}
		return types.Taxon{
			ID:             id,
			ScientificName: x.ScientificName,
			Lineage:        joinLineage(x.Lineage, x.ScientificName),
		}, nil
	}
	return types.Taxon{}, &NotFoundError{ID: id}
}

// joinLineage appends the leaf to the service's ancestor list.
func joinLineage(ancestors, name string) string {
	taxa := parse.ParseLineage(ancestors)
	if name != "" {
		taxa = append(taxa, name)
	}
	return parse.JoinLineage(taxa)
}
