// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package taxonomy

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/sra-fetch/internal/entreztest"
	"github.com/pdiddy/sra-fetch/internal/eutils"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

func testResolver(t *testing.T) (*Resolver, *entreztest.Server) {
	t.Helper()
	srv := entreztest.NewServer(t)
	srv.Taxa["9031"] = entreztest.Taxon{
		ScientificName: "Gallus gallus",
		Lineage:        "cellular organisms; Eukaryota; Metazoa; Chordata; Aves; Gallus",
	}
	c := eutils.New(http.DefaultClient, types.EntrezConfig{
		RetryConfig:       types.RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		BaseURL:           srv.URL,
		Email:             "test@example.com",
		RequestsPerSecond: 1000,
	})
	return New(c), srv
}

type memCache struct {
	mu   sync.Mutex
	taxa map[int64]types.Taxon
}

func (c *memCache) GetTaxon(_ context.Context, id int64) (types.Taxon, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.taxa[id]
	return t, ok, nil
}

func (c *memCache) PutTaxon(_ context.Context, t types.Taxon) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.taxa[t.ID] = t
	return nil
}

func TestResolveAppendsScientificName(t *testing.T) {
	r, srv := testResolver(t)

	got, err := r.Resolve(context.Background(), 9031)
	require.NoError(t, err)
	assert.Equal(t, types.Taxon{
		ID:             9031,
		ScientificName: "Gallus gallus",
		Lineage:        "cellular organisms; Eukaryota; Metazoa; Chordata; Aves; Gallus; Gallus gallus",
	}, got)

	_, err = r.Resolve(context.Background(), 9031)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Calls("efetch.fcgi"), "second lookup is memoized")
}

func TestResolveUnknownTaxon(t *testing.T) {
	r, _ := testResolver(t)
	_, err := r.Resolve(context.Background(), 1)
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, int64(1), nf.ID)
}

func TestResolveUsesCache(t *testing.T) {
	cache := &memCache{taxa: map[int64]types.Taxon{}}

	first, srv := testResolver(t)
	first.Cache = cache
	_, err := first.Resolve(context.Background(), 9031)
	require.NoError(t, err)
	require.Contains(t, cache.taxa, int64(9031))

	// A fresh resolver with an empty memo reads through the cache.
	second := New(first.eutils)
	second.Cache = cache
	got, err := second.Resolve(context.Background(), 9031)
	require.NoError(t, err)
	assert.Equal(t, "Gallus gallus", got.ScientificName)
	assert.Equal(t, 1, srv.Calls("efetch.fcgi"))
}

func TestEnrichSetsLineageAndWarns(t *testing.T) {
	r, _ := testResolver(t)

	docs := []types.Document{
		{"uid": "1", "expxml": map[string]any{"Organism": map[string]any{"@taxid": "9031"}}},
		{"uid": "2", "expxml": map[string]any{"Organism": map[string]any{"@taxid": "77"}}},
		{"uid": "3"},
	}
	seq := func(yield func(types.Document, error) bool) {
		for _, d := range docs {
			if !yield(d, nil) {
				return
			}
		}
	}

	var warnings []error
	var out []types.Document
	for doc, err := range r.Enrich(context.Background(), seq, func(err error) { warnings = append(warnings, err) }) {
		require.NoError(t, err)
		out = append(out, doc)
	}

	require.Len(t, out, 3)
	lineage, ok := out[0].String("lineage")
	require.True(t, ok)
	assert.Contains(t, lineage, "; Gallus gallus")
	_, ok = out[1].String("lineage")
	assert.False(t, ok)
	_, ok = out[2].String("lineage")
	assert.False(t, ok)

	require.Len(t, warnings, 1)
	var nf *NotFoundError
	assert.True(t, errors.As(warnings[0], &nf))
}

func TestEnrichPassesErrorsThrough(t *testing.T) {
	r, srv := testResolver(t)
	boom := errors.New("boom")
	seq := func(yield func(types.Document, error) bool) {
		yield(nil, boom)
	}
	for _, err := range r.Enrich(context.Background(), seq, nil) {
		assert.ErrorIs(t, err, boom)
	}
	assert.Equal(t, 0, srv.Calls("efetch.fcgi"))
}

func TestJoinLineage(t *testing.T) {
	assert.Equal(t, "Gallus gallus", joinLineage("", "Gallus gallus"))
	assert.Equal(t, "Eukaryota; Aves", joinLineage("Eukaryota;", "Aves"))
	assert.Equal(t, "Eukaryota", joinLineage("Eukaryota", ""))
}
