// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search pages through Entrez esearch results for the SRA database
// and yields matching identifiers lazily.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"github.com/pdiddy/sra-fetch/internal/eutils"
	"github.com/pdiddy/sra-fetch/internal/httputil"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// Database is the Entrez database searched.
const Database = "sra"

// Page is one esearch response slice.
type Page struct {
	// Offset is the retstart the page was requested at.
	Offset int

	// IDs are the identifiers in service order.
	IDs []string

	// Count is the service's total-count hint. It may change between pages.
	Count int

	// QueryTranslation is the expression as Entrez interpreted it.
	QueryTranslation string
}

// Client is the paginated search client.
type Client struct {
	eutils   *eutils.Client
	pageSize int

	// OnPage, when set, is called after each page is parsed.
	OnPage func(Page)
}

// New returns a Client issuing pages of pageSize identifiers, clamped to
// [1, types.MaxPageSize].
func New(c *eutils.Client, pageSize int) *Client {
	if pageSize <= 0 {
		pageSize = types.DefaultPageSize
	}
	if pageSize > types.MaxPageSize {
		pageSize = types.MaxPageSize
	}
	return &Client{eutils: c, pageSize: pageSize}
}

// PageSize returns the effective page size.
func (c *Client) PageSize() int { return c.pageSize }

// Search yields at most q.MaxRecords identifiers in service order. The
// sequence is finite and can be iterated again; each iteration re-queries
// the service.
func (c *Client) Search(ctx context.Context, q types.Query) iter.Seq2[string, error] {
	return c.SearchFrom(ctx, q, 0)
}

type pageState int

const (
	stateBuildRequest pageState = iota
	stateSend
	stateParsePage
	stateDone
)

// SearchFrom restarts the search at page boundary page (zero-based).
// Identifiers on earlier pages count toward q.MaxRecords.
//
// A page whose retries are exhausted, or that the service rejects, ends the
// sequence with a *types.FetchError. A cancelled context ends it with
// ctx.Err(). No partial result is reported as complete.
func (c *Client) SearchFrom(ctx context.Context, q types.Query, page int) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if page < 0 {
			page = 0
		}
		offset := page * c.pageSize
		emitted := offset

		var (
			state  = stateBuildRequest
			params url.Values
			body   []byte
		)
		for state != stateDone {
			switch state {
			case stateBuildRequest:
				if emitted >= q.MaxRecords {
					state = stateDone
					continue
				}
				if err := ctx.Err(); err != nil {
					yield("", err)
					return
				}
				size := min(c.pageSize, q.MaxRecords-emitted)
				params = url.Values{
					"db":       {Database},
					"term":     {q.Search},
					"retstart": {strconv.Itoa(offset)},
					"retmax":   {strconv.Itoa(size)},
					"retmode":  {"json"},
				}
				state = stateSend

			case stateSend:
				data, err := c.eutils.Get(ctx, "esearch.fcgi", params)
				if err != nil {
					yield("", searchError(ctx, offset, err))
					return
				}
				body = data
				state = stateParsePage

			case stateParsePage:
				pg, err := parsePage(body)
				if err != nil {
					yield("", &types.FetchError{Offset: offset, Attempts: 1, Err: err})
					return
				}
				pg.Offset = offset
				if c.OnPage != nil {
					c.OnPage(pg)
				}
				for _, id := range pg.IDs {
					if emitted >= q.MaxRecords {
						break
					}
					if !yield(id, nil) {
						return
					}
					emitted++
				}
				offset += len(pg.IDs)
				if len(pg.IDs) == 0 || offset >= pg.Count || emitted >= q.MaxRecords {
					state = stateDone
				} else {
					state = stateBuildRequest
				}
			}
		}
	}
}

// searchError maps a transport failure to the error the sequence yields.
func searchError(ctx context.Context, offset int, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	attempts := 1
	var re *httputil.RetryError
	if errors.As(err, &re) {
		attempts = re.Attempts
	}
	return &types.FetchError{Offset: offset, Attempts: attempts, Err: err}
}

// esearch JSON structures.
type esearchResponse struct {
	Result esearchResult `json:"esearchresult"`
}

type esearchResult struct {
	Count            string   `json:"count"`
	RetMax           string   `json:"retmax"`
	RetStart         string   `json:"retstart"`
	IDList           []string `json:"idlist"`
	QueryTranslation string   `json:"querytranslation"`
	Error            string   `json:"ERROR"`
}

func parsePage(data []byte) (Page, error) {
	var resp esearchResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return Page{}, fmt.Errorf("parsing esearch response: %w", err)
	}
	if resp.Result.Error != "" {
		return Page{}, fmt.Errorf("esearch: %s", resp.Result.Error)
	}
	count := 0
	if resp.Result.Count != "" {
		n, err := strconv.Atoi(resp.Result.Count)
		if err != nil {
			return Page{}, fmt.Errorf("esearch: invalid count %q", resp.Result.Count)
		}
		count = n
	}
	return Page{
		IDs:              resp.Result.IDList,
		Count:            count,
		QueryTranslation: resp.Result.QueryTranslation,
	}, nil
}
