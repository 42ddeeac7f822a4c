// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package eutils is the shared HTTP client for NCBI's Entrez E-utilities.
// Every request carries the tool, email and optional api_key parameters,
// passes through one rate limiter, and retries transient failures with
// bounded exponential backoff.
package eutils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"

	"github.com/pdiddy/sra-fetch/internal/httputil"
	"github.com/pdiddy/sra-fetch/pkg/types"
)

// DefaultBaseURL is the public E-utilities root. Tests point
// types.EntrezConfig.BaseURL at an httptest server instead.
const DefaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"

// maxBodyBytes bounds a single response body.
var maxBodyBytes int64 = 64 << 20

// Client issues E-utilities requests. It is safe for concurrent use; the
// only shared state is the rate limiter.
type Client struct {
	doer    httputil.Doer
	cfg     types.EntrezConfig
	baseURL string
	policy  httputil.Policy
}

// New wraps httpClient with a rate limiter derived from cfg.
func New(httpClient *http.Client, cfg types.EntrezConfig) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	r := cfg.Rate()
	return &Client{
		doer: &limitedDoer{
			client:  httpClient,
			limiter: rate.NewLimiter(rate.Limit(r), 1),
		},
		cfg:     cfg,
		baseURL: base,
		policy: httputil.Policy{
			MaxRetries: cfg.Retries(),
			BaseDelay:  cfg.BaseDelay,
			MaxDelay:   cfg.MaxDelay,
		},
	}
}

// HTTPError reports a non-transient, non-200 response.
type HTTPError struct {
	Endpoint   string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Endpoint, e.StatusCode)
}

// Get sends a GET request to endpoint (e.g. "esearch.fcgi") and returns the
// response body.
func (c *Client) Get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "/" + endpoint + "?" + c.withCommon(params).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	return c.do(ctx, endpoint, req)
}

// Post sends params as a form body. NCBI recommends POST for long id lists.
func (c *Client) Post(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	reqURL := c.baseURL + "/" + endpoint
	body := c.withCommon(params).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(ctx, endpoint, req)
}

func (c *Client) do(ctx context.Context, endpoint string, req *http.Request) ([]byte, error) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, c.doer, req, c.policy)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, &HTTPError{Endpoint: endpoint, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s response: %w", endpoint, err)
	}
	if int64(len(data)) > maxBodyBytes {
		return nil, fmt.Errorf("%s response exceeds %d bytes", endpoint, maxBodyBytes)
	}
	return data, nil
}

func (c *Client) withCommon(params url.Values) url.Values {
	v := url.Values{}
	for k, vals := range params {
		v[k] = append([]string(nil), vals...)
	}
	if c.cfg.Tool != "" {
		v.Set("tool", c.cfg.Tool)
	}
	if c.cfg.Email != "" {
		v.Set("email", c.cfg.Email)
	}
	if c.cfg.APIKey != "" {
		v.Set("api_key", c.cfg.APIKey)
	}
	return v
}

// limitedDoer paces requests through a token bucket before sending.
type limitedDoer struct {
	client  *http.Client
	limiter *rate.Limiter
}

func (d *limitedDoer) Do(req *http.Request) (*http.Response, error) {
	if err := d.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return d.client.Do(req)
}
