// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"strings"
	"time"
)

// Service limits and defaults. The limits are documented by NCBI for the
// E-utilities; the defaults are what the CLI uses when a setting is zero.
const (
	// MaxPageSize is the largest retmax esearch honors in JSON mode.
	MaxPageSize = 10000

	// MaxBatchSize is the largest id list esummary accepts in one request.
	MaxBatchSize = 500

	DefaultPageSize       = 500
	DefaultBatchSize      = 200
	DefaultConcurrency    = 2
	DefaultMaxRetries     = 4
	DefaultRetryBaseDelay = 1 * time.Second
	DefaultRetryMaxDelay  = 30 * time.Second
	DefaultTimeout        = 60 * time.Second
	DefaultUserAgent      = "sra-fetch/0.1"
	DefaultTool           = "sra-fetch"

	// NoRetries disables retrying. A zero MaxRetries means "use the
	// default", so disabling needs its own value.
	NoRetries = -1

	// Requests per second allowed without and with an API key.
	DefaultRate = 3.0
	APIKeyRate  = 10.0
)

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// RetryConfig bounds the exponential backoff applied to one page or batch.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt. Zero
	// selects DefaultMaxRetries; any negative value (NoRetries) disables
	// retrying.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BaseDelay is the first backoff delay; each retry doubles it.
	BaseDelay time.Duration `json:"retry_base_delay" yaml:"retry_base_delay"`

	// MaxDelay caps a single backoff delay.
	MaxDelay time.Duration `json:"retry_max_delay" yaml:"retry_max_delay"`
}

// Retries returns the effective number of retries after the first attempt.
func (c RetryConfig) Retries() int {
	return max(c.MaxRetries, 0)
}

// EntrezConfig holds the settings shared by every E-utilities call.
type EntrezConfig struct {
	HTTPConfig  `yaml:",inline"`
	RetryConfig `yaml:",inline"`

	// BaseURL is the E-utilities root (no trailing slash). Empty means the
	// public NCBI endpoint.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// Email is the contact address NCBI requires with every request.
	Email string `json:"email" yaml:"email"`

	// APIKey raises the rate limit from 3 to 10 requests per second.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Tool identifies the client to NCBI.
	Tool string `json:"tool" yaml:"tool"`

	// RequestsPerSecond overrides the rate implied by APIKey when > 0.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
}

// Rate returns the effective request rate.
func (c EntrezConfig) Rate() float64 {
	if c.RequestsPerSecond > 0 {
		return c.RequestsPerSecond
	}
	if c.APIKey != "" {
		return APIKeyRate
	}
	return DefaultRate
}

// FetchConfig is the validated configuration value handed to the pipeline
// by the CLI layer.
type FetchConfig struct {
	Entrez EntrezConfig `json:"entrez" yaml:"entrez"`
	Query  Query        `json:"query" yaml:"query"`

	// PageSize is the esearch page size, capped at MaxPageSize.
	PageSize int `json:"page_size" yaml:"page_size"`

	// BatchSize is the number of identifiers per esummary request, capped
	// at MaxBatchSize.
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// Concurrency is the number of batches fetched in parallel.
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// CacheDir holds the SQLite document and taxonomy cache. Empty
	// disables caching.
	CacheDir string `json:"cache_dir,omitempty" yaml:"cache_dir,omitempty"`

	// CacheMaxAge, when positive, makes cached documents older than this
	// count as missing so they are fetched again.
	CacheMaxAge time.Duration `json:"cache_max_age,omitempty" yaml:"cache_max_age,omitempty"`

	// ResolveLineage enables taxonomy lookups for taxonomic_lineage.
	ResolveLineage bool `json:"resolve_lineage" yaml:"resolve_lineage"`

	// Output is the CSV path for admitted records.
	Output string `json:"output" yaml:"output"`

	// UnfilteredOutput, when set, receives every parsed record.
	UnfilteredOutput string `json:"unfiltered_output,omitempty" yaml:"unfiltered_output,omitempty"`

	// TaxaOutput, when set, receives the unique lineages of admitted records.
	TaxaOutput string `json:"taxa_output,omitempty" yaml:"taxa_output,omitempty"`

	// SummaryOutput, when set, receives the run summary as YAML.
	SummaryOutput string `json:"summary_output,omitempty" yaml:"summary_output,omitempty"`
}

// WithDefaults returns a copy with zero settings replaced by defaults and
// sizes clamped to the service limits.
func (c FetchConfig) WithDefaults() FetchConfig {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.BatchSize > MaxBatchSize {
		c.BatchSize = MaxBatchSize
	}
	if c.Concurrency <= 0 {
		c.Concurrency = DefaultConcurrency
	}
	e := &c.Entrez
	if e.Timeout <= 0 {
		e.Timeout = DefaultTimeout
	}
	if e.UserAgent == "" {
		e.UserAgent = DefaultUserAgent
	}
	if e.Tool == "" {
		e.Tool = DefaultTool
	}
	if e.MaxRetries == 0 {
		e.MaxRetries = DefaultMaxRetries
	}
	if e.BaseDelay <= 0 {
		e.BaseDelay = DefaultRetryBaseDelay
	}
	if e.MaxDelay <= 0 {
		e.MaxDelay = DefaultRetryMaxDelay
	}
	return c
}

// Validate checks the settings that do not depend on the Record schema.
// Predicates are validated by the filter package.
func (c FetchConfig) Validate() error {
	switch {
	case strings.TrimSpace(c.Query.Search) == "":
		return &ConfigError{Field: "search", Reason: "search expression is empty"}
	case c.Query.MaxRecords <= 0:
		return &ConfigError{Field: "max_records", Reason: "must be a positive integer"}
	case strings.TrimSpace(c.Output) == "":
		return &ConfigError{Field: "output", Reason: "output path is required"}
	case strings.TrimSpace(c.Entrez.Email) == "":
		return &ConfigError{Field: "email", Reason: "a contact email is required by NCBI"}
	case c.CacheMaxAge < 0:
		return &ConfigError{Field: "cache_max_age", Reason: "must not be negative"}
	case c.Concurrency < 0:
		return &ConfigError{Field: "concurrency", Reason: "must not be negative"}
	}
	return nil
}
