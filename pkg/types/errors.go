// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"fmt"
	"strings"
)

// ConfigError reports an invalid configuration or predicate. It is raised
// before any network call and aborts the run.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "config: " + e.Reason
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// ParseError reports a required field missing from a raw document. Only the
// affected record is dropped.
type ParseError struct {
	// ID is the identifier of the document, when known.
	ID    string
	Field string
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parse %s: missing required field %q", e.ID, e.Field)
	if e.ID == "" {
		msg = fmt.Sprintf("parse: missing required field %q", e.Field)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// FetchError reports that the search stage exhausted its retries. No
// partial identifier list is trusted, so the whole run fails.
type FetchError struct {
	Offset   int
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("search page at offset %d failed after %d attempt(s): %v", e.Offset, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// BatchFetchWarning reports identifiers the detail stage could not resolve,
// either because the batch exhausted its retries or because the service
// omitted them from its response. It is non-fatal.
type BatchFetchWarning struct {
	// Batch is the zero-based position of the batch in submission order.
	Batch int

	// IDs lists the identifiers that produced no document.
	IDs []string

	// Err is the last transport error, or nil when the service simply
	// omitted the identifiers.
	Err error
}

func (w *BatchFetchWarning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("batch %d dropped (%d id(s)): %v", w.Batch, len(w.IDs), w.Err)
	}
	return fmt.Sprintf("batch %d: %d id(s) not returned by service: %s", w.Batch, len(w.IDs), strings.Join(w.IDs, ", "))
}

func (w *BatchFetchWarning) Unwrap() error { return w.Err }

// IOError reports that an output destination could not be opened or
// written. Bytes already flushed remain on disk.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FieldWarning reports an optional field whose value could not be coerced.
// The field is null in the resulting Record.
type FieldWarning struct {
	Accession string
	Field     string
	Raw       string
}

func (w FieldWarning) String() string {
	return fmt.Sprintf("%s: field %s: cannot parse %q", w.Accession, w.Field, w.Raw)
}
