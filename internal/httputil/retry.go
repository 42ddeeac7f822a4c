// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

// Doer sends a single HTTP request. *http.Client satisfies it; the eutils
// client wraps one with a rate limiter.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Policy bounds the retries for one logical request (one search page or one
// fetch batch). Retries never share a budget across requests.
type Policy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the delay before the first retry; it doubles each retry.
	BaseDelay time.Duration

	// MaxDelay caps one delay. Zero means no cap.
	MaxDelay time.Duration

	// Jitter maps a computed delay to the delay actually slept. Nil uses
	// equal jitter: half the delay plus a random share of the other half.
	Jitter func(time.Duration) time.Duration
}

// Backoff returns the delay before retry number attempt (zero-based).
func (p Policy) Backoff(attempt int) time.Duration {
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			d = p.MaxDelay
			break
		}
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	if p.Jitter != nil {
		return p.Jitter(d)
	}
	return equalJitter(d)
}

func equalJitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half)
}

// RetryError is returned when every attempt failed with a transient error.
type RetryError struct {
	Attempts int
	Last     error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("giving up after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *RetryError) Unwrap() error { return e.Last }

// StatusError describes a transient HTTP status seen on the last attempt.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// IsTransientStatus reports whether an HTTP status is worth retrying:
// rate limiting and server-side failures.
func IsTransientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retry loop states.
type retryState int

const (
	stateSend retryState = iota
	stateWait
	stateDone
)

// DoWithRetry executes req and retries transport errors and transient
// statuses (429, 5xx) with bounded exponential backoff and jitter.
//
// A non-transient response, successful or not, is returned as-is for the
// caller to inspect. When every attempt fails, the error is a *RetryError
// wrapping the last failure. A cancelled context stops the loop at the next
// send or during a backoff wait and returns ctx.Err().
func DoWithRetry(ctx context.Context, client Doer, req *http.Request, p Policy) (*http.Response, error) {
	var (
		state   = stateSend
		attempt int
		last    error
	)
	for state != stateDone {
		switch state {
		case stateSend:
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			resp, err := client.Do(cloneRequest(ctx, req))
			attempt++
			switch {
			case err != nil:
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				last = err
			case IsTransientStatus(resp.StatusCode):
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				last = &StatusError{StatusCode: resp.StatusCode}
			default:
				return resp, nil
			}
			if attempt > p.MaxRetries {
				state = stateDone
			} else {
				state = stateWait
			}

		case stateWait:
			timer := time.NewTimer(p.Backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			state = stateSend
		}
	}
	return nil, &RetryError{Attempts: attempt, Last: last}
}

// cloneRequest copies req for one attempt, rewinding the body when the
// request carries one.
func cloneRequest(ctx context.Context, req *http.Request) *http.Request {
	r := req.Clone(ctx)
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			r.Body = body
		}
	}
	return r
}

// IsRetryExhausted reports whether err came from exhausting the retries.
func IsRetryExhausted(err error) bool {
	var re *RetryError
	return errors.As(err, &re)
}
