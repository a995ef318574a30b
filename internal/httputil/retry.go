// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared by the upstream adapters.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryBaseDelay controls the first backoff interval on HTTP 429 responses.
// Tests override this to avoid real sleeps.
var RetryBaseDelay = 2 * time.Second

const defaultMaxRetries = 5

var errRateLimited = errors.New("rate limited")

// newBackOff returns a deterministic exponential schedule starting at
// RetryBaseDelay and doubling each attempt, capped at maxRetries retries
// and stopped when ctx is done.
func newBackOff(ctx context.Context, maxRetries int) backoff.BackOff {
	eb := &backoff.ExponentialBackOff{
		InitialInterval:     RetryBaseDelay,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         RetryBaseDelay << 6,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	eb.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)
}

// DoWithRetry sends req and resends it while the upstream answers 429.
// Request bodies are rewound through req.GetBody, so requests built with
// http.NewRequest over a bytes or strings reader can be replayed.
//
// A maxRetries of 0 means 5. Transport errors are returned at once. When
// the retries run out the last 429 response is returned unread so the
// caller can report it; a cancelled ctx returns ctx.Err().
func DoWithRetry(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if client == nil {
		client = http.DefaultClient
	}

	var pending *http.Response
	send := func() (*http.Response, error) {
		r, err := rewind(ctx, req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := client.Do(r)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			pending = resp
			return resp, errRateLimited
		}
		return resp, nil
	}
	discard := func(error, time.Duration) {
		if pending != nil {
			io.Copy(io.Discard, pending.Body)
			pending.Body.Close()
			pending = nil
		}
	}

	resp, err := backoff.RetryNotifyWithData(send, newBackOff(ctx, maxRetries), discard)
	switch {
	case err == nil:
		return resp, nil
	case errors.Is(err, errRateLimited):
		return resp, nil
	default:
		discard(err, 0)
		return nil, err
	}
}

func rewind(ctx context.Context, req *http.Request) (*http.Request, error) {
	r := req.Clone(ctx)
	if req.GetBody == nil || req.Body == nil || req.Body == http.NoBody {
		return r, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewinding request body: %w", err)
	}
	r.Body = body
	return r, nil
}

// ReadLimited reads at most n bytes of body. It is used to keep upstream
// error bodies for diagnostics without reading unbounded responses.
func ReadLimited(body io.Reader, n int64) []byte {
	data, _ := io.ReadAll(io.LimitReader(body, n))
	return data
}
