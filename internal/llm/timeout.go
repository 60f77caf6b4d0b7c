package llm

import (
	"context"
	"errors"
	"time"
)

// TimeoutProvider bounds every call. There is exactly one attempt; a call
// that runs past the deadline surfaces as ErrProviderUnavailable so callers
// fall back instead of waiting.
type TimeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout wraps p. A non-positive timeout returns p unchanged.
func WithTimeout(p Provider, timeout time.Duration) Provider {
	if timeout <= 0 {
		return p
	}
	return &TimeoutProvider{inner: p, timeout: timeout}
}

func (t *TimeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	type result struct {
		resp *Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := t.inner.Generate(ctx, req)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &ErrProviderUnavailable{Err: r.err}
		}
		return r.resp, r.err
	case <-ctx.Done():
		return nil, &ErrProviderUnavailable{Err: ctx.Err()}
	}
}

func (t *TimeoutProvider) ModelID() string { return t.inner.ModelID() }
