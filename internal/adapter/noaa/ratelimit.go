package noaa

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/geoclimate-etl/internal/fetch"
)

// RateLimitedSource wraps a page source with a token-bucket limiter. It is a
// transport-level guard on request issuance toward the provider, independent
// of the fetch policy's signal-driven backoff; with the default one-request
// burst it caps how fast consecutive pages can ever be requested.
type RateLimitedSource struct {
	source  fetch.PageSource
	limiter *rate.Limiter
}

// NewRateLimitedSource creates a rate-limited page source. rps may be
// fractional for slower-than-one-per-second pacing.
func NewRateLimitedSource(source fetch.PageSource, rps float64, burst int) *RateLimitedSource {
	return &RateLimitedSource{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// FetchPage waits for limiter permission or context cancellation, then
// forwards to the underlying source.
func (r *RateLimitedSource) FetchPage(ctx context.Context, offset int) (fetch.Page, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return fetch.Page{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.source.FetchPage(ctx, offset)
}

var _ fetch.PageSource = (*RateLimitedSource)(nil)
