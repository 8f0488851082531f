// Package fetch implements the generic retrieval loop against paginated,
// rate-limited data sources. The pagination state is an explicit fold over
// (offset, accumulated count) rather than hidden iterator state, which makes
// the "same cursor twice" protocol error deterministic and testable.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/geoclimate-etl/internal/domain"
	"github.com/couchcryptid/geoclimate-etl/internal/observability"
)

// RateInfo carries the rate-limit metadata a source observed on a response.
type RateInfo struct {
	RetryAfter    time.Duration
	HasRetryAfter bool
	Remaining     int
	HasRemaining  bool
}

// Page is one page of raw records plus continuation and rate-limit metadata.
// Exactly one continuation mechanism applies per page: an explicit next
// offset (HasNext) or a reported total count the caller accumulates toward.
type Page struct {
	Records    []json.RawMessage
	NextOffset int
	HasNext    bool
	TotalCount int
	Rate       RateInfo
}

// PageSource retrieves one page at the given record offset.
//
// Sources signal an undecodable or truncated body with
// domain.ErrMalformedResponse; any other error is treated as a
// non-recoverable transport failure.
type PageSource interface {
	FetchPage(ctx context.Context, offset int) (Page, error)
}

// Policy is the backoff policy applied between page requests. It throttles
// request issuance only; it never retries a failed request.
type Policy struct {
	// LowWaterMark is the remaining-quota level below which LowWaterDelay
	// applies.
	LowWaterMark int

	// LowWaterDelay is the fixed wait used when remaining quota drops below
	// LowWaterMark and no explicit Retry-After was signaled.
	LowWaterDelay time.Duration

	// DefaultDelay is the small inter-request delay applied when no
	// rate-limit signal is present.
	DefaultDelay time.Duration
}

// DefaultPolicy mirrors the provider-tuned historical values: respect
// Retry-After exactly, wait 2s when fewer than 5 requests remain, and pace
// everything else at 1s.
func DefaultPolicy() Policy {
	return Policy{LowWaterMark: 5, LowWaterDelay: 2 * time.Second, DefaultDelay: time.Second}
}

// Fetcher drives the pagination fold over a PageSource. Restartable: each
// Each/Fetch call starts over from offset zero.
type Fetcher struct {
	source  PageSource
	policy  Policy
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
}

// New creates a Fetcher. The clock is injectable so tests can count and skip
// backoff waits with a fake.
func New(source PageSource, policy Policy, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	return &Fetcher{
		source:  source,
		policy:  policy,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Each streams every record of the paginated sequence, in provider order, to
// fn. Records already delivered stay delivered when a later page fails: a
// transport failure surfaces as domain.ErrFetchFailed carrying the attempted
// offset, and a malformed body past offset zero ends the sequence early
// without error. fn returning an error aborts the fold with that error.
func (f *Fetcher) Each(ctx context.Context, fn func(json.RawMessage) error) error {
	offset := 0
	fetched := 0

	for {
		page, err := f.source.FetchPage(ctx, offset)
		if err != nil {
			if errors.Is(err, domain.ErrMalformedResponse) {
				if offset == 0 {
					// No data at the first page is an empty sequence.
					return nil
				}
				f.logger.Warn("malformed page past first offset, keeping partial results",
					"offset", offset, "records", fetched, "error", err)
				return nil
			}
			f.metrics.FetchErrors.Inc()
			return fmt.Errorf("%w: page at offset %d: %v", domain.ErrFetchFailed, offset, err)
		}

		f.metrics.PagesFetched.Inc()

		for _, rec := range page.Records {
			if err := fn(rec); err != nil {
				return err
			}
		}
		fetched += len(page.Records)

		next, done := nextOffset(page, offset, fetched)
		if done {
			return nil
		}
		if next == offset {
			f.metrics.FetchErrors.Inc()
			return fmt.Errorf("%w: %w: offset %d returned twice", domain.ErrFetchFailed, domain.ErrStalledPagination, offset)
		}

		if err := f.waitBetweenPages(ctx, page.Rate); err != nil {
			return err
		}
		offset = next
	}
}

// Fetch materializes the full sequence.
func (f *Fetcher) Fetch(ctx context.Context) ([]json.RawMessage, error) {
	var records []json.RawMessage
	err := f.Each(ctx, func(rec json.RawMessage) error {
		records = append(records, rec)
		return nil
	})
	return records, err
}

// nextOffset advances the fold. A page with an explicit continuation wins;
// otherwise a reported total count is accumulated toward; otherwise the
// sequence is complete. An empty page never continues, regardless of what
// the metadata claims.
func nextOffset(page Page, offset, fetched int) (int, bool) {
	if len(page.Records) == 0 {
		return 0, true
	}
	if page.HasNext {
		return page.NextOffset, false
	}
	if page.TotalCount > 0 && fetched < page.TotalCount {
		return offset + len(page.Records), false
	}
	return 0, true
}

// waitBetweenPages applies the backoff policy before the next request: an
// explicit Retry-After is honored exactly; low remaining quota gets the fixed
// short delay; everything else gets the default inter-request delay. These
// waits are the only suspension points in a fetch and block only this
// sequence.
func (f *Fetcher) waitBetweenPages(ctx context.Context, rate RateInfo) error {
	var (
		delay  time.Duration
		reason string
	)
	switch {
	case rate.HasRetryAfter:
		delay, reason = rate.RetryAfter, "retry_after"
	case rate.HasRemaining && rate.Remaining < f.policy.LowWaterMark:
		delay, reason = f.policy.LowWaterDelay, "low_water"
	default:
		delay, reason = f.policy.DefaultDelay, "default"
	}

	if delay <= 0 {
		return nil
	}
	f.metrics.RateLimitWaits.WithLabelValues(reason).Inc()
	f.logger.Debug("pausing before next page", "reason", reason, "delay", delay)

	timer := f.clock.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
