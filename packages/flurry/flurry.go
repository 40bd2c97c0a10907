// Package flurry replays one fully resolved request many times over a
// bounded worker pool. Resolution happens once, before dispatch, so no
// prompt can ever fire mid-burst; each worker only sends and records.
package flurry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitman-sh/hitman/packages/request"
)

// Options controls one burst.
type Options struct {
	// Total is the number of requests to send.
	Total int
	// Connections bounds how many requests are in flight at once.
	Connections int
	// Rate throttles dispatch to this many requests per second;
	// zero means unthrottled.
	Rate float64
}

// Validate checks the burst parameters.
func (o Options) Validate() error {
	if o.Total < 1 {
		return fmt.Errorf("flurry size must be at least 1")
	}
	if o.Connections < 1 {
		return fmt.Errorf("connections must be at least 1")
	}
	if o.Rate < 0 {
		return fmt.Errorf("rate cannot be negative")
	}
	return nil
}

// Aggregate is the summarized result of a burst. Successes plus Failures
// always equals the number of dispatched requests; timeouts and non-2xx
// responses count as failures and never abort the batch.
type Aggregate struct {
	Successes    int64
	Failures     int64
	Elapsed      time.Duration
	StatusCounts map[int]int64
	Min          time.Duration
	Max          time.Duration
	Mean         time.Duration
	P50          time.Duration
	P95          time.Duration
	P99          time.Duration
}

// OnResponse is called for every completed response, concurrently from
// worker goroutines. Capture persistence behind it is serialized by the
// capture store's own lock.
type OnResponse func(resp *request.Response)

// Run dispatches opts.Total copies of def with at most opts.Connections
// in flight. Cancelling ctx stops dispatch; in-flight requests are
// abandoned and whatever was recorded so far is returned.
func Run(ctx context.Context, client *request.Client, def *request.Definition, opts Options, onResponse OnResponse) (*Aggregate, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var limiter *rate.Limiter
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}

	m := newMetrics()
	sem := make(chan struct{}, opts.Connections)
	var wg sync.WaitGroup

	start := time.Now()

dispatch:
	for i := 0; i < opts.Total; i++ {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				break dispatch
			}
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			break dispatch
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := client.Do(ctx, def)
			if err != nil {
				m.record(0, 0, err)
				return
			}
			m.record(resp.StatusCode, resp.Duration, nil)

			if onResponse != nil && resp.IsSuccess() {
				onResponse(resp)
			}
		}()
	}

	wg.Wait()
	return m.aggregate(time.Since(start)), ctx.Err()
}
