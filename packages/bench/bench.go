// Package bench drives a request repeatedly and summarizes latency.
// Sends run sequentially against a shared rate limiter so the target
// sees a steady request rate rather than a burst.
package bench

import (
	"context"
	"fmt"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"golang.org/x/time/rate"

	"github.com/quiverhq/quiver/packages/store"
)

// SendFunc executes one logical send and returns the captured response.
type SendFunc func(ctx context.Context) (*store.Response, error)

// Summary aggregates the outcome of a benchmark run.
type Summary struct {
	Total    int
	Success  int
	Failed   int
	Elapsed  time.Duration
	Min      time.Duration
	Max      time.Duration
	Mean     time.Duration
	P50      time.Duration
	P95      time.Duration
	P99      time.Duration
}

// Runner repeats a send a fixed number of times.
type Runner struct {
	send    SendFunc
	count   int
	limiter *rate.Limiter
}

// NewRunner creates a runner that performs count sends. A positive
// ratePerSec caps the send rate; zero means unthrottled.
func NewRunner(send SendFunc, count int, ratePerSec float64) (*Runner, error) {
	if count < 1 {
		return nil, fmt.Errorf("bench: count must be positive, got %d", count)
	}
	r := &Runner{send: send, count: count}
	if ratePerSec > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(ratePerSec), 1)
	}
	return r, nil
}

// Run executes the sends and returns the latency summary. A send
// counts as failed when it returns an error or its response records a
// 5xx status. Cancellation stops the run and returns the context
// error with the partial summary discarded.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	// 1us to 60s range, 3 significant digits.
	hist := hdrhistogram.New(1, 60_000_000, 3)
	summary := &Summary{}
	start := time.Now()

	for i := 0; i < r.count; i++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		sendStart := time.Now()
		resp, err := r.send(ctx)
		elapsed := time.Since(sendStart)
		if resp != nil && resp.ElapsedTime > 0 {
			elapsed = resp.ElapsedTime
		}

		summary.Total++
		if err != nil || resp == nil || resp.StatusCode >= 500 {
			summary.Failed++
		} else {
			summary.Success++
		}
		_ = hist.RecordValue(elapsed.Microseconds())
	}

	summary.Elapsed = time.Since(start)
	summary.Min = time.Duration(hist.Min()) * time.Microsecond
	summary.Max = time.Duration(hist.Max()) * time.Microsecond
	summary.Mean = time.Duration(hist.Mean()) * time.Microsecond
	summary.P50 = time.Duration(hist.ValueAtQuantile(50)) * time.Microsecond
	summary.P95 = time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond
	summary.P99 = time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond
	return summary, nil
}
