package governor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

var (
	// ErrDeadlineExceeded is returned with the fallback when the deadline wins.
	ErrDeadlineExceeded = goerr.New("deadline exceeded before work completed")
	// ErrWorkPanicked wraps a panic raised by the work task.
	ErrWorkPanicked = goerr.New("work panicked")
)

type outcome[T any] struct {
	value T
	err   error
}

// WithDeadline races work against a timer of length timeout.
//
// The work task runs in its own goroutine with a context that is detached from
// ctx's cancellation, so it always runs to completion. When the timer (or ctx)
// settles first, fallback is returned with ErrDeadlineExceeded (or ctx's error) and
// the work result is discarded when it arrives. Work must therefore be safe to finish
// in the background. A failed work task returns fallback with the wrapped error.
// A timeout of zero or less waits for work without a deadline.
func WithDeadline[T any](ctx context.Context, timeout time.Duration, fallback T, work func(ctx context.Context) (T, error)) (T, error) {
	done := make(chan outcome[T], 1)
	var settled atomic.Bool
	started := time.Now()

	go func() {
		out := runWork(context.WithoutCancel(ctx), work)
		if !settled.CompareAndSwap(false, true) {
			logging.From(ctx).Debug("discarding late result",
				"elapsed", time.Since(started),
				"timeout", timeout,
				"failed", out.err != nil,
			)
			return
		}
		done <- out
	}()

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case out := <-done:
		return settle(out, fallback)

	case <-timer:
		if settled.CompareAndSwap(false, true) {
			return fallback, goerr.Wrap(ErrDeadlineExceeded, "work timed out", goerr.V("timeout", timeout))
		}
		return settle(<-done, fallback)

	case <-ctx.Done():
		if settled.CompareAndSwap(false, true) {
			return fallback, goerr.Wrap(ctx.Err(), "context done before work completed")
		}
		return settle(<-done, fallback)
	}
}

func settle[T any](out outcome[T], fallback T) (T, error) {
	if out.err != nil {
		return fallback, goerr.Wrap(out.err, "work failed")
	}
	return out.value, nil
}

func runWork[T any](ctx context.Context, work func(ctx context.Context) (T, error)) (out outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			out = outcome[T]{err: goerr.Wrap(ErrWorkPanicked, "recovered", goerr.V("panic", r))}
		}
	}()

	v, err := work(ctx)
	return outcome[T]{value: v, err: err}
}
