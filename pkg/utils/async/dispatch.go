package async

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/utils/errutil"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

// Dispatch runs handler in a new goroutine detached from the caller's cancellation.
// The caller's logger is preserved. Panics and errors are logged under task and never
// reach the caller. The returned channel is closed when the handler finishes.
func Dispatch(ctx context.Context, task string, handler func(ctx context.Context) error) <-chan struct{} {
	logger := logging.From(ctx).With("task", task)
	bgCtx := logging.With(context.WithoutCancel(ctx), logger)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in async task", "panic", r)
			}
		}()

		if err := handler(bgCtx); err != nil {
			_ = errutil.Handle(bgCtx, goerr.Wrap(err, "async task failed", goerr.V("task", task)), "async task failed")
		}
	}()

	return done
}
