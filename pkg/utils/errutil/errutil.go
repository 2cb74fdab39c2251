package errutil

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

// Handle logs err with its goerr values and stack, reports it to Sentry when a client is
// configured, and returns err unchanged.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logError(ctx, msg, err)
	report(ctx, err)
	return err
}

// HandleHTTP logs err and writes a plain-text error response with statusCode.
// 5xx responses never leak the internal error message.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	logError(ctx, "HTTP error", err, slog.Int("status", statusCode))

	msg := err.Error()
	if statusCode >= http.StatusInternalServerError {
		report(ctx, err)
		msg = http.StatusText(statusCode)
	}
	http.Error(w, msg, statusCode)
}

func logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, slog.String("error", err.Error()))

	var ge *goerr.Error
	if errors.As(err, &ge) {
		attrs = append(attrs,
			slog.Any("values", ge.Values()),
			slog.Any("stack", ge.Stacks()),
		)
	}

	logging.From(ctx).LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func report(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		var ge *goerr.Error
		if errors.As(err, &ge) {
			scope.SetContext("error_values", sentry.Context(ge.Values()))
		}
		hub.CaptureException(err)
	})
}
