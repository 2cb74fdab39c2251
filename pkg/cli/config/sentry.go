package config

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

const sentryFlushTimeout = 2 * time.Second

// Sentry holds CLI flags for error reporting
type Sentry struct {
	dsn         string
	environment string
	release     string
}

// Flags returns CLI flags for Sentry configuration
func (s *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Category:    "Sentry",
			Usage:       "Sentry DSN. Error reporting is disabled when empty",
			Sources:     cli.EnvVars("DERMIS_SENTRY_DSN"),
			Destination: &s.dsn,
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Category:    "Sentry",
			Usage:       "Sentry environment",
			Value:       "development",
			Sources:     cli.EnvVars("DERMIS_SENTRY_ENV"),
			Destination: &s.environment,
		},
	}
}

// LogAttrs returns log attributes for the Sentry configuration
func (s *Sentry) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Bool("enabled", s.dsn != ""),
		slog.String("environment", s.environment),
	}
}

// Configure initializes the global Sentry client. The returned function flushes
// buffered events.
func (s *Sentry) Configure(release string) (func(), error) {
	if s.dsn == "" {
		return func() {}, nil
	}

	s.release = release
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:              s.dsn,
		Environment:      s.environment,
		Release:          s.release,
		AttachStacktrace: true,
	}); err != nil {
		return func() {}, goerr.Wrap(err, "failed to initialize sentry", goerr.V("environment", s.environment))
	}

	return func() {
		sentry.Flush(sentryFlushTimeout)
	}, nil
}
