package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// Logger holds CLI flags for logging
type Logger struct {
	level  string
	format string
	output string
}

// Flags returns CLI flags for logger configuration
func (x *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Category:    "logging",
			Aliases:     []string{"l"},
			Usage:       "Log level [debug|info|warn|error]",
			Value:       "info",
			Sources:     cli.EnvVars("DERMIS_LOG_LEVEL"),
			Destination: &x.level,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Category:    "logging",
			Usage:       "Log format [console|json]",
			Value:       "json",
			Sources:     cli.EnvVars("DERMIS_LOG_FORMAT"),
			Destination: &x.format,
		},
		&cli.StringFlag{
			Name:        "log-output",
			Category:    "logging",
			Usage:       "Log output [stdout|stderr|<file path>]",
			Value:       "stdout",
			Sources:     cli.EnvVars("DERMIS_LOG_OUTPUT"),
			Destination: &x.output,
		},
	}
}

// LogValue renders the logger configuration as a log group
func (x Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", x.level),
		slog.String("format", x.format),
		slog.String("output", x.output),
	)
}

var levelMap = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Configure installs the default logger. The returned function closes the log file,
// if any.
func (x *Logger) Configure() (func(), error) {
	closer := func() {}

	level, ok := levelMap[x.level]
	if !ok {
		return closer, goerr.Wrap(ErrInvalidLogOption, "unknown log level", goerr.V(ValueKey, x.level))
	}

	var w io.Writer
	switch x.output {
	case "stdout", "-", "":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(filepath.Clean(x.output), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return closer, goerr.Wrap(err, "failed to open log file", goerr.V("path", x.output))
		}
		w = f
		closer = func() {
			if err := f.Close(); err != nil {
				logging.Default().Error("failed to close log file", "error", err.Error())
			}
		}
	}

	filter := masq.New(
		masq.WithTag("secret"),
		masq.WithFieldPrefix("secret_"),
	)

	var handler slog.Handler
	switch x.format {
	case "console":
		handler = clog.New(
			clog.WithWriter(w),
			clog.WithLevel(level),
			clog.WithReplaceAttr(filter),
			clog.WithSource(true),
			clog.WithColorMap(&clog.ColorMap{
				Level: map[slog.Level]*color.Color{
					slog.LevelDebug: color.New(color.FgGreen, color.Bold),
					slog.LevelInfo:  color.New(color.FgCyan, color.Bold),
					slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
					slog.LevelError: color.New(color.FgRed, color.Bold),
				},
				LevelDefault: color.New(color.FgBlue, color.Bold),
				Time:         color.New(color.FgWhite),
				Message:      color.New(color.FgHiWhite),
				AttrKey:      color.New(color.FgHiCyan),
				AttrValue:    color.New(color.FgHiWhite),
			}),
		)

	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: filter,
		})

	default:
		closer()
		return func() {}, goerr.Wrap(ErrInvalidLogOption, "unknown log format", goerr.V(ValueKey, x.format))
	}

	logging.SetDefault(slog.New(handler))
	return closer, nil
}
