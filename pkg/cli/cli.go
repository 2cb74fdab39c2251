package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/secmon-lab/dermis/pkg/cli/config"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func Run(ctx context.Context, args []string, version string) error {
	return RunWithWriter(ctx, args, version, os.Stdout)
}

// RunWithWriter runs the application with command output written to w
func RunWithWriter(ctx context.Context, args []string, version string, w io.Writer) error {
	var loggerCfg config.Logger
	var sentryCfg config.Sentry
	var closer func()
	var flush func()

	var flags []cli.Flag
	flags = append(flags, loggerCfg.Flags()...)
	flags = append(flags, sentryCfg.Flags()...)

	app := &cli.Command{
		Name:    "dermis",
		Usage:   "Conversational skincare recommendation backend",
		Version: version,
		Flags:   flags,
		Writer:  w,
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			f, err := loggerCfg.Configure()
			if err != nil {
				return ctx, err
			}
			closer = f

			fl, err := sentryCfg.Configure(version)
			if err != nil {
				return ctx, err
			}
			flush = fl

			logging.Default().Info("Starting dermis", "logger", loggerCfg)
			logging.Default().LogAttrs(ctx, slog.LevelInfo, "Sentry configured", sentryCfg.LogAttrs()...)
			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if flush != nil {
				flush()
			}
			if closer != nil {
				closer()
			}
			return nil
		},
		Commands: []*cli.Command{
			cmdServe(),
			cmdMigrate(),
			cmdSeed(),
			cmdEstimate(),
			cmdValidate(),
		},
	}

	if err := app.Run(ctx, args); err != nil {
		logging.Default().Error("failed to run app", "error", err)
		return err
	}

	return nil
}
