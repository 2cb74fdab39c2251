package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/dermis/pkg/cli/config"
	httpctrl "github.com/secmon-lab/dermis/pkg/controller/http"
	"github.com/secmon-lab/dermis/pkg/service/worker"
	"github.com/secmon-lab/dermis/pkg/usecase"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var userHeader string
	var maxBodyBytes int64
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var geminiCfg config.Gemini
	var photoCfg config.Photo

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("DERMIS_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "user-header",
			Usage:       "Request header carrying the authenticated user ID, set by the fronting proxy",
			Value:       "X-User-ID",
			Sources:     cli.EnvVars("DERMIS_USER_HEADER"),
			Destination: &userHeader,
		},
		&cli.Int64Flag{
			Name:        "max-body-bytes",
			Usage:       "Maximum request body size in bytes",
			Value:       20 << 20,
			Sources:     cli.EnvVars("DERMIS_MAX_BODY_BYTES"),
			Destination: &maxBodyBytes,
		},
	}

	// Add shared config flags
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, photoCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			settings, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to load configuration")
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "Configuration loaded", settings.LogAttrs()...)

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			cache := settings.NewCache()
			ucOpts := []usecase.Option{
				usecase.WithCache(cache),
				usecase.WithResolverConfig(settings.Resolver()),
				usecase.WithCapabilityConfig(settings.CapabilityConfig()),
			}

			completionSvc, err := geminiCfg.ConfigureCompletion(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure completion provider")
			}
			if completionSvc != nil {
				ucOpts = append(ucOpts,
					usecase.WithCompletion(completionSvc),
					usecase.WithSummarizer(completionSvc),
				)
				logger.LogAttrs(ctx, slog.LevelInfo, "Completion provider enabled", geminiCfg.LogAttrs()...)
			} else {
				logger.Warn("Gemini project ID not configured, every chat will receive the fallback reply")
			}

			photos, closePhotos, err := photoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure photo store")
			}
			defer closePhotos()
			if photos != nil {
				ucOpts = append(ucOpts, usecase.WithPhotoStore(photos))
				logger.LogAttrs(ctx, slog.LevelInfo, "Photo archive enabled", photoCfg.LogAttrs()...)
			}

			uc := usecase.New(repo, ucOpts...)

			var sweeper *worker.CacheSweeperWorker
			if interval := settings.SweepInterval(); interval > 0 {
				sweeper = worker.NewCacheSweeperWorker(uc.Cache(), interval)
				if err := sweeper.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start cache sweeper")
				}
			}

			httpHandler, err := httpctrl.New(uc.Chat, uc.Skin,
				httpctrl.WithUserHeader(userHeader),
				httpctrl.WithMaxBodyBytes(maxBodyBytes),
			)
			if err != nil {
				return goerr.Wrap(err, "failed to create http server")
			}
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting HTTP server", "addr", addr, "user_header", userHeader)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				if sweeper != nil {
					sweeper.Stop()
				}
				return err
			case sig := <-sigCh:
				logger.Info("Received shutdown signal", "signal", sig)

				if sweeper != nil {
					sweeper.Stop()
				}

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logger.Info("Server shutdown completed")
				return nil
			}
		},
	}
}
