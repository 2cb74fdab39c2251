package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/cli/config"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdValidate() *cli.Command {
	var appCfg config.AppConfig
	var catalogPath string

	var flags []cli.Flag
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, &cli.StringFlag{
		Name:        "catalog",
		Usage:       "Product catalog TOML file to validate",
		Sources:     cli.EnvVars("DERMIS_CATALOG"),
		Destination: &catalogPath,
	})

	return &cli.Command{
		Name:    "validate",
		Aliases: []string{"v"},
		Usage:   "Validate the configuration file and optionally a product catalog",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			settings, err := appCfg.Configure()
			if err != nil {
				return goerr.Wrap(err, "configuration validation failed")
			}
			logger.LogAttrs(ctx, slog.LevelInfo, "Configuration validation passed", settings.LogAttrs()...)

			if catalogPath == "" {
				logger.Info("No catalog specified, skipping catalog validation")
				return nil
			}

			products, err := config.LoadCatalog(catalogPath)
			if err != nil {
				return goerr.Wrap(err, "catalog validation failed")
			}

			partial := 0
			for _, p := range products {
				if p.IsPartial() {
					partial++
				}
			}
			logger.Info("Catalog validation passed",
				"product_count", len(products),
				"partial_count", partial,
			)
			return nil
		},
	}
}
