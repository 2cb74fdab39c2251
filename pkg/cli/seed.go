package cli

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/cli/config"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const seedEmbedConcurrency = 4

func cmdSeed() *cli.Command {
	var catalogPath string
	var skipEmbedding bool
	var repoCfg config.Repository
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "catalog",
			Usage:       "Path to the product catalog TOML file",
			Required:    true,
			Sources:     cli.EnvVars("DERMIS_CATALOG"),
			Destination: &catalogPath,
		},
		&cli.BoolFlag{
			Name:        "skip-embedding",
			Usage:       "Store products without computing embeddings",
			Destination: &skipEmbedding,
		},
	}
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:  "seed",
		Usage: "Load a product catalog into the repository",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default()

			products, err := config.LoadCatalog(catalogPath)
			if err != nil {
				return goerr.Wrap(err, "failed to load catalog")
			}
			logger.Info("Catalog loaded", "path", catalogPath, "product_count", len(products))

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logger.Error("failed to close repository", "error", err.Error())
				}
			}()

			if !skipEmbedding {
				embedder, err := geminiCfg.ConfigureCompletion(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to configure embedding provider")
				}
				if embedder == nil {
					logger.Warn("Gemini project ID not configured, products are stored without embeddings")
				} else {
					logger.LogAttrs(ctx, slog.LevelInfo, "Computing embeddings", geminiCfg.LogAttrs()...)
					if err := embedProducts(ctx, embedder, products); err != nil {
						return err
					}
				}
			}

			if err := repo.Catalog().Put(ctx, products...); err != nil {
				return goerr.Wrap(err, "failed to store products")
			}

			logger.Info("Catalog seeded", "product_count", len(products), "backend", repoCfg.Backend())
			return nil
		},
	}
}

func embedProducts(ctx context.Context, embedder interfaces.Embedder, products []*model.ProductRecord) error {
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(seedEmbedConcurrency)

	for _, p := range products {
		eg.Go(func() error {
			vec, err := embedder.Embed(egCtx, config.EmbeddingText(p))
			if err != nil {
				return goerr.Wrap(err, "failed to embed product", goerr.V("product_id", p.ID))
			}
			p.Embedding = vec
			return nil
		})
	}

	return eg.Wait()
}
