package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/model"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var projectID string
	var databaseID string
	var collectionPrefix string
	var dryRun bool

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "firestore-project-id",
				Usage:       "Firestore Project ID (required)",
				Required:    true,
				Sources:     cli.EnvVars("DERMIS_FIRESTORE_PROJECT_ID"),
				Destination: &projectID,
			},
			&cli.StringFlag{
				Name:        "firestore-database-id",
				Usage:       "Firestore Database ID",
				Sources:     cli.EnvVars("DERMIS_FIRESTORE_DATABASE_ID"),
				Destination: &databaseID,
			},
			&cli.StringFlag{
				Name:        "firestore-collection-prefix",
				Usage:       "Prefix added to every Firestore collection name",
				Sources:     cli.EnvVars("DERMIS_FIRESTORE_COLLECTION_PREFIX"),
				Destination: &collectionPrefix,
			},
			&cli.BoolFlag{
				Name:        "dry-run",
				Usage:       "Preview changes without applying",
				Destination: &dryRun,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := logging.Default().With(
				"project_id", projectID,
				"database_id", databaseID,
				"collection_prefix", collectionPrefix,
			)

			client, err := fireconf.NewClient(ctx, projectID, databaseID)
			if err != nil {
				return goerr.Wrap(err, "failed to create fireconf client")
			}
			defer func() {
				if err := client.Close(); err != nil {
					logger.Error("failed to close fireconf client", "error", err.Error())
				}
			}()

			indexConfig := getIndexConfig(collectionPrefix)
			if dryRun {
				plan, err := client.GetMigrationPlan(ctx, indexConfig)
				if err != nil {
					return goerr.Wrap(err, "failed to create migration plan")
				}
				if len(plan.Steps) == 0 {
					logger.Info("Indexes are up to date")
					return nil
				}
				for i, step := range plan.Steps {
					logger.Info("Planned index change",
						"step", i+1,
						"collection", step.Collection,
						"operation", step.Operation,
						"description", step.Description,
						"destructive", step.Destructive)
				}
				return nil
			}

			logger.Info("Applying index migration", "collections", len(indexConfig.Collections))
			if err := client.Migrate(ctx, indexConfig); err != nil {
				return goerr.Wrap(err, "failed to apply migrations")
			}
			logger.Info("Index migration applied")
			return nil
		},
	}
}

func prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// getIndexConfig returns the Firestore index configuration. Collection names follow
// the repository's prefix rule.
func getIndexConfig(prefix string) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: prefixed(prefix, "products"),
				Indexes: []fireconf.Index{
					// BySimilarity
					{
						Fields: []fireconf.IndexField{
							{
								Path: "embedding",
								Vector: &fireconf.VectorConfig{
									Dimension: model.EmbeddingDimension,
								},
							},
						},
					},
				},
			},
			{
				Name: prefixed(prefix, "routines"),
				Indexes: []fireconf.Index{
					// Latest routine: user_id ASC, updated_at DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "user_id", Order: fireconf.OrderAscending},
							{Path: "updated_at", Order: fireconf.OrderDescending},
						},
					},
				},
			},
		},
	}
}
