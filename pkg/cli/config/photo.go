package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/domain/interfaces"
	"github.com/secmon-lab/dermis/pkg/service/photo"
	"github.com/urfave/cli/v3"
)

// Photo holds CLI flags for the photo archive
type Photo struct {
	bucket string
	prefix string
}

// Flags returns CLI flags for photo archive configuration
func (p *Photo) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "photo-bucket",
			Category:    "Photo",
			Usage:       "Cloud Storage bucket for uploaded skin photos. Photos are not archived when empty",
			Sources:     cli.EnvVars("DERMIS_PHOTO_BUCKET"),
			Destination: &p.bucket,
		},
		&cli.StringFlag{
			Name:        "photo-prefix",
			Category:    "Photo",
			Usage:       "Object name prefix for archived photos",
			Value:       "photos",
			Sources:     cli.EnvVars("DERMIS_PHOTO_PREFIX"),
			Destination: &p.prefix,
		},
	}
}

// LogAttrs returns log attributes for the photo configuration
func (p *Photo) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("bucket", p.bucket),
		slog.String("prefix", p.prefix),
	}
}

// Configure creates the photo store. Returns nil when no bucket is configured.
// The returned function releases the storage client.
func (p *Photo) Configure(ctx context.Context) (interfaces.PhotoStore, func(), error) {
	if p.bucket == "" {
		return nil, func() {}, nil
	}

	store, err := photo.NewGCSStore(ctx, p.bucket, photo.WithPrefix(p.prefix))
	if err != nil {
		return nil, func() {}, goerr.Wrap(err, "failed to create photo store")
	}

	return store, func() { _ = store.Close() }, nil
}
