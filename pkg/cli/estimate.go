package cli

import (
	"context"
	"encoding/json"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/dermis/pkg/service/vision"
	"github.com/urfave/cli/v3"
)

func cmdEstimate() *cli.Command {
	return &cli.Command{
		Name:      "estimate",
		Usage:     "Estimate skin signals from photo files and print them as JSON",
		ArgsUsage: "<file>...",
		Action: func(ctx context.Context, c *cli.Command) error {
			paths := c.Args().Slice()
			if len(paths) == 0 {
				return goerr.New("at least one image file is required")
			}

			images := make([][]byte, 0, len(paths))
			for _, path := range paths {
				// #nosec G304 - path is expected to be provided by CLI argument
				data, err := os.ReadFile(path)
				if err != nil {
					return goerr.Wrap(err, "failed to read image", goerr.V("path", path))
				}
				images = append(images, data)
			}

			signal := vision.Estimate(images)
			if signal == nil {
				return goerr.New("no image data to analyze", goerr.V("files", len(paths)))
			}

			w := c.Root().Writer
			if w == nil {
				w = os.Stdout
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(signal); err != nil {
				return goerr.Wrap(err, "failed to write estimate")
			}
			return nil
		},
	}
}
