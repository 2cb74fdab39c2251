package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/dermis/pkg/cli/config"
	"github.com/secmon-lab/dermis/pkg/utils/logging"
)

type credential struct {
	Name  string
	Token string `masq:"secret"`
}

func TestLogger_Configure(t *testing.T) {
	prev := logging.Default()
	t.Cleanup(func() { logging.SetDefault(prev) })

	t.Run("json output to file redacts secrets", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dermis.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err)

		logging.Default().Info("configured", slog.Any("credential", credential{
			Name:  "catalog-api",
			Token: "tok-very-secret",
		}))
		closer()

		data, err := os.ReadFile(path)
		gt.NoError(t, err)
		gt.String(t, string(data)).Contains("catalog-api")
		gt.String(t, string(data)).NotContains("tok-very-secret")
	})

	t.Run("console format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dermis.log")
		closer, err := config.NewLoggerForTest("info", "console", path).Configure()
		gt.NoError(t, err)
		closer()
	})

	t.Run("unknown level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "json", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidLogOption)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidLogOption)
	})
}
