package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
	"github.com/secmon-lab/dermis/pkg/agent/tool/capability"
	domainConfig "github.com/secmon-lab/dermis/pkg/domain/model/config"
	"github.com/secmon-lab/dermis/pkg/service/governor"
	"github.com/urfave/cli/v3"
)

// AppConfig holds CLI flags for the application configuration file
type AppConfig struct {
	path string
}

// Flags returns CLI flags for the configuration file
func (a *AppConfig) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to the TOML configuration file. Defaults are used when omitted",
			Sources:     cli.EnvVars("DERMIS_CONFIG"),
			Destination: &a.path,
		},
	}
}

// Configure loads the configuration file, or the defaults when no path is set
func (a *AppConfig) Configure() (*Settings, error) {
	if a.path == "" {
		s := &Settings{}
		if err := s.Validate(); err != nil {
			return nil, err
		}
		return s, nil
	}
	return LoadSettings(a.path)
}

// Settings is the content of the TOML configuration file
type Settings struct {
	Orchestrator OrchestratorSettings `toml:"orchestrator"`
	Capability   CapabilitySettings   `toml:"capability"`
	Cache        CacheSettings        `toml:"cache"`

	resolver      domainConfig.ResolverConfig
	capability    capability.Config
	sweepInterval time.Duration
}

// OrchestratorSettings bounds each resolution
type OrchestratorSettings struct {
	MaxRounds         int    `toml:"max_rounds"`
	CompletionTimeout string `toml:"completion_timeout"`
	CapabilityTimeout string `toml:"capability_timeout"`
	SummaryTimeout    string `toml:"summary_timeout"`
	SummaryTTL        string `toml:"summary_ttl"`
	HistoryLimit      *int   `toml:"history_limit"`
	MaxProducts       int    `toml:"max_products"`
}

// CapabilitySettings tunes catalog search
type CapabilitySettings struct {
	SearchLimit         int     `toml:"search_limit"`
	MaxSearchLimit      int     `toml:"max_search_limit"`
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	EmbedTimeout        string  `toml:"embed_timeout"`
}

// CacheSettings configures the shared result cache
type CacheSettings struct {
	SingleFlight  bool   `toml:"single_flight"`
	SweepInterval string `toml:"sweep_interval"`
	ProfileTTL    string `toml:"profile_ttl"`
	RoutineTTL    string `toml:"routine_ttl"`
	ProductTTL    string `toml:"product_ttl"`
	SearchTTL     string `toml:"search_ttl"`
	EmbeddingTTL  string `toml:"embedding_ttl"`
}

const defaultSweepInterval = time.Minute

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, goerr.Wrap(ErrInvalidDuration, err.Error(), goerr.V(FieldKey, field), goerr.V(ValueKey, value))
	}
	if d < 0 {
		return 0, goerr.Wrap(ErrInvalidDuration, "duration cannot be negative", goerr.V(FieldKey, field), goerr.V(ValueKey, value))
	}
	return d, nil
}

// Validate fills unset values with defaults and checks the result
func (s *Settings) Validate() error {
	resolver := domainConfig.DefaultResolverConfig()
	o := s.Orchestrator

	if o.MaxRounds != 0 {
		resolver.MaxRounds = o.MaxRounds
	}
	if o.MaxProducts != 0 {
		resolver.MaxProducts = o.MaxProducts
	}
	if o.HistoryLimit != nil {
		resolver.HistoryLimit = *o.HistoryLimit
	}

	durations := []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"orchestrator.completion_timeout", o.CompletionTimeout, &resolver.CompletionTimeout},
		{"orchestrator.capability_timeout", o.CapabilityTimeout, &resolver.CapabilityTimeout},
		{"orchestrator.summary_timeout", o.SummaryTimeout, &resolver.SummaryTimeout},
		{"orchestrator.summary_ttl", o.SummaryTTL, &resolver.SummaryTTL},
	}

	capCfg := capability.DefaultConfig()
	c := s.Capability
	if c.SearchLimit != 0 {
		capCfg.SearchLimit = c.SearchLimit
	}
	if c.MaxSearchLimit != 0 {
		capCfg.MaxSearchLimit = c.MaxSearchLimit
	}
	if c.SimilarityThreshold != 0 {
		capCfg.SimilarityThreshold = c.SimilarityThreshold
	}

	sweep := defaultSweepInterval
	durations = append(durations, []struct {
		field string
		value string
		dst   *time.Duration
	}{
		{"capability.embed_timeout", c.EmbedTimeout, &capCfg.EmbedTimeout},
		{"cache.sweep_interval", s.Cache.SweepInterval, &sweep},
		{"cache.profile_ttl", s.Cache.ProfileTTL, &capCfg.ProfileTTL},
		{"cache.routine_ttl", s.Cache.RoutineTTL, &capCfg.RoutineTTL},
		{"cache.product_ttl", s.Cache.ProductTTL, &capCfg.ProductTTL},
		{"cache.search_ttl", s.Cache.SearchTTL, &capCfg.SearchTTL},
		{"cache.embedding_ttl", s.Cache.EmbeddingTTL, &capCfg.EmbeddingTTL},
	}...)

	for _, d := range durations {
		v, err := parseDuration(d.field, d.value, *d.dst)
		if err != nil {
			return err
		}
		*d.dst = v
	}

	if err := resolver.Validate(); err != nil {
		return goerr.Wrap(ErrInvalidConfig, err.Error())
	}
	if capCfg.SearchLimit < 1 || capCfg.MaxSearchLimit < capCfg.SearchLimit {
		return goerr.Wrap(ErrInvalidConfig, "search limits must satisfy 1 <= search_limit <= max_search_limit",
			goerr.V("search_limit", capCfg.SearchLimit),
			goerr.V("max_search_limit", capCfg.MaxSearchLimit))
	}
	if capCfg.SimilarityThreshold < 0 || capCfg.SimilarityThreshold > 1 {
		return goerr.Wrap(ErrInvalidConfig, "similarity threshold must be within [0,1]",
			goerr.V("similarity_threshold", capCfg.SimilarityThreshold))
	}

	s.resolver = resolver
	s.capability = capCfg
	s.sweepInterval = sweep
	return nil
}

// Resolver returns the validated resolver bounds
func (s *Settings) Resolver() domainConfig.ResolverConfig {
	return s.resolver
}

// CapabilityConfig returns the validated capability configuration
func (s *Settings) CapabilityConfig() capability.Config {
	return s.capability
}

// SweepInterval returns how often expired cache entries are evicted. Zero disables sweeping.
func (s *Settings) SweepInterval() time.Duration {
	return s.sweepInterval
}

// NewCache creates the shared result cache
func (s *Settings) NewCache() *governor.Cache {
	var opts []governor.Option
	if s.Cache.SingleFlight {
		opts = append(opts, governor.WithSingleFlight())
	}
	return governor.New(opts...)
}

// LogAttrs returns log attributes for the configuration
func (s *Settings) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.Int("max_rounds", s.resolver.MaxRounds),
		slog.Duration("completion_timeout", s.resolver.CompletionTimeout),
		slog.Duration("capability_timeout", s.resolver.CapabilityTimeout),
		slog.Int("max_products", s.resolver.MaxProducts),
		slog.Float64("similarity_threshold", s.capability.SimilarityThreshold),
		slog.Bool("single_flight", s.Cache.SingleFlight),
	}
}

// LoadSettings loads the application configuration from a TOML file
func LoadSettings(path string) (*Settings, error) {
	// #nosec G304 - path is expected to be provided by CLI argument
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, goerr.Wrap(ErrConfigNotFound, err.Error(), goerr.V(ConfigPathKey, path))
		}
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V(ConfigPathKey, path))
	}

	var settings Settings
	if err := toml.Unmarshal(data, &settings); err != nil {
		return nil, goerr.Wrap(ErrInvalidConfig, "failed to parse TOML config: "+err.Error(), goerr.V(ConfigPathKey, path))
	}

	if err := settings.Validate(); err != nil {
		return nil, goerr.Wrap(err, "config validation failed", goerr.V(ConfigPathKey, path))
	}

	return &settings, nil
}
