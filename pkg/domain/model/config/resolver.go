package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ResolverConfig bounds one resolution
type ResolverConfig struct {
	MaxRounds         int
	CompletionTimeout time.Duration
	CapabilityTimeout time.Duration
	SummaryTimeout    time.Duration
	SummaryTTL        time.Duration
	HistoryLimit      int
	MaxProducts       int
}

// DefaultResolverConfig returns the values used when no configuration file is given
func DefaultResolverConfig() ResolverConfig {
	return ResolverConfig{
		MaxRounds:         4,
		CompletionTimeout: 25 * time.Second,
		CapabilityTimeout: 8 * time.Second,
		SummaryTimeout:    6 * time.Second,
		SummaryTTL:        10 * time.Minute,
		HistoryLimit:      20,
		MaxProducts:       8,
	}
}

// Validate checks that every bound is usable
func (c ResolverConfig) Validate() error {
	if c.MaxRounds < 1 {
		return goerr.New("max rounds must be at least 1", goerr.V("max_rounds", c.MaxRounds))
	}
	if c.CompletionTimeout <= 0 {
		return goerr.New("completion timeout must be positive", goerr.V("completion_timeout", c.CompletionTimeout))
	}
	if c.CapabilityTimeout <= 0 {
		return goerr.New("capability timeout must be positive", goerr.V("capability_timeout", c.CapabilityTimeout))
	}
	if c.HistoryLimit < 0 {
		return goerr.New("history limit cannot be negative", goerr.V("history_limit", c.HistoryLimit))
	}
	if c.MaxProducts < 1 {
		return goerr.New("max products must be at least 1", goerr.V("max_products", c.MaxProducts))
	}
	return nil
}
