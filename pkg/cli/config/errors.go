package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound   = goerr.New("configuration file not found")
	ErrInvalidConfig    = goerr.New("invalid configuration")
	ErrInvalidDuration  = goerr.New("invalid duration")
	ErrInvalidLogOption = goerr.New("invalid logger option")
	ErrInvalidCatalog   = goerr.New("invalid catalog file")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	FieldKey      = "field"
	ValueKey      = "value"
	ProductIDKey  = "product_id"
	IndexKey      = "index"
)
