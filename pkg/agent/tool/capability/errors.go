package capability

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrInvalidArgument is returned when call arguments do not match the schema
	ErrInvalidArgument = goerr.New("invalid capability argument")
	// ErrUnknownCapability is returned for names outside the menu
	ErrUnknownCapability = goerr.New("unknown capability")
	// ErrUserRequired is returned when a user-scoped capability runs anonymously
	ErrUserRequired = goerr.New("capability requires an identified user")
	// ErrProductNotFound is returned when a referenced product does not exist
	ErrProductNotFound = goerr.New("product not found")
	// ErrSearchUnavailable is returned when every search path failed
	ErrSearchUnavailable = goerr.New("product search unavailable")
)

const (
	argKey  = "arg"
	nameKey = "capability"
)
