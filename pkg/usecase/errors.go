package usecase

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for use case layer
var (
	ErrInvalidRequest = goerr.New("invalid resolve request")
	ErrNoImages       = goerr.New("no usable image data")
	ErrInvalidConfig  = goerr.New("invalid resolver configuration")

	ErrProviderUnavailable = goerr.New("completion provider is not configured")
)

// Context keys for error values
const (
	ConversationIDKey = "conversation_id"
	UserIDKey         = "user_id"
)
