package model

import "github.com/m-mizutani/goerr/v2"

// Conversation and capability errors
var (
	ErrOrphanedResult   = goerr.New("capability result does not reference a pending call")
	ErrInvalidTurn      = goerr.New("invalid conversation turn")
	ErrInvalidSignal    = goerr.New("visual signal field out of range")
	ErrInvalidProduct   = goerr.New("invalid product record")
	ErrEmptyInstruction = goerr.New("routine step requires a product or an instruction")
)

// Context keys for error values
const (
	CallIDKey = "call_id"
	RoleKey   = "role"
	FieldKey  = "field"
)
