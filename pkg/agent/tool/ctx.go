// Package tool carries per-resolution hooks into capability execution.
package tool

import "context"

// UpdateFunc receives a short progress note from a running capability, such as
// "Searching products: retinol serum".
type UpdateFunc func(ctx context.Context, message string)

type contextKey struct{}

// WithUpdate returns a context whose capability progress notes are sent to fn.
func WithUpdate(ctx context.Context, fn UpdateFunc) context.Context {
	return context.WithValue(ctx, contextKey{}, fn)
}

// Update sends message to the UpdateFunc in ctx. Without one it does nothing.
// Capabilities run concurrently, so fn must be safe for concurrent use.
func Update(ctx context.Context, message string) {
	if fn, ok := ctx.Value(contextKey{}).(UpdateFunc); ok && fn != nil {
		fn(ctx, message)
	}
}
