// Package tx declares the transaction boundary shared by the timer and profile services.
package tx

import "context"

// Manager runs fn inside one transaction. Repositories find the open transaction through
// the context handed to fn, and nested calls join the outer transaction.
type Manager interface {
	Within(ctx context.Context, fn func(context.Context) error) error
}

// Passthrough runs fn directly. Services fall back to it when no store-backed manager is wired.
type Passthrough struct{}

func (Passthrough) Within(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}
