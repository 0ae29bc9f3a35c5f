package mongo

import (
	"context"
	"time"
)

// WithTimeout bounds a single repository call. A session context is returned
// unchanged with a no-op cancel because wrapping it would detach the call from
// its transaction; the transaction's own deadline applies instead.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if InTransaction(ctx) {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}

	return context.WithTimeout(ctx, timeout)
}
