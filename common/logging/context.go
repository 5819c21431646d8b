package logging

import "context"

type contextKey string

const batchIDKey contextKey = "batch_id"

// WithBatchID returns a copy of ctx carrying the flush batch ID.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey, id)
}

// BatchIDFromContext returns the batch ID stored in ctx, or "".
func BatchIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(batchIDKey).(string)
	return id
}
