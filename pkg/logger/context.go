package logger

import "context"

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a context carrying the correlation id. Every record
// logged with the returned context includes it.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// Correlation returns the correlation id stored in ctx or an empty string.
func Correlation(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}
