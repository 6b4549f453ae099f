/*
Package log provides Context with logging metadata, as well as logging helper functions.
*/
package log

import (
	"context"
)

// unique type to prevent assignment.
type clogContextKeyType struct{}

// singleton value to identify our logging metadata in context
var clogContextKey = clogContextKeyType{}

const requestIDKey = "request_id"

// basic type to represent logging container. logging context is immutable after
// creation, so we don't have to worry about locking.
type metadata map[string]any

func (m metadata) Flat() []any {
	out := []any{}
	for k, v := range m {
		if k == requestIDKey {
			continue
		}
		out = append(out, k, v)
	}
	return out
}

// Return a new context, adding in the provided values to the logging metadata
func WithLogValues(ctx context.Context, args ...string) context.Context {
	oldMetadata, _ := ctx.Value(clogContextKey).(metadata)
	var newMetadata = metadata{}
	for k, v := range oldMetadata {
		newMetadata[k] = v
	}
	for i := range args {
		if i%2 == 0 {
			continue
		}
		newMetadata[args[i-1]] = args[i]
	}
	return context.WithValue(ctx, clogContextKey, newMetadata)
}

// WithRequestID is shorthand for tagging a context with the job's request ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return WithLogValues(ctx, requestIDKey, requestID)
}

// RequestID returns the request ID attached to ctx, if any
func RequestID(ctx context.Context) string {
	meta, _ := ctx.Value(clogContextKey).(metadata)
	requestID, _ := meta[requestIDKey].(string)
	return requestID
}

func LogCtx(ctx context.Context, message string, args ...any) {
	meta, _ := ctx.Value(clogContextKey).(metadata)
	allArgs := append([]any{}, meta.Flat()...)
	allArgs = append(allArgs, args...)
	if requestID := RequestID(ctx); requestID == "" {
		LogNoRequestID(message, allArgs...)
	} else {
		Log(requestID, message, allArgs...)
	}
}

func LogCtxError(ctx context.Context, message string, err error, args ...any) {
	meta, _ := ctx.Value(clogContextKey).(metadata)
	allArgs := append([]any{}, meta.Flat()...)
	allArgs = append(allArgs, args...)
	LogError(RequestID(ctx), message, err, allArgs...)
}
