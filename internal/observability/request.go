package observability

import "context"

type requestKey struct{}

// RequestInfo identifies the request an event belongs to.
type RequestInfo struct {
	ChatID string
	TaskID string
}

// WithRequest attaches request identifiers to ctx.
func WithRequest(ctx context.Context, chatID, taskID string) context.Context {
	return context.WithValue(ctx, requestKey{}, RequestInfo{ChatID: chatID, TaskID: taskID})
}

// RequestFromContext returns the identifiers stored by WithRequest, or zero values.
func RequestFromContext(ctx context.Context) RequestInfo {
	info, _ := ctx.Value(requestKey{}).(RequestInfo)
	return info
}
