package eventsourcing

import "context"

type correlationIdKey struct{}

func WithCorrelationId(ctx context.Context, correlationId string) context.Context {
    return context.WithValue(ctx, correlationIdKey{}, correlationId)
}

func CorrelationIdFromContext(ctx context.Context) (string, bool) {
    correlationId, ok := ctx.Value(correlationIdKey{}).(string)
    if !ok || correlationId == "" {
        return "", false
    }
    return correlationId, true
}
