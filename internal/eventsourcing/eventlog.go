package eventsourcing

import "context"

// EventLog is the append-only log aggregates are persisted to.
type EventLog interface {
    // ReadStream returns the events of a stream in order. A stream that does
    // not exist yields an empty slice and no error.
    ReadStream(ctx context.Context, streamName string) ([]RecordedEvent, error)

    // AppendToStream appends events atomically, but only if the stream is
    // currently at expectedVersion (NoStreamVersion for a new stream).
    // A mismatch fails with a *VersionConflictError and appends nothing.
    AppendToStream(
        ctx context.Context,
        streamName string,
        expectedVersion int64,
        events []EventData,
        correlationId string,
    ) (AppendResult, error)
}

// AllReader reads the global ordering of the log, across all streams.
type AllReader interface {
    // ReadAll returns up to limit events with a position greater than
    // fromPosition, ordered by position.
    ReadAll(ctx context.Context, fromPosition uint64, limit int) ([]RecordedEvent, error)
}

// Filter decides whether a subscription delivers an event.
type Filter func(event RecordedEvent) bool

func ExcludeSystemEvents(event RecordedEvent) bool {
    return !event.IsSystemEvent()
}

// AllSubscriber opens catch-up subscriptions over the global ordering.
type AllSubscriber interface {
    // SubscribeToAll delivers every event after fromPosition that passes
    // the filter, first the historical ones and then the live ones.
    SubscribeToAll(ctx context.Context, fromPosition uint64, filter Filter) (Subscription, error)
}

type DropReason string

const (
    DropReasonDisposed        DropReason = "disposed"
    DropReasonSubscriberError DropReason = "subscriber_error"
    DropReasonServerError     DropReason = "server_error"
)

// Drop describes why a subscription ended.
type Drop struct {
    Reason DropReason
    Err    error
}

type Subscription interface {
    // Events is closed when the subscription ends.
    Events() <-chan RecordedEvent
    // Drop is only meaningful once Events has been closed.
    Drop() Drop
    // Close ends the subscription. It is safe to call more than once.
    Close() error
}

// CheckpointStore keeps the last position a subscriber has fully processed.
type CheckpointStore interface {
    // GetCheckpoint returns 0 when nothing was stored for name.
    GetCheckpoint(ctx context.Context, name string) (uint64, error)
    SaveCheckpoint(ctx context.Context, name string, position uint64) error
}
