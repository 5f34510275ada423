package memory

import (
    "context"
    "fmt"
    "sync"
    "time"

    "github.com/walletera/kanban/internal/eventsourcing"
)

// EventLog keeps streams and the global ordering in process memory.
type EventLog struct {
    mu      sync.RWMutex
    streams map[string][]eventsourcing.RecordedEvent
    all     []eventsourcing.RecordedEvent
}

func NewEventLog() *EventLog {
    return &EventLog{
        streams: make(map[string][]eventsourcing.RecordedEvent),
    }
}

func (l *EventLog) ReadStream(_ context.Context, streamName string) ([]eventsourcing.RecordedEvent, error) {
    l.mu.RLock()
    defer l.mu.RUnlock()

    stream := l.streams[streamName]
    recorded := make([]eventsourcing.RecordedEvent, len(stream))
    copy(recorded, stream)
    return recorded, nil
}

func (l *EventLog) AppendToStream(
    _ context.Context,
    streamName string,
    expectedVersion int64,
    events []eventsourcing.EventData,
    correlationId string,
) (eventsourcing.AppendResult, error) {
    if expectedVersion < eventsourcing.NoStreamVersion {
        return eventsourcing.AppendResult{}, fmt.Errorf("invalid expected version %d", expectedVersion)
    }

    l.mu.Lock()
    defer l.mu.Unlock()

    stream := l.streams[streamName]
    currentVersion := int64(len(stream)) - 1
    if currentVersion != expectedVersion {
        return eventsourcing.AppendResult{}, &eventsourcing.VersionConflictError{
            StreamName:      streamName,
            ExpectedVersion: expectedVersion,
            ActualVersion:   currentVersion,
        }
    }

    createdAt := time.Now().UTC()
    for _, event := range events {
        currentVersion++
        recorded := eventsourcing.RecordedEvent{
            EventId:       event.EventId,
            StreamName:    streamName,
            StreamVersion: currentVersion,
            Position:      uint64(len(l.all)) + 1,
            Type:          event.Type,
            Data:          event.Data,
            Metadata:      eventsourcing.Metadata{CorrelationId: correlationId},
            CreatedAt:     createdAt,
        }
        stream = append(stream, recorded)
        l.all = append(l.all, recorded)
    }
    l.streams[streamName] = stream

    return eventsourcing.AppendResult{
        NextExpectedVersion: currentVersion,
        LastPosition:        uint64(len(l.all)),
    }, nil
}

func (l *EventLog) ReadAll(_ context.Context, fromPosition uint64, limit int) ([]eventsourcing.RecordedEvent, error) {
    l.mu.RLock()
    defer l.mu.RUnlock()

    total := uint64(len(l.all))
    if fromPosition >= total {
        return nil, nil
    }
    end := total
    if limit > 0 && fromPosition+uint64(limit) < total {
        end = fromPosition + uint64(limit)
    }
    recorded := make([]eventsourcing.RecordedEvent, end-fromPosition)
    copy(recorded, l.all[fromPosition:end])
    return recorded, nil
}
