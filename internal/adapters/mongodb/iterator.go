package mongodb

import (
    "context"
    "fmt"

    "github.com/google/uuid"
    "github.com/walletera/kanban/internal/eventsourcing"
    "go.mongodb.org/mongo-driver/v2/mongo"
)

// Iterator walks a cursor over event documents.
type Iterator struct {
    cursor *mongo.Cursor
}

func (m *Iterator) Next(ctx context.Context) (bool, eventsourcing.RecordedEvent, error) {
    if !m.cursor.Next(ctx) {
        if err := m.cursor.Err(); err != nil {
            return false, eventsourcing.RecordedEvent{}, err
        }
        return false, eventsourcing.RecordedEvent{}, nil
    }

    var event EventBSON
    if err := m.cursor.Decode(&event); err != nil {
        return false, eventsourcing.RecordedEvent{}, err
    }

    eventId, err := uuid.Parse(event.EventId)
    if err != nil {
        return false, eventsourcing.RecordedEvent{}, fmt.Errorf("invalid event id %q at position %d: %w", event.EventId, event.Position, err)
    }

    return true, eventsourcing.RecordedEvent{
        EventId:       eventId,
        StreamName:    event.StreamName,
        StreamVersion: event.StreamVersion,
        Position:      uint64(event.Position),
        Type:          event.Type,
        Data:          event.Data,
        Metadata:      event.Metadata,
        CreatedAt:     event.CreatedAt,
    }, nil
}

// drain reads every remaining event and closes the cursor.
func (m *Iterator) drain(ctx context.Context) ([]eventsourcing.RecordedEvent, error) {
    defer m.cursor.Close(ctx)

    var events []eventsourcing.RecordedEvent
    for {
        ok, event, err := m.Next(ctx)
        if err != nil {
            return nil, err
        }
        if !ok {
            return events, nil
        }
        events = append(events, event)
    }
}
