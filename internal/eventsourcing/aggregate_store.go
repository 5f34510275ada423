package eventsourcing

import (
    "context"
    "fmt"

    "github.com/google/uuid"
)

// AggregateStore loads and saves one kind of aggregate against an EventLog.
type AggregateStore[A Aggregate] struct {
    kind       string
    factory    func(id string) A
    eventLog   EventLog
    serializer *Serializer
}

func NewAggregateStore[A Aggregate](
    kind string,
    factory func(id string) A,
    eventLog EventLog,
    serializer *Serializer,
) *AggregateStore[A] {
    return &AggregateStore[A]{
        kind:       kind,
        factory:    factory,
        eventLog:   eventLog,
        serializer: serializer,
    }
}

func (s *AggregateStore[A]) StreamName(id string) string {
    return StreamName(s.kind, id)
}

// CreateAggregate returns an aggregate with no history.
func (s *AggregateStore[A]) CreateAggregate(id string) A {
    return s.factory(id)
}

// Load reads the aggregate stream and folds it. A stream that does not
// exist yields a fresh aggregate.
func (s *AggregateStore[A]) Load(ctx context.Context, id string) (A, error) {
    streamName := s.StreamName(id)
    aggregate := s.CreateAggregate(id)

    recorded, err := s.eventLog.ReadStream(ctx, streamName)
    if err != nil {
        return aggregate, fmt.Errorf("failed reading stream %s: %w", streamName, err)
    }

    history := make([]Event, 0, len(recorded))
    for i, record := range recorded {
        if record.StreamVersion != int64(i) {
            return aggregate, fmt.Errorf(
                "stream %s is not contiguous: found version %d at index %d",
                streamName,
                record.StreamVersion,
                i,
            )
        }
        event, err := s.serializer.Decode(record.Type, record.Data)
        if err != nil {
            return aggregate, fmt.Errorf("failed decoding event %d of stream %s: %w", i, streamName, err)
        }
        history = append(history, event)
    }

    aggregate.Load(history)
    return aggregate, nil
}

// Save appends the pending changes of the aggregate with the version it
// was loaded at as the expected version. Changes are only cleared when the
// append succeeded; a *VersionConflictError is returned untouched so the
// caller can decide whether to reload and retry.
func (s *AggregateStore[A]) Save(ctx context.Context, aggregate A) error {
    changes := aggregate.Changes()
    if len(changes) == 0 {
        return nil
    }

    streamName := s.StreamName(aggregate.Id())
    expectedVersion := aggregate.Version()

    events := make([]EventData, 0, len(changes))
    for _, change := range changes {
        eventType, data, err := s.serializer.Encode(change)
        if err != nil {
            return fmt.Errorf("failed encoding change for stream %s: %w", streamName, err)
        }
        events = append(events, EventData{
            EventId: uuid.New(),
            Type:    eventType,
            Data:    data,
        })
    }

    correlationId, ok := CorrelationIdFromContext(ctx)
    if !ok {
        correlationId = uuid.NewString()
    }

    _, err := s.eventLog.AppendToStream(ctx, streamName, expectedVersion, events, correlationId)
    if err != nil {
        return fmt.Errorf("failed appending to stream %s: %w", streamName, err)
    }

    aggregate.ClearChanges()
    return nil
}
