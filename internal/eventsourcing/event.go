package eventsourcing

import (
    "strings"
    "time"

    "github.com/google/uuid"
)

// NoStreamVersion is the version of a stream without events, and of an
// aggregate that has not folded any history yet.
const NoStreamVersion int64 = -1

// Event is a domain event. Type returns the tag identifying the concrete
// variant; it must be constant for a given Go type, including its zero value.
type Event interface {
    Type() string
}

// EventData is an encoded event ready to be appended to a stream.
type EventData struct {
    EventId uuid.UUID
    Type    string
    Data    []byte
}

// Metadata travels alongside the event payload, never inside it.
type Metadata struct {
    CorrelationId string `json:"$correlationId" bson:"correlationId"`
}

// RecordedEvent is an event as read back from the log.
type RecordedEvent struct {
    EventId       uuid.UUID
    StreamName    string
    StreamVersion int64
    // Position is the global, 1-based position of the event across all streams.
    Position  uint64
    Type      string
    Data      []byte
    Metadata  Metadata
    CreatedAt time.Time

    // Event holds the decoded payload. Logs leave it nil; the aggregate
    // store and the subscription runner fill it in through the Serializer.
    Event Event
}

// IsSystemEvent reports whether the event belongs to the log itself rather
// than to the domain.
func (r RecordedEvent) IsSystemEvent() bool {
    return strings.HasPrefix(r.Type, "$")
}

// AppendResult describes the tail of a stream after a successful append.
type AppendResult struct {
    NextExpectedVersion int64
    LastPosition        uint64
}

func StreamName(aggregateKind string, aggregateId string) string {
    return aggregateKind + "-" + aggregateId
}
