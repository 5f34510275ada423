package eventsourcing

import (
    "bytes"
    "encoding/json"
    "fmt"
    "reflect"
)

type decodeFunc func(data []byte) (Event, error)

// Registration binds an event tag to the Go type it decodes into.
type Registration struct {
    eventType string
    goType    reflect.Type
    decode    decodeFunc
}

// Register returns the registration for the event type E.
func Register[E Event]() Registration {
    var zero E
    return Registration{
        eventType: zero.Type(),
        goType:    reflect.TypeFor[E](),
        decode: func(data []byte) (Event, error) {
            var event E
            err := json.Unmarshal(data, &event)
            if err != nil {
                return nil, err
            }
            return event, nil
        },
    }
}

// Serializer converts events to and from their transport representation.
// The set of known events is fixed when the Serializer is built.
type Serializer struct {
    registrations map[string]Registration
}

// NewSerializer panics if two registrations share a tag.
func NewSerializer(registrations ...Registration) *Serializer {
    byType := make(map[string]Registration, len(registrations))
    for _, registration := range registrations {
        if _, ok := byType[registration.eventType]; ok {
            panic(fmt.Sprintf("event type %q is already registered", registration.eventType))
        }
        byType[registration.eventType] = registration
    }
    return &Serializer{registrations: byType}
}

type envelope struct {
    Type string          `json:"type"`
    Data json.RawMessage `json:"data"`
}

// Serialize encodes the event into a self-describing JSON envelope.
func (s *Serializer) Serialize(event Event) ([]byte, error) {
    eventType, data, err := s.Encode(event)
    if err != nil {
        return nil, err
    }
    return json.Marshal(envelope{Type: eventType, Data: data})
}

// Deserialize rebuilds the concrete event from a Serialize envelope.
func (s *Serializer) Deserialize(raw []byte) (Event, error) {
    var env envelope
    err := json.Unmarshal(raw, &env)
    if err != nil {
        return nil, fmt.Errorf("failed decoding event envelope: %w", err)
    }
    if env.Type == "" {
        return nil, fmt.Errorf("event envelope has no type")
    }
    return s.Decode(env.Type, env.Data)
}

// Encode returns the tag and payload separately, for logs that store them apart.
// The event must be of the exact Go type registered for its tag, so that
// Decode gives back the same type.
func (s *Serializer) Encode(event Event) (string, []byte, error) {
    if event == nil {
        return "", nil, fmt.Errorf("cannot encode a nil event")
    }
    eventType := event.Type()
    registration, ok := s.registrations[eventType]
    if !ok {
        return "", nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
    }
    if goType := reflect.TypeOf(event); goType != registration.goType {
        return "", nil, fmt.Errorf("event %s is registered as %s, got %s", eventType, registration.goType, goType)
    }
    data, err := json.Marshal(event)
    if err != nil {
        return "", nil, fmt.Errorf("failed encoding event %s: %w", eventType, err)
    }
    return eventType, data, nil
}

func (s *Serializer) Decode(eventType string, data []byte) (Event, error) {
    registration, ok := s.registrations[eventType]
    if !ok {
        return nil, fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
    }
    if isMissingPayload(data) {
        return nil, fmt.Errorf("event %s has no data", eventType)
    }
    event, err := registration.decode(data)
    if err != nil {
        return nil, fmt.Errorf("failed decoding event %s: %w", eventType, err)
    }
    return event, nil
}

// DecodeRecorded fills in recorded.Event.
func (s *Serializer) DecodeRecorded(recorded RecordedEvent) (RecordedEvent, error) {
    event, err := s.Decode(recorded.Type, recorded.Data)
    if err != nil {
        return recorded, err
    }
    recorded.Event = event
    return recorded, nil
}

func isMissingPayload(data []byte) bool {
    trimmed := bytes.TrimSpace(data)
    return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
