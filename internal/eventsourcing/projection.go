package eventsourcing

import (
    "context"

    "github.com/walletera/werrors"
)

// Handler advances a read model with one recorded event. Event is already
// decoded when the handler runs.
type Handler func(ctx context.Context, event RecordedEvent) werrors.WError

// Projection maps event tags to ordered handler lists. Handlers are
// registered while the projection is built and never afterwards.
type Projection struct {
    name     string
    handlers map[string][]Handler
}

func NewProjection(name string) *Projection {
    return &Projection{
        name:     name,
        handlers: make(map[string][]Handler),
    }
}

func (p *Projection) Name() string {
    return p.name
}

// When appends handler to the handlers of eventType.
func (p *Projection) When(eventType string, handler Handler) *Projection {
    p.handlers[eventType] = append(p.handlers[eventType], handler)
    return p
}

func (p *Projection) CanHandle(eventType string) bool {
    return len(p.handlers[eventType]) > 0
}

// Handle runs the handlers of the event type one after the other, stopping
// at the first failure. Calling it for a type the projection cannot handle
// is a usage error.
func (p *Projection) Handle(ctx context.Context, event RecordedEvent) werrors.WError {
    handlers, ok := p.handlers[event.Type]
    if !ok || len(handlers) == 0 {
        return werrors.NewNonRetryableInternalError(
            "projection %s has no handlers for event type %s",
            p.name,
            event.Type,
        )
    }
    for _, handler := range handlers {
        werr := handler(ctx, event)
        if werr != nil {
            return werr
        }
    }
    return nil
}

// On adapts a handler of a concrete event type. The returned tag is meant
// to be passed to When together with the handler:
//
//    projection.When(On(func(ctx context.Context, e TaskOpened, rec RecordedEvent) werrors.WError { ... }))
func On[E Event](handler func(ctx context.Context, event E, recorded RecordedEvent) werrors.WError) (string, Handler) {
    var zero E
    eventType := zero.Type()
    return eventType, func(ctx context.Context, recorded RecordedEvent) werrors.WError {
        event, ok := recorded.Event.(E)
        if !ok {
            return werrors.NewUnprocessableMessageError(
                "event " + recorded.EventId.String() + " of type " + recorded.Type + " was not decoded into " + eventType,
            )
        }
        return handler(ctx, event, recorded)
    }
}
