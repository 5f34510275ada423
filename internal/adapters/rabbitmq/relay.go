package rabbitmq

import (
    "context"
    "encoding/json"
    "log/slog"
    "time"

    "github.com/walletera/eventskit/events"
    eventskitrabbitmq "github.com/walletera/eventskit/rabbitmq"
    "github.com/walletera/kanban/internal/domain/cards"
    "github.com/walletera/kanban/internal/eventsourcing"
    "github.com/walletera/kanban/pkg/logattr"
    "github.com/walletera/werrors"
)

const (
    RelayProjectionName = "cards-relay"

    CardsExchangeName = "cards.events"
    CardsExchangeType = eventskitrabbitmq.ExchangeTypeTopic

    TaskOpenedRoutingKey         = "card.task_opened"
    CardAssignedRoutingKey       = "card.assigned"
    DevelopmentStartedRoutingKey = "card.development_started"
)

var routes = []struct {
    eventType  string
    routingKey string
}{
    {cards.TaskOpenedEventType, TaskOpenedRoutingKey},
    {cards.CardAssignedEventType, CardAssignedRoutingKey},
    {cards.DevelopmentStartedEventType, DevelopmentStartedRoutingKey},
}

// Relay republishes card events to the cards exchange so other services
// can follow them without reading the log.
type Relay struct {
    publisher events.Publisher
    logger    *slog.Logger
}

func NewRelay(publisher events.Publisher, logger *slog.Logger) *Relay {
    return &Relay{
        publisher: publisher,
        logger:    logger,
    }
}

// Projection returns the projection publishing every card event.
func (r *Relay) Projection() *eventsourcing.Projection {
    projection := eventsourcing.NewProjection(RelayProjectionName)
    for _, route := range routes {
        projection.When(route.eventType, r.publishTo(route.routingKey))
    }
    return projection
}

func (r *Relay) publishTo(routingKey string) eventsourcing.Handler {
    return func(ctx context.Context, recorded eventsourcing.RecordedEvent) werrors.WError {
        err := r.publisher.Publish(ctx, NewPublishableEvent(recorded), events.RoutingInfo{
            Topic:      CardsExchangeName,
            RoutingKey: routingKey,
        })
        if err != nil {
            r.logger.Error(
                "failed publishing card event",
                logattr.EventId(recorded.EventId.String()),
                logattr.EventType(recorded.Type),
                logattr.CorrelationId(recorded.Metadata.CorrelationId),
                logattr.Error(err.Error()),
            )
            return werrors.NewRetryableInternalError("failed publishing event %s: %s", recorded.EventId, err.Error())
        }
        r.logger.Debug(
            "card event published",
            logattr.EventId(recorded.EventId.String()),
            logattr.EventType(recorded.Type),
            logattr.StreamName(recorded.StreamName),
        )
        return nil
    }
}

var _ events.EventData = PublishableEvent{}

// PublishableEvent wraps a recorded event into the envelope other services
// consume.
type PublishableEvent struct {
    envelope events.EventEnvelope
}

func NewPublishableEvent(recorded eventsourcing.RecordedEvent) PublishableEvent {
    return PublishableEvent{
        envelope: events.EventEnvelope{
            Id:               recorded.EventId,
            Type:             recorded.Type,
            AggregateVersion: uint64(recorded.StreamVersion),
            CorrelationId:    recorded.Metadata.CorrelationId,
            CreatedAt:        recorded.CreatedAt,
            Data:             json.RawMessage(recorded.Data),
        },
    }
}

func (p PublishableEvent) ID() string {
    return p.envelope.Id.String()
}

func (p PublishableEvent) Type() string {
    return p.envelope.Type
}

func (p PublishableEvent) AggregateVersion() uint64 {
    return p.envelope.AggregateVersion
}

func (p PublishableEvent) CorrelationID() string {
    return p.envelope.CorrelationId
}

func (p PublishableEvent) DataContentType() string {
    return "application/json"
}

func (p PublishableEvent) CreatedAt() time.Time {
    return p.envelope.CreatedAt
}

func (p PublishableEvent) Serialize() ([]byte, error) {
    return json.Marshal(p.envelope)
}
