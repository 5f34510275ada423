package activity

import (
    "context"
    "fmt"
    "log/slog"

    "github.com/walletera/kanban/internal/domain/cards"
    "github.com/walletera/kanban/internal/eventsourcing"
    "github.com/walletera/kanban/pkg/logattr"
    "github.com/walletera/werrors"
)

const ProjectionName = "card-activity"

type EventsHandler struct {
    repository Repository
    logger     *slog.Logger
}

func NewEventsHandler(repository Repository, logger *slog.Logger) *EventsHandler {
    return &EventsHandler{
        repository: repository,
        logger:     logger,
    }
}

// NewProjection builds the card activity projection on top of repository.
func NewProjection(repository Repository, logger *slog.Logger) *eventsourcing.Projection {
    handler := NewEventsHandler(repository, logger)
    return eventsourcing.NewProjection(ProjectionName).
        When(eventsourcing.On(handler.HandleTaskOpened)).
        When(eventsourcing.On(handler.HandleCardAssigned)).
        When(eventsourcing.On(handler.HandleDevelopmentStarted))
}

func (h *EventsHandler) HandleTaskOpened(ctx context.Context, event cards.TaskOpened, recorded eventsourcing.RecordedEvent) werrors.WError {
    return h.appendEntry(ctx, event.CardId, recorded, fmt.Sprintf("Task '%s' was opened", event.Title))
}

func (h *EventsHandler) HandleCardAssigned(ctx context.Context, event cards.CardAssigned, recorded eventsourcing.RecordedEvent) werrors.WError {
    return h.appendEntry(ctx, event.CardId, recorded, fmt.Sprintf("Card was assigned to %s", event.CurrentAssignee))
}

func (h *EventsHandler) HandleDevelopmentStarted(ctx context.Context, event cards.DevelopmentStarted, recorded eventsourcing.RecordedEvent) werrors.WError {
    return h.appendEntry(ctx, event.CardId, recorded, "Development was started")
}

func (h *EventsHandler) appendEntry(ctx context.Context, cardId string, recorded eventsourcing.RecordedEvent, text string) werrors.WError {
    werr := h.repository.AppendEntry(ctx, cardId, recorded.StreamVersion, text)
    if werr != nil {
        h.logger.Error(
            "failed appending card activity",
            logattr.Error(werr.Message()),
            logattr.CardId(cardId),
            logattr.EventType(recorded.Type),
            logattr.CorrelationId(recorded.Metadata.CorrelationId),
        )
        return werr
    }
    h.logger.Info(
        "card activity appended",
        logattr.CardId(cardId),
        logattr.EventType(recorded.Type),
        logattr.CorrelationId(recorded.Metadata.CorrelationId),
    )
    return nil
}
