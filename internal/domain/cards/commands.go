package cards

import (
    "context"
    "fmt"
    "log/slog"

    "github.com/walletera/kanban/internal/eventsourcing"
    "github.com/walletera/kanban/pkg/logattr"
)

type OpenTask struct {
    Id    string `json:"id"`
    Title string `json:"title"`
}

type AssignCard struct {
    Id       string `json:"id"`
    Assignee string `json:"assignee"`
}

type StartDevelopment struct {
    Id string `json:"id"`
}

// Handlers turns card commands into saved card events. Each command loads
// the card, runs one domain method and saves; a concurrent writer makes the
// save fail with a version conflict that is returned to the caller.
type Handlers struct {
    store  *Store
    logger *slog.Logger
}

func NewHandlers(store *Store, logger *slog.Logger) *Handlers {
    return &Handlers{
        store:  store,
        logger: logger,
    }
}

func (h *Handlers) HandleOpenTask(ctx context.Context, command OpenTask) error {
    return h.handle(ctx, command.Id, "open task", func(card *Card) error {
        return card.OpenTask(command.Title)
    })
}

func (h *Handlers) HandleAssignCard(ctx context.Context, command AssignCard) error {
    return h.handle(ctx, command.Id, "assign card", func(card *Card) error {
        return card.AssignTo(command.Assignee)
    })
}

func (h *Handlers) HandleStartDevelopment(ctx context.Context, command StartDevelopment) error {
    return h.handle(ctx, command.Id, "start development", func(card *Card) error {
        return card.StartDevelopment()
    })
}

func (h *Handlers) handle(ctx context.Context, cardId string, commandName string, mutate func(card *Card) error) error {
    if isBlank(cardId) {
        return valueRequired("card id")
    }

    card, err := h.store.Load(ctx, cardId)
    if err != nil {
        h.logger.Error(
            "failed loading card",
            logattr.CardId(cardId),
            logattr.Error(err.Error()),
        )
        return fmt.Errorf("%s: %w", commandName, err)
    }

    err = mutate(card)
    if err != nil {
        return err
    }

    changes := len(card.Changes())
    err = h.store.Save(ctx, card)
    if err != nil {
        h.logger.Error(
            "failed saving card",
            logattr.CardId(cardId),
            logattr.StreamVersion(card.Version()),
            logattr.Error(err.Error()),
        )
        return fmt.Errorf("%s: %w", commandName, err)
    }

    if changes > 0 {
        correlationId, _ := eventsourcing.CorrelationIdFromContext(ctx)
        h.logger.Info(
            "card saved",
            logattr.CardId(cardId),
            logattr.StreamVersion(card.Version()+int64(changes)),
            logattr.CorrelationId(correlationId),
        )
    }
    return nil
}
