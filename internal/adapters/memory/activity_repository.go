package memory

import (
    "context"
    "sync"

    "github.com/walletera/werrors"
)

type cardActivity struct {
    version int64
    entries []string
}

// ActivityRepository is an in-process card activity read model.
type ActivityRepository struct {
    mu    sync.RWMutex
    cards map[string]*cardActivity
}

func NewActivityRepository() *ActivityRepository {
    return &ActivityRepository{
        cards: make(map[string]*cardActivity),
    }
}

// AppendEntry appends text if streamVersion is the next version of the card.
// Versions already applied are ignored; a version ahead of the next one is
// reported as retryable since the missing entries may still arrive.
func (r *ActivityRepository) AppendEntry(_ context.Context, cardId string, streamVersion int64, text string) werrors.WError {
    r.mu.Lock()
    defer r.mu.Unlock()

    card, ok := r.cards[cardId]
    if !ok {
        card = &cardActivity{version: -1}
    }

    expectedVersion := card.version + 1
    switch {
    case streamVersion < expectedVersion:
        return nil
    case streamVersion > expectedVersion:
        return werrors.NewRetryableInternalError(
            "gap detected for card %s between entry version %d and expected version %d",
            cardId,
            streamVersion,
            expectedVersion,
        )
    }

    card.version = streamVersion
    card.entries = append(card.entries, text)
    r.cards[cardId] = card
    return nil
}

func (r *ActivityRepository) GetEntries(_ context.Context, cardId string) ([]string, bool, werrors.WError) {
    r.mu.RLock()
    defer r.mu.RUnlock()

    card, ok := r.cards[cardId]
    if !ok {
        return nil, false, nil
    }
    entries := make([]string, len(card.entries))
    copy(entries, card.entries)
    return entries, true, nil
}
