package activity

import (
    "context"

    "github.com/walletera/werrors"
)

// Repository stores the activity entries of each card.
type Repository interface {
    // AppendEntry appends text to the card activity. streamVersion is the
    // version of the card event the entry comes from, so an entry delivered
    // twice is only stored once.
    AppendEntry(ctx context.Context, cardId string, streamVersion int64, text string) werrors.WError
    // GetEntries reports false when the card has no activity at all.
    GetEntries(ctx context.Context, cardId string) ([]string, bool, werrors.WError)
}
