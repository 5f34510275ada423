package cards

import "github.com/walletera/kanban/internal/eventsourcing"

type Store = eventsourcing.AggregateStore[*Card]

func NewStore(eventLog eventsourcing.EventLog, serializer *eventsourcing.Serializer) *Store {
    return eventsourcing.NewAggregateStore(AggregateKind, NewCard, eventLog, serializer)
}
