package eventsourcing_test

import (
    "fmt"

    "github.com/walletera/kanban/internal/eventsourcing"
)

type incremented struct {
    By int `json:"by"`
}

func (incremented) Type() string {
    return "Incremented"
}

type renamed struct {
    Name string `json:"name"`
}

func (renamed) Type() string {
    return "Renamed"
}

type counter struct {
    eventsourcing.AggregateRoot

    total int
    name  string
}

func newCounter(id string) *counter {
    c := &counter{}
    c.AggregateRoot = eventsourcing.NewAggregateRoot(id, c.apply)
    return c
}

func (c *counter) Increment(by int) {
    c.Raise(incremented{By: by})
}

func (c *counter) Rename(name string) {
    if name == c.name {
        return
    }
    c.Raise(renamed{Name: name})
}

func (c *counter) apply(event eventsourcing.Event) {
    switch e := event.(type) {
    case incremented:
        c.total += e.By
    case renamed:
        c.name = e.Name
    default:
        panic(fmt.Sprintf("unexpected event %T", event))
    }
}

func newCounterSerializer() *eventsourcing.Serializer {
    return eventsourcing.NewSerializer(
        eventsourcing.Register[incremented](),
        eventsourcing.Register[renamed](),
    )
}
