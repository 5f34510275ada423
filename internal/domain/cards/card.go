package cards

import (
    "fmt"
    "strings"
    "time"

    "github.com/walletera/kanban/internal/eventsourcing"
)

const AggregateKind = "Card"

type CardType string

const (
    CardTypeUnknown CardType = ""
    CardTypeTask    CardType = "Task"
)

type CardStatus string

const (
    CardStatusToDo       CardStatus = "ToDo"
    CardStatusInProgress CardStatus = "InProgress"
)

// Card is the event-sourced card aggregate. Its fields only change through
// apply, so a card rebuilt from its stream always matches the original.
type Card struct {
    eventsourcing.AggregateRoot

    cardType    CardType
    status      CardStatus
    title       string
    assignee    string
    dateOpened  time.Time
    dateStarted time.Time
}

func NewCard(id string) *Card {
    card := &Card{status: CardStatusToDo}
    card.AggregateRoot = eventsourcing.NewAggregateRoot(id, card.apply)
    return card
}

func (c *Card) CardType() CardType {
    return c.cardType
}

func (c *Card) Status() CardStatus {
    return c.status
}

func (c *Card) Title() string {
    return c.title
}

func (c *Card) Assignee() string {
    return c.assignee
}

func (c *Card) DateOpened() time.Time {
    return c.dateOpened
}

func (c *Card) DateStarted() time.Time {
    return c.dateStarted
}

func (c *Card) IsOpened() bool {
    return c.cardType != CardTypeUnknown
}

// OpenTask opens the card as a task. Opening an already opened card again
// with the same title does nothing.
func (c *Card) OpenTask(title string) error {
    if isBlank(title) {
        return valueRequired("title")
    }
    if c.IsOpened() {
        if c.title == title {
            return nil
        }
        return ErrCardAlreadyOpened
    }
    c.Raise(TaskOpened{
        CardId:     c.Id(),
        DateOpened: time.Now().UTC(),
        Title:      title,
    })
    return nil
}

func (c *Card) AssignTo(assignee string) error {
    if isBlank(assignee) {
        return valueRequired("assignee")
    }
    if assignee == c.assignee {
        return nil
    }
    c.Raise(CardAssigned{
        CardId:           c.Id(),
        PreviousAssignee: c.assignee,
        CurrentAssignee:  assignee,
    })
    return nil
}

func (c *Card) StartDevelopment() error {
    if isBlank(c.assignee) {
        return ErrAssigneeRequired
    }
    if c.status == CardStatusInProgress {
        return nil
    }
    c.Raise(DevelopmentStarted{
        CardId:      c.Id(),
        DateStarted: time.Now().UTC(),
    })
    return nil
}

func (c *Card) apply(event eventsourcing.Event) {
    switch e := event.(type) {
    case TaskOpened:
        c.cardType = CardTypeTask
        c.title = e.Title
        c.dateOpened = e.DateOpened
    case CardAssigned:
        c.assignee = e.CurrentAssignee
    case DevelopmentStarted:
        c.status = CardStatusInProgress
        c.dateStarted = e.DateStarted
    default:
        panic(fmt.Sprintf("card %s cannot apply event of type %T", c.Id(), event))
    }
}

func isBlank(value string) bool {
    return strings.TrimSpace(value) == ""
}
