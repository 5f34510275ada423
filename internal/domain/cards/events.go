package cards

import (
    "time"

    "github.com/walletera/kanban/internal/eventsourcing"
)

const (
    TaskOpenedEventType         = "TaskOpened"
    CardAssignedEventType       = "CardAssigned"
    DevelopmentStartedEventType = "DevelopmentStarted"
)

type TaskOpened struct {
    CardId     string    `json:"cardId"`
    DateOpened time.Time `json:"dateOpened"`
    Title      string    `json:"title"`
}

func (TaskOpened) Type() string {
    return TaskOpenedEventType
}

type CardAssigned struct {
    CardId           string `json:"cardId"`
    PreviousAssignee string `json:"previousAssignee,omitempty"`
    CurrentAssignee  string `json:"currentAssignee"`
}

func (CardAssigned) Type() string {
    return CardAssignedEventType
}

type DevelopmentStarted struct {
    CardId      string    `json:"cardId"`
    DateStarted time.Time `json:"dateStarted"`
}

func (DevelopmentStarted) Type() string {
    return DevelopmentStartedEventType
}

func Registrations() []eventsourcing.Registration {
    return []eventsourcing.Registration{
        eventsourcing.Register[TaskOpened](),
        eventsourcing.Register[CardAssigned](),
        eventsourcing.Register[DevelopmentStarted](),
    }
}

// NewSerializer returns a serializer that knows every card event.
func NewSerializer() *eventsourcing.Serializer {
    return eventsourcing.NewSerializer(Registrations()...)
}
