package cards

import "github.com/walletera/kanban/internal/eventsourcing"

const (
    ValueRequiredRule     = "value_required"
    AssigneeRequiredRule  = "assignee_required"
    CardAlreadyOpenedRule = "card_already_opened"
)

var (
    ErrValueRequired     = eventsourcing.NewPreconditionViolation(ValueRequiredRule, "value was not provided")
    ErrAssigneeRequired  = eventsourcing.NewPreconditionViolation(AssigneeRequiredRule, "card must be assigned before development starts")
    ErrCardAlreadyOpened = eventsourcing.NewPreconditionViolation(CardAlreadyOpenedRule, "card was already opened with another title")
)

func valueRequired(field string) *eventsourcing.PreconditionViolationError {
    return eventsourcing.NewPreconditionViolation(ValueRequiredRule, field+" was not provided")
}
