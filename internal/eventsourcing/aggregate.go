package eventsourcing

// Aggregate is the contract the AggregateStore relies on. Concrete
// aggregates get it by embedding AggregateRoot.
type Aggregate interface {
    Id() string
    Version() int64
    Load(history []Event)
    Changes() []Event
    ClearChanges()
}

// AggregateRoot tracks identity, version and pending changes of an
// event-sourced aggregate. The embedding type supplies the fold step.
type AggregateRoot struct {
    id      string
    version int64
    changes []Event
    apply   func(event Event)
}

// NewAggregateRoot builds the root of a fresh aggregate; apply must be a
// pure function of the aggregate state and the event.
func NewAggregateRoot(id string, apply func(event Event)) AggregateRoot {
    return AggregateRoot{
        id:      id,
        version: NoStreamVersion,
        apply:   apply,
    }
}

func (a *AggregateRoot) Id() string {
    return a.id
}

// Version is the stream version of the last event folded through Load.
// Raised events do not move it.
func (a *AggregateRoot) Version() int64 {
    return a.version
}

// Load folds the aggregate history. It must be called at most once, on a
// freshly built aggregate.
func (a *AggregateRoot) Load(history []Event) {
    for _, event := range history {
        a.apply(event)
        a.version++
    }
}

// Raise records event as a pending change and folds it right away.
func (a *AggregateRoot) Raise(event Event) {
    a.changes = append(a.changes, event)
    a.apply(event)
}

func (a *AggregateRoot) Changes() []Event {
    changes := make([]Event, len(a.changes))
    copy(changes, a.changes)
    return changes
}

// ClearChanges must only be called once the changes are durably stored.
func (a *AggregateRoot) ClearChanges() {
    a.changes = nil
}
