package eventsourcing

import (
    "errors"
    "fmt"
)

var (
    ErrVersionConflict       = errors.New("version conflict")
    ErrPreconditionViolation = errors.New("precondition violation")
    ErrTransport             = errors.New("transport failure")
    ErrUnknownEventType      = errors.New("unknown event type")
)

// VersionConflictError is returned when an append's expected version does
// not match the tail of the stream.
type VersionConflictError struct {
    StreamName      string
    ExpectedVersion int64
    ActualVersion   int64
}

func (e *VersionConflictError) Error() string {
    return fmt.Sprintf(
        "version conflict on stream %s: expected version %d, actual version %d",
        e.StreamName,
        e.ExpectedVersion,
        e.ActualVersion,
    )
}

func (e *VersionConflictError) Is(target error) bool {
    return target == ErrVersionConflict
}

// PreconditionViolationError is returned by aggregate mutators when a
// domain rule does not hold. No event is raised in that case.
type PreconditionViolationError struct {
    Rule    string
    Message string
}

func NewPreconditionViolation(rule string, message string) *PreconditionViolationError {
    return &PreconditionViolationError{Rule: rule, Message: message}
}

func (e *PreconditionViolationError) Error() string {
    return fmt.Sprintf("precondition violation (%s): %s", e.Rule, e.Message)
}

func (e *PreconditionViolationError) Is(target error) bool {
    if target == ErrPreconditionViolation {
        return true
    }
    other, ok := target.(*PreconditionViolationError)
    return ok && other.Rule == e.Rule
}

// TransportError wraps a failure talking to the log or another backing service.
type TransportError struct {
    Op  string
    Err error
}

func NewTransportError(op string, err error) *TransportError {
    return &TransportError{Op: op, Err: err}
}

func (e *TransportError) Error() string {
    return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
    return e.Err
}

func (e *TransportError) Is(target error) bool {
    return target == ErrTransport
}
