package eventsourcing

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "sync"
    "sync/atomic"
    "time"

    "github.com/cenkalti/backoff/v5"
    "github.com/walletera/kanban/pkg/logattr"
    "github.com/walletera/werrors"
)

// SubscriptionRunner feeds the global ordering of the log into a fixed set
// of projections. Events are dispatched one at a time, in log order, and
// every projection sees an event before any projection sees the next one.
type SubscriptionRunner struct {
    name        string
    subscriber  AllSubscriber
    serializer  *Serializer
    projections []*Projection
    logger      *slog.Logger
    opts        RunnerOpts

    position atomic.Uint64

    mu           sync.Mutex
    started      bool
    cancel       context.CancelFunc
    subscription Subscription
    done         chan struct{}
}

func NewSubscriptionRunner(
    name string,
    subscriber AllSubscriber,
    serializer *Serializer,
    logger *slog.Logger,
    projections []*Projection,
    customOpts ...RunnerOpt,
) *SubscriptionRunner {
    opts := defaultRunnerOpts
    applyCustomOpts(&opts, customOpts)
    return &SubscriptionRunner{
        name:        name,
        subscriber:  subscriber,
        serializer:  serializer,
        projections: projections,
        logger:      logger.With(logattr.Runner(name)),
        opts:        opts,
    }
}

// Start subscribes from the stored checkpoint, or from the beginning of the
// log, and returns once the subscription is open.
func (r *SubscriptionRunner) Start(ctx context.Context) error {
    r.mu.Lock()
    defer r.mu.Unlock()

    if r.started {
        return fmt.Errorf("subscription runner %s already started", r.name)
    }

    from, err := r.loadCheckpoint(ctx)
    if err != nil {
        return err
    }
    r.position.Store(from)

    runCtx, cancel := context.WithCancel(ctx)
    subscription, err := r.subscriber.SubscribeToAll(runCtx, from, ExcludeSystemEvents)
    if err != nil {
        cancel()
        return fmt.Errorf("subscription runner %s failed subscribing: %w", r.name, err)
    }

    r.started = true
    r.cancel = cancel
    r.subscription = subscription
    r.done = make(chan struct{})

    go r.run(runCtx, subscription)

    r.logger.Info("subscription runner started", logattr.Position(from))
    return nil
}

// Stop closes the subscription and waits for the event in flight, if any.
// It is safe to call more than once and on a runner never started.
func (r *SubscriptionRunner) Stop() {
    r.mu.Lock()
    if !r.started {
        r.mu.Unlock()
        return
    }
    cancel, subscription, done := r.cancel, r.subscription, r.done
    r.mu.Unlock()

    cancel()
    err := subscription.Close()
    if err != nil {
        r.logger.Error("failed closing subscription", logattr.Error(err.Error()))
    }
    <-done
}

// Position is the log position of the last event offered to every projection.
func (r *SubscriptionRunner) Position() uint64 {
    return r.position.Load()
}

func (r *SubscriptionRunner) run(ctx context.Context, subscription Subscription) {
    defer close(r.done)

    for {
        drop := r.consume(ctx, subscription)
        r.logDrop(drop)

        if ctx.Err() != nil || drop.Reason == DropReasonDisposed || r.opts.resubscribe == nil {
            return
        }

        next, ok := r.resubscribe(ctx)
        if !ok {
            return
        }
        r.mu.Lock()
        r.subscription = next
        r.mu.Unlock()
        subscription = next
    }
}

func (r *SubscriptionRunner) consume(ctx context.Context, subscription Subscription) Drop {
    for recorded := range subscription.Events() {
        werr := r.process(ctx, recorded)

        if ctx.Err() != nil {
            _ = subscription.Close()
            return Drop{Reason: DropReasonDisposed}
        }
        if werr != nil && werr.IsRetryable() {
            _ = subscription.Close()
            return Drop{Reason: DropReasonSubscriberError, Err: werr}
        }

        r.position.Store(recorded.Position)
        r.saveCheckpoint(ctx, recorded.Position)
        if r.opts.resubscribe != nil {
            r.opts.resubscribe.Reset()
        }
    }
    return subscription.Drop()
}

// process offers the event to every projection that can handle it. Non
// retryable failures are reported and the event is skipped; a retryable
// failure is returned so the subscription is dropped before the position
// moves past the event.
func (r *SubscriptionRunner) process(ctx context.Context, recorded RecordedEvent) werrors.WError {
    interested := make([]*Projection, 0, len(r.projections))
    for _, projection := range r.projections {
        if projection.CanHandle(recorded.Type) {
            interested = append(interested, projection)
        }
    }
    if len(interested) == 0 {
        return nil
    }

    decoded, err := r.serializer.DecodeRecorded(recorded)
    if err != nil {
        r.handleError(recorded, "", werrors.NewUnprocessableMessageError(err.Error()))
        return nil
    }

    for _, projection := range interested {
        werr := r.handleWithTimeout(ctx, projection, decoded)
        if werr == nil {
            continue
        }
        r.handleError(decoded, projection.Name(), werr)
        if werr.IsRetryable() {
            return werr
        }
    }
    return nil
}

func (r *SubscriptionRunner) handleWithTimeout(ctx context.Context, projection *Projection, event RecordedEvent) werrors.WError {
    ctxWithTimeout, cancel := context.WithTimeout(ctx, r.opts.processingTimeout)
    defer cancel()

    werr := projection.Handle(ctxWithTimeout, event)
    if werr != nil && errors.Is(ctxWithTimeout.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
        return werrors.NewTimeoutError(
            fmt.Sprintf("projection %s timed out handling event %s: %s", projection.Name(), event.EventId, werr.Message()),
        )
    }
    return werr
}

func (r *SubscriptionRunner) handleError(event RecordedEvent, projectionName string, werr werrors.WError) {
    r.opts.errorCallback(werr)
    r.logger.Debug(
        "failed processing event",
        logattr.Projection(projectionName),
        logattr.EventId(event.EventId.String()),
        logattr.EventType(event.Type),
        logattr.Position(event.Position),
        logattr.Error(werr.Error()),
    )
}

func (r *SubscriptionRunner) resubscribe(ctx context.Context) (Subscription, bool) {
    for {
        delay := r.opts.resubscribe.NextBackOff()
        if delay == backoff.Stop {
            r.logger.Error("giving up resubscribing")
            return nil, false
        }

        timer := time.NewTimer(delay)
        select {
        case <-ctx.Done():
            timer.Stop()
            return nil, false
        case <-timer.C:
        }

        from := r.position.Load()
        subscription, err := r.subscriber.SubscribeToAll(ctx, from, ExcludeSystemEvents)
        if err != nil {
            r.logger.Error("failed resubscribing", logattr.Position(from), logattr.Error(err.Error()))
            continue
        }
        r.logger.Info("resubscribed", logattr.Position(from))
        return subscription, true
    }
}

func (r *SubscriptionRunner) logDrop(drop Drop) {
    if drop.Reason == DropReasonDisposed {
        r.logger.Info("subscription dropped", logattr.DropReason(string(drop.Reason)))
        return
    }
    errMsg := ""
    if drop.Err != nil {
        errMsg = drop.Err.Error()
    }
    r.logger.Error(
        "subscription dropped",
        logattr.DropReason(string(drop.Reason)),
        logattr.Position(r.position.Load()),
        logattr.Error(errMsg),
    )
}

func (r *SubscriptionRunner) loadCheckpoint(ctx context.Context) (uint64, error) {
    if r.opts.checkpointStore == nil {
        return 0, nil
    }
    position, err := r.opts.checkpointStore.GetCheckpoint(ctx, r.name)
    if err != nil {
        return 0, fmt.Errorf("subscription runner %s failed loading checkpoint: %w", r.name, err)
    }
    return position, nil
}

func (r *SubscriptionRunner) saveCheckpoint(ctx context.Context, position uint64) {
    if r.opts.checkpointStore == nil {
        return
    }
    err := r.opts.checkpointStore.SaveCheckpoint(ctx, r.name, position)
    if err != nil {
        r.logger.Error(
            "failed saving checkpoint",
            logattr.Position(position),
            logattr.Error(err.Error()),
        )
    }
}
