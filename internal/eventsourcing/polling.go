package eventsourcing

import (
    "context"
    "sync"
    "time"
)

const (
    defaultPollInterval = 100 * time.Millisecond
    defaultBatchSize    = 100
)

// PollingSubscriber turns an AllReader into catch-up subscriptions by
// reading the log in batches from a moving position. Catch-up and live
// delivery share the same cursor, so there is no gap between them.
type PollingSubscriber struct {
    reader       AllReader
    pollInterval time.Duration
    batchSize    int
}

type PollingOpt func(subscriber *PollingSubscriber)

func WithPollInterval(interval time.Duration) PollingOpt {
    return func(subscriber *PollingSubscriber) {
        subscriber.pollInterval = interval
    }
}

func WithBatchSize(batchSize int) PollingOpt {
    return func(subscriber *PollingSubscriber) {
        subscriber.batchSize = batchSize
    }
}

func NewPollingSubscriber(reader AllReader, opts ...PollingOpt) *PollingSubscriber {
    subscriber := &PollingSubscriber{
        reader:       reader,
        pollInterval: defaultPollInterval,
        batchSize:    defaultBatchSize,
    }
    for _, opt := range opts {
        opt(subscriber)
    }
    return subscriber
}

func (p *PollingSubscriber) SubscribeToAll(ctx context.Context, fromPosition uint64, filter Filter) (Subscription, error) {
    if filter == nil {
        filter = func(RecordedEvent) bool { return true }
    }
    subscriptionCtx, cancel := context.WithCancel(ctx)
    subscription := &pollingSubscription{
        events: make(chan RecordedEvent),
        cancel: cancel,
        done:   make(chan struct{}),
    }
    go subscription.poll(subscriptionCtx, p, fromPosition, filter)
    return subscription, nil
}

type pollingSubscription struct {
    events chan RecordedEvent
    cancel context.CancelFunc
    done   chan struct{}

    closeOnce sync.Once
    drop      Drop
}

func (s *pollingSubscription) Events() <-chan RecordedEvent {
    return s.events
}

func (s *pollingSubscription) Drop() Drop {
    return s.drop
}

func (s *pollingSubscription) Close() error {
    s.closeOnce.Do(func() {
        s.cancel()
        <-s.done
    })
    return nil
}

func (s *pollingSubscription) poll(ctx context.Context, subscriber *PollingSubscriber, position uint64, filter Filter) {
    defer close(s.done)
    defer close(s.events)

    for {
        batch, err := subscriber.reader.ReadAll(ctx, position, subscriber.batchSize)
        if err != nil {
            if ctx.Err() != nil {
                s.drop = Drop{Reason: DropReasonDisposed}
                return
            }
            s.drop = Drop{Reason: DropReasonServerError, Err: err}
            return
        }

        for _, event := range batch {
            position = event.Position
            if !filter(event) {
                continue
            }
            select {
            case s.events <- event:
            case <-ctx.Done():
                s.drop = Drop{Reason: DropReasonDisposed}
                return
            }
        }

        if len(batch) >= subscriber.batchSize {
            continue
        }

        timer := time.NewTimer(subscriber.pollInterval)
        select {
        case <-ctx.Done():
            timer.Stop()
            s.drop = Drop{Reason: DropReasonDisposed}
            return
        case <-timer.C:
        }
    }
}
