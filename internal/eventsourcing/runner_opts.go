package eventsourcing

import (
    "time"

    "github.com/cenkalti/backoff/v5"
    "github.com/walletera/werrors"
)

type ErrorCallback func(processingError werrors.WError)

type RunnerOpts struct {
    errorCallback     ErrorCallback
    processingTimeout time.Duration
    checkpointStore   CheckpointStore
    resubscribe       backoff.BackOff
}

var defaultRunnerOpts = RunnerOpts{
    errorCallback:     func(err werrors.WError) {},
    processingTimeout: 1 * time.Minute,
}

type RunnerOpt func(opts *RunnerOpts)

func WithErrorCallback(errorCallback ErrorCallback) RunnerOpt {
    return func(opts *RunnerOpts) {
        opts.errorCallback = errorCallback
    }
}

// WithProcessingTimeout bounds the time a single projection may spend on one event.
func WithProcessingTimeout(processingTimeout time.Duration) RunnerOpt {
    return func(opts *RunnerOpts) {
        opts.processingTimeout = processingTimeout
    }
}

// WithCheckpointStore makes the runner start from the stored position and
// store its position after every processed event.
func WithCheckpointStore(checkpointStore CheckpointStore) RunnerOpt {
    return func(opts *RunnerOpts) {
        opts.checkpointStore = checkpointStore
    }
}

// WithResubscribe makes the runner open a new subscription from the last
// processed position whenever the current one drops. Without it a drop is
// only logged and the runner stops.
func WithResubscribe(backOff backoff.BackOff) RunnerOpt {
    return func(opts *RunnerOpts) {
        opts.resubscribe = backOff
    }
}

func applyCustomOpts(opts *RunnerOpts, customOpts []RunnerOpt) {
    for _, customOpt := range customOpts {
        customOpt(opts)
    }
}
