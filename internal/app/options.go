package app

import (
    "log/slog"

    "github.com/cenkalti/backoff/v5"
)

type Option func(app *App)

func WithPublicAPIConfig(config PublicAPIConfig) Option {
    return func(a *App) {
        a.publicAPIConfig = NewOptional[PublicAPIConfig](config)
    }
}

func WithEventLogDriver(driver EventLogDriver) Option {
    return func(a *App) { a.eventLogDriver = driver }
}

func WithSQLitePath(path string) Option { return func(a *App) { a.sqlitePath = path } }

// WithRabbitmqHost enables relaying card events to RabbitMQ.
func WithRabbitmqHost(host string) Option { return func(a *App) { a.rabbitmqHost = host } }

func WithRabbitmqPort(port int) Option { return func(a *App) { a.rabbitmqPort = port } }

func WithRabbitmqUser(user string) Option { return func(a *App) { a.rabbitmqUser = user } }

func WithRabbitmqPassword(password string) Option {
    return func(a *App) { a.rabbitmqPassword = password }
}

// WithMongoDBURL also moves the card activity read model to MongoDB.
func WithMongoDBURL(url string) Option { return func(a *App) { a.mongodbURL = url } }

func WithMongoDBDatabase(name string) Option { return func(a *App) { a.mongodbDatabase = name } }

func WithLogHandler(handler slog.Handler) Option {
    return func(app *App) { app.logHandler = handler }
}

// WithResubscribe makes the subscription runners resume after a drop
// instead of stopping.
func WithResubscribe(newBackOff func() backoff.BackOff) Option {
    return func(a *App) { a.newResubscribeBackOff = newBackOff }
}
