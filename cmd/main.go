package main

import (
    "context"
    "os/signal"
    "syscall"
    "time"

    "github.com/walletera/kanban/internal/app"

    "github.com/caarlos0/env/v11"
    "github.com/cenkalti/backoff/v5"
)

const shutdownTimeout = 10 * time.Second

type config struct {
    EventLogDriver          string `env:"KANBAN_EVENTLOG_DRIVER" envDefault:"memory"`
    SQLitePath              string `env:"SQLITE_PATH" envDefault:"kanban.db"`
    MongoDBURL              string `env:"MONGODB_URL"`
    MongoDBDatabase         string `env:"MONGODB_DATABASE" envDefault:"kanban"`
    RabbitmqHost            string `env:"RABBITMQ_HOST"`
    RabbitmqPort            int    `env:"RABBITMQ_PORT" envDefault:"5672"`
    RabbitmqUser            string `env:"RABBITMQ_USER" envDefault:"guest"`
    RabbitmqPassword        string `env:"RABBITMQ_PASSWORD" envDefault:"guest"`
    PublicAPIHttpServerPort int    `env:"PUBLIC_API_HTTP_SERVER_PORT,required"`
    Base64AuthPubKey        string `env:"BASE64_AUTH_PUB_KEY"`
    Resubscribe             bool   `env:"KANBAN_RESUBSCRIBE" envDefault:"true"`
}

func main() {
    ctx, ctxCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer ctxCancel()

    cfg, err := env.ParseAs[config]()
    if err != nil {
        panic(err)
    }

    opts := []app.Option{
        app.WithEventLogDriver(app.EventLogDriver(cfg.EventLogDriver)),
        app.WithSQLitePath(cfg.SQLitePath),
        app.WithMongoDBURL(cfg.MongoDBURL),
        app.WithMongoDBDatabase(cfg.MongoDBDatabase),
        app.WithRabbitmqHost(cfg.RabbitmqHost),
        app.WithRabbitmqPort(cfg.RabbitmqPort),
        app.WithRabbitmqUser(cfg.RabbitmqUser),
        app.WithRabbitmqPassword(cfg.RabbitmqPassword),
        app.WithPublicAPIConfig(app.PublicAPIConfig{
            PublicAPIHttpServerPort: cfg.PublicAPIHttpServerPort,
            AuthServiceBase64PubKey: cfg.Base64AuthPubKey,
        }),
    }
    if cfg.Resubscribe {
        opts = append(opts, app.WithResubscribe(func() backoff.BackOff {
            return backoff.NewExponentialBackOff()
        }))
    }

    app, err := app.NewApp(opts...)
    if err != nil {
        panic(err)
    }

    err = app.Run(ctx)
    if err != nil {
        panic(err)
    }

    <-ctx.Done()

    shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), shutdownTimeout)
    defer shutdownCtxCancel()

    app.Stop(shutdownCtx)
}
