package app

import (
    "context"
    "errors"
    "fmt"
    "log/slog"
    "net/http"
    "time"

    "github.com/walletera/kanban/internal/adapters/input/http/public"
    "github.com/walletera/kanban/internal/adapters/memory"
    "github.com/walletera/kanban/internal/adapters/mongodb"
    cardsrabbitmq "github.com/walletera/kanban/internal/adapters/rabbitmq"
    "github.com/walletera/kanban/internal/adapters/sqlite"
    "github.com/walletera/kanban/internal/domain/cards"
    "github.com/walletera/kanban/internal/domain/cards/activity"
    "github.com/walletera/kanban/internal/eventsourcing"
    "github.com/walletera/kanban/pkg/logattr"

    "github.com/cenkalti/backoff/v5"
    "github.com/walletera/eventskit/rabbitmq"
    "github.com/walletera/werrors"
    "go.mongodb.org/mongo-driver/v2/mongo"
    "go.mongodb.org/mongo-driver/v2/mongo/options"
    "go.uber.org/zap"
    "go.uber.org/zap/exp/zapslog"
    "go.uber.org/zap/zapcore"
)

const (
    ServiceName = "kanban"

    DefaultMongoDBDatabase          = "kanban"
    MongoDBActivityCollectionName   = "card_activity"
    MongoDBCheckpointCollectionName = "checkpoints"

    pollInterval = 200 * time.Millisecond
)

type App struct {
    eventLogDriver        EventLogDriver
    sqlitePath            string
    rabbitmqHost          string
    rabbitmqPort          int
    rabbitmqUser          string
    rabbitmqPassword      string
    mongodbURL            string
    mongodbDatabase       string
    publicAPIConfig       Optional[PublicAPIConfig]
    newResubscribeBackOff func() backoff.BackOff
    logHandler            slog.Handler
    logger                *slog.Logger

    mongoClient       *mongo.Client
    sqliteLog         *sqlite.EventLog
    rabbitMQClient    *rabbitmq.Client
    runners           []*eventsourcing.SubscriptionRunner
    httpServersToStop []*http.Server
}

// storage groups the adapters selected by the configuration.
type storage struct {
    eventLog    eventsourcing.EventLog
    allReader   eventsourcing.AllReader
    checkpoints eventsourcing.CheckpointStore
    activity    activity.Repository
    // durableActivity is false when the read model lives in memory and has
    // to be rebuilt from the start of the log.
    durableActivity bool
}

func NewApp(opts ...Option) (*App, error) {
    app := &App{}
    err := setDefaultOpts(app)
    if err != nil {
        return nil, fmt.Errorf("failed setting default options: %w", err)
    }
    for _, opt := range opts {
        opt(app)
    }
    app.logger = slog.
        New(app.logHandler).
        With(logattr.ServiceName(ServiceName))
    return app, nil
}

// Run starts the service. When it fails, everything it already opened or
// started is released before the error is returned.
func (app *App) Run(ctx context.Context) (err error) {
    defer func() {
        if err != nil {
            app.release(ctx)
        }
    }()

    store, err := app.openStorage(ctx)
    if err != nil {
        return fmt.Errorf("failed opening storage: %w", err)
    }

    serializer := cards.NewSerializer()
    cardHandlers := cards.NewHandlers(
        cards.NewStore(store.eventLog, serializer),
        app.logger.With(logattr.Component("cards.Handlers")),
    )
    subscriber := eventsourcing.NewPollingSubscriber(store.allReader, eventsourcing.WithPollInterval(pollInterval))

    activityRunnerOpts := app.runnerOpts("card-activity.SubscriptionRunner")
    if store.durableActivity {
        activityRunnerOpts = append(activityRunnerOpts, eventsourcing.WithCheckpointStore(store.checkpoints))
    }
    app.runners = append(app.runners, eventsourcing.NewSubscriptionRunner(
        activity.ProjectionName,
        subscriber,
        serializer,
        app.logger.With(logattr.Component("card-activity.SubscriptionRunner")),
        []*eventsourcing.Projection{
            activity.NewProjection(store.activity, app.logger.With(logattr.Component("card-activity.EventsHandler"))),
        },
        activityRunnerOpts...,
    ))

    if app.rabbitmqHost != "" {
        relayRunner, err := app.createRelayRunner(subscriber, serializer, store.checkpoints)
        if err != nil {
            return fmt.Errorf("error creating cards relay: %w", err)
        }
        app.runners = append(app.runners, relayRunner)
    }

    for _, runner := range app.runners {
        err := runner.Start(ctx)
        if err != nil {
            return fmt.Errorf("error starting subscription runner: %w", err)
        }
    }

    if app.publicAPIConfig.Set {
        publicApiHttpServer, err := app.startPublicAPIHTTPServer(cardHandlers, store.activity)
        if err != nil {
            return fmt.Errorf("failed starting public api http server: %w", err)
        }
        app.httpServersToStop = append(app.httpServersToStop, publicApiHttpServer)
    }

    app.logger.Info("kanban started", logattr.EventLogDriver(string(app.eventLogDriver)))
    return nil
}

func (app *App) Stop(ctx context.Context) {
    app.release(ctx)
    app.logger.Info("kanban stopped")
}

// release stops and closes whatever Run got to, so calling it more than
// once is safe.
func (app *App) release(ctx context.Context) {
    for _, httpServer := range app.httpServersToStop {
        err := httpServer.Shutdown(ctx)
        if err != nil {
            app.logger.Error("error stopping http server", logattr.Error(err.Error()))
        }
    }
    for _, runner := range app.runners {
        runner.Stop()
    }
    if app.rabbitMQClient != nil {
        err := app.rabbitMQClient.Close()
        if err != nil {
            app.logger.Error("error closing rabbitmq client", logattr.Error(err.Error()))
        }
    }
    if app.sqliteLog != nil {
        err := app.sqliteLog.Close()
        if err != nil {
            app.logger.Error("error closing sqlite event log", logattr.Error(err.Error()))
        }
    }
    if app.mongoClient != nil {
        err := app.mongoClient.Disconnect(ctx)
        if err != nil {
            app.logger.Error("error disconnecting from mongo", logattr.Error(err.Error()))
        }
    }
    app.httpServersToStop = nil
    app.runners = nil
    app.rabbitMQClient = nil
    app.sqliteLog = nil
    app.mongoClient = nil
}

func setDefaultOpts(app *App) error {
    zapLogger, err := newZapLogger()
    if err != nil {
        return err
    }
    app.logHandler = zapslog.NewHandler(zapLogger.Core())
    app.eventLogDriver = EventLogDriverMemory
    app.mongodbDatabase = DefaultMongoDBDatabase
    app.rabbitmqPort = rabbitmq.DefaultPort
    app.rabbitmqUser = rabbitmq.DefaultUser
    app.rabbitmqPassword = rabbitmq.DefaultPassword
    return nil
}

func newZapLogger() (*zap.Logger, error) {
    encoderConfig := zap.NewProductionEncoderConfig()
    encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
    zapConfig := zap.Config{
        Level:             zap.NewAtomicLevelAt(zap.DebugLevel),
        Development:       false,
        DisableStacktrace: true,
        Sampling: &zap.SamplingConfig{
            Initial:    100,
            Thereafter: 100,
        },
        Encoding:         "json",
        EncoderConfig:    encoderConfig,
        OutputPaths:      []string{"stderr"},
        ErrorOutputPaths: []string{"stderr"},
    }
    return zapConfig.Build()
}

func (app *App) openStorage(ctx context.Context) (storage, error) {
    var store storage

    if app.mongodbURL != "" {
        client, err := app.connectMongoDB()
        if err != nil {
            return store, err
        }
        db := app.mongodbDatabase
        store.activity = mongodb.NewActivityRepository(client, db, MongoDBActivityCollectionName)
        store.durableActivity = true
    } else {
        store.activity = memory.NewActivityRepository()
    }

    switch app.eventLogDriver {
    case EventLogDriverMemory:
        eventLog := memory.NewEventLog()
        store.eventLog, store.allReader = eventLog, eventLog
        store.checkpoints = memory.NewCheckpointStore()
    case EventLogDriverSQLite:
        eventLog, err := sqlite.Open(ctx, app.sqlitePath)
        if err != nil {
            return store, fmt.Errorf("error opening sqlite event log: %w", err)
        }
        app.sqliteLog = eventLog
        store.eventLog, store.allReader = eventLog, eventLog
        store.checkpoints = eventLog.CheckpointStore()
    case EventLogDriverMongoDB:
        if app.mongoClient == nil {
            return store, fmt.Errorf("the mongodb event log driver requires a mongodb url")
        }
        eventLog := mongodb.NewEventLog(app.mongoClient, app.mongodbDatabase)
        err := eventLog.EnsureIndexes(ctx)
        if err != nil {
            return store, fmt.Errorf("error preparing mongodb event log: %w", err)
        }
        store.eventLog, store.allReader = eventLog, eventLog
        store.checkpoints = mongodb.NewCheckpointStore(app.mongoClient, app.mongodbDatabase, MongoDBCheckpointCollectionName)
    default:
        return store, fmt.Errorf("unknown event log driver %q", app.eventLogDriver)
    }

    return store, nil
}

func (app *App) connectMongoDB() (*mongo.Client, error) {
    // Use the SetServerAPIOptions() method to set the Stable API version to 1
    serverAPI := options.ServerAPI(options.ServerAPIVersion1)
    opts := options.Client().ApplyURI(app.mongodbURL).SetServerAPIOptions(serverAPI)

    client, err := mongo.Connect(opts)
    if err != nil {
        return nil, fmt.Errorf("error connecting to mongodb: %w", err)
    }
    app.mongoClient = client
    return client, nil
}

func (app *App) createRelayRunner(
    subscriber eventsourcing.AllSubscriber,
    serializer *eventsourcing.Serializer,
    checkpoints eventsourcing.CheckpointStore,
) (*eventsourcing.SubscriptionRunner, error) {
    rabbitMQClient, err := rabbitmq.NewClient(
        rabbitmq.WithHost(app.rabbitmqHost),
        rabbitmq.WithPort(uint(app.rabbitmqPort)),
        rabbitmq.WithUser(app.rabbitmqUser),
        rabbitmq.WithPassword(app.rabbitmqPassword),
        rabbitmq.WithExchangeName(cardsrabbitmq.CardsExchangeName),
        rabbitmq.WithExchangeType(cardsrabbitmq.CardsExchangeType),
    )
    if err != nil {
        return nil, fmt.Errorf("creating rabbitmq client: %w", err)
    }
    app.rabbitMQClient = rabbitMQClient

    relay := cardsrabbitmq.NewRelay(
        rabbitMQClient,
        app.logger.With(logattr.Component("cards.rabbitmq.Relay")),
    )

    return eventsourcing.NewSubscriptionRunner(
        cardsrabbitmq.RelayProjectionName,
        subscriber,
        serializer,
        app.logger.With(logattr.Component("cards-relay.SubscriptionRunner")),
        []*eventsourcing.Projection{relay.Projection()},
        append(app.runnerOpts("cards-relay.SubscriptionRunner"), eventsourcing.WithCheckpointStore(checkpoints))...,
    ), nil
}

func (app *App) runnerOpts(component string) []eventsourcing.RunnerOpt {
    opts := []eventsourcing.RunnerOpt{
        withErrorCallback(app.logger.With(logattr.Component(component))),
    }
    if app.newResubscribeBackOff != nil {
        opts = append(opts, eventsourcing.WithResubscribe(app.newResubscribeBackOff()))
    }
    return opts
}

func withErrorCallback(logger *slog.Logger) eventsourcing.RunnerOpt {
    return eventsourcing.WithErrorCallback(func(wError werrors.WError) {
        logger.Error(
            "failed processing event",
            logattr.Error(wError.Message()))
    })
}

func (app *App) startPublicAPIHTTPServer(commands public.CardCommands, repository activity.Repository) (*http.Server, error) {
    var security *public.SecurityHandler
    if app.publicAPIConfig.Value.AuthServiceBase64PubKey != "" {
        var err error
        security, err = public.NewSecurityHandler(app.publicAPIConfig.Value.AuthServiceBase64PubKey)
        if err != nil {
            return nil, err
        }
    }

    handlerLogger := app.logger.With(logattr.Component("http.PublicAPIHandler"))
    router := public.NewRouter(
        public.NewHandler(commands, repository, handlerLogger),
        security,
        handlerLogger,
    )
    httpServer := &http.Server{
        Addr:    fmt.Sprintf("0.0.0.0:%d", app.publicAPIConfig.Value.PublicAPIHttpServerPort),
        Handler: router,
    }

    go func() {
        defer app.logger.Info("http server stopped")
        if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            app.logger.Error("http server error", logattr.Error(err.Error()))
        }
    }()

    app.logger.Info("http server started")

    return httpServer, nil
}
