package tests

import (
    "bytes"
    "context"
    "encoding/json"
    "fmt"
    "io"
    "log/slog"
    "net/http"
    "os"
    "path/filepath"
    "reflect"
    "time"

    "github.com/walletera/kanban/internal/app"

    "github.com/cucumber/godog"
    "github.com/google/uuid"
    "github.com/walletera/eventskit/rabbitmq"
    slogwatcher "github.com/walletera/logs-watcher/slog"
    "go.mongodb.org/mongo-driver/v2/mongo"
    "go.mongodb.org/mongo-driver/v2/mongo/options"
    "go.uber.org/zap"
    "go.uber.org/zap/exp/zapslog"
    "go.uber.org/zap/zapcore"
)

const (
    appKey                    = "app"
    appCtxCancelFuncKey       = "appCtxCancelFuncKey"
    logsWatcherKey            = "logsWatcher"
    sqliteDirKey              = "sqliteDir"
    lastResponseKey           = "lastResponse"
    logsWatcherWaitForTimeout = 5 * time.Second
    activityWaitTimeout       = 5 * time.Second
    publicApiHttpServerPort   = 8484
    mongodbURL                = "mongodb://localhost:27017/?directConnection=true"
    mongodbDatabase           = "kanban-tests"
)

var mongodbClient *mongo.Client

type response struct {
    statusCode int
    body       []byte
}

func beforeScenarioHook(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
    handler, err := newZapHandler()
    if err != nil {
        return ctx, err
    }
    logsWatcher := slogwatcher.NewWatcher(handler)
    ctx = context.WithValue(ctx, logsWatcherKey, logsWatcher)

    client, err := getMongodbClient()
    if err != nil {
        return ctx, err
    }

    // cleanup database before each scenario
    err = client.Database(mongodbDatabase).Drop(ctx)
    if err != nil {
        return ctx, err
    }

    return ctx, nil
}

func afterScenarioHook(ctx context.Context, _ *godog.Scenario, err error) (context.Context, error) {
    logsWatcher := logsWatcherFromCtx(ctx)

    if kanbanApp, ok := ctx.Value(appKey).(*app.App); ok {
        kanbanApp.Stop(ctx)
        foundLogEntry := logsWatcher.WaitFor("kanban stopped", logsWatcherWaitForTimeout)
        if !foundLogEntry {
            return ctx, fmt.Errorf("app termination failed (didn't find expected log entry)")
        }
    }
    if cancel, ok := ctx.Value(appCtxCancelFuncKey).(context.CancelFunc); ok {
        cancel()
    }
    if dir, ok := ctx.Value(sqliteDirKey).(string); ok {
        _ = os.RemoveAll(dir)
    }

    err = logsWatcher.Stop()
    if err != nil {
        return ctx, fmt.Errorf("failed stopping the logsWatcher: %w", err)
    }

    return ctx, nil
}

func aRunningKanbanUsingTheEventLog(ctx context.Context, driver string) (context.Context, error) {
    opts, ctx, err := eventLogOpts(ctx, app.EventLogDriver(driver))
    if err != nil {
        return ctx, err
    }
    return runKanban(ctx, opts...)
}

func aRunningKanbanRelayingEventsToRabbitMQ(ctx context.Context) (context.Context, error) {
    return runKanban(ctx,
        app.WithRabbitmqHost(rabbitmq.DefaultHost),
        app.WithRabbitmqPort(rabbitmq.DefaultPort),
        app.WithRabbitmqUser(rabbitmq.DefaultUser),
        app.WithRabbitmqPassword(rabbitmq.DefaultPassword),
    )
}

func eventLogOpts(ctx context.Context, driver app.EventLogDriver) ([]app.Option, context.Context, error) {
    opts := []app.Option{app.WithEventLogDriver(driver)}
    switch driver {
    case app.EventLogDriverMemory:
    case app.EventLogDriverSQLite:
        dir, err := os.MkdirTemp("", "kanban-tests-")
        if err != nil {
            return nil, ctx, err
        }
        ctx = context.WithValue(ctx, sqliteDirKey, dir)
        opts = append(opts, app.WithSQLitePath(filepath.Join(dir, "kanban.db")))
    case app.EventLogDriverMongoDB:
        opts = append(opts,
            app.WithMongoDBURL(mongodbURL),
            app.WithMongoDBDatabase(mongodbDatabase),
        )
    default:
        return nil, ctx, fmt.Errorf("unsupported event log driver %s", driver)
    }
    return opts, ctx, nil
}

func runKanban(ctx context.Context, opts ...app.Option) (context.Context, error) {
    logHandler := logsWatcherFromCtx(ctx).DecoratedHandler()

    appCtx, appCtxCancelFunc := context.WithCancel(ctx)

    opts = append(opts,
        app.WithPublicAPIConfig(app.PublicAPIConfig{
            PublicAPIHttpServerPort: publicApiHttpServerPort,
        }),
        app.WithLogHandler(logHandler),
    )
    kanbanApp, err := app.NewApp(opts...)
    if err != nil {
        appCtxCancelFunc()
        return ctx, fmt.Errorf("failed initializing kanban: %w", err)
    }

    err = kanbanApp.Run(appCtx)
    if err != nil {
        appCtxCancelFunc()
        return ctx, fmt.Errorf("failed running kanban: %w", err)
    }

    ctx = context.WithValue(ctx, appKey, kanbanApp)
    ctx = context.WithValue(ctx, appCtxCancelFuncKey, appCtxCancelFunc)

    foundLogEntry := logsWatcherFromCtx(ctx).WaitFor("kanban started", logsWatcherWaitForTimeout)
    if !foundLogEntry {
        return ctx, fmt.Errorf("kanban startup failed (didn't find expected log entry)")
    }

    return ctx, nil
}

func aTaskIsOpened(ctx context.Context, cardId string, title string) (context.Context, error) {
    return sendRequest(ctx, http.MethodPost, "/tasks", map[string]string{"id": cardId, "title": title})
}

func theCardIsAssignedTo(ctx context.Context, cardId string, assignee string) (context.Context, error) {
    return sendRequest(ctx, http.MethodPut, fmt.Sprintf("/cards/%s/assignee", cardId), map[string]string{"assignee": assignee})
}

func theDevelopmentOfTheCardIsStarted(ctx context.Context, cardId string) (context.Context, error) {
    return sendRequest(ctx, http.MethodPost, fmt.Sprintf("/cards/%s/start", cardId), nil)
}

func theKanbanRespondsWithStatusCode(ctx context.Context, statusCode int) (context.Context, error) {
    resp := lastResponseFromCtx(ctx)
    if resp.statusCode != statusCode {
        return ctx, fmt.Errorf("expected status code %d but got %d (body: %s)", statusCode, resp.statusCode, resp.body)
    }
    return ctx, nil
}

func theKanbanRespondsWithStatusCodeAndRule(ctx context.Context, statusCode int, rule string) (context.Context, error) {
    ctx, err := theKanbanRespondsWithStatusCode(ctx, statusCode)
    if err != nil {
        return ctx, err
    }
    var body struct {
        Rule string `json:"rule"`
    }
    err = json.Unmarshal(lastResponseFromCtx(ctx).body, &body)
    if err != nil {
        return ctx, fmt.Errorf("failed decoding error response: %w", err)
    }
    if body.Rule != rule {
        return ctx, fmt.Errorf("expected rule %s but got %s", rule, body.Rule)
    }
    return ctx, nil
}

func theKanbanProducesTheFollowingLog(ctx context.Context, logMsg string) (context.Context, error) {
    logsWatcher := logsWatcherFromCtx(ctx)
    foundLogEntry := logsWatcher.WaitFor(logMsg, logsWatcherWaitForTimeout)
    if !foundLogEntry {
        return ctx, fmt.Errorf("didn't find expected log entry")
    }
    return ctx, nil
}

// theActivityOfTheCardIs polls the activity endpoint because the read model
// is updated asynchronously.
func theActivityOfTheCardIs(ctx context.Context, cardId string, table *godog.Table) (context.Context, error) {
    expected := make([]string, 0, len(table.Rows))
    for _, row := range table.Rows {
        expected = append(expected, row.Cells[0].Value)
    }

    var lastEntries []string
    deadline := time.Now().Add(activityWaitTimeout)
    for time.Now().Before(deadline) {
        resp, err := doRequest(ctx, http.MethodGet, fmt.Sprintf("/cards/%s/activity", cardId), nil)
        if err != nil {
            return ctx, err
        }
        if resp.statusCode == http.StatusOK {
            err = json.Unmarshal(resp.body, &lastEntries)
            if err != nil {
                return ctx, fmt.Errorf("failed decoding card activity: %w", err)
            }
            if reflect.DeepEqual(expected, lastEntries) {
                return ctx, nil
            }
        }
        time.Sleep(100 * time.Millisecond)
    }
    return ctx, fmt.Errorf("expected card activity %v but got %v", expected, lastEntries)
}

func sendRequest(ctx context.Context, method string, path string, body any) (context.Context, error) {
    resp, err := doRequest(ctx, method, path, body)
    if err != nil {
        return ctx, err
    }
    return context.WithValue(ctx, lastResponseKey, resp), nil
}

func doRequest(ctx context.Context, method string, path string, body any) (response, error) {
    var reqBody io.Reader
    if body != nil {
        rawBody, err := json.Marshal(body)
        if err != nil {
            return response{}, err
        }
        reqBody = bytes.NewReader(rawBody)
    }
    req, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("http://127.0.0.1:%d%s", publicApiHttpServerPort, path), reqBody)
    if err != nil {
        return response{}, err
    }
    req.Header.Set("Content-Type", "application/json")
    req.Header.Set("X-Correlation-ID", uuid.NewString())

    resp, err := http.DefaultClient.Do(req)
    if err != nil {
        return response{}, fmt.Errorf("failed sending %s %s: %w", method, path, err)
    }
    defer resp.Body.Close()

    respBody, err := io.ReadAll(resp.Body)
    if err != nil {
        return response{}, err
    }
    return response{statusCode: resp.StatusCode, body: respBody}, nil
}

func lastResponseFromCtx(ctx context.Context) response {
    value := ctx.Value(lastResponseKey)
    if value == nil {
        panic("last response not found in context")
    }
    resp, ok := value.(response)
    if !ok {
        panic("last response has invalid type")
    }
    return resp
}

func logsWatcherFromCtx(ctx context.Context) *slogwatcher.Watcher {
    value := ctx.Value(logsWatcherKey)
    if value == nil {
        panic("logs watcher not found in context")
    }
    watcher, ok := value.(*slogwatcher.Watcher)
    if !ok {
        panic("logs watcher has invalid type")
    }
    return watcher
}

func newZapHandler() (slog.Handler, error) {
    encoderConfig := zap.NewProductionEncoderConfig()
    encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
    zapConfig := zap.Config{
        Level:             zap.NewAtomicLevelAt(zap.DebugLevel),
        Development:       false,
        DisableStacktrace: true,
        Encoding:          "json",
        EncoderConfig:     encoderConfig,
        OutputPaths:       []string{"stderr"},
        ErrorOutputPaths:  []string{"stderr"},
    }
    zapLogger, err := zapConfig.Build()
    if err != nil {
        return nil, err
    }
    return zapslog.NewHandler(zapLogger.Core()), nil
}

func getMongodbClient() (*mongo.Client, error) {
    if mongodbClient != nil {
        return mongodbClient, nil
    }

    serverAPI := options.ServerAPI(options.ServerAPIVersion1)
    opts := options.Client().ApplyURI(mongodbURL).SetServerAPIOptions(serverAPI)

    client, err := mongo.Connect(opts)
    if err != nil {
        return nil, err
    }
    mongodbClient = client

    return mongodbClient, nil
}
