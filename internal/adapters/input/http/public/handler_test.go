package public

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log/slog"
    "net/http"
    "net/http/httptest"
    "strings"
    "testing"

    "github.com/gin-gonic/gin"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
    "github.com/walletera/kanban/internal/adapters/memory"
    "github.com/walletera/kanban/internal/domain/cards"
    "github.com/walletera/kanban/internal/eventsourcing"
)

type testServer struct {
    router     *gin.Engine
    eventLog   *memory.EventLog
    repository *memory.ActivityRepository
}

func newTestServer(t *testing.T, commands CardCommands) *testServer {
    t.Helper()
    gin.SetMode(gin.TestMode)
    logger := slog.New(slog.DiscardHandler)
    eventLog := memory.NewEventLog()
    if commands == nil {
        commands = cards.NewHandlers(cards.NewStore(eventLog, cards.NewSerializer()), logger)
    }
    repository := memory.NewActivityRepository()
    return &testServer{
        router:     NewRouter(NewHandler(commands, repository, logger), nil, logger),
        eventLog:   eventLog,
        repository: repository,
    }
}

func (s *testServer) do(method string, path string, body string, headers ...string) *httptest.ResponseRecorder {
    req := httptest.NewRequest(method, path, strings.NewReader(body))
    req.Header.Set("Content-Type", "application/json")
    for i := 0; i+1 < len(headers); i += 2 {
        req.Header.Set(headers[i], headers[i+1])
    }
    rec := httptest.NewRecorder()
    s.router.ServeHTTP(rec, req)
    return rec
}

func TestRouter_Health(t *testing.T) {
    server := newTestServer(t, nil)

    rec := server.do(http.MethodGet, "/health", "")

    assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_CardLifecycle(t *testing.T) {
    server := newTestServer(t, nil)

    rec := server.do(http.MethodPost, "/tasks", `{"id":"1","title":"Write docs"}`, CorrelationIDHeader, "corr-1")
    require.Equal(t, http.StatusCreated, rec.Code)
    assert.Equal(t, "corr-1", rec.Header().Get(CorrelationIDHeader))

    rec = server.do(http.MethodPut, "/cards/1/assignee", `{"assignee":"ana"}`)
    require.Equal(t, http.StatusNoContent, rec.Code)

    rec = server.do(http.MethodPost, "/cards/1/start", "")
    require.Equal(t, http.StatusNoContent, rec.Code)

    recorded, err := server.eventLog.ReadStream(context.Background(), "Card-1")
    require.NoError(t, err)
    require.Len(t, recorded, 3)
    assert.Equal(t, "corr-1", recorded[0].Metadata.CorrelationId)
    assert.NotEmpty(t, recorded[1].Metadata.CorrelationId)
}

func TestRouter_PreconditionViolation(t *testing.T) {
    server := newTestServer(t, nil)
    require.Equal(t, http.StatusCreated, server.do(http.MethodPost, "/tasks", `{"id":"1","title":"Write docs"}`).Code)

    rec := server.do(http.MethodPost, "/cards/1/start", "")

    assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
    var body map[string]string
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
    assert.Equal(t, cards.AssigneeRequiredRule, body["rule"])
}

func TestRouter_MalformedBody(t *testing.T) {
    server := newTestServer(t, nil)

    rec := server.do(http.MethodPost, "/tasks", `{"id":`)

    assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type failingCommands struct {
    err error
}

func (f failingCommands) HandleOpenTask(context.Context, cards.OpenTask) error { return f.err }

func (f failingCommands) HandleAssignCard(context.Context, cards.AssignCard) error { return f.err }

func (f failingCommands) HandleStartDevelopment(context.Context, cards.StartDevelopment) error {
    return f.err
}

func TestRouter_VersionConflict(t *testing.T) {
    conflict := &eventsourcing.VersionConflictError{StreamName: "Card-1", ExpectedVersion: 0, ActualVersion: 1}
    server := newTestServer(t, failingCommands{err: conflict})

    rec := server.do(http.MethodPut, "/cards/1/assignee", `{"assignee":"ana"}`)

    assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRouter_UnexpectedError(t *testing.T) {
    server := newTestServer(t, failingCommands{err: errors.New("disk full")})

    rec := server.do(http.MethodPost, "/cards/1/start", "")

    assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_TransportErrorIsInternal(t *testing.T) {
    transportErr := fmt.Errorf("failed reading stream Card-1: %w",
        eventsourcing.NewTransportError("read stream Card-1", errors.New("sql: database is closed")))
    server := newTestServer(t, failingCommands{err: transportErr})

    for _, req := range []struct{ method, path, body string }{
        {http.MethodPost, "/tasks", `{"id":"1","title":"Write release notes"}`},
        {http.MethodPut, "/cards/1/assignee", `{"assignee":"ana"}`},
        {http.MethodPost, "/cards/1/start", ""},
    } {
        rec := server.do(req.method, req.path, req.body)

        assert.Equal(t, http.StatusInternalServerError, rec.Code, req.path)
        assert.NotContains(t, rec.Body.String(), "rule", req.path)
    }
}

func TestRouter_GetActivity(t *testing.T) {
    server := newTestServer(t, nil)
    ctx := context.Background()
    require.Nil(t, server.repository.AppendEntry(ctx, "1", 0, "Task 'Write docs' was opened"))
    require.Nil(t, server.repository.AppendEntry(ctx, "1", 1, "Card was assigned to ana"))

    rec := server.do(http.MethodGet, "/cards/1/activity", "")

    require.Equal(t, http.StatusOK, rec.Code)
    var entries []string
    require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
    assert.Equal(t, []string{"Task 'Write docs' was opened", "Card was assigned to ana"}, entries)
}

func TestRouter_GetActivityOfUnknownCard(t *testing.T) {
    server := newTestServer(t, nil)

    rec := server.do(http.MethodGet, "/cards/404/activity", "")

    assert.Equal(t, http.StatusNotFound, rec.Code)
}
