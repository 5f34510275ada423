// Package sqlite provides a SQLite-backed event log and checkpoint store.
package sqlite

import (
    "context"
    "database/sql"
    "errors"
    "fmt"
    "path/filepath"
    "strings"
    "time"

    "github.com/google/uuid"
    "github.com/walletera/kanban/internal/adapters/sqlite/migrations"
    "github.com/walletera/kanban/internal/eventsourcing"
    sqlite "modernc.org/sqlite"
    sqlite3 "modernc.org/sqlite/lib"
)

// EventLog keeps every stream in a single events table. The position is
// the AUTOINCREMENT row id and appends run in immediate transactions, so
// positions become visible in increasing order.
type EventLog struct {
    sqlDB *sql.DB
}

// Open opens the database at path and applies embedded migrations. The
// path ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string) (*EventLog, error) {
    if strings.TrimSpace(path) == "" {
        return nil, fmt.Errorf("storage path is required")
    }
    if path != ":memory:" {
        path = filepath.Clean(path)
    }
    dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
    sqlDB, err := sql.Open("sqlite", dsn)
    if err != nil {
        return nil, fmt.Errorf("open sqlite db: %w", err)
    }
    sqlDB.SetMaxOpenConns(1)
    if err := sqlDB.PingContext(ctx); err != nil {
        _ = sqlDB.Close()
        return nil, fmt.Errorf("ping sqlite db: %w", err)
    }
    if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
        _ = sqlDB.Close()
        return nil, fmt.Errorf("run migrations: %w", err)
    }
    return &EventLog{sqlDB: sqlDB}, nil
}

func (l *EventLog) Close() error {
    if l == nil || l.sqlDB == nil {
        return nil
    }
    return l.sqlDB.Close()
}

// CheckpointStore returns a checkpoint store sharing the log database.
func (l *EventLog) CheckpointStore() *CheckpointStore {
    return &CheckpointStore{sqlDB: l.sqlDB}
}

const selectEvents = `SELECT position, event_id, stream_name, stream_version, event_type, data, correlation_id, created_at FROM events`

func (l *EventLog) ReadStream(ctx context.Context, streamName string) ([]eventsourcing.RecordedEvent, error) {
    rows, err := l.sqlDB.QueryContext(
        ctx,
        selectEvents+` WHERE stream_name = ? ORDER BY stream_version`,
        streamName,
    )
    if err != nil {
        return nil, eventsourcing.NewTransportError("read stream "+streamName, err)
    }
    events, err := scanEvents(rows)
    if err != nil {
        return nil, eventsourcing.NewTransportError("read stream "+streamName, err)
    }
    return events, nil
}

func (l *EventLog) ReadAll(ctx context.Context, fromPosition uint64, limit int) ([]eventsourcing.RecordedEvent, error) {
    if limit <= 0 {
        limit = -1
    }
    rows, err := l.sqlDB.QueryContext(
        ctx,
        selectEvents+` WHERE position > ? ORDER BY position LIMIT ?`,
        int64(fromPosition),
        limit,
    )
    if err != nil {
        return nil, eventsourcing.NewTransportError("read all", err)
    }
    events, err := scanEvents(rows)
    if err != nil {
        return nil, eventsourcing.NewTransportError("read all", err)
    }
    return events, nil
}

func (l *EventLog) AppendToStream(
    ctx context.Context,
    streamName string,
    expectedVersion int64,
    events []eventsourcing.EventData,
    correlationId string,
) (eventsourcing.AppendResult, error) {
    if expectedVersion < eventsourcing.NoStreamVersion {
        return eventsourcing.AppendResult{}, fmt.Errorf("invalid expected version %d", expectedVersion)
    }

    tx, err := l.sqlDB.BeginTx(ctx, nil)
    if err != nil {
        return eventsourcing.AppendResult{}, eventsourcing.NewTransportError("begin append", err)
    }
    defer func() {
        _ = tx.Rollback()
    }()

    currentVersion, err := streamVersion(ctx, tx, streamName)
    if err != nil {
        return eventsourcing.AppendResult{}, eventsourcing.NewTransportError("read stream version "+streamName, err)
    }
    if currentVersion != expectedVersion {
        return eventsourcing.AppendResult{}, &eventsourcing.VersionConflictError{
            StreamName:      streamName,
            ExpectedVersion: expectedVersion,
            ActualVersion:   currentVersion,
        }
    }

    createdAt := time.Now().UTC().UnixMilli()
    var lastPosition int64
    for i, event := range events {
        result, err := tx.ExecContext(
            ctx,
            `INSERT INTO events (event_id, stream_name, stream_version, event_type, data, correlation_id, created_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
            event.EventId.String(),
            streamName,
            expectedVersion+1+int64(i),
            event.Type,
            event.Data,
            correlationId,
            createdAt,
        )
        if err != nil {
            if isConstraintError(err) {
                return eventsourcing.AppendResult{}, &eventsourcing.VersionConflictError{
                    StreamName:      streamName,
                    ExpectedVersion: expectedVersion,
                    ActualVersion:   currentVersion,
                }
            }
            return eventsourcing.AppendResult{}, eventsourcing.NewTransportError("insert event", err)
        }
        lastPosition, err = result.LastInsertId()
        if err != nil {
            return eventsourcing.AppendResult{}, eventsourcing.NewTransportError("insert event", err)
        }
    }

    if err := tx.Commit(); err != nil {
        return eventsourcing.AppendResult{}, eventsourcing.NewTransportError("commit append", err)
    }

    return eventsourcing.AppendResult{
        NextExpectedVersion: expectedVersion + int64(len(events)),
        LastPosition:        uint64(lastPosition),
    }, nil
}

func streamVersion(ctx context.Context, tx *sql.Tx, streamName string) (int64, error) {
    var version int64
    err := tx.QueryRowContext(
        ctx,
        `SELECT COALESCE(MAX(stream_version), -1) FROM events WHERE stream_name = ?`,
        streamName,
    ).Scan(&version)
    return version, err
}

func scanEvents(rows *sql.Rows) ([]eventsourcing.RecordedEvent, error) {
    defer rows.Close()

    var events []eventsourcing.RecordedEvent
    for rows.Next() {
        var (
            position      int64
            eventId       string
            event         eventsourcing.RecordedEvent
            correlationId string
            createdAt     int64
        )
        err := rows.Scan(
            &position,
            &eventId,
            &event.StreamName,
            &event.StreamVersion,
            &event.Type,
            &event.Data,
            &correlationId,
            &createdAt,
        )
        if err != nil {
            return nil, err
        }
        event.EventId, err = uuid.Parse(eventId)
        if err != nil {
            return nil, fmt.Errorf("invalid event id %q at position %d: %w", eventId, position, err)
        }
        event.Position = uint64(position)
        event.Metadata = eventsourcing.Metadata{CorrelationId: correlationId}
        event.CreatedAt = time.UnixMilli(createdAt).UTC()
        events = append(events, event)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return events, nil
}

func isConstraintError(err error) bool {
    var sqliteErr *sqlite.Error
    if !errors.As(err, &sqliteErr) {
        return false
    }
    code := sqliteErr.Code()
    return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
