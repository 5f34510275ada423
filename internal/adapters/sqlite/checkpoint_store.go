package sqlite

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/walletera/kanban/internal/eventsourcing"
)

type CheckpointStore struct {
    sqlDB *sql.DB
}

func (s *CheckpointStore) GetCheckpoint(ctx context.Context, name string) (uint64, error) {
    var position int64
    err := s.sqlDB.QueryRowContext(ctx, `SELECT position FROM checkpoints WHERE name = ?`, name).Scan(&position)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return 0, nil
        }
        return 0, eventsourcing.NewTransportError("get checkpoint "+name, err)
    }
    return uint64(position), nil
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, name string, position uint64) error {
    _, err := s.sqlDB.ExecContext(
        ctx,
        `INSERT INTO checkpoints (name, position, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(name) DO UPDATE SET position = excluded.position, updated_at = excluded.updated_at`,
        name,
        int64(position),
        time.Now().UTC().UnixMilli(),
    )
    if err != nil {
        return eventsourcing.NewTransportError("save checkpoint "+name, err)
    }
    return nil
}
