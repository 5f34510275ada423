package memory

import (
    "context"
    "sync"
)

type CheckpointStore struct {
    mu          sync.RWMutex
    checkpoints map[string]uint64
}

func NewCheckpointStore() *CheckpointStore {
    return &CheckpointStore{
        checkpoints: make(map[string]uint64),
    }
}

func (s *CheckpointStore) GetCheckpoint(_ context.Context, name string) (uint64, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    return s.checkpoints[name], nil
}

func (s *CheckpointStore) SaveCheckpoint(_ context.Context, name string, position uint64) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.checkpoints[name] = position
    return nil
}
