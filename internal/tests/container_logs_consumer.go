package tests

import (
    "os"
    "path/filepath"
    "sync"

    "github.com/testcontainers/testcontainers-go"
)

const containerLogsDir = "containerlogs"

// ContainerLogConsumer copies the output of a test container into
// containerlogs/<name>.log so failed runs can be inspected.
type ContainerLogConsumer struct {
    mu   sync.Mutex
    file *os.File
}

func NewContainerLogConsumer(containerName string) *ContainerLogConsumer {
    err := os.MkdirAll(containerLogsDir, 0o755)
    if err != nil {
        panic(err)
    }
    file, err := os.Create(filepath.Join(containerLogsDir, containerName+".log"))
    if err != nil {
        panic(err)
    }
    return &ContainerLogConsumer{
        file: file,
    }
}

func (c *ContainerLogConsumer) Accept(log testcontainers.Log) {
    c.mu.Lock()
    defer c.mu.Unlock()
    _, err := c.file.Write(log.Content)
    if err != nil {
        panic(err)
    }
}
