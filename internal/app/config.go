package app

type EventLogDriver string

const (
    EventLogDriverMemory  EventLogDriver = "memory"
    EventLogDriverSQLite  EventLogDriver = "sqlite"
    EventLogDriverMongoDB EventLogDriver = "mongodb"
)

type PublicAPIConfig struct {
    PublicAPIHttpServerPort int
    // AuthServiceBase64PubKey enables bearer authentication when set.
    AuthServiceBase64PubKey string
}

type Optional[T any] struct {
    Value T
    Set   bool
}

func NewOptional[T any](value T) Optional[T] {
    return Optional[T]{Value: value, Set: true}
}
