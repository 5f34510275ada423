package mongodb

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/walletera/kanban/internal/eventsourcing"
    "go.mongodb.org/mongo-driver/v2/bson"
    "go.mongodb.org/mongo-driver/v2/mongo"
    "go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
    EventsCollectionName   = "events"
    StreamsCollectionName  = "streams"
    CountersCollectionName = "counters"

    positionCounterId = "position"

    namespaceExistsCode = 48
)

var errStreamHeadMoved = errors.New("stream head moved")

type EventBSON struct {
    Position      int64                  `bson:"_id"`
    EventId       string                 `bson:"eventId"`
    StreamName    string                 `bson:"stream"`
    StreamVersion int64                  `bson:"version"`
    Type          string                 `bson:"type"`
    Data          []byte                 `bson:"data"`
    Metadata      eventsourcing.Metadata `bson:"metadata"`
    CreatedAt     time.Time              `bson:"createdAt"`
}

type StreamHeadBSON struct {
    StreamName string `bson:"_id"`
    Version    int64  `bson:"version"`
}

type counterBSON struct {
    Id    string `bson:"_id"`
    Value int64  `bson:"value"`
}

// EventLog stores events in one collection keyed by global position. Each
// stream has a head document holding its version; appends compare-and-set
// the head and take positions from a counter inside one transaction, so a
// position is only visible once every lower position is committed.
// Transactions need a replica set.
type EventLog struct {
    client *mongo.Client
    dbName string
}

func NewEventLog(client *mongo.Client, dbName string) *EventLog {
    return &EventLog{client: client, dbName: dbName}
}

func (l *EventLog) collection(name string) *mongo.Collection {
    return l.client.Database(l.dbName).Collection(name)
}

// EnsureIndexes creates the collections, indexes and position counter the
// log relies on, so that concurrent first appends only race on documents.
// It is idempotent.
func (l *EventLog) EnsureIndexes(ctx context.Context) error {
    db := l.client.Database(l.dbName)
    for _, name := range []string{EventsCollectionName, StreamsCollectionName, CountersCollectionName} {
        err := db.CreateCollection(ctx, name)
        if err != nil && !isNamespaceExists(err) {
            return eventsourcing.NewTransportError("create collection "+name, err)
        }
    }

    _, err := l.collection(EventsCollectionName).Indexes().CreateOne(ctx, mongo.IndexModel{
        Keys:    bson.D{{Key: "stream", Value: 1}, {Key: "version", Value: 1}},
        Options: options.Index().SetUnique(true),
    })
    if err != nil {
        return eventsourcing.NewTransportError("create events index", err)
    }

    _, err = l.collection(CountersCollectionName).UpdateOne(
        ctx,
        bson.M{"_id": positionCounterId},
        bson.M{"$setOnInsert": bson.M{"value": int64(0)}},
        options.UpdateOne().SetUpsert(true),
    )
    if err != nil {
        return eventsourcing.NewTransportError("create position counter", err)
    }
    return nil
}

func isNamespaceExists(err error) bool {
    var cmdErr mongo.CommandError
    return errors.As(err, &cmdErr) && cmdErr.Code == namespaceExistsCode
}

func (l *EventLog) ReadStream(ctx context.Context, streamName string) ([]eventsourcing.RecordedEvent, error) {
    cursor, err := l.collection(EventsCollectionName).Find(
        ctx,
        bson.M{"stream": streamName},
        options.Find().SetSort(bson.D{{Key: "version", Value: 1}}),
    )
    if err != nil {
        return nil, eventsourcing.NewTransportError("read stream "+streamName, err)
    }
    events, err := (&Iterator{cursor: cursor}).drain(ctx)
    if err != nil {
        return nil, eventsourcing.NewTransportError("read stream "+streamName, err)
    }
    return events, nil
}

func (l *EventLog) ReadAll(ctx context.Context, fromPosition uint64, limit int) ([]eventsourcing.RecordedEvent, error) {
    findOpts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
    if limit > 0 {
        findOpts.SetLimit(int64(limit))
    }
    cursor, err := l.collection(EventsCollectionName).Find(
        ctx,
        bson.M{"_id": bson.M{"$gt": int64(fromPosition)}},
        findOpts,
    )
    if err != nil {
        return nil, eventsourcing.NewTransportError("read all", err)
    }
    events, err := (&Iterator{cursor: cursor}).drain(ctx)
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

    if len(events) == 0 {
        currentVersion, err := l.streamVersion(ctx, streamName)
        if err != nil {
            return eventsourcing.AppendResult{}, err
        }
        if currentVersion != expectedVersion {
            return eventsourcing.AppendResult{}, versionConflict(streamName, expectedVersion, currentVersion)
        }
        return eventsourcing.AppendResult{NextExpectedVersion: currentVersion}, nil
    }

    session, err := l.client.StartSession()
    if err != nil {
        return eventsourcing.AppendResult{}, eventsourcing.NewTransportError("start session", err)
    }
    defer session.EndSession(ctx)

    result, err := session.WithTransaction(ctx, func(txCtx context.Context) (any, error) {
        return l.appendInTransaction(txCtx, streamName, expectedVersion, events, correlationId)
    })
    if err != nil {
        if errors.Is(err, errStreamHeadMoved) {
            currentVersion, readErr := l.streamVersion(ctx, streamName)
            if readErr != nil {
                return eventsourcing.AppendResult{}, readErr
            }
            return eventsourcing.AppendResult{}, versionConflict(streamName, expectedVersion, currentVersion)
        }
        return eventsourcing.AppendResult{}, eventsourcing.NewTransportError("append to stream "+streamName, err)
    }

    return result.(eventsourcing.AppendResult), nil
}

func (l *EventLog) appendInTransaction(
    ctx context.Context,
    streamName string,
    expectedVersion int64,
    events []eventsourcing.EventData,
    correlationId string,
) (eventsourcing.AppendResult, error) {
    nextVersion := expectedVersion + int64(len(events))

    err := l.moveStreamHead(ctx, streamName, expectedVersion, nextVersion)
    if err != nil {
        return eventsourcing.AppendResult{}, err
    }

    var counter counterBSON
    err = l.collection(CountersCollectionName).FindOneAndUpdate(
        ctx,
        bson.M{"_id": positionCounterId},
        bson.M{"$inc": bson.M{"value": int64(len(events))}},
        options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
    ).Decode(&counter)
    if err != nil {
        return eventsourcing.AppendResult{}, err
    }

    firstPosition := counter.Value - int64(len(events)) + 1
    createdAt := time.Now().UTC()
    documents := make([]any, 0, len(events))
    for i, event := range events {
        documents = append(documents, EventBSON{
            Position:      firstPosition + int64(i),
            EventId:       event.EventId.String(),
            StreamName:    streamName,
            StreamVersion: expectedVersion + 1 + int64(i),
            Type:          event.Type,
            Data:          event.Data,
            Metadata:      eventsourcing.Metadata{CorrelationId: correlationId},
            CreatedAt:     createdAt,
        })
    }

    _, err = l.collection(EventsCollectionName).InsertMany(ctx, documents)
    if err != nil {
        if mongo.IsDuplicateKeyError(err) {
            return eventsourcing.AppendResult{}, errStreamHeadMoved
        }
        return eventsourcing.AppendResult{}, err
    }

    return eventsourcing.AppendResult{
        NextExpectedVersion: nextVersion,
        LastPosition:        uint64(counter.Value),
    }, nil
}

func (l *EventLog) moveStreamHead(ctx context.Context, streamName string, expectedVersion int64, nextVersion int64) error {
    streams := l.collection(StreamsCollectionName)

    if expectedVersion == eventsourcing.NoStreamVersion {
        _, err := streams.InsertOne(ctx, StreamHeadBSON{StreamName: streamName, Version: nextVersion})
        if err != nil {
            if mongo.IsDuplicateKeyError(err) {
                return errStreamHeadMoved
            }
            return err
        }
        return nil
    }

    updateResult, err := streams.UpdateOne(
        ctx,
        bson.M{"_id": streamName, "version": expectedVersion},
        bson.M{"$set": bson.M{"version": nextVersion}},
    )
    if err != nil {
        return err
    }
    if updateResult.MatchedCount == 0 {
        return errStreamHeadMoved
    }
    return nil
}

func (l *EventLog) streamVersion(ctx context.Context, streamName string) (int64, error) {
    var head StreamHeadBSON
    err := l.collection(StreamsCollectionName).FindOne(ctx, bson.M{"_id": streamName}).Decode(&head)
    if err != nil {
        if errors.Is(err, mongo.ErrNoDocuments) {
            return eventsourcing.NoStreamVersion, nil
        }
        return 0, eventsourcing.NewTransportError("read stream head "+streamName, err)
    }
    return head.Version, nil
}

func versionConflict(streamName string, expectedVersion int64, actualVersion int64) *eventsourcing.VersionConflictError {
    return &eventsourcing.VersionConflictError{
        StreamName:      streamName,
        ExpectedVersion: expectedVersion,
        ActualVersion:   actualVersion,
    }
}
