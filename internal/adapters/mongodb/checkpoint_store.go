package mongodb

import (
    "context"
    "errors"

    "github.com/walletera/kanban/internal/eventsourcing"
    "go.mongodb.org/mongo-driver/v2/bson"
    "go.mongodb.org/mongo-driver/v2/mongo"
    "go.mongodb.org/mongo-driver/v2/mongo/options"
)

type checkpointBSON struct {
    Name     string `bson:"_id"`
    Position int64  `bson:"position"`
}

type CheckpointStore struct {
    client         *mongo.Client
    dbName         string
    collectionName string
}

func NewCheckpointStore(client *mongo.Client, dbName string, collectionName string) *CheckpointStore {
    return &CheckpointStore{client: client, dbName: dbName, collectionName: collectionName}
}

func (s *CheckpointStore) GetCheckpoint(ctx context.Context, name string) (uint64, error) {
    coll := s.client.Database(s.dbName).Collection(s.collectionName)
    var checkpoint checkpointBSON
    err := coll.FindOne(ctx, bson.M{"_id": name}).Decode(&checkpoint)
    if err != nil {
        if errors.Is(err, mongo.ErrNoDocuments) {
            return 0, nil
        }
        return 0, eventsourcing.NewTransportError("get checkpoint "+name, err)
    }
    return uint64(checkpoint.Position), nil
}

func (s *CheckpointStore) SaveCheckpoint(ctx context.Context, name string, position uint64) error {
    coll := s.client.Database(s.dbName).Collection(s.collectionName)
    _, err := coll.UpdateOne(
        ctx,
        bson.M{"_id": name},
        bson.M{"$set": bson.M{"position": int64(position)}},
        options.UpdateOne().SetUpsert(true),
    )
    if err != nil {
        return eventsourcing.NewTransportError("save checkpoint "+name, err)
    }
    return nil
}
