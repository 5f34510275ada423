package mongodb

import (
    "context"
    "errors"

    "github.com/walletera/werrors"
    "go.mongodb.org/mongo-driver/v2/bson"
    "go.mongodb.org/mongo-driver/v2/mongo"
)

type CardActivityBSON struct {
    CardId  string   `bson:"_id"`
    Version int64    `bson:"version"`
    Entries []string `bson:"entries"`
}

type ActivityRepository struct {
    client         *mongo.Client
    dbName         string
    collectionName string
}

func NewActivityRepository(client *mongo.Client, dbName string, collectionName string) *ActivityRepository {
    return &ActivityRepository{client: client, dbName: dbName, collectionName: collectionName}
}

func (r *ActivityRepository) AppendEntry(ctx context.Context, cardId string, streamVersion int64, text string) werrors.WError {
    if streamVersion < 0 {
        return werrors.NewNonRetryableInternalError("invalid stream version %d for card %s", streamVersion, cardId)
    }

    coll := r.client.Database(r.dbName).Collection(r.collectionName)

    if streamVersion == 0 {
        _, err := coll.InsertOne(ctx, CardActivityBSON{
            CardId:  cardId,
            Version: 0,
            Entries: []string{text},
        })
        if err != nil {
            if mongo.IsDuplicateKeyError(err) {
                return checkVersion(ctx, coll, cardId, streamVersion)
            }
            return werrors.NewRetryableInternalError("failed to save card activity: %s", err.Error())
        }
        return nil
    }

    updateResult, err := coll.UpdateOne(ctx, bson.M{
        "_id":     cardId,
        "version": streamVersion - 1,
    },
        bson.M{
            "$set":  bson.M{"version": streamVersion},
            "$push": bson.M{"entries": text},
        })
    if err != nil {
        return werrors.NewRetryableInternalError("failed to update card activity: %s", err.Error())
    }

    if updateResult.MatchedCount == 0 {
        return checkVersion(ctx, coll, cardId, streamVersion)
    }

    return nil
}

// checkVersion tells a redelivered entry, which is ignored, from an entry
// that arrived before its predecessors.
func checkVersion(ctx context.Context, coll *mongo.Collection, cardId string, streamVersion int64) werrors.WError {
    result := coll.FindOne(ctx, bson.M{"_id": cardId})
    if resultErr := result.Err(); resultErr != nil {
        if errors.Is(resultErr, mongo.ErrNoDocuments) {
            return werrors.NewRetryableInternalError("gap detected: card %s has no activity yet, entry version %d", cardId, streamVersion)
        }
        return werrors.NewRetryableInternalError("failed finding card activity with id: %s", cardId)
    }
    var retrieved CardActivityBSON
    decodeErr := result.Decode(&retrieved)
    if decodeErr != nil {
        return werrors.NewNonRetryableInternalError("failed decoding mongodb result: %s", decodeErr.Error())
    }
    if streamVersion <= retrieved.Version {
        return nil
    }
    return werrors.NewRetryableInternalError("gap detected between entry version %d and expected version %d, retrying...", streamVersion, retrieved.Version+1)
}

func (r *ActivityRepository) GetEntries(ctx context.Context, cardId string) ([]string, bool, werrors.WError) {
    coll := r.client.Database(r.dbName).Collection(r.collectionName)
    var activity CardActivityBSON
    err := coll.FindOne(ctx, bson.M{"_id": cardId}).Decode(&activity)
    if err != nil {
        if errors.Is(err, mongo.ErrNoDocuments) {
            return nil, false, nil
        }
        return nil, false, werrors.NewRetryableInternalError("failed finding card activity: %s", err.Error())
    }
    if activity.Entries == nil {
        activity.Entries = []string{}
    }
    return activity.Entries, true, nil
}
