package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harborview-properties/messaging-service/internal/models"
)

type MongoWatermarkRepo struct {
	coll *mongo.Collection
}

func NewMongoWatermarkRepo(db *mongo.Database) *MongoWatermarkRepo {
	coll := db.Collection(collWatermarks)
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "source", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("user_source_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &MongoWatermarkRepo{coll: coll}
}

// Advance relies on $max so the watermark is monotonic even under
// concurrent mark-read calls; an equal or earlier timestamp is a no-op.
func (r *MongoWatermarkRepo) Advance(ctx context.Context, userID, source string, ts time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "source": source},
		bson.M{
			"$max":         bson.M{"last_read_at": ts},
			"$setOnInsert": bson.M{"user_id": userID, "source": source},
		},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *MongoWatermarkRepo) Get(ctx context.Context, userID, source string) (time.Time, error) {
	var wm models.Watermark
	err := r.coll.FindOne(ctx, bson.M{"user_id": userID, "source": source}).Decode(&wm)
	if err == mongo.ErrNoDocuments {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return wm.LastReadAt, nil
}
