package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harborview-properties/messaging-service/internal/models"
)

type MongoMessageRepo struct {
	coll *mongo.Collection
}

func NewMongoMessageRepo(db *mongo.Database) *MongoMessageRepo {
	coll := db.Collection(collMessages)
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
		Options: options.Index().SetName("conversation_created_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &MongoMessageRepo{coll: coll}
}

func (r *MongoMessageRepo) InsertMessage(ctx context.Context, m *models.Message) error {
	_, err := r.coll.InsertOne(ctx, m)
	return err
}

func (r *MongoMessageRepo) ListMessages(ctx context.Context, conversationID string, after Cursor, limit int64) ([]*models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !after.IsZero() {
		// strictly after (created_at, _id)
		filter["$or"] = bson.A{
			bson.M{"created_at": bson.M{"$gt": after.After}},
			bson.M{"created_at": after.After, "_id": bson.M{"$gt": after.AfterID}},
		}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(limit)
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (r *MongoMessageRepo) LastMessage(ctx context.Context, conversationID string) (*models.Message, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	var m models.Message
	err := r.coll.FindOne(ctx, bson.M{"conversation_id": conversationID}, opts).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MongoMessageRepo) AppendAttachments(ctx context.Context, messageID string, atts []models.Attachment) (*models.Message, error) {
	if len(atts) == 0 {
		var m models.Message
		err := r.coll.FindOne(ctx, bson.M{"_id": messageID}).Decode(&m)
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return &m, nil
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var m models.Message
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": messageID},
		bson.M{"$push": bson.M{"attachments": bson.M{"$each": atts}}},
		opts,
	).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MongoMessageRepo) CountUnreadSince(ctx context.Context, conversationIDs []string, userID string, since time.Time) (int64, error) {
	if len(conversationIDs) == 0 {
		return 0, nil
	}
	filter := bson.M{
		"conversation_id": bson.M{"$in": conversationIDs},
		"sender_id":       bson.M{"$ne": userID},
		"created_at":      bson.M{"$gt": since},
	}
	return r.coll.CountDocuments(ctx, filter)
}
