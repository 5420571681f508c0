package repository

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/harborview-properties/messaging-service/internal/models"
)

type MongoConversationRepo struct {
	coll *mongo.Collection
}

func NewMongoConversationRepo(db *mongo.Database) *MongoConversationRepo {
	coll := db.Collection(collConversations)
	ix := mongo.IndexModel{
		Keys:    bson.D{{Key: "members", Value: 1}},
		Options: options.Index().SetName("members_idx"),
	}
	_, _ = coll.Indexes().CreateOne(context.Background(), ix)
	return &MongoConversationRepo{coll: coll}
}

func (r *MongoConversationRepo) CreateConversation(ctx context.Context, members []string, ts time.Time) (*models.Conversation, error) {
	members = NormalizeMembers(members)
	var existing models.Conversation
	err := r.coll.FindOne(ctx, bson.M{
		"members":    members,
		"deleted_at": bson.M{"$exists": false},
	}).Decode(&existing)
	if err == nil {
		return &existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, err
	}

	c := &models.Conversation{
		ID:            uuid.NewString(),
		Members:       members,
		CreatedAt:     ts,
		LastMessageAt: ts,
	}
	if _, err := r.coll.InsertOne(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (r *MongoConversationRepo) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.coll.FindOne(ctx, bson.M{
		"_id":        id,
		"deleted_at": bson.M{"$exists": false},
	}).Decode(&c)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *MongoConversationRepo) TouchLastActivity(ctx context.Context, id string, ts time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$max": bson.M{"last_message_at": ts}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoConversationRepo) SoftDeleteConversation(ctx context.Context, id string, ts time.Time) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"deleted_at": ts}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoConversationRepo) MemberConversationIDs(ctx context.Context, userID string) ([]string, error) {
	cur, err := r.coll.Find(ctx,
		bson.M{"members": userID, "deleted_at": bson.M{"$exists": false}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var ids []string
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

// NormalizeMembers dedupes and sorts so the same participant set always
// maps to the same stored document.
func NormalizeMembers(members []string) []string {
	seen := make(map[string]struct{}, len(members))
	out := make([]string, 0, len(members))
	for _, m := range members {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
