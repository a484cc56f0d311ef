package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/HSouheill/devzon_backend/config"
	"github.com/HSouheill/devzon_backend/models"
)

type APIKeyRepository struct {
	collection *mongo.Collection
}

func NewAPIKeyRepository(db *mongo.Database) *APIKeyRepository {
	return &APIKeyRepository{
		collection: db.Collection(config.APIKeysCollection),
	}
}

func (r *APIKeyRepository) FindByKey(ctx context.Context, key string) (*models.APIKey, error) {
	var apiKey models.APIKey
	if err := r.collection.FindOne(ctx, bson.M{"key": key}).Decode(&apiKey); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &apiKey, nil
}

// ListByOwner returns the owner's keys, newest first.
func (r *APIKeyRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.APIKey, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	keys := []models.APIKey{}
	if err := cursor.All(ctx, &keys); err != nil {
		return nil, err
	}
	return keys, nil
}

// Decrement atomically takes one unit from field, guarded on the counter still
// being positive and the key unexpired. A key with no expiresAt counts as
// unexpired. It returns ErrNotFound when the guard fails so the caller can
// classify the key.
func (r *APIKeyRepository) Decrement(ctx context.Context, id primitive.ObjectID, field string, now time.Time) (*models.APIKey, error) {
	if field != models.RemainingField && field != models.LegacyRemainingField {
		return nil, fmt.Errorf("unknown quota field %q", field)
	}

	filter := bson.M{
		"_id": id,
		field: bson.M{"$gt": 0},
		"$or": bson.A{
			bson.M{"expiresAt": bson.M{"$gt": now}},
			bson.M{"expiresAt": nil},
		},
	}
	update := bson.M{"$inc": bson.M{field: -1}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var apiKey models.APIKey
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&apiKey); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &apiKey, nil
}

// MigrateLegacyRemaining rewrites keys whose counter lives in meta.remaining or
// is stored as a label string into the canonical numeric remaining field.
func (r *APIKeyRepository) MigrateLegacyRemaining(ctx context.Context) (int64, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"remaining": bson.M{"$exists": false}, "meta.remaining": bson.M{"$exists": true}},
		bson.M{"remaining": bson.M{"$type": "string"}},
		bson.M{"meta.remaining": bson.M{"$type": "string"}},
	}}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var migrated int64
	for cursor.Next(ctx) {
		var doc struct {
			ID        primitive.ObjectID `bson:"_id"`
			Remaining interface{}        `bson:"remaining"`
			Meta      struct {
				Remaining interface{} `bson:"remaining"`
			} `bson:"meta"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return migrated, err
		}

		value := doc.Remaining
		if value == nil {
			value = doc.Meta.Remaining
		}

		_, err := r.collection.UpdateOne(ctx,
			bson.M{"_id": doc.ID},
			bson.M{
				"$set":   bson.M{"remaining": models.CoerceRemaining(value)},
				"$unset": bson.M{"meta.remaining": ""},
			})
		if err != nil {
			return migrated, err
		}
		migrated++
	}
	return migrated, cursor.Err()
}
