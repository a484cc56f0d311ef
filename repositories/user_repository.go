package repositories

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/devzon_backend/config"
	"github.com/HSouheill/devzon_backend/models"
)

type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{
		collection: db.Collection(config.UsersCollection),
	}
}

// Create inserts a user. Unique index violations become field conflicts.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	res, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		return conflictFromDuplicate(err, "email", "username", "phone")
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		user.ID = id
	}
	return nil
}

// FindConflict returns any user sharing the email, username or phone.
func (r *UserRepository) FindConflict(ctx context.Context, email, username, phone string) (*models.User, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"email": email},
		bson.M{"username": username},
		bson.M{"phone": phone},
	}}
	return r.findOne(ctx, filter)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// FieldTaken reports whether any user already holds value in field.
func (r *UserRepository) FieldTaken(ctx context.Context, field, value string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{field: value})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// MarkVerified flags the user verified and drops the one-time code.
func (r *UserRepository) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":   bson.M{"verified": true},
			"$unset": bson.M{"otp": "", "otpExpiresAt": ""},
		})
	return err
}

// SetOTP replaces the pending one-time code of an unverified user.
func (r *UserRepository) SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id, "verified": false},
		bson.M{"$set": bson.M{"otp": otp, "otpExpiresAt": expiresAt}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	var user models.User
	if err := r.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
