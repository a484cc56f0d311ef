package repositories

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/HSouheill/devzon_backend/config"
	"github.com/HSouheill/devzon_backend/models"
)

// IssuanceRepository links a paid order to a newly generated key.
type IssuanceRepository struct {
	client          *mongo.Client
	orders          *mongo.Collection
	keys            *mongo.Collection
	useTransactions bool
}

// NewIssuanceRepository builds the repository. useTransactions requires a
// replica set or sharded cluster; without it a compensating delete is used.
func NewIssuanceRepository(client *mongo.Client, db *mongo.Database, useTransactions bool) *IssuanceRepository {
	return &IssuanceRepository{
		client:          client,
		orders:          db.Collection(config.OrdersCollection),
		keys:            db.Collection(config.APIKeysCollection),
		useTransactions: useTransactions,
	}
}

// IssueForOrder claims the order's generatedKey slot for key and inserts key,
// as one unit. It fails with ErrKeyAlreadyIssued if the order already has a
// key or belongs to a different owner, and with ErrDuplicateKey if the key
// string is taken.
func (r *IssuanceRepository) IssueForOrder(ctx context.Context, orderID string, ownerID primitive.ObjectID, key *models.APIKey) error {
	if key.ID.IsZero() {
		key.ID = primitive.NewObjectID()
	}
	if !r.useTransactions {
		return r.issueWithCompensation(ctx, orderID, ownerID, key)
	}

	session, err := r.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if err := r.claimOrder(sc, orderID, ownerID, key.Key); err != nil {
			return nil, err
		}
		if _, err := r.keys.InsertOne(sc, key); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, ErrDuplicateKey
			}
			return nil, err
		}
		return nil, nil
	})
	return err
}

// issueWithCompensation inserts the key first and removes it again if the
// order cannot be claimed, so an order never points at a missing key.
func (r *IssuanceRepository) issueWithCompensation(ctx context.Context, orderID string, ownerID primitive.ObjectID, key *models.APIKey) error {
	if _, err := r.keys.InsertOne(ctx, key); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return err
	}

	if err := r.claimOrder(ctx, orderID, ownerID, key.Key); err != nil {
		if _, delErr := r.keys.DeleteOne(ctx, bson.M{"_id": key.ID}); delErr != nil {
			return errors.Join(err, delErr)
		}
		return err
	}
	return nil
}

func (r *IssuanceRepository) claimOrder(ctx context.Context, orderID string, ownerID primitive.ObjectID, generatedKey string) error {
	filter := bson.M{
		"orderId":      orderID,
		"generatedKey": bson.M{"$exists": false},
		"$or": bson.A{
			bson.M{"userId": nil},
			bson.M{"userId": ownerID},
		},
	}
	update := bson.M{"$set": bson.M{"generatedKey": generatedKey, "userId": ownerID}}

	res, err := r.orders.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrKeyAlreadyIssued
	}
	return nil
}
