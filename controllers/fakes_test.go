package controllers

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/repositories"
)

// memDB is a single in-memory store backing every service under test.
type memDB struct {
	mu     sync.Mutex
	users  map[primitive.ObjectID]*models.User
	orders map[string]*models.Order
	keys   map[string]*models.APIKey
}

func newMemDB() *memDB {
	return &memDB{
		users:  make(map[primitive.ObjectID]*models.User),
		orders: make(map[string]*models.Order),
		keys:   make(map[string]*models.APIKey),
	}
}

type memUserStore struct{ *memDB }
type memOrderStore struct{ *memDB }
type memKeyStore struct{ *memDB }

func (m *memDB) userStore() memUserStore   { return memUserStore{m} }
func (m *memDB) orderStore() memOrderStore { return memOrderStore{m} }
func (m *memDB) keyStore() memKeyStore     { return memKeyStore{m} }

func (m *memDB) putUser(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = u
	return u
}

func (m *memDB) putKey(k *models.APIKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k.ID.IsZero() {
		k.ID = primitive.NewObjectID()
	}
	m.keys[k.Key] = k
}

func (m *memDB) remaining(key string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.keys[key].Remaining
}

func (s memUserStore) Create(ctx context.Context, user *models.User) error {
	s.putUser(user)
	return nil
}

func (s memUserStore) FindConflict(ctx context.Context, email, username, phone string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email || u.Username == username || u.Phone == phone {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s memUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (s memUserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (s memUserStore) FieldTaken(ctx context.Context, field, value string) (bool, error) {
	u, err := s.FindConflict(ctx, value, value, value)
	return err == nil && u != nil, nil
}

func (s memUserStore) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.Verified = true
		u.OTP = ""
	}
	return nil
}

func (s memUserStore) SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.OTP = otp
		u.OTPExpiresAt = &expiresAt
	}
	return nil
}

func (s memOrderStore) Create(ctx context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *order
	s.orders[order.OrderID] = &c
	return nil
}

func (s memOrderStore) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (s memOrderStore) MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	o.Status = models.OrderStatusPaid
	o.PaymentID = paymentID
	if o.PaidAt == nil {
		o.PaidAt = &paidAt
	}
	c := *o
	return &c, nil
}

func (m *memDB) IssueForOrder(ctx context.Context, orderID string, ownerID primitive.ObjectID, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok || o.GeneratedKey != "" {
		return repositories.ErrKeyAlreadyIssued
	}
	if _, taken := m.keys[key.Key]; taken {
		return repositories.ErrDuplicateKey
	}
	o.GeneratedKey = key.Key
	o.UserID = &ownerID
	key.ID = primitive.NewObjectID()
	c := *key
	m.keys[key.Key] = &c
	return nil
}

func (s memKeyStore) FindByKey(ctx context.Context, key string) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[key]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *k
	if k.Remaining != nil {
		v := *k.Remaining
		c.Remaining = &v
	}
	return &c, nil
}

func (s memKeyStore) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.APIKey{}
	for _, k := range s.keys {
		if k.OwnerID != nil && *k.OwnerID == ownerID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (s memKeyStore) Decrement(ctx context.Context, id primitive.ObjectID, field string, now time.Time) (*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keys {
		if k.ID != id {
			continue
		}
		if k.Remaining == nil || *k.Remaining <= 0 || (!k.ExpiresAt.IsZero() && !k.ExpiresAt.After(now)) {
			return nil, repositories.ErrNotFound
		}
		*k.Remaining--
		c := *k
		v := *k.Remaining
		c.Remaining = &v
		return &c, nil
	}
	return nil, repositories.ErrNotFound
}

func int64Ptr(v int64) *int64 { return &v }
