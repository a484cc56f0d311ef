package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/repositories"
)

// ---- in-memory stores with the same guards as the Mongo repositories ----

type memStore struct {
	mu     sync.Mutex
	users  map[primitive.ObjectID]*models.User
	orders map[string]*models.Order
	keys   map[string]*models.APIKey

	decrements int
	issueCalls int
	// collisions makes the next n issuance calls fail with ErrDuplicateKey.
	collisions int
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[primitive.ObjectID]*models.User),
		orders: make(map[string]*models.Order),
		keys:   make(map[string]*models.APIKey),
	}
}

func (m *memStore) Users() *memUsers   { return &memUsers{m} }
func (m *memStore) Orders() *memOrders { return &memOrders{m} }
func (m *memStore) Keys() *memKeys     { return &memKeys{m} }

func (m *memStore) addUser(u *models.User) *models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID.IsZero() {
		u.ID = primitive.NewObjectID()
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addKey(k *models.APIKey) *models.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k.ID.IsZero() {
		k.ID = primitive.NewObjectID()
	}
	m.keys[k.Key] = k
	return k
}

func (m *memStore) key(key string) models.APIKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneKey(m.keys[key])
}

func (m *memStore) keyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

func cloneKey(k *models.APIKey) models.APIKey {
	c := *k
	if k.Remaining != nil {
		v := *k.Remaining
		c.Remaining = &v
	}
	if k.Meta.Remaining != nil {
		v := *k.Meta.Remaining
		c.Meta.Remaining = &v
	}
	return c
}

type memUsers struct{ *memStore }

func (m *memUsers) Create(ctx context.Context, user *models.User) error {
	m.addUser(user)
	return nil
}

func (m *memUsers) FindConflict(ctx context.Context, email, username, phone string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email || u.Username == username || u.Phone == phone {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsers) FieldTaken(ctx context.Context, field, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if (field == "email" && u.Email == value) ||
			(field == "username" && u.Username == value) ||
			(field == "phone" && u.Phone == value) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memUsers) MarkVerified(ctx context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		u.Verified = true
		u.OTP = ""
		u.OTPExpiresAt = nil
	}
	return nil
}

func (m *memUsers) SetOTP(ctx context.Context, id primitive.ObjectID, otp string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || u.Verified {
		return repositories.ErrNotFound
	}
	u.OTP = otp
	u.OTPExpiresAt = &expiresAt
	return nil
}

type memOrders struct{ *memStore }

func (m *memOrders) Create(ctx context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *order
	m.orders[order.OrderID] = &c
	return nil
}

func (m *memOrders) FindByOrderID(ctx context.Context, orderID string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := *o
	return &c, nil
}

func (m *memOrders) MarkPaid(ctx context.Context, orderID, paymentID string, paidAt time.Time) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	o.Status = models.OrderStatusPaid
	o.PaymentID = paymentID
	if o.PaidAt == nil || paidAt.Before(*o.PaidAt) {
		t := paidAt
		o.PaidAt = &t
	}
	c := *o
	return &c, nil
}

func (m *memStore) IssueForOrder(ctx context.Context, orderID string, ownerID primitive.ObjectID, key *models.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issueCalls++

	if m.collisions > 0 {
		m.collisions--
		return repositories.ErrDuplicateKey
	}
	if _, taken := m.keys[key.Key]; taken {
		return repositories.ErrDuplicateKey
	}

	o, ok := m.orders[orderID]
	if !ok || o.GeneratedKey != "" || (o.UserID != nil && *o.UserID != ownerID) {
		return repositories.ErrKeyAlreadyIssued
	}
	o.GeneratedKey = key.Key
	owner := ownerID
	o.UserID = &owner

	if key.ID.IsZero() {
		key.ID = primitive.NewObjectID()
	}
	c := cloneKey(key)
	m.keys[key.Key] = &c
	return nil
}

type memKeys struct{ *memStore }

func (m *memKeys) FindByKey(ctx context.Context, key string) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[key]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	c := cloneKey(k)
	return &c, nil
}

func (m *memKeys) ListByOwner(ctx context.Context, ownerID primitive.ObjectID) ([]models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.APIKey{}
	for _, k := range m.keys {
		if k.OwnerID != nil && *k.OwnerID == ownerID {
			out = append(out, cloneKey(k))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memKeys) Decrement(ctx context.Context, id primitive.ObjectID, field string, now time.Time) (*models.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decrements++

	for _, k := range m.keys {
		if k.ID != id {
			continue
		}
		counter := k.Remaining
		if field == models.LegacyRemainingField {
			counter = k.Meta.Remaining
		}
		if counter == nil || *counter <= 0 || (!k.ExpiresAt.IsZero() && !k.ExpiresAt.After(now)) {
			return nil, repositories.ErrNotFound
		}
		*counter--
		c := cloneKey(k)
		return &c, nil
	}
	return nil, repositories.ErrNotFound
}

// ---- event recorder ----

type recordedEvent struct {
	UserID string
	Type   string
	Data   interface{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) Publish(userID, eventType string, data interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{UserID: userID, Type: eventType, Data: data})
}

func (r *eventRecorder) ofType(eventType string) []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []recordedEvent
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// ---- mail ----

type queueRecorder struct {
	mu   sync.Mutex
	msgs []Email
	err  error
}

func (q *queueRecorder) Enqueue(msg Email) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

func int64Ptr(v int64) *int64 { return &v }
