package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderStatusCreated = "created"
	OrderStatusPaid    = "paid"
)

// Order records one checkout attempt and its gateway outcome
type Order struct {
	ID            primitive.ObjectID  `json:"_id,omitempty" bson:"_id,omitempty"`
	OrderID       string              `json:"orderId" bson:"orderId"`
	UserID        *primitive.ObjectID `json:"userId" bson:"userId"`
	PlanID        string              `json:"planId,omitempty" bson:"planId,omitempty"`
	Amount        float64             `json:"amount" bson:"amount"`
	Currency      string              `json:"currency" bson:"currency"`
	Description   string              `json:"description" bson:"description"`
	Status        string              `json:"status" bson:"status"`
	RazorpayOrder *RazorpayOrder      `json:"razorpayOrder,omitempty" bson:"razorpayOrder,omitempty"`
	PaymentID     string              `json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	GeneratedKey  string              `json:"generatedKey,omitempty" bson:"generatedKey,omitempty"`
	CreatedAt     time.Time           `json:"createdAt" bson:"createdAt"`
	PaidAt        *time.Time          `json:"paidAt,omitempty" bson:"paidAt,omitempty"`
}

// CreateOrderRequest starts a checkout. When PlanID is set the amount comes
// from the catalog and the request amount is ignored.
type CreateOrderRequest struct {
	Amount      float64 `json:"amount"`
	PlanID      string  `json:"planId"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// VerifyPaymentRequest is the checkout callback body. Both the gateway's
// prefixed field names and the short names are accepted.
type VerifyPaymentRequest struct {
	OrderID           string `json:"order_id"`
	PaymentID         string `json:"payment_id"`
	Signature         string `json:"signature"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	PlanID            string `json:"planId"`
}

// Normalize folds the gateway field names into the short ones
func (r *VerifyPaymentRequest) Normalize() {
	if r.OrderID == "" {
		r.OrderID = r.RazorpayOrderID
	}
	if r.PaymentID == "" {
		r.PaymentID = r.RazorpayPaymentID
	}
	if r.Signature == "" {
		r.Signature = r.RazorpaySignature
	}
}
