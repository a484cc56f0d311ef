package services

import (
	"context"
	"log"
	"math"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/utils"
)

const defaultCurrency = "INR"

// OrderGateway creates orders at the payment gateway
type OrderGateway interface {
	CreateOrder(ctx context.Context, order models.RazorpayOrderRequest) (*models.RazorpayOrder, error)
}

// CheckoutService starts checkouts and records them as orders
type CheckoutService struct {
	gateway OrderGateway
	orders  OrderStore
	now     func() time.Time
	logger  *log.Logger
}

func NewCheckoutService(gateway OrderGateway, orders OrderStore) *CheckoutService {
	return &CheckoutService{
		gateway: gateway,
		orders:  orders,
		now:     time.Now,
		logger:  log.New(os.Stdout, "[CHECKOUT] ", log.LstdFlags),
	}
}

// CreateOrder creates a gateway order and stores it as "created". When a plan
// id is given its catalog price is charged whatever amount was requested.
func (s *CheckoutService) CreateOrder(ctx context.Context, req models.CreateOrderRequest, userID *primitive.ObjectID) (*models.Order, error) {
	amount := req.Amount
	description := strings.TrimSpace(req.Description)

	if req.PlanID != "" {
		plan, ok := models.LookupPlan(req.PlanID)
		if !ok {
			return nil, utils.NewValidationError("Unknown plan")
		}
		amount = plan.Price
		if description == "" {
			description = plan.Title + " plan"
		}
	}
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return nil, utils.NewValidationError("Invalid amount")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	if description == "" {
		description = "DevzON purchase"
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, models.RazorpayOrderRequest{
		Amount:         int64(math.Round(amount * 100)),
		Currency:       currency,
		Receipt:        newReceipt(),
		PaymentCapture: true,
		Notes:          map[string]string{"planId": req.PlanID},
	})
	if err != nil {
		s.logger.Printf("Gateway order creation failed: %v", err)
		return nil, utils.NewInternalError("Failed to create order", err)
	}

	order := &models.Order{
		ID:            primitive.NewObjectID(),
		OrderID:       gwOrder.ID,
		UserID:        userID,
		PlanID:        req.PlanID,
		Amount:        amount,
		Currency:      currency,
		Description:   description,
		Status:        models.OrderStatusCreated,
		RazorpayOrder: gwOrder,
		CreatedAt:     s.now(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, utils.NewInternalError("Failed to save order", err)
	}

	s.logger.Printf("Created order %s for %.2f %s", order.OrderID, amount, currency)
	return order, nil
}

// newReceipt returns a receipt id within the gateway's 40 character limit.
func newReceipt() string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "rcpt_" + id[:24]
}
