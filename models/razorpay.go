package models

// RazorpayOrderRequest is the body of a gateway order creation call
type RazorpayOrderRequest struct {
	Amount         int64             `json:"amount"` // smallest currency unit
	Currency       string            `json:"currency"`
	Receipt        string            `json:"receipt"`
	PaymentCapture bool              `json:"payment_capture"`
	Notes          map[string]string `json:"notes,omitempty"`
}

// RazorpayOrder is the gateway's order object, echoed into our order record
type RazorpayOrder struct {
	ID         string            `json:"id" bson:"id"`
	Entity     string            `json:"entity,omitempty" bson:"entity,omitempty"`
	Amount     int64             `json:"amount" bson:"amount"`
	AmountPaid int64             `json:"amount_paid" bson:"amount_paid"`
	AmountDue  int64             `json:"amount_due" bson:"amount_due"`
	Currency   string            `json:"currency" bson:"currency"`
	Receipt    string            `json:"receipt" bson:"receipt"`
	Status     string            `json:"status" bson:"status"`
	Attempts   int               `json:"attempts" bson:"attempts"`
	Notes      map[string]string `json:"notes,omitempty" bson:"notes,omitempty"`
	CreatedAt  int64             `json:"created_at" bson:"created_at"`
}

// RazorpayErrorResponse is the gateway's error envelope
type RazorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
		Field       string `json:"field,omitempty"`
	} `json:"error"`
}
