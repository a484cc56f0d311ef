package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/HSouheill/devzon_backend/models"
)

// RazorpayService handles interactions with the Razorpay Orders API
type RazorpayService struct {
	baseURL string
	keyID   string
	secret  string
	client  *http.Client
	logger  *log.Logger
}

// NewRazorpayService creates a gateway client. An empty keyID leaves the
// service unable to create orders but lets callbacks still be verified.
func NewRazorpayService(baseURL, keyID, secret string) *RazorpayService {
	logger := log.New(os.Stdout, "[RAZORPAY] ", log.LstdFlags)
	if keyID == "" {
		logger.Printf("WARNING: RAZORPAY_KEY_ID is not set, order creation is disabled")
	}
	return &RazorpayService{
		baseURL: baseURL,
		keyID:   keyID,
		secret:  secret,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Configured reports whether orders can be created
func (s *RazorpayService) Configured() bool {
	return s.keyID != "" && s.secret != ""
}

// CreateOrder creates a gateway order
func (s *RazorpayService) CreateOrder(ctx context.Context, order models.RazorpayOrderRequest) (*models.RazorpayOrder, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("missing Razorpay credentials, set RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET")
	}

	var created models.RazorpayOrder
	if err := s.makeRequest(ctx, http.MethodPost, "orders", order, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// makeRequest performs an authenticated call and decodes a 2xx body into out
func (s *RazorpayService) makeRequest(ctx context.Context, method, endpoint string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(s.keyID, s.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gwErr models.RazorpayErrorResponse
		if json.Unmarshal(respBody, &gwErr) == nil && gwErr.Error.Description != "" {
			s.logger.Printf("Gateway error: code=%s description=%s", gwErr.Error.Code, gwErr.Error.Description)
			return fmt.Errorf("razorpay API error: %s - %s", gwErr.Error.Code, gwErr.Error.Description)
		}
		return fmt.Errorf("razorpay API error: status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
