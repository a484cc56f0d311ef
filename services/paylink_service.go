package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/utils"
)

const (
	createTimeout = 60 * time.Second
	statusTimeout = 30 * time.Second
	maxQRBytes    = 5 << 20
)

// PaylinkService talks to the payment-link provider. It never retries.
type PaylinkService struct {
	baseURL string
	phone   string
	client  *http.Client
	logger  *log.Logger
}

// NewPaylinkService creates a client for baseURL. phone is the fixed merchant
// phone sent with every create call.
func NewPaylinkService(baseURL, phone string) *PaylinkService {
	return &PaylinkService{
		baseURL: baseURL,
		phone:   phone,
		client:  &http.Client{},
		logger:  log.New(os.Stdout, "[PAYLINK] ", log.LstdFlags),
	}
}

// CreateLink asks the provider for a new payment link for amount
func (s *PaylinkService) CreateLink(ctx context.Context, apiKey string, amount float64) (*models.CreateLinkResponse, error) {
	q := url.Values{}
	q.Set("key", apiKey)
	q.Set("amount", strconv.FormatFloat(amount, 'f', -1, 64))
	if s.phone != "" {
		q.Set("phone", s.phone)
	}

	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	status, body, err := s.get(ctx, "/create/api_key?"+q.Encode(), 1<<20)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		s.logger.Printf("Create returned status %d", status)
		return nil, utils.NewUpstreamError("Upstream error", nil).With("status", status)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, utils.NewUpstreamError("Non-JSON upstream response", err).With("status", status)
	}

	var payload models.CreateLinkResponse
	if err := json.Unmarshal(body, &payload); err != nil || !payload.Success {
		return nil, utils.NewUpstreamError("Create failed", err).With("detail", RedactPhones(raw))
	}
	if payload.ResolvedLinkID() == "" || payload.QRImageURL == "" {
		return nil, utils.NewUpstreamError("Malformed upstream response", nil).With("detail", RedactPhones(raw))
	}
	return &payload, nil
}

// FetchQR downloads the provider's PNG for a created link
func (s *PaylinkService) FetchQR(ctx context.Context, qrPath string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, createTimeout)
	defer cancel()

	status, body, err := s.get(ctx, qrPath, maxQRBytes)
	if err != nil {
		if appErr := utils.AsAppError(err); appErr.Extra["timeout"] == true {
			return nil, err
		}
		return nil, utils.NewUpstreamError("QR fetch failed", err)
	}
	if status < 200 || status > 299 {
		return nil, utils.NewUpstreamError("QR fetch failed", nil).With("status", status)
	}
	return body, nil
}

// CheckStatus fetches a link's payment status. The decoded payload is
// returned with phone numbers removed and tagged with the wrapper marker. The
// upstream status code is passed through.
func (s *PaylinkService) CheckStatus(ctx context.Context, linkID string) (int, map[string]interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, statusTimeout)
	defer cancel()

	status, body, err := s.get(ctx, "/check/"+url.PathEscape(linkID), 1<<20)
	if err != nil {
		return 0, nil, err
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, nil, utils.NewUpstreamError("Non-JSON upstream response", err).With("status", status)
	}
	if payload == nil {
		payload = map[string]interface{}{}
	}
	RedactPhones(payload)

	payload["via"] = "devx-pay-wrapper"
	payload["statusCode"] = status
	return status, payload, nil
}

func (s *PaylinkService) get(ctx context.Context, path string, limit int64) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return 0, nil, utils.NewUpstreamError("Upstream error", fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			s.logger.Printf("Request to %s timed out", redactQuery(path))
			return 0, nil, utils.NewUpstreamError("Upstream timeout", err).With("timeout", true)
		}
		return 0, nil, utils.NewUpstreamError("Upstream error", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		if isTimeout(err) {
			return 0, nil, utils.NewUpstreamError("Upstream timeout", err).With("timeout", true)
		}
		return 0, nil, utils.NewUpstreamError("Upstream error", fmt.Errorf("failed to read response: %w", err))
	}
	return resp.StatusCode, body, nil
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// redactQuery keeps API keys out of the logs.
func redactQuery(path string) string {
	u, err := url.Parse(path)
	if err != nil {
		return "?"
	}
	return u.Path
}
