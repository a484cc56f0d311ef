package services

import (
	"context"
	"log"
	"math"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/utils"
)

// QRRequest is a key-gated request for a new payment QR
type QRRequest struct {
	APIKey string
	Amount string
	// JSON selects the link summary instead of the PNG.
	JSON bool
	// RenderLocal draws the QR from the payment link instead of fetching the
	// provider's image.
	RenderLocal bool
	// Size is the PNG edge length in pixels; zero keeps the provider's size.
	Size int
	// BaseURL is the public origin used to build qr_png_url.
	BaseURL string
}

// QRResult holds either a PNG or a JSON summary
type QRResult struct {
	PNG      []byte
	Filename string
	Link     *models.CreatedLink
}

// Paylink is the payment-link provider client
type Paylink interface {
	CreateLink(ctx context.Context, apiKey string, amount float64) (*models.CreateLinkResponse, error)
	FetchQR(ctx context.Context, qrPath string) ([]byte, error)
	CheckStatus(ctx context.Context, linkID string) (int, map[string]interface{}, error)
}

// ProxyService fronts the provider with API key quotas
type ProxyService struct {
	gate    *QuotaGate
	paylink Paylink
	logger  *log.Logger
}

func NewProxyService(gate *QuotaGate, paylink Paylink) *ProxyService {
	return &ProxyService{
		gate:    gate,
		paylink: paylink,
		logger:  log.New(os.Stdout, "[PROXY] ", log.LstdFlags),
	}
}

// ParseAmount accepts a positive finite decimal amount
func ParseAmount(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, utils.NewValidationError("Missing amount")
	}
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return 0, utils.NewValidationError("Invalid amount").With("amount", raw)
	}
	return amount, nil
}

// CreateQR spends one unit of the key's quota and creates a payment link.
// The provider is only contacted after the unit was spent.
func (s *ProxyService) CreateQR(ctx context.Context, req QRRequest) (*QRResult, error) {
	if strings.TrimSpace(req.APIKey) == "" {
		return nil, utils.NewValidationError("Missing api_key")
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	apiKey, err := s.gate.Consume(ctx, req.APIKey)
	if err != nil {
		return nil, err
	}
	_, remaining := apiKey.RemainingField()

	created, err := s.paylink.CreateLink(ctx, apiKey.Key, amount)
	if err != nil {
		s.logger.Printf("Create failed for key %s: %v", maskKey(apiKey.Key), err)
		return nil, err
	}
	linkID := created.ResolvedLinkID()

	if req.JSON {
		var paymentLink *string
		if created.PaymentLink != "" {
			link := created.PaymentLink
			paymentLink = &link
		}
		amountStr := strconv.FormatFloat(amount, 'f', -1, 64)
		return &QRResult{Link: &models.CreatedLink{
			Success:             true,
			LinkID:              linkID,
			QRPngURL:            req.BaseURL + "/api/create/" + url.PathEscape(apiKey.Key) + "&" + url.PathEscape(amountStr),
			UpstreamQRPath:      created.QRImageURL,
			UpstreamPaymentLink: paymentLink,
			RemainingAfter:      remaining,
		}}, nil
	}

	var png []byte
	if req.RenderLocal && created.PaymentLink != "" {
		png, err = RenderQR(created.PaymentLink, req.Size)
		if err != nil {
			return nil, utils.NewInternalError("Failed to render QR", err)
		}
	} else {
		png, err = s.paylink.FetchQR(ctx, created.QRImageURL)
		if err != nil {
			return nil, err
		}
		if req.Size > 0 {
			resized, rerr := ResizePNG(png, req.Size)
			if rerr != nil {
				// Serve the provider's image unchanged.
				s.logger.Printf("Resize failed for %s: %v", linkID, rerr)
			} else {
				png = resized
			}
		}
	}

	return &QRResult{PNG: png, Filename: linkID + ".png"}, nil
}

// CheckStatus forwards a status lookup. A trailing ".png" on the id is dropped.
func (s *ProxyService) CheckStatus(ctx context.Context, rawID string) (int, map[string]interface{}, error) {
	id := rawID
	if decoded, err := url.PathUnescape(rawID); err == nil {
		id = decoded
	}
	id = utils.StripPngExt(strings.TrimSpace(id))
	if id == "" {
		return 0, nil, utils.NewValidationError("Missing link id")
	}
	return s.paylink.CheckStatus(ctx, id)
}
