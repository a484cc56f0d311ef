package models

// CreateLinkResponse is the upstream provider's payment link creation payload
type CreateLinkResponse struct {
	Success     bool   `json:"success"`
	PaymentID   string `json:"payment_id"`
	LinkID      string `json:"link_id"`
	QRImageURL  string `json:"qr_image_url"`
	PaymentLink string `json:"payment_link"`
}

// ResolvedLinkID prefers payment_id, which the provider fills with the plink_ id
func (r *CreateLinkResponse) ResolvedLinkID() string {
	if r.PaymentID != "" {
		return r.PaymentID
	}
	return r.LinkID
}

// CreatedLink is the JSON summary returned by the key-gated create endpoints
type CreatedLink struct {
	Success             bool    `json:"success"`
	LinkID              string  `json:"link_id"`
	// QRPngURL is the key-gated slug route; fetching it spends another unit.
	QRPngURL            string  `json:"qr_png_url"`
	UpstreamQRPath      string  `json:"upstream_qr_path"`
	UpstreamPaymentLink *string `json:"upstream_payment_link"`
	RemainingAfter      int64   `json:"remaining_after"`
}
