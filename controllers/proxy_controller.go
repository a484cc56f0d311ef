package controllers

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/devzon_backend/services"
	"github.com/HSouheill/devzon_backend/utils"
)

// ProxyController exposes the key-gated payment QR API
type ProxyController struct {
	proxy         *services.ProxyService
	publicBaseURL string
}

// NewProxyController creates the controller. An empty publicBaseURL makes
// generated links use the request's own scheme and host.
func NewProxyController(proxy *services.ProxyService, publicBaseURL string) *ProxyController {
	return &ProxyController{proxy: proxy, publicBaseURL: publicBaseURL}
}

// CreateQR handles GET /api/create?api_key=&amount=
func (pc *ProxyController) CreateQR(c echo.Context) error {
	apiKey := c.QueryParam("api_key")
	if apiKey == "" {
		apiKey = c.QueryParam("key")
	}
	if apiKey == "" {
		return respondProxyError(c, utils.NewValidationError("Missing api_key"))
	}
	return pc.create(c, apiKey, c.QueryParam("amount"))
}

// CreateQRFromSlug handles GET /api/create/<api_key>&<amount>
func (pc *ProxyController) CreateQRFromSlug(c echo.Context) error {
	slug := c.Param("slug")
	if unescaped, err := url.PathUnescape(slug); err == nil {
		slug = unescaped
	}

	apiKey, amount, ok := strings.Cut(slug, "&")
	if !ok || apiKey == "" || amount == "" {
		return respondProxyError(c, utils.NewValidationError("Path must be /api/create/<api_key>&<amount>"))
	}
	return pc.create(c, apiKey, amount)
}

func (pc *ProxyController) create(c echo.Context, apiKey, amount string) error {
	size := 0
	if raw := c.QueryParam("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return respondProxyError(c, utils.NewValidationError("Invalid size").With("size", raw))
		}
		size = n
	}

	result, err := pc.proxy.CreateQR(c.Request().Context(), services.QRRequest{
		APIKey:      apiKey,
		Amount:      amount,
		JSON:        c.QueryParam("format") == "json",
		RenderLocal: c.QueryParam("render") == "local",
		Size:        size,
		BaseURL:     pc.baseURL(c),
	})
	if err != nil {
		return respondProxyError(c, err)
	}

	if result.Link != nil {
		return c.JSON(http.StatusOK, result.Link)
	}

	h := c.Response().Header()
	h.Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", result.Filename))
	h.Set("Cache-Control", "no-store")
	return c.Blob(http.StatusOK, "image/png", result.PNG)
}

// CheckStatus handles GET /api/check/:id
func (pc *ProxyController) CheckStatus(c echo.Context) error {
	status, payload, err := pc.proxy.CheckStatus(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondProxyError(c, err)
	}
	return c.JSON(status, payload)
}

func (pc *ProxyController) baseURL(c echo.Context) string {
	if pc.publicBaseURL != "" {
		return pc.publicBaseURL
	}
	return c.Scheme() + "://" + c.Request().Host
}
