package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/devzon_backend/utils"
)

// respondError writes err as {error, field?, ...extra}
func respondError(c echo.Context, err error) error {
	appErr := utils.AsAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	body := map[string]interface{}{"error": appErr.Message}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	for k, v := range appErr.Extra {
		body[k] = v
	}
	return c.JSON(appErr.Status, body)
}

// respondProxyError writes err as {success:false, error, ...extra}, the shape
// API consumers of the QR proxy expect.
func respondProxyError(c echo.Context, err error) error {
	appErr := utils.AsAppError(err)
	if appErr.Status >= http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	}

	body := map[string]interface{}{"success": false, "error": appErr.Message}
	for k, v := range appErr.Extra {
		body[k] = v
	}
	return c.JSON(appErr.Status, body)
}

// bindJSON decodes and validates a request body
func bindJSON(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return utils.NewValidationError("Invalid JSON")
	}
	if c.Echo().Validator != nil {
		if err := c.Validate(req); err != nil {
			return utils.NewValidationError("Missing fields")
		}
	}
	return nil
}

// HTTPErrorHandler renders errors that escaped a handler as JSON
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Server error"

	var he *echo.HTTPError
	var appErr *utils.AppError
	switch {
	case errors.As(err, &appErr):
		status = appErr.Status
		message = appErr.Message
	case errors.As(err, &he):
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	default:
		log.Printf("Unhandled error on %s: %v", c.Request().URL.Path, err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, map[string]string{"error": message})
	}
	if err != nil {
		log.Printf("Failed to write error response: %v", err)
	}
}
