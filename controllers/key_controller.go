package controllers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/devzon_backend/middleware"
	"github.com/HSouheill/devzon_backend/services"
	"github.com/HSouheill/devzon_backend/websocket"
)

// KeyController serves the dashboard's key endpoints
type KeyController struct {
	keys    *services.KeyService
	hub     *websocket.Hub
	origins []string
}

func NewKeyController(keys *services.KeyService, hub *websocket.Hub, origins []string) *KeyController {
	return &KeyController{keys: keys, hub: hub, origins: origins}
}

// MyKeys lists the session user's keys; anonymous callers get an empty list
func (kc *KeyController) MyKeys(c echo.Context) error {
	keys, err := kc.keys.ListForOwner(c.Request().Context(), middleware.GetUserIDFromToken(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"keys": keys})
}

// CheckKey reports whether a key exists
func (kc *KeyController) CheckKey(c echo.Context) error {
	key := strings.TrimSpace(c.QueryParam("key"))
	if key == "" {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{"exists": false})
	}

	exists, err := kc.keys.Exists(c.Request().Context(), key)
	if err != nil {
		return respondError(c, err)
	}

	var echoed interface{}
	if exists {
		echoed = key
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"exists": exists, "key": echoed})
}

// Events streams the session user's key events over a websocket
func (kc *KeyController) Events(c echo.Context) error {
	return websocket.HandleWebSocket(c, kc.hub, middleware.GetUserIDFromToken(c), kc.origins)
}
