package websocket

import (
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// HandleWebSocket upgrades the request and subscribes it to userID's events.
// The caller guarantees the session is authenticated.
func HandleWebSocket(c echo.Context, hub *Hub, userID string, allowedOrigins []string) error {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
				return true
			}
			for _, allowed := range allowedOrigins {
				if allowed == "*" || allowed == origin {
					return true
				}
			}
			return false
		},
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(userID, conn)
	client.send <- Notification{
		Type:    "connected",
		Message: "WebSocket connection established",
		UserID:  userID,
	}
	if !hub.add(client) {
		conn.Close()
		return nil
	}

	go client.writePump()
	go client.readPump(hub)

	return nil
}
