package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func dial(t *testing.T, hub *Hub, userID string, origins []string, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	e := echo.New()
	e.GET("/ws", func(c echo.Context) error {
		return HandleWebSocket(c, hub, userID, origins)
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", header)
}

func TestHub_PublishReachesUserConnections(t *testing.T) {
	hub, _ := startHub(t)

	conn, _, err := dial(t, hub, "user-1", nil, nil)
	require.NoError(t, err)
	defer conn.Close()

	var welcome Notification
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "connected", welcome.Type)
	assert.Equal(t, "user-1", welcome.UserID)

	require.Eventually(t, func() bool { return hub.Connections("user-1") == 1 }, time.Second, 10*time.Millisecond)

	hub.Publish("user-2", "api_key_issued", map[string]string{"key": "DEVZ_OTHER"})
	hub.Publish("user-1", "api_key_issued", map[string]string{"key": "DEVZ_MINE"})

	var got Notification
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "api_key_issued", got.Type)
	assert.Equal(t, map[string]interface{}{"key": "DEVZ_MINE"}, got.Data)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, _ := startHub(t)

	conn, _, err := dial(t, hub, "user-1", nil, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Connections("user-1") == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Connections("user-1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_StopClosesClients(t *testing.T) {
	hub, cancel := startHub(t)

	conn, _, err := dial(t, hub, "user-1", nil, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Connections("user-1") == 1 }, time.Second, 10*time.Millisecond)

	cancel()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var welcome Notification
	require.NoError(t, conn.ReadJSON(&welcome))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Connections("user-1") == 0 }, time.Second, 10*time.Millisecond)

	// Publishing after shutdown is a no-op.
	hub.Publish("user-1", "quota_exhausted", nil)
}

func TestHandleWebSocket_Origins(t *testing.T) {
	hub, _ := startHub(t)

	header := http.Header{}
	header.Set("Origin", "https://evil.example")
	_, resp, err := dial(t, hub, "user-1", []string{"https://devzon.in"}, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "https://devzon.in")
	conn, _, err := dial(t, hub, "user-1", []string{"https://devzon.in"}, header)
	require.NoError(t, err)
	conn.Close()
}
