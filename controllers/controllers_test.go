package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HSouheill/devzon_backend/middleware"
	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/security"
	"github.com/HSouheill/devzon_backend/services"
	"github.com/HSouheill/devzon_backend/utils"
	"github.com/HSouheill/devzon_backend/websocket"
)

const testSecret = "rzp_test_secret"

type structValidator struct{ v *validator.Validate }

func (s structValidator) Validate(i interface{}) error { return s.v.Struct(i) }

type testServer struct {
	e             *echo.Echo
	db            *memDB
	sessions      *middleware.Sessions
	verifier      *security.SignatureVerifier
	upstreamCalls *int64
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	var calls int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		switch {
		case strings.HasPrefix(r.URL.Path, "/create/"):
			w.Write([]byte(`{"success":true,"payment_id":"plink_77","qr_image_url":"/qr/plink_77.png","payment_link":"https://rzp.io/i/77"}`))
		case strings.HasPrefix(r.URL.Path, "/check/"):
			w.Write([]byte(`{"status":"paid","phone":"9350897403"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(upstream.Close)

	db := newMemDB()
	verifier := security.NewSignatureVerifier(testSecret)
	sessions := middleware.NewSessions("jwt-test-secret", false)
	hub := websocket.NewHub()

	gate := services.NewQuotaGate(db.keyStore(), hub)
	proxy := services.NewProxyService(gate, services.NewPaylinkService(upstream.URL, "9350897403"))
	issuer := services.NewKeyIssuer(verifier, security.NewKeyGenerator(), db.orderStore(), db.userStore(), db.keyStore(), db, hub)
	accounts := services.NewAccountService(db.userStore(), nil, nil)

	e := echo.New()
	e.Validator = structValidator{validator.New()}
	e.HTTPErrorHandler = HTTPErrorHandler

	auth := NewAuthController(accounts, sessions)
	payment := NewPaymentController(nil, issuer)
	keys := NewKeyController(services.NewKeyService(db.keyStore()), hub, nil)
	proxyCtrl := NewProxyController(proxy, "https://pay.devzon.in")

	s := sessions.SessionMiddleware()
	e.POST("/api/auth/login", auth.Login, s)
	e.POST("/api/auth/logout", auth.Logout, s)
	e.GET("/api/auth/me", auth.Me, s)
	e.GET("/api/auth/check", auth.CheckAvailability, s)
	e.GET("/api/plans", payment.Plans, s)
	e.POST("/api/razorpay/verify", payment.Verify, s)
	e.GET("/api/keys/my", keys.MyKeys, s)
	e.GET("/api/keys/check", keys.CheckKey, s)
	e.GET("/api/create", proxyCtrl.CreateQR)
	e.GET("/api/create/:slug", proxyCtrl.CreateQRFromSlug)
	e.GET("/api/check/:id", proxyCtrl.CheckStatus)

	return &testServer{e: e, db: db, sessions: sessions, verifier: verifier, upstreamCalls: &calls}
}

func (ts *testServer) do(t *testing.T, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) sessionFor(t *testing.T, u *models.User) *http.Cookie {
	t.Helper()
	token, _, err := ts.sessions.GenerateJWT(u.ID.Hex(), u.Email)
	require.NoError(t, err)
	return &http.Cookie{Name: middleware.SessionCookie, Value: token}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestProxy_ExhaustedKeyIsRejectedWithoutUpstreamCall(t *testing.T) {
	ts := newTestServer(t)
	ts.db.putKey(&models.APIKey{Key: "DEVZ_ZERO", Remaining: int64Ptr(0), ExpiresAt: time.Now().Add(time.Hour)})

	rec := ts.do(t, http.MethodGet, "/api/create?api_key=DEVZ_ZERO&amount=10", "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, map[string]interface{}{"success": false, "error": "Usage limit reached"}, decode(t, rec))
	assert.Zero(t, atomic.LoadInt64(ts.upstreamCalls))
}

func TestProxy_QueryRouteJSON(t *testing.T) {
	ts := newTestServer(t)
	ts.db.putKey(&models.APIKey{Key: "DEVZ_OK", Remaining: int64Ptr(5), ExpiresAt: time.Now().Add(time.Hour)})

	rec := ts.do(t, http.MethodGet, "/api/create?key=DEVZ_OK&amount=25&format=json", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "plink_77", body["link_id"])
	assert.Equal(t, "https://pay.devzon.in/api/create/DEVZ_OK&25", body["qr_png_url"])
	assert.Equal(t, float64(4), body["remaining_after"])
	assert.Equal(t, int64(4), ts.db.remaining("DEVZ_OK"))
}

func TestProxy_SlugRouteRendersPNG(t *testing.T) {
	ts := newTestServer(t)
	ts.db.putKey(&models.APIKey{Key: "DEVZ_OK", Remaining: int64Ptr(5), ExpiresAt: time.Now().Add(time.Hour)})

	rec := ts.do(t, http.MethodGet, "/api/create/DEVZ_OK&25?render=local&size=128", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="plink_77.png"`)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "\x89PNG"))
}

func TestProxy_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		target  string
		message string
	}{
		{"/api/create?amount=10", "Missing api_key"},
		{"/api/create?api_key=DEVZ_X", "Missing amount"},
		{"/api/create/DEVZ_X", "Path must be /api/create/<api_key>&<amount>"},
		{"/api/create?api_key=DEVZ_X&amount=1&size=big", "Invalid size"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.target, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decode(t, rec)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, tt.message, body["error"])
		})
	}
	assert.Zero(t, atomic.LoadInt64(ts.upstreamCalls))
}

func TestProxy_UnknownKey(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/create?api_key=DEVZ_NOPE&amount=10", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Invalid API key", decode(t, rec)["error"])
}

func TestProxy_CheckStatus(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/check/plink_77.png", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "paid", body["status"])
	assert.Equal(t, "devx-pay-wrapper", body["via"])
	assert.NotContains(t, body, "phone")
}

func TestVerify_IssuesKeyForSession(t *testing.T) {
	ts := newTestServer(t)
	user := ts.db.putUser(&models.User{Email: "ravi@devzon.in", Phone: "+919350897403"})
	_ = ts.db.orderStore().Create(context.Background(), &models.Order{OrderID: "order_A", PlanID: "starter", Amount: 400, Status: models.OrderStatusCreated})

	body := `{"razorpay_order_id":"order_A","razorpay_payment_id":"pay_A","razorpay_signature":"` +
		ts.verifier.Sign("order_A", "pay_A") + `","planId":"starter"}`

	rec := ts.do(t, http.MethodPost, "/api/razorpay/verify", body, ts.sessionFor(t, user))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	first := decode(t, rec)
	assert.Equal(t, true, first["ok"])
	assert.Regexp(t, `^DEVZ_[0-9A-F]{24}$`, first["generatedKey"])
	assert.Equal(t, "Starter", first["plan"])

	rec = ts.do(t, http.MethodPost, "/api/razorpay/verify", body, ts.sessionFor(t, user))
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode(t, rec)
	assert.Equal(t, first["generatedKey"], second["generatedKey"])
	assert.Equal(t, true, second["replayed"])
}

func TestVerify_Failures(t *testing.T) {
	ts := newTestServer(t)
	_ = ts.db.orderStore().Create(context.Background(), &models.Order{OrderID: "order_B", PlanID: "daily", Amount: 49, Status: models.OrderStatusCreated})

	rec := ts.do(t, http.MethodPost, "/api/razorpay/verify", `{"order_id":"order_B","payment_id":"pay_B","signature":"deadbeef","planId":"daily"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid signature", decode(t, rec)["error"])

	signed := `{"order_id":"order_B","payment_id":"pay_B","signature":"` + ts.verifier.Sign("order_B", "pay_B") + `","planId":"daily"}`
	rec = ts.do(t, http.MethodPost, "/api/razorpay/verify", signed)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthenticated", decode(t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/razorpay/verify", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON", decode(t, rec)["error"])
}

func TestAuth_LoginMeLogout(t *testing.T) {
	ts := newTestServer(t)
	hash, err := utils.HashPassword("hunter22")
	require.NoError(t, err)
	ts.db.putUser(&models.User{Email: "ravi@devzon.in", Username: "ravi", PasswordHash: hash, Verified: true})

	rec := ts.do(t, http.MethodGet, "/api/auth/me", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decode(t, rec)["user"])

	rec = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"ravi@devzon.in","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid password", decode(t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"ravi@devzon.in"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing fields", decode(t, rec)["error"])

	rec = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"ravi@devzon.in","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)

	rec = ts.do(t, http.MethodGet, "/api/auth/me", "", session)
	me, ok := decode(t, rec)["user"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ravi@devzon.in", me["email"])
	assert.NotContains(t, me, "passwordHash")

	rec = ts.do(t, http.MethodPost, "/api/auth/logout", "", session)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestAuth_CheckAvailability(t *testing.T) {
	ts := newTestServer(t)
	ts.db.putUser(&models.User{Email: "taken@devzon.in", Username: "taken"})

	rec := ts.do(t, http.MethodGet, "/api/auth/check?field=username&value=taken", "")
	assert.Equal(t, map[string]interface{}{"available": false}, decode(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/auth/check?field=username", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing params", decode(t, rec)["error"])
}

func TestKeys_MyKeysAndCheck(t *testing.T) {
	ts := newTestServer(t)
	user := ts.db.putUser(&models.User{Email: "ravi@devzon.in"})
	ts.db.putKey(&models.APIKey{Key: "DEVZ_MINE", OwnerID: &user.ID, Remaining: int64Ptr(9)})

	rec := ts.do(t, http.MethodGet, "/api/keys/my", "")
	assert.Equal(t, map[string]interface{}{"keys": []interface{}{}}, decode(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/keys/my", "", ts.sessionFor(t, user))
	keys := decode(t, rec)["keys"].([]interface{})
	require.Len(t, keys, 1)
	assert.Equal(t, "DEVZ_MINE", keys[0].(map[string]interface{})["key"])

	rec = ts.do(t, http.MethodGet, "/api/keys/check?key=DEVZ_MINE", "")
	assert.Equal(t, map[string]interface{}{"exists": true, "key": "DEVZ_MINE"}, decode(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/keys/check?key=DEVZ_NONE", "")
	assert.Equal(t, map[string]interface{}{"exists": false, "key": nil}, decode(t, rec))

	rec = ts.do(t, http.MethodGet, "/api/keys/check", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPlans(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/plans", "")
	plans := decode(t, rec)["plans"].([]interface{})
	require.Len(t, plans, 3)
	assert.Equal(t, "daily", plans[0].(map[string]interface{})["id"])
}

func TestHTTPErrorHandler(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "Not Found"}, decode(t, rec))

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	HTTPErrorHandler(utils.NewGoneError("OTP expired"), c)
	assert.Equal(t, http.StatusGone, c.Response().Status)
}
