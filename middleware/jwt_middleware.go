// middleware/jwt_middleware.go
package middleware

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
)

const (
	// SessionCookie is the name of the HTTP-only session cookie.
	SessionCookie = "token"
	// SessionLifetime is how long a login stays valid.
	SessionLifetime = 30 * 24 * time.Hour

	contextUserID = "userId"
	contextEmail  = "email"
)

// JwtCustomClaims for JWT token
type JwtCustomClaims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
	jwt.StandardClaims
}

// Valid checks expiry and not-before
func (c JwtCustomClaims) Valid() error {
	now := time.Now().Unix()
	if c.ExpiresAt > 0 && now > c.ExpiresAt {
		return errors.New("token is expired")
	}
	if c.NotBefore > 0 && now < c.NotBefore {
		return errors.New("token used before valid")
	}
	if c.UserID == "" {
		return errors.New("token has no subject")
	}
	return nil
}

// Sessions issues and reads signed session cookies
type Sessions struct {
	secret []byte
	secure bool
}

// NewSessions creates a session manager. secure marks cookies HTTPS-only.
func NewSessions(secret string, secure bool) *Sessions {
	return &Sessions{secret: []byte(secret), secure: secure}
}

// GenerateJWT signs a session token for the user
func (s *Sessions) GenerateJWT(userID, email string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(SessionLifetime)
	claims := &JwtCustomClaims{
		UserID: userID,
		Email:  email,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  now.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseToken validates a session token and returns its claims
func (s *Sessions) ParseToken(tokenString string) (*JwtCustomClaims, error) {
	claims := &JwtCustomClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// SetSessionCookie logs the user in on the response
func (s *Sessions) SetSessionCookie(c echo.Context, userID, email string) error {
	token, expiresAt, err := s.GenerateJWT(userID, email)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(SessionLifetime.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearSessionCookie logs the user out
func (s *Sessions) ClearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionMiddleware reads the session cookie when present. Requests without a
// valid session continue anonymously.
func (s *Sessions) SessionMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				return next(c)
			}

			claims, err := s.ParseToken(cookie.Value)
			if err != nil {
				log.Printf("Ignoring invalid session on %s: %v", c.Request().URL.Path, err)
				return next(c)
			}

			c.Set(contextUserID, claims.UserID)
			c.Set(contextEmail, claims.Email)
			return next(c)
		}
	}
}

// RequireSession rejects requests that SessionMiddleware left anonymous
func RequireSession() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if GetUserIDFromToken(c) == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthenticated"})
			}
			return next(c)
		}
	}
}

// GetUserIDFromToken returns the session's user id, or "" when anonymous
func GetUserIDFromToken(c echo.Context) string {
	if userID, ok := c.Get(contextUserID).(string); ok {
		return userID
	}
	return ""
}
