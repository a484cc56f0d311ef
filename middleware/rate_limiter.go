// middleware/rate_limiter.go
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

type endpointLimit struct {
	limit rate.Limit
	burst int
}

type RateLimiter struct {
	ips            map[string]*rate.Limiter
	blockedIPs     map[string]time.Time
	mu             *sync.RWMutex
	defaultLimit   rate.Limit
	defaultBurst   int
	blockDuration  time.Duration
	endpointLimits map[string]endpointLimit
	stop           chan struct{}
	stopOnce       sync.Once
}

func NewRateLimiter() *RateLimiter {
	limiter := &RateLimiter{
		ips:            make(map[string]*rate.Limiter),
		blockedIPs:     make(map[string]time.Time),
		mu:             &sync.RWMutex{},
		defaultLimit:   rate.Every(100 * time.Millisecond), // 10 requests per second
		defaultBurst:   20,
		blockDuration:  5 * time.Minute,
		endpointLimits: make(map[string]endpointLimit),
		stop:           make(chan struct{}),
	}

	// Credential endpoints - strict to slow down guessing
	limiter.endpointLimits["/api/auth/login"] = endpointLimit{limit: rate.Every(2 * time.Second), burst: 5}
	limiter.endpointLimits["/api/auth/verify"] = endpointLimit{limit: rate.Every(2 * time.Second), burst: 5}
	limiter.endpointLimits["/api/auth/register"] = endpointLimit{limit: rate.Every(500 * time.Millisecond), burst: 5}
	limiter.endpointLimits["/api/auth/resend-otp"] = endpointLimit{limit: rate.Every(10 * time.Second), burst: 3}

	// Checkout callbacks
	limiter.endpointLimits["/api/razorpay/create-order"] = endpointLimit{limit: rate.Every(time.Second), burst: 10}
	limiter.endpointLimits["/api/razorpay/verify"] = endpointLimit{limit: rate.Every(time.Second), burst: 10}

	// The proxy is quota-limited per key already
	limiter.endpointLimits["/api/create"] = endpointLimit{limit: rate.Every(50 * time.Millisecond), burst: 50}
	limiter.endpointLimits["/api/create/:slug"] = endpointLimit{limit: rate.Every(50 * time.Millisecond), burst: 50}
	limiter.endpointLimits["/api/check/:id"] = endpointLimit{limit: rate.Every(50 * time.Millisecond), burst: 50}

	go limiter.cleanupBlockedIPs()

	return limiter
}

// Stop ends the cleanup goroutine
func (r *RateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
}

func (r *RateLimiter) cleanupBlockedIPs() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
		}

		r.mu.Lock()
		now := time.Now()
		for ip, blockUntil := range r.blockedIPs {
			if now.After(blockUntil) {
				delete(r.blockedIPs, ip)
				r.resetLimiters(ip)
			}
		}
		r.mu.Unlock()
	}
}

func (r *RateLimiter) RateLimit() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()

			// Check if IP is blocked and handle expired blocks
			r.mu.Lock()
			if blockUntil, blocked := r.blockedIPs[ip]; blocked {
				if time.Now().Before(blockUntil) {
					r.mu.Unlock()
					return c.JSON(http.StatusTooManyRequests, map[string]string{
						"error":      "IP address blocked due to too many requests",
						"retryAfter": blockUntil.Format(time.RFC3339),
					})
				}
				delete(r.blockedIPs, ip)
				r.resetLimiters(ip)
			}
			r.mu.Unlock()

			path := c.Path()
			limit := r.defaultLimit
			burst := r.defaultBurst
			bucket := ip

			if endpoint, exists := r.endpointLimits[path]; exists {
				limit = endpoint.limit
				burst = endpoint.burst
				bucket = ip + " " + path
			}

			limiter := r.getLimiter(bucket, limit, burst)
			if !limiter.Allow() {
				blockUntil := time.Now().Add(r.blockDuration)
				r.mu.Lock()
				r.blockedIPs[ip] = blockUntil
				r.mu.Unlock()

				return c.JSON(http.StatusTooManyRequests, map[string]string{
					"error":      "Too many requests",
					"retryAfter": blockUntil.Format(time.RFC3339),
				})
			}

			return next(c)
		}
	}
}

// resetLimiters drops every bucket of ip. Caller holds r.mu.
func (r *RateLimiter) resetLimiters(ip string) {
	delete(r.ips, ip)
	for path := range r.endpointLimits {
		delete(r.ips, ip+" "+path)
	}
}

func (r *RateLimiter) getLimiter(bucket string, limit rate.Limit, burst int) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, exists := r.ips[bucket]
	if !exists {
		limiter = rate.NewLimiter(limit, burst)
		r.ips[bucket] = limiter
	}
	return limiter
}
