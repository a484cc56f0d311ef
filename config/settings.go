// config/settings.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	defaultDBName      = "devzon"
	defaultPort        = "8080"
	defaultPaylinkBase = "https://pay.devxjin.site"
	defaultPaylinkTel  = "9350897403"
	defaultRazorpayAPI = "https://api.razorpay.com/v1/"
)

// Settings holds everything read from the environment at startup
type Settings struct {
	Port            string
	JWTSecret       string
	RazorpayKeyID   string
	RazorpaySecret  string
	RazorpayBaseURL string
	MongoURI        string
	DBName          string
	UseTransactions bool
	PaylinkBaseURL  string
	PaylinkPhone    string
	PublicBaseURL   string
	CookieSecure    bool
	CORSOrigins     []string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	SMTP            SMTPSettings
}

// SMTPSettings configures outgoing mail; an empty Host disables sending
type SMTPSettings struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Enabled reports whether enough SMTP settings are present to send mail
func (s SMTPSettings) Enabled() bool {
	return s.Host != "" && s.User != "" && s.Pass != "" && s.From != ""
}

// MissingConfigError lists the required variables that were not set
type MissingConfigError struct {
	Keys []string
}

func (e *MissingConfigError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", strings.Join(e.Keys, ", "))
}

// LoadSettings reads Settings from the environment. JWT_SECRET,
// RAZORPAY_KEY_SECRET and MONGODB_URI (or MONGO_URI) are required.
func LoadSettings() (*Settings, error) {
	s := &Settings{
		Port:            envOr("PORT", defaultPort),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RazorpayKeyID:   os.Getenv("RAZORPAY_KEY_ID"),
		RazorpaySecret:  os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayBaseURL: envOr("RAZORPAY_API_URL", defaultRazorpayAPI),
		MongoURI:        os.Getenv("MONGODB_URI"),
		DBName:          envOr("DB_NAME", defaultDBName),
		UseTransactions: envBool("MONGO_TRANSACTIONS", true),
		PaylinkBaseURL:  strings.TrimRight(envOr("PAYLINK_BASE_URL", defaultPaylinkBase), "/"),
		PaylinkPhone:    envOr("PAYLINK_PHONE", defaultPaylinkTel),
		PublicBaseURL:   strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/"),
		CookieSecure:    envBool("COOKIE_SECURE", false),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		SMTP: SMTPSettings{
			Host: os.Getenv("SMTP_HOST"),
			Port: envInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: os.Getenv("FROM_EMAIL"),
		},
	}
	if s.MongoURI == "" {
		s.MongoURI = os.Getenv("MONGO_URI")
	}
	if s.SMTP.From == "" {
		s.SMTP.From = s.SMTP.User
	}
	s.RedisDB = envInt("REDIS_DB", 0)

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				s.CORSOrigins = append(s.CORSOrigins, trimmed)
			}
		}
	}

	var missing []string
	if s.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if s.RazorpaySecret == "" {
		missing = append(missing, "RAZORPAY_KEY_SECRET")
	}
	if s.MongoURI == "" {
		missing = append(missing, "MONGODB_URI")
	}
	if len(missing) > 0 {
		return nil, &MissingConfigError{Keys: missing}
	}

	return s, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
