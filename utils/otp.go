// utils/otp.go
package utils

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	// OTPLifetime is how long a registration code stays valid.
	OTPLifetime = 10 * time.Minute

	maxOTPAttempts  = 5
	otpAttemptsTTL  = 1 * time.Hour
	otpAttemptsKeyP = "otp_attempts:"
)

// ErrTooManyOTPAttempts is returned once a user exceeds the hourly attempt budget.
var ErrTooManyOTPAttempts = errors.New("too many OTP attempts")

// GenerateNumericOTP returns a six digit code in [100000, 999999].
func GenerateNumericOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// ValidateOTPAttempts counts a confirmation attempt for userID. A nil client
// disables throttling.
func ValidateOTPAttempts(ctx context.Context, client *redis.Client, userID string) error {
	if client == nil {
		return nil
	}

	key := otpAttemptsKeyP + userID
	attempts, err := client.Incr(ctx, key).Result()
	if err != nil {
		return err
	}

	// Set expiry if first attempt
	if attempts == 1 {
		client.Expire(ctx, key, otpAttemptsTTL)
	}

	if attempts > maxOTPAttempts {
		return ErrTooManyOTPAttempts
	}

	return nil
}

// ResetOTPAttempts clears the attempt counter after a successful confirmation.
func ResetOTPAttempts(ctx context.Context, client *redis.Client, userID string) {
	if client == nil {
		return
	}
	client.Del(ctx, otpAttemptsKeyP+userID)
}
