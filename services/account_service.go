package services

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/HSouheill/devzon_backend/models"
	"github.com/HSouheill/devzon_backend/repositories"
	"github.com/HSouheill/devzon_backend/utils"
)

// Notifier queues outgoing mail
type Notifier interface {
	Enqueue(msg Email) error
}

// Registration is the result of a successful sign-up
type Registration struct {
	UserID       string
	OTPExpiresAt time.Time
}

// AccountService implements registration, email confirmation and login
type AccountService struct {
	users    UserStore
	notifier Notifier
	redis    *redis.Client
	now      func() time.Time
	logger   *log.Logger
}

// NewAccountService wires the account flows. redisClient may be nil, which
// disables OTP attempt throttling.
func NewAccountService(users UserStore, notifier Notifier, redisClient *redis.Client) *AccountService {
	return &AccountService{
		users:    users,
		notifier: notifier,
		redis:    redisClient,
		now:      time.Now,
		logger:   log.New(os.Stdout, "[AUTH] ", log.LstdFlags),
	}
}

// Register creates an unverified user and mails a confirmation code
func (s *AccountService) Register(ctx context.Context, req models.RegisterRequest) (*Registration, error) {
	name := strings.TrimSpace(req.Name)
	username := utils.NormalizeUsername(req.Username)
	phone := utils.NormalizePhone(req.Phone)
	if name == "" || username == "" || phone == "" || req.Password == "" || strings.TrimSpace(req.Email) == "" {
		return nil, utils.NewValidationError("Missing fields")
	}

	email, err := utils.SanitizeEmail(req.Email)
	if err != nil {
		return nil, utils.NewValidationError("Invalid email")
	}
	if !utils.ValidUsername(username) {
		return nil, utils.NewValidationError("Invalid username. Use 3-30 letters, numbers or _.")
	}
	if !utils.ValidPhone(phone) {
		return nil, utils.NewValidationError("Invalid phone. Use digits, 8-15 chars, optional leading +.")
	}

	existing, err := s.users.FindConflict(ctx, email, username, phone)
	if err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return nil, utils.NewInternalError("Failed to check existing users", err)
	}
	if existing != nil {
		switch {
		case existing.Email == email:
			return nil, utils.NewConflictError("email", "Email already in use")
		case existing.Username == username:
			return nil, utils.NewConflictError("username", "Username already taken")
		case existing.Phone == phone:
			return nil, utils.NewConflictError("phone", "Phone number already registered")
		default:
			return nil, utils.NewConflictError("", "Conflict")
		}
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return nil, utils.NewInternalError("Failed to hash password", err)
	}
	otp, err := utils.GenerateNumericOTP()
	if err != nil {
		return nil, utils.NewInternalError("Failed to generate OTP", err)
	}

	now := s.now()
	expiresAt := now.Add(utils.OTPLifetime)
	user := &models.User{
		Name:         utils.SanitizeInput(name),
		Username:     username,
		Email:        email,
		Phone:        phone,
		PasswordHash: hash,
		Verified:     false,
		OTP:          otp,
		OTPExpiresAt: &expiresAt,
		CreatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if utils.IsKind(err, utils.KindConflict) {
			return nil, err
		}
		return nil, utils.NewInternalError("Failed to create user", err)
	}
	s.logger.Printf("Registered user %s", user.ID.Hex())

	s.sendOTP(user.Email, user.Name, otp)

	return &Registration{UserID: user.ID.Hex(), OTPExpiresAt: expiresAt}, nil
}

// VerifyOTP confirms an email address and returns the now verified user
func (s *AccountService) VerifyOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.User, error) {
	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.OTP) == "" {
		return nil, utils.NewValidationError("Missing fields")
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewNotFoundError("User not found")
		}
		return nil, utils.NewInternalError("Failed to load user", err)
	}
	if user.Verified {
		return nil, utils.NewValidationError("Email already verified. Please login.")
	}

	if err := utils.ValidateOTPAttempts(ctx, s.redis, user.ID.Hex()); err != nil {
		if errors.Is(err, utils.ErrTooManyOTPAttempts) {
			return nil, utils.NewQuotaError(http.StatusTooManyRequests, "Too many attempts. Try again later.")
		}
		// Throttling is best effort.
		s.logger.Printf("OTP attempt tracking unavailable: %v", err)
	}

	if user.OTP == "" || user.OTP != strings.TrimSpace(req.OTP) {
		return nil, utils.NewAuthError(http.StatusUnauthorized, "Invalid OTP")
	}
	if user.OTPExpiresAt != nil && user.OTPExpiresAt.Before(s.now()) {
		return nil, utils.NewGoneError("OTP expired")
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, utils.NewInternalError("Failed to verify user", err)
	}
	utils.ResetOTPAttempts(ctx, s.redis, user.ID.Hex())

	user.Verified = true
	user.OTP = ""
	user.OTPExpiresAt = nil
	s.logger.Printf("Verified user %s", user.ID.Hex())
	return user, nil
}

// ResendOTP issues a fresh code to an unverified user
func (s *AccountService) ResendOTP(ctx context.Context, req models.ResendOTPRequest) (time.Time, error) {
	if strings.TrimSpace(req.Email) == "" {
		return time.Time{}, utils.NewValidationError("Missing fields")
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return time.Time{}, utils.NewNotFoundError("User not found")
		}
		return time.Time{}, utils.NewInternalError("Failed to load user", err)
	}
	if user.Verified {
		return time.Time{}, utils.NewValidationError("Email already verified. Please login.")
	}

	otp, err := utils.GenerateNumericOTP()
	if err != nil {
		return time.Time{}, utils.NewInternalError("Failed to generate OTP", err)
	}
	expiresAt := s.now().Add(utils.OTPLifetime)
	if err := s.users.SetOTP(ctx, user.ID, otp, expiresAt); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return time.Time{}, utils.NewValidationError("Email already verified. Please login.")
		}
		return time.Time{}, utils.NewInternalError("Failed to update OTP", err)
	}

	s.sendOTP(user.Email, user.Name, otp)
	return expiresAt, nil
}

// Login checks credentials and returns the user
func (s *AccountService) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		return nil, utils.NewValidationError("Missing fields")
	}

	user, err := s.users.FindByEmail(ctx, utils.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewNotFoundError("User not found")
		}
		return nil, utils.NewInternalError("Failed to load user", err)
	}
	if user.PasswordHash == "" {
		return nil, utils.NewNotFoundError("User not found")
	}
	if err := utils.CheckPassword(req.Password, user.PasswordHash); err != nil {
		return nil, utils.NewAuthError(http.StatusUnauthorized, "Invalid password")
	}
	return user, nil
}

// FieldAvailable reports whether value is still free for field
func (s *AccountService) FieldAvailable(ctx context.Context, field, value string) (bool, error) {
	if !models.AvailabilityFields[field] {
		return false, utils.NewValidationError("Invalid field")
	}
	if strings.TrimSpace(value) == "" {
		return false, utils.NewValidationError("Missing value")
	}

	switch field {
	case "email":
		value = utils.NormalizeEmail(value)
	case "username":
		value = utils.NormalizeUsername(value)
	case "phone":
		value = utils.NormalizePhone(value)
	}

	taken, err := s.users.FieldTaken(ctx, field, value)
	if err != nil {
		return false, utils.NewInternalError("Failed to check availability", err)
	}
	return !taken, nil
}

// CurrentUser loads the user behind a session
func (s *AccountService) CurrentUser(ctx context.Context, id string) (*models.User, error) {
	oid, err := parseObjectID(id)
	if err != nil {
		return nil, utils.NewAuthError(http.StatusUnauthorized, "Unauthenticated")
	}
	user, err := s.users.FindByID(ctx, oid)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, utils.NewAuthError(http.StatusUnauthorized, "Unauthenticated")
		}
		return nil, utils.NewInternalError("Failed to load user", err)
	}
	return user, nil
}

// sendOTP never fails the caller; delivery errors surface on the queue.
func (s *AccountService) sendOTP(email, name, otp string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Enqueue(OTPEmail(email, name, otp)); err != nil {
		s.logger.Printf("Could not queue OTP email: %v", err)
	}
}
