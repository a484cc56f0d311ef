// models/user.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User model
type User struct {
	ID           primitive.ObjectID `json:"_id,omitempty" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Username     string             `json:"username" bson:"username"`
	Email        string             `json:"email" bson:"email"`
	Phone        string             `json:"phone,omitempty" bson:"phone,omitempty"`
	PasswordHash string             `json:"-" bson:"passwordHash"`
	Verified     bool               `json:"verified" bson:"verified"`
	OTP          string             `json:"-" bson:"otp,omitempty"`
	OTPExpiresAt *time.Time         `json:"-" bson:"otpExpiresAt,omitempty"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
}

// PublicUser is the subset of a user returned by the session endpoints
type PublicUser struct {
	ID       string `json:"_id"`
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
}

// Public strips credentials and one-time fields.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID.Hex(),
		Email:    u.Email,
		Name:     u.Name,
		Username: u.Username,
		Phone:    u.Phone,
	}
}
