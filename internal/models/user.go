package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a registered user as stored in MongoDB.
// The password field always holds a bcrypt hash, never plaintext.
type User struct {
	ID                       primitive.ObjectID `bson:"_id,omitempty"`
	Email                    string             `bson:"email"`
	Name                     string             `bson:"name"`
	Password                 string             `bson:"password"`
	EmailVerified            bool               `bson:"email_verified"`
	EmailVerificationToken   string             `bson:"email_verification_token,omitempty"`
	EmailVerificationExpires time.Time          `bson:"email_verification_expires,omitempty"`
	PasswordResetToken       string             `bson:"password_reset_token,omitempty"`
	PasswordResetExpires     time.Time          `bson:"password_reset_expires,omitempty"`
	TwoFactorEnabled         bool               `bson:"two_factor_enabled"`
	TwoFactorSecret          string             `bson:"two_factor_secret,omitempty"`
	TwoFactorBackupCodes     []string           `bson:"two_factor_backup_codes,omitempty"`
	LastLogin                time.Time          `bson:"last_login,omitempty"`
	CreatedAt                time.Time          `bson:"created_at"`
	UpdatedAt                time.Time          `bson:"updated_at"`
}

// PublicUser is the sanitized projection of a User that is safe to
// return to clients. Secrets, hashes and pending tokens are excluded.
type PublicUser struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	EmailVerified    bool       `json:"emailVerified"`
	TwoFactorEnabled bool       `json:"twoFactorEnabled"`
	LastLogin        *time.Time `json:"lastLogin,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Public returns the sanitized projection of the user.
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:               u.ID.Hex(),
		Email:            u.Email,
		Name:             u.Name,
		EmailVerified:    u.EmailVerified,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
		UpdatedAt:        u.UpdatedAt,
	}
	if !u.LastLogin.IsZero() {
		t := u.LastLogin
		p.LastLogin = &t
	}
	return p
}
