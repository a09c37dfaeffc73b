package token

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nextlogin/internal/models"
)

// SessionClaims is the signed claim set carried by a session token.
type SessionClaims struct {
	UserID           string `json:"id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	EmailVerified    bool   `json:"emailVerified"`
	TwoFactorEnabled bool   `json:"twoFactorEnabled"`
	jwt.RegisteredClaims
}

// Manager issues and verifies HMAC-signed session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
}

func NewManager(secret string, ttl time.Duration) *Manager {
	return &Manager{secret: []byte(secret), ttl: ttl}
}

// IssueSession signs a session token for the user. The claims are the
// sanitized user projection; no secrets are embedded.
func (m *Manager) IssueSession(user *models.User) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:           user.ID.Hex(),
		Email:            user.Email,
		Name:             user.Name,
		EmailVerified:    user.EmailVerified,
		TwoFactorEnabled: user.TwoFactorEnabled,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// VerifySession validates a session token and returns its claims.
// It fails closed: any parse error, bad signature, wrong signing
// method or expired token yields ok=false.
func (m *Manager) VerifySession(tokenString string) (*SessionClaims, bool) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}
	return claims, true
}

// TTL returns the session lifetime, which the HTTP layer uses for the
// cookie max age.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// NewSingleUse creates a cryptographically random opaque token for
// one-shot flows (email verification, password reset). Unlike session
// tokens these are stored on the user record with an expiry and
// cleared on consumption.
func NewSingleUse() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
