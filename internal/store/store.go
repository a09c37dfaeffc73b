package store

import (
	"context"
	"errors"
	"time"

	"nextlogin/internal/models"
)

var (
	// ErrNotFound is returned when no user matches the lookup. For
	// single-use token consumption it also covers expired tokens, so
	// callers cannot distinguish the two cases.
	ErrNotFound = errors.New("user not found")

	// ErrDuplicateEmail is returned by Create when the email is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// UserStore persists user records. Implementations must apply token
// and backup-code consumption atomically so two concurrent requests
// cannot both consume the same single-use credential, and must bump
// updated_at on every mutation.
type UserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)

	// Create inserts a new user and fills in its ID and timestamps.
	Create(ctx context.Context, user *models.User) error

	SetVerificationToken(ctx context.Context, id, token string, expires time.Time) error

	// ConsumeVerificationToken marks the matching user's email as
	// verified and clears the token in one step. The token only
	// matches while unexpired.
	ConsumeVerificationToken(ctx context.Context, token string) (*models.User, error)

	SetResetToken(ctx context.Context, email, token string, expires time.Time) error

	// ConsumeResetToken swaps in the new password hash and clears the
	// reset token in one step, so a consumed token cannot be replayed.
	ConsumeResetToken(ctx context.Context, token, passwordHash string) (*models.User, error)

	// SetTwoFactor enables two-factor auth with the given secret and
	// backup codes. ClearTwoFactor disables it and removes both.
	SetTwoFactor(ctx context.Context, id, secret string, backupCodes []string) error
	ClearTwoFactor(ctx context.Context, id string) error

	// ConsumeBackupCode removes the code from the user's set if
	// present and reports whether it was there.
	ConsumeBackupCode(ctx context.Context, id, code string) (bool, error)

	TouchLastLogin(ctx context.Context, id string) error
}
