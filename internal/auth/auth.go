package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"golang.org/x/crypto/bcrypt"

	"nextlogin/internal/apperr"
	"nextlogin/internal/config"
	"nextlogin/internal/email"
	"nextlogin/internal/models"
	"nextlogin/internal/store"
	"nextlogin/internal/token"
	"nextlogin/internal/twofactor"
)

const (
	bcryptCost        = 12
	minPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func nowPlus(d time.Duration) time.Time {
	return time.Now().Add(d)
}

// Service orchestrates the authentication flows. It composes the
// credential store, token manager, two-factor manager and mailer; all
// collaborators are injected so there is no package-level state.
type Service struct {
	store     store.UserStore
	tokens    *token.Manager
	twoFactor *twofactor.Manager
	mailer    email.Mailer
	cfg       *config.Config
}

func NewService(s store.UserStore, tokens *token.Manager, tf *twofactor.Manager, mailer email.Mailer, cfg *config.Config) *Service {
	return &Service{
		store:     s,
		tokens:    tokens,
		twoFactor: tf,
		mailer:    mailer,
		cfg:       cfg,
	}
}

// RegisterResult carries what the register endpoint returns: the new
// user plus a freshly issued session token.
type RegisterResult struct {
	User  models.PublicUser
	Token string
}

// Register creates a new account, kicks off email verification and
// signs the user in. Verification mail dispatch is best effort; a
// failure is logged but does not roll back the registration.
func (s *Service) Register(ctx context.Context, emailAddr, password, name string) (*RegisterResult, error) {
	emailAddr = store.NormalizeEmail(emailAddr)
	if emailAddr == "" || password == "" || name == "" {
		return nil, apperr.BadRequest("Email, password, and name are required")
	}
	if !emailPattern.MatchString(emailAddr) {
		return nil, apperr.BadRequest("Invalid email format")
	}
	if len(password) < minPasswordLength {
		return nil, apperr.BadRequest("Password must be at least 6 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}

	user := &models.User{
		Email:    emailAddr,
		Name:     name,
		Password: string(hash),
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, apperr.Conflict("User already exists with this email")
		}
		return nil, apperr.Internal("Internal server error", err)
	}

	s.sendVerificationEmail(ctx, user)

	sessionToken, err := s.tokens.IssueSession(user)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}

	return &RegisterResult{User: user.Public(), Token: sessionToken}, nil
}

func (s *Service) sendVerificationEmail(ctx context.Context, user *models.User) {
	verificationToken, err := token.NewSingleUse()
	if err != nil {
		slog.Error("failed to generate verification token", "error", err)
		return
	}
	expires := nowPlus(s.cfg.EmailVerificationTTL)
	if err := s.store.SetVerificationToken(ctx, user.ID.Hex(), verificationToken, expires); err != nil {
		slog.Error("failed to store verification token", "error", err)
		return
	}
	verificationURL := fmt.Sprintf("%s/api/auth/verify-email?token=%s", s.cfg.AppBaseURL, verificationToken)
	if err := s.mailer.SendVerificationEmail(user.Email, user.Name, verificationURL); err != nil {
		slog.Error("failed to send verification email", "email", user.Email, "error", err)
	}
}

// LoginInput is the login request. Code and IsBackupCode are only
// consulted when the account has two-factor auth enabled.
type LoginInput struct {
	Email        string
	Password     string
	Code         string
	IsBackupCode bool
}

// LoginResult is either a completed login (User and Token set) or a
// two-factor challenge (RequiresTwoFactor true, nothing issued).
type LoginResult struct {
	RequiresTwoFactor bool
	User              models.PublicUser
	Token             string
}

// Login verifies the password and, when two-factor auth is enabled,
// the submitted TOTP or backup code. Unknown email and wrong password
// both surface as the same generic error so accounts cannot be
// enumerated.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.Email == "" || in.Password == "" {
		return nil, apperr.BadRequest("Email and password are required")
	}

	user, err := s.store.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, apperr.Internal("Internal server error", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)) != nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}

	if user.TwoFactorEnabled {
		if in.Code == "" {
			// Password checked out but a second factor is still
			// needed. Succeed with a flag so the client re-prompts;
			// no session is issued yet.
			return &LoginResult{RequiresTwoFactor: true}, nil
		}
		if err := s.verifySecondFactor(ctx, user, in.Code, in.IsBackupCode); err != nil {
			return nil, err
		}
	}

	if err := s.store.TouchLastLogin(ctx, user.ID.Hex()); err != nil {
		slog.Error("failed to update last login", "user_id", user.ID.Hex(), "error", err)
	}

	sessionToken, err := s.tokens.IssueSession(user)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}

	return &LoginResult{User: user.Public(), Token: sessionToken}, nil
}

func (s *Service) verifySecondFactor(ctx context.Context, user *models.User, code string, isBackupCode bool) error {
	if isBackupCode {
		consumed, err := s.store.ConsumeBackupCode(ctx, user.ID.Hex(), twofactor.NormalizeBackupCode(code))
		if err != nil {
			return apperr.Internal("Internal server error", err)
		}
		if !consumed {
			return apperr.Unauthorized("Invalid backup code")
		}
		return nil
	}
	if !s.twoFactor.VerifyCode(code, user.TwoFactorSecret) {
		return apperr.Unauthorized("Invalid verification code")
	}
	return nil
}

// ForgotPassword issues a reset token and mails the reset link. For
// unknown emails it silently succeeds, so the response never reveals
// whether an account exists.
func (s *Service) ForgotPassword(ctx context.Context, emailAddr string) error {
	if emailAddr == "" {
		return apperr.BadRequest("Email is required")
	}

	user, err := s.store.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return apperr.Internal("Internal server error", err)
	}

	resetToken, err := token.NewSingleUse()
	if err != nil {
		return apperr.Internal("Internal server error", err)
	}
	expires := nowPlus(s.cfg.PasswordResetTTL)
	if err := s.store.SetResetToken(ctx, user.Email, resetToken, expires); err != nil {
		return apperr.Internal("Internal server error", err)
	}

	resetURL := fmt.Sprintf("%s/reset-password?token=%s", s.cfg.AppBaseURL, resetToken)
	if err := s.mailer.SendPasswordResetEmail(user.Email, user.Name, resetURL); err != nil {
		return apperr.Internal("Failed to send reset email", err)
	}
	return nil
}

// ResetPassword consumes a reset token and replaces the password hash
// in the same store operation, so a token is accepted exactly once.
func (s *Service) ResetPassword(ctx context.Context, resetToken, password, confirmPassword string) error {
	if resetToken == "" || password == "" || confirmPassword == "" {
		return apperr.BadRequest("Token, password, and confirmation are required")
	}
	if password != confirmPassword {
		return apperr.BadRequest("Passwords do not match")
	}
	if len(password) < minPasswordLength {
		return apperr.BadRequest("Password must be at least 6 characters long")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return apperr.Internal("Internal server error", err)
	}

	if _, err := s.store.ConsumeResetToken(ctx, resetToken, string(hash)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.BadRequest("Invalid or expired reset token")
		}
		return apperr.Internal("Internal server error", err)
	}
	return nil
}

// VerifyEmail consumes a verification token, flipping emailVerified.
// Invalid and expired tokens report the same generic error.
func (s *Service) VerifyEmail(ctx context.Context, verificationToken string) (*models.User, error) {
	if verificationToken == "" {
		return nil, apperr.BadRequest("Verification token is required")
	}
	user, err := s.store.ConsumeVerificationToken(ctx, verificationToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.BadRequest("Invalid or expired verification token")
		}
		return nil, apperr.Internal("Internal server error", err)
	}
	return user, nil
}

// TwoFactorSetup is the material returned by SetupTwoFactor. The
// client keeps it until the user verifies a code; only then does
// EnableTwoFactor persist anything.
type TwoFactorSetup struct {
	Secret      string
	QRCode      string
	BackupCodes []string
}

// SetupTwoFactor generates a fresh secret, QR payload and backup
// codes for a pending enrollment. Nothing is persisted here.
func (s *Service) SetupTwoFactor(ctx context.Context, userID string) (*TwoFactorSetup, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Internal server error", err)
	}
	if user.TwoFactorEnabled {
		return nil, apperr.BadRequest("Two-factor authentication is already enabled")
	}

	setup, err := s.twoFactor.GenerateSecret(user.Email)
	if err != nil {
		return nil, apperr.Internal("Failed to setup 2FA", err)
	}
	qr, err := twofactor.QRCodeDataURL(setup.OTPAuthURL)
	if err != nil {
		return nil, apperr.Internal("Failed to setup 2FA", err)
	}

	return &TwoFactorSetup{
		Secret:      setup.Secret,
		QRCode:      qr,
		BackupCodes: setup.BackupCodes,
	}, nil
}

// EnableTwoFactor commits a pending enrollment. The submitted code
// must verify against the just-generated secret before the secret and
// backup codes are persisted and the flag flips true; a secret that
// has not been proven live is never stored.
func (s *Service) EnableTwoFactor(ctx context.Context, userID, code, secret string, backupCodes []string) error {
	if code == "" || secret == "" {
		return apperr.BadRequest("Token and secret are required")
	}

	if !s.twoFactor.VerifyCode(code, secret) {
		return apperr.BadRequest("Invalid verification code")
	}

	normalized := make([]string, 0, len(backupCodes))
	for _, c := range backupCodes {
		normalized = append(normalized, twofactor.NormalizeBackupCode(c))
	}

	if err := s.store.SetTwoFactor(ctx, userID, secret, normalized); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Failed to enable 2FA", err)
	}
	return nil
}

// DisableTwoFactor clears the secret and backup codes. It requires an
// authenticated session but no fresh code; see DESIGN.md for why that
// behavior is kept as is.
func (s *Service) DisableTwoFactor(ctx context.Context, userID string) error {
	if err := s.store.ClearTwoFactor(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Failed to disable 2FA", err)
	}
	return nil
}

// CurrentUser returns the fresh sanitized record for an authenticated
// user, rather than trusting possibly stale token claims.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.PublicUser, error) {
	user, err := s.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Internal server error", err)
	}
	pub := user.Public()
	return &pub, nil
}
