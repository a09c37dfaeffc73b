package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nextlogin/internal/apperr"
	"nextlogin/internal/config"
	"nextlogin/internal/store"
	"nextlogin/internal/token"
	"nextlogin/internal/twofactor"
)

// recordingMailer captures outgoing mail so tests can pull the
// verification and reset tokens out of the links.
type recordingMailer struct {
	verificationURLs []string
	resetURLs        []string
	failSend         bool
}

func (m *recordingMailer) SendVerificationEmail(to, name, verificationURL string) error {
	if m.failSend {
		return assert.AnError
	}
	m.verificationURLs = append(m.verificationURLs, verificationURL)
	return nil
}

func (m *recordingMailer) SendPasswordResetEmail(to, name, resetURL string) error {
	if m.failSend {
		return assert.AnError
	}
	m.resetURLs = append(m.resetURLs, resetURL)
	return nil
}

func tokenFromURL(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	tok := u.Query().Get("token")
	require.NotEmpty(t, tok)
	return tok
}

type fixture struct {
	svc    *Service
	store  *store.MemoryStore
	mailer *recordingMailer
	tokens *token.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Environment:          "test",
		JWTSecret:            "test-secret",
		AppBaseURL:           "http://localhost:8080",
		TOTPIssuer:           "NextLogin",
		SessionTTL:           7 * 24 * time.Hour,
		EmailVerificationTTL: 24 * time.Hour,
		PasswordResetTTL:     time.Hour,
	}
	st := store.NewMemoryStore()
	mailer := &recordingMailer{}
	tokens := token.NewManager(cfg.JWTSecret, cfg.SessionTTL)
	svc := NewService(st, tokens, twofactor.NewManager(cfg.TOTPIssuer), mailer, cfg)
	return &fixture{svc: svc, store: st, mailer: mailer, tokens: tokens}
}

func (f *fixture) register(t *testing.T, email, password, name string) *RegisterResult {
	t.Helper()
	result, err := f.svc.Register(context.Background(), email, password, name)
	require.NoError(t, err)
	return result
}

// enrollTwoFactor walks a user through setup and enable with a valid
// code and returns the setup material.
func (f *fixture) enrollTwoFactor(t *testing.T, userID string) *TwoFactorSetup {
	t.Helper()
	ctx := context.Background()
	setup, err := f.svc.SetupTwoFactor(ctx, userID)
	require.NoError(t, err)

	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.EnableTwoFactor(ctx, userID, code, setup.Secret, setup.BackupCodes))
	return setup
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.register(t, "a@b.com", "secret1", "A")
	assert.False(t, reg.User.EmailVerified)
	assert.NotEmpty(t, reg.Token)

	result, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)
	require.False(t, result.RequiresTwoFactor)

	claims, ok := f.tokens.VerifySession(result.Token)
	require.True(t, ok)
	assert.Equal(t, "a@b.com", claims.Email)
	assert.Equal(t, reg.User.ID, claims.UserID)

	// Login stamps lastLogin.
	user, err := f.svc.CurrentUser(ctx, reg.User.ID)
	require.NoError(t, err)
	require.NotNil(t, user.LastLogin)
}

func TestRegisterNormalizesEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reg := f.register(t, "  Mixed@Case.COM ", "secret1", "A")
	assert.Equal(t, "mixed@case.com", reg.User.Email)

	_, err := f.svc.Login(ctx, LoginInput{Email: "MIXED@case.com", Password: "secret1"})
	require.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		userName string
	}{
		{"missing email", "", "secret1", "A"},
		{"missing password", "a@b.com", "", "A"},
		{"missing name", "a@b.com", "secret1", ""},
		{"bad email shape", "not-an-email", "secret1", "A"},
		{"short password", "a@b.com", "12345", "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.email, tt.password, tt.userName)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, apperr.From(err).Code)
		})
	}
	assert.Equal(t, 0, f.store.Len())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "a@b.com", "secret1", "A")
	require.Equal(t, 1, f.store.Len())

	_, err := f.svc.Register(ctx, "A@B.com", "other-password", "B")
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apperr.From(err).Code)
	assert.Equal(t, 1, f.store.Len())
}

func TestRegisterSurvivesMailFailure(t *testing.T) {
	f := newFixture(t)
	f.mailer.failSend = true

	reg := f.register(t, "a@b.com", "secret1", "A")
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, 1, f.store.Len())
}

func TestLoginGenericFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "secret1", "A")

	_, unknownErr := f.svc.Login(ctx, LoginInput{Email: "nobody@b.com", Password: "secret1"})
	_, wrongErr := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "wrong"})

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	// Unknown email and wrong password are indistinguishable.
	assert.Equal(t, apperr.From(unknownErr).Code, apperr.From(wrongErr).Code)
	assert.Equal(t, apperr.From(unknownErr).Message, apperr.From(wrongErr).Message)
	assert.Equal(t, http.StatusUnauthorized, apperr.From(unknownErr).Code)
}

func TestLoginTwoFactorChallenge(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@b.com", "secret1", "A")
	setup := f.enrollTwoFactor(t, reg.User.ID)

	// Correct password without a code yields the challenge, no token.
	result, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)
	assert.True(t, result.RequiresTwoFactor)
	assert.Empty(t, result.Token)

	// Wrong password never reaches the challenge.
	_, err = f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "wrong"})
	require.Error(t, err)

	// A fresh TOTP code completes the login.
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	result, err = f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret1", Code: code})
	require.NoError(t, err)
	assert.False(t, result.RequiresTwoFactor)
	assert.NotEmpty(t, result.Token)

	// A bogus code does not.
	_, err = f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret1", Code: "000000"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperr.From(err).Code)
}

func TestBackupCodeSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@b.com", "secret1", "A")
	setup := f.enrollTwoFactor(t, reg.User.ID)
	require.Len(t, setup.BackupCodes, twofactor.BackupCodeCount)

	code := setup.BackupCodes[0]
	in := LoginInput{Email: "a@b.com", Password: "secret1", Code: code, IsBackupCode: true}

	result, err := f.svc.Login(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)

	// The same code is rejected on replay.
	_, err = f.svc.Login(ctx, in)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apperr.From(err).Code)

	// Exactly one code was consumed.
	stored, err := f.store.FindByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.Len(t, stored.TwoFactorBackupCodes, twofactor.BackupCodeCount-1)

	// Backup codes are matched case-insensitively.
	result, err = f.svc.Login(ctx, LoginInput{
		Email: "a@b.com", Password: "secret1",
		Code: strings.ToLower(setup.BackupCodes[1]), IsBackupCode: true,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestEnableTwoFactorRequiresLiveSecret(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@b.com", "secret1", "A")

	setup, err := f.svc.SetupTwoFactor(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, setup.QRCode)

	// A wrong code must leave the user untouched.
	err = f.svc.EnableTwoFactor(ctx, reg.User.ID, "000000", setup.Secret, setup.BackupCodes)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.From(err).Code)

	stored, err := f.store.FindByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TwoFactorSecret)
	assert.Empty(t, stored.TwoFactorBackupCodes)

	// A valid code commits the enrollment.
	code, err := totp.GenerateCode(setup.Secret, time.Now())
	require.NoError(t, err)
	require.NoError(t, f.svc.EnableTwoFactor(ctx, reg.User.ID, code, setup.Secret, setup.BackupCodes))

	stored, err = f.store.FindByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.True(t, stored.TwoFactorEnabled)
	assert.Equal(t, setup.Secret, stored.TwoFactorSecret)
	assert.Len(t, stored.TwoFactorBackupCodes, twofactor.BackupCodeCount)

	// Setup is refused once enabled.
	_, err = f.svc.SetupTwoFactor(ctx, reg.User.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.From(err).Code)
}

func TestDisableTwoFactor(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@b.com", "secret1", "A")
	f.enrollTwoFactor(t, reg.User.ID)

	require.NoError(t, f.svc.DisableTwoFactor(ctx, reg.User.ID))

	stored, err := f.store.FindByID(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.False(t, stored.TwoFactorEnabled)
	assert.Empty(t, stored.TwoFactorSecret)
	assert.Empty(t, stored.TwoFactorBackupCodes)

	// Plain password login works again.
	result, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "secret1"})
	require.NoError(t, err)
	assert.False(t, result.RequiresTwoFactor)
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "secret1", "A")

	// Existing and unknown email both succeed identically.
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@b.com"))
	require.NoError(t, f.svc.ForgotPassword(ctx, "nobody@b.com"))

	// Only the real account got mail.
	assert.Len(t, f.mailer.resetURLs, 1)
}

func TestResetPasswordSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "old-password", "A")

	require.NoError(t, f.svc.ForgotPassword(ctx, "a@b.com"))
	require.Len(t, f.mailer.resetURLs, 1)
	resetToken := tokenFromURL(t, f.mailer.resetURLs[0])

	require.NoError(t, f.svc.ResetPassword(ctx, resetToken, "new-password", "new-password"))

	// Old password no longer works, new one does.
	_, err := f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "old-password"})
	require.Error(t, err)
	_, err = f.svc.Login(ctx, LoginInput{Email: "a@b.com", Password: "new-password"})
	require.NoError(t, err)

	// Replaying the consumed token fails.
	err = f.svc.ResetPassword(ctx, resetToken, "another-password", "another-password")
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.From(err).Code)
}

func TestResetPasswordValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "a@b.com", "secret1", "A")
	require.NoError(t, f.svc.ForgotPassword(ctx, "a@b.com"))
	resetToken := tokenFromURL(t, f.mailer.resetURLs[0])

	tests := []struct {
		name     string
		token    string
		password string
		confirm  string
	}{
		{"mismatched confirmation", resetToken, "new-password", "other"},
		{"short password", resetToken, "12345", "12345"},
		{"unknown token", "deadbeef", "new-password", "new-password"},
		{"empty token", "", "new-password", "new-password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.ResetPassword(ctx, tt.token, tt.password, tt.confirm)
			require.Error(t, err)
			assert.Equal(t, http.StatusBadRequest, apperr.From(err).Code)
		})
	}

	// The valid token survived all the failed attempts above.
	require.NoError(t, f.svc.ResetPassword(ctx, resetToken, "new-password", "new-password"))
}

func TestVerifyEmailSingleUse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "a@b.com", "secret1", "A")
	require.Len(t, f.mailer.verificationURLs, 1)
	verificationToken := tokenFromURL(t, f.mailer.verificationURLs[0])

	user, err := f.svc.VerifyEmail(ctx, verificationToken)
	require.NoError(t, err)
	assert.True(t, user.EmailVerified)

	current, err := f.svc.CurrentUser(ctx, reg.User.ID)
	require.NoError(t, err)
	assert.True(t, current.EmailVerified)

	// Token is cleared on consumption.
	_, err = f.svc.VerifyEmail(ctx, verificationToken)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apperr.From(err).Code)
}

func TestSeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	users, err := f.svc.Seed(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 2, f.store.Len())

	// Seeding again is a no-op, not an error.
	_, err = f.svc.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, f.store.Len())

	// Seeded users can log in and are verified.
	result, err := f.svc.Login(ctx, LoginInput{Email: "test@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.True(t, result.User.EmailVerified)
}

func TestSeedForbiddenInProduction(t *testing.T) {
	f := newFixture(t)
	f.svc.cfg.Environment = "production"

	_, err := f.svc.Seed(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apperr.From(err).Code)
}
