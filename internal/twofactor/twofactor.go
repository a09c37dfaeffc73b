package twofactor

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"image/png"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// BackupCodeCount is how many backup codes are handed out with a
	// fresh enrollment.
	BackupCodeCount = 8

	backupCodeBytes = 4
	qrSize          = 200
)

// Setup holds the material generated for a pending 2FA enrollment.
// Nothing here is persisted until the user proves the secret live by
// submitting a valid code.
type Setup struct {
	Secret      string
	OTPAuthURL  string
	BackupCodes []string
}

// Manager generates TOTP secrets and verifies submitted codes.
type Manager struct {
	issuer string
}

func NewManager(issuer string) *Manager {
	return &Manager{issuer: issuer}
}

// GenerateSecret produces a fresh TOTP secret, its provisioning URI
// and a batch of single-use backup codes for the given account label.
func (m *Manager) GenerateSecret(accountName string) (*Setup, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      m.issuer,
		AccountName: accountName,
		SecretSize:  32,
	})
	if err != nil {
		return nil, err
	}

	codes, err := NewBackupCodes(BackupCodeCount)
	if err != nil {
		return nil, err
	}

	return &Setup{
		Secret:      key.Secret(),
		OTPAuthURL:  key.URL(),
		BackupCodes: codes,
	}, nil
}

// QRCodeDataURL renders the provisioning URI as a PNG data URL that a
// client can drop straight into an <img> tag.
func QRCodeDataURL(otpauthURL string) (string, error) {
	key, err := otp.NewKeyFromURL(otpauthURL)
	if err != nil {
		return "", err
	}
	img, err := key.Image(qrSize, qrSize)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// VerifyCode checks a submitted TOTP code against the secret. The
// tolerance window is two time steps either side (±60s) to absorb
// clock drift. It fails closed: malformed input is an invalid code.
func (m *Manager) VerifyCode(code, secret string) bool {
	return m.VerifyCodeAt(code, secret, time.Now())
}

// VerifyCodeAt is VerifyCode against an explicit reference time.
func (m *Manager) VerifyCodeAt(code, secret string, t time.Time) bool {
	valid, err := totp.ValidateCustom(strings.TrimSpace(code), secret, t, totp.ValidateOpts{
		Period:    30,
		Skew:      2,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return valid
}

// NewBackupCodes generates count independent backup codes. Each is a
// fixed-length uppercase hex string from a secure random source.
func NewBackupCodes(count int) ([]string, error) {
	codes := make([]string, 0, count)
	for i := 0; i < count; i++ {
		b := make([]byte, backupCodeBytes)
		if _, err := rand.Read(b); err != nil {
			return nil, err
		}
		codes = append(codes, strings.ToUpper(hex.EncodeToString(b)))
	}
	return codes, nil
}

// NormalizeBackupCode canonicalizes a submitted backup code for
// comparison against the stored set.
func NormalizeBackupCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
