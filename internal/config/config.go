package config

import (
	"errors"
	"os"
	"time"
)

// Config holds all environment-supplied settings.
type Config struct {
	Port        string
	MongoURI    string
	MongoDB     string
	Environment string

	// JWTSecret signs session tokens. Required outside development.
	JWTSecret string

	// AppBaseURL is the public base URL used in verification and reset
	// links and for the post-verification redirect.
	AppBaseURL string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	FromEmail    string
	FromName     string

	TOTPIssuer string

	SessionTTL           time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
}

// Load reads configuration from the environment. Callers are expected
// to have loaded a .env file beforehand (godotenv in main).
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "nextlogin"),
		Environment: getEnv("APP_ENV", "development"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		AppBaseURL:  getEnv("APP_BASE_URL", "http://localhost:8080"),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		FromEmail:    getEnv("FROM_EMAIL", "noreply@nextlogin.local"),
		FromName:     getEnv("FROM_NAME", "NextLogin"),

		TOTPIssuer: getEnv("TOTP_ISSUER", "NextLogin"),

		SessionTTL:           7 * 24 * time.Hour,
		EmailVerificationTTL: 24 * time.Hour,
		PasswordResetTTL:     1 * time.Hour,
	}

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			return nil, errors.New("JWT_SECRET must be set in production")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
