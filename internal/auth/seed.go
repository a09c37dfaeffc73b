package auth

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"nextlogin/internal/apperr"
	"nextlogin/internal/models"
	"nextlogin/internal/store"
)

// SeedUser describes one of the default development accounts.
type SeedUser struct {
	Email string `json:"email"`
	Name  string `json:"-"`
}

var defaultSeedUsers = []SeedUser{
	{Email: "test@example.com", Name: "Test User"},
	{Email: "admin@example.com", Name: "Admin User"},
}

const seedPassword = "password123"

// Seed creates the default verified users used for local development.
// It refuses to run in production and skips accounts that already
// exist. Returns the seeded account list for display.
func (s *Service) Seed(ctx context.Context) ([]SeedUser, error) {
	if s.cfg.IsProduction() {
		return nil, apperr.Forbidden("Database seeding is not allowed in production")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcryptCost)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}

	for _, seed := range defaultSeedUsers {
		user := &models.User{
			Email:         seed.Email,
			Name:          seed.Name,
			Password:      string(hash),
			EmailVerified: true,
		}
		if err := s.store.Create(ctx, user); err != nil {
			if errors.Is(err, store.ErrDuplicateEmail) {
				slog.Info("seed user already exists", "email", seed.Email)
				continue
			}
			return nil, apperr.Internal("Failed to seed database", err)
		}
		slog.Info("seeded user", "email", seed.Email)
	}

	return defaultSeedUsers, nil
}
