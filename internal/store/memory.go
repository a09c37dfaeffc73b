package store

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"nextlogin/internal/models"
)

// MemoryStore is an in-memory UserStore used in tests. It mirrors the
// MongoStore semantics: lowercase email uniqueness, atomic single-use
// token and backup-code consumption, updated_at bumps on mutation.
type MemoryStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

var _ UserStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{users: make(map[string]*models.User)}
}

// Len reports the number of stored users.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyUser(u), nil
}

func (s *MemoryStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := NormalizeEmail(user.Email)
	for _, u := range s.users {
		if u.Email == email {
			return ErrDuplicateEmail
		}
	}
	now := time.Now()
	user.ID = primitive.NewObjectID()
	user.Email = email
	user.CreatedAt = now
	user.UpdatedAt = now
	s.users[user.ID.Hex()] = copyUser(user)
	return nil
}

func (s *MemoryStore) SetVerificationToken(_ context.Context, id, token string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.EmailVerificationToken = token
	u.EmailVerificationExpires = expires
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ConsumeVerificationToken(_ context.Context, token string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.EmailVerificationToken == token && token != "" && time.Now().Before(u.EmailVerificationExpires) {
			u.EmailVerified = true
			u.EmailVerificationToken = ""
			u.EmailVerificationExpires = time.Time{}
			u.UpdatedAt = time.Now()
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetResetToken(_ context.Context, email, token string, expires time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = NormalizeEmail(email)
	for _, u := range s.users {
		if u.Email == email {
			u.PasswordResetToken = token
			u.PasswordResetExpires = expires
			u.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ConsumeResetToken(_ context.Context, token, passwordHash string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.PasswordResetToken == token && token != "" && time.Now().Before(u.PasswordResetExpires) {
			u.Password = passwordHash
			u.PasswordResetToken = ""
			u.PasswordResetExpires = time.Time{}
			u.UpdatedAt = time.Now()
			return copyUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) SetTwoFactor(_ context.Context, id, secret string, backupCodes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TwoFactorEnabled = true
	u.TwoFactorSecret = secret
	u.TwoFactorBackupCodes = append([]string(nil), backupCodes...)
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ClearTwoFactor(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	u.TwoFactorEnabled = false
	u.TwoFactorSecret = ""
	u.TwoFactorBackupCodes = nil
	u.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) ConsumeBackupCode(_ context.Context, id, code string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return false, ErrNotFound
	}
	for i, c := range u.TwoFactorBackupCodes {
		if c == code {
			u.TwoFactorBackupCodes = append(u.TwoFactorBackupCodes[:i], u.TwoFactorBackupCodes[i+1:]...)
			u.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) TouchLastLogin(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	u.LastLogin = now
	u.UpdatedAt = now
	return nil
}

func copyUser(u *models.User) *models.User {
	c := *u
	c.TwoFactorBackupCodes = append([]string(nil), u.TwoFactorBackupCodes...)
	return &c
}
