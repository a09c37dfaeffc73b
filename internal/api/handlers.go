package api

import (
	"encoding/json"
	"net/http"
	"time"

	"nextlogin/internal/apperr"
	"nextlogin/internal/auth"
	"nextlogin/internal/config"
	"nextlogin/internal/token"
)

// Server holds the HTTP handlers for the auth endpoints.
type Server struct {
	svc    *auth.Service
	tokens *token.Manager
	cfg    *config.Config
}

func NewServer(svc *auth.Service, tokens *token.Manager, cfg *config.Config) *Server {
	return &Server{svc: svc, tokens: tokens, cfg: cfg}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		apperr.Write(w, apperr.BadRequest("Invalid request payload"))
		return false
	}
	return true
}

// setSessionCookie attaches the session token as an HTTP-only,
// same-site-strict cookie. The token is also returned in response
// bodies for clients that do not use cookies.
func (s *Server) setSessionCookie(w http.ResponseWriter, sessionToken string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		MaxAge:   int(s.tokens.TTL() / time.Second),
		HttpOnly: true,
		Secure:   s.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.cfg.IsProduction(),
		SameSite: http.SameSiteStrictMode,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.svc.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}

	s.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":    result.User,
		"token":   result.Token,
		"message": "Account created successfully. Please check your email to verify your account.",
	})
}

type loginRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Code         string `json:"code,omitempty"`
	IsBackupCode bool   `json:"isBackupCode,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := s.svc.Login(r.Context(), auth.LoginInput{
		Email:        req.Email,
		Password:     req.Password,
		Code:         req.Code,
		IsBackupCode: req.IsBackupCode,
	})
	if err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}

	if result.RequiresTwoFactor {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"requiresTwoFactor": true,
		})
		return
	}

	s.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  result.User,
		"token": result.Token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r.Context())

	user, err := s.svc.CurrentUser(r.Context(), claims.UserID)
	if err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}
	// Identical response whether or not the account exists.
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "If an account with this email exists, a password reset link has been sent.",
	})
}

type resetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.svc.ResetPassword(r.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Password has been reset successfully",
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	verificationToken := r.URL.Query().Get("token")

	if _, err := s.svc.VerifyEmail(r.Context(), verificationToken); err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}
	http.Redirect(w, r, s.cfg.AppBaseURL+"/login?verified=true", http.StatusFound)
}

func (s *Server) handleTwoFactorSetup(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r.Context())

	setup, err := s.svc.SetupTwoFactor(r.Context(), claims.UserID)
	if err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"secret":      setup.Secret,
		"qrCode":      setup.QRCode,
		"backupCodes": setup.BackupCodes,
	})
}

type twoFactorVerifyRequest struct {
	Token       string   `json:"token"`
	Secret      string   `json:"secret"`
	BackupCodes []string `json:"backupCodes"`
}

func (s *Server) handleTwoFactorVerify(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r.Context())

	var req twoFactorVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := s.svc.EnableTwoFactor(r.Context(), claims.UserID, req.Token, req.Secret, req.BackupCodes); err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Two-factor authentication has been enabled successfully",
		"backupCodes": req.BackupCodes,
	})
}

func (s *Server) handleTwoFactorDisable(w http.ResponseWriter, r *http.Request) {
	claims := sessionClaims(r.Context())

	if err := s.svc.DisableTwoFactor(r.Context(), claims.UserID); err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Two-factor authentication has been disabled successfully",
	})
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.Seed(r.Context())
	if err != nil {
		apperr.Write(w, apperr.From(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Database seeded successfully",
		"users":   users,
	})
}
