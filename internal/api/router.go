package api

import (
	"github.com/gorilla/mux"
)

// Router wires the REST API endpoints.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestID)

	router.HandleFunc("/api/auth/register", s.handleRegister).Methods("POST")
	router.HandleFunc("/api/auth/login", s.handleLogin).Methods("POST")
	router.HandleFunc("/api/auth/logout", s.handleLogout).Methods("POST")
	router.HandleFunc("/api/auth/me", s.requireAuth(s.handleMe)).Methods("GET")
	router.HandleFunc("/api/auth/forgot-password", s.handleForgotPassword).Methods("POST")
	router.HandleFunc("/api/auth/reset-password", s.handleResetPassword).Methods("POST")
	router.HandleFunc("/api/auth/verify-email", s.handleVerifyEmail).Methods("GET")

	router.HandleFunc("/api/auth/2fa/setup", s.requireAuth(s.handleTwoFactorSetup)).Methods("GET")
	router.HandleFunc("/api/auth/2fa/verify", s.requireAuth(s.handleTwoFactorVerify)).Methods("POST")
	router.HandleFunc("/api/auth/2fa/disable", s.requireAuth(s.handleTwoFactorDisable)).Methods("POST")

	// Development-only seeding; the service rejects it in production.
	router.HandleFunc("/api/seed", s.handleSeed).Methods("POST")

	return router
}
