package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/joho/godotenv"

	"nextlogin/internal/api"
	"nextlogin/internal/auth"
	"nextlogin/internal/config"
	"nextlogin/internal/database"
	"nextlogin/internal/email"
	"nextlogin/internal/store"
	"nextlogin/internal/token"
	"nextlogin/internal/twofactor"
)

func init() {
	// Load environment variables from .env file.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Create a context for initialization.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := database.Connect(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			slog.Error("error disconnecting from MongoDB", "error", err)
		}
	}()

	userCol := database.UserCollection(client, cfg.MongoDB)
	if err := database.EnsureIndexes(ctx, userCol); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	var mailer email.Mailer
	if cfg.IsProduction() {
		mailer = email.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.FromEmail, cfg.FromName)
	} else {
		// In development emails are logged, not dispatched.
		mailer = email.LogMailer{}
	}

	userStore := store.NewMongoStore(userCol)
	tokens := token.NewManager(cfg.JWTSecret, cfg.SessionTTL)
	twoFactor := twofactor.NewManager(cfg.TOTPIssuer)
	service := auth.NewService(userStore, tokens, twoFactor, mailer, cfg)
	server := api.NewServer(service, tokens, cfg)

	// Wrap the router with logging middleware.
	loggedRouter := handlers.LoggingHandler(os.Stdout, server.Router())

	addr := ":" + cfg.Port
	srv := &http.Server{
		Handler:      loggedRouter,
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start the server in a goroutine.
	go func() {
		slog.Info("server running", "addr", addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signals for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	slog.Info("server exited gracefully")
}
