package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/forgo/gather/api/internal/config"
	"github.com/forgo/gather/api/internal/database"
	"github.com/forgo/gather/api/internal/handler"
	"github.com/forgo/gather/api/internal/jobs"
	"github.com/forgo/gather/api/internal/middleware"
	"github.com/forgo/gather/api/internal/repository"
	"github.com/forgo/gather/api/internal/service"
	"github.com/forgo/gather/api/pkg/jwt"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize database connection
	db := database.NewSurrealDB(database.Config{
		Host:      cfg.Database.Host,
		Port:      cfg.Database.Port,
		User:      cfg.Database.User,
		Password:  cfg.Database.Password,
		Namespace: cfg.Database.Namespace,
		Database:  cfg.Database.Database,
	})

	ctx := context.Background()
	if err := db.Connect(ctx); err != nil {
		slog.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	slog.Info("connected to database",
		slog.String("host", cfg.Database.Host),
		slog.String("database", cfg.Database.Database),
	)

	// Initialize JWT service
	jwtService, err := jwt.NewService(jwt.Config{
		PrivateKeyPath: cfg.JWT.PrivateKeyPath,
		PublicKeyPath:  cfg.JWT.PublicKeyPath,
		Issuer:         cfg.JWT.Issuer,
		ExpirationMins: cfg.JWT.ExpirationMins,
	})
	if err != nil {
		slog.Error("failed to initialize JWT service", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	eventRepo := repository.NewEventRepository(db)
	registrationRepo := repository.NewRegistrationRepository(db)

	// Initialize the seat allocator with its snapshot broadcaster. All
	// registration decisions flow through the allocator so each event's
	// seat count changes one decision at a time.
	broadcaster := service.NewBroadcaster()
	allocator := service.NewSeatAllocator(registrationRepo, eventRepo, broadcaster)

	// Initialize services
	authService := service.NewAuthService(userRepo, jwtService)
	eventService := service.NewEventService(eventRepo, allocator)
	registrationService := service.NewRegistrationService(allocator, registrationRepo, eventRepo)

	// Initialize the reminder scanner when mail is configured
	if cfg.Mail.Enabled {
		mailer := service.NewMailerSendMailer(cfg.Mail.APIKey, cfg.Mail.FromName, cfg.Mail.FromEmail)
		scanner := jobs.NewReminderScanner(eventRepo, registrationRepo, userRepo, mailer,
			cfg.Reminder.Interval, cfg.Reminder.Window)
		scanner.Start()
		defer scanner.Stop()
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(authService)
	eventHandler := handler.NewEventHandler(eventService)
	registrationHandler := handler.NewRegistrationHandler(registrationService)
	watchHandler := handler.NewWatchHandler(allocator, broadcaster)
	healthHandler := handler.NewHealthHandler(db)

	// Set up routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("GET /v1/health", healthHandler.Health)

	// Auth endpoints (public)
	mux.HandleFunc("POST /v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /v1/auth/login", authHandler.Login)

	authMiddleware := middleware.Auth(jwtService)
	authed := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}
	organizer := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(middleware.RequireOrganizer(h))
	}

	// Event endpoints; reads are public, publishing needs the organizer role
	mux.HandleFunc("GET /v1/events", eventHandler.ListEvents)
	mux.Handle("POST /v1/events", organizer(eventHandler.CreateEvent))
	mux.HandleFunc("GET /v1/events/{eventId}", eventHandler.GetEvent)
	mux.Handle("PATCH /v1/events/{eventId}", authed(eventHandler.UpdateEvent))
	mux.Handle("DELETE /v1/events/{eventId}", authed(eventHandler.DeleteEvent))
	mux.Handle("GET /v1/events/{eventId}/stats", authed(eventHandler.Stats))

	// Registration endpoints
	mux.Handle("POST /v1/events/{eventId}/register", authed(registrationHandler.Register))
	mux.Handle("DELETE /v1/events/{eventId}/register", authed(registrationHandler.Unregister))
	mux.Handle("GET /v1/events/{eventId}/registrations", authed(registrationHandler.ListRegistrations))

	// Live availability stream (public, like event reads)
	mux.HandleFunc("GET /v1/events/{eventId}/watch", watchHandler.Watch)

	// Current user's views
	mux.Handle("GET /v1/users/me/events", authed(eventHandler.MyEvents))
	mux.Handle("GET /v1/users/me/registrations", authed(registrationHandler.MyRegistrations))

	// Apply middleware
	wrapped := middleware.Chain(
		mux,
		middleware.RequestID,
		middleware.Logger,
		middleware.Recovery,
		middleware.CORS(cfg.Server.AllowedOrigins),
	)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("starting server",
			slog.String("port", cfg.Server.Port),
			slog.String("env", cfg.Server.Env),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	slog.Info("server exited")
}
