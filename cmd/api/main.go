package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/palisade-auth/palisade/internal/auth"
	"github.com/palisade-auth/palisade/internal/background"
	"github.com/palisade-auth/palisade/internal/config"
	"github.com/palisade-auth/palisade/internal/crypto"
	"github.com/palisade-auth/palisade/internal/database"
	"github.com/palisade-auth/palisade/internal/handlers"
	appmiddleware "github.com/palisade-auth/palisade/internal/middleware"
	"github.com/palisade-auth/palisade/internal/repositories"
	"github.com/palisade-auth/palisade/internal/routes"
	"github.com/palisade-auth/palisade/internal/services"
	pkghttp "github.com/palisade-auth/palisade/pkg/http"
	pkglogger "github.com/palisade-auth/palisade/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration. The master key is mandatory; a misconfigured
	// deployment must die here, not limp along encrypting with a throwaway
	// key.
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Run migrations before opening the pool
	if err := database.Migrate(cfg.Database.DSN(), "migrations"); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize encryption
	cryptoManager, err := crypto.NewManager(cfg.Security.MasterKey, cfg.Security.PBKDF2Iterations)
	if err != nil {
		logger.Error("failed to initialize encryption", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("encryption initialized", slog.String("key_fingerprint", cryptoManager.Fingerprint()))

	// Initialize repositories
	userRepo := repositories.NewUserRepository(db.Pool)
	sessionRepo := repositories.NewSessionRepository(db.Pool)
	rateLimitRepo := repositories.NewRateLimitRepository(db.Pool)
	auditRepo := repositories.NewAuditLogRepository(db.Pool)
	secretRepo := repositories.NewSecretRepository(db.Pool)

	// Initialize cleanup manager
	cleanupManager := background.NewCleanupManager(
		sessionRepo,
		rateLimitRepo,
		auditRepo,
		cfg.Security.AuditRetentionDays,
		logger,
		cfg.Security.CleanupInterval,
	)

	// AWS SES email service
	emailService, err := services.NewAWSSESEmailService(
		cfg.Email.AWSRegion,
		cfg.Email.FromAddress,
		cfg.Email.ResetURLBase,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize email service", slog.Any("error", err))
		os.Exit(1)
	}

	// Initialize services
	auditLogger := pkglogger.NewAuditLogger(logger)
	auditService := services.NewAuditService(auditRepo, auditLogger, logger)
	sessionService := services.NewSessionService(sessionRepo, cfg.Security.AccessTokenExpiry, cfg.Security.RefreshTokenExpiry, logger)
	rateLimitService := services.NewRateLimitService(rateLimitRepo, cfg.RateLimit, logger)
	lockoutService := services.NewLockoutService(userRepo, cfg.Security.LockoutThreshold, cfg.Security.LockoutDuration, logger)
	resetManager := auth.NewResetTokenManager(cfg.Security.MasterKey, cfg.Security.ResetTokenExpiry)
	secretService := services.NewSecretService(secretRepo, cryptoManager, auditService, logger)
	authService := services.NewAuthService(
		userRepo,
		sessionService,
		rateLimitService,
		lockoutService,
		auditService,
		resetManager,
		emailService,
		logger,
	)

	// Initialize handlers
	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	keysHandler := handlers.NewKeysHandler(secretService, ipConfig)
	auditHandler := handlers.NewAuditHandler(auditService)

	// Setup CORS middleware
	corsConfig := appmiddleware.DefaultCORSConfig(cfg.Server.Env)
	corsConfig.AllowedOrigins = cfg.Server.AllowedOrigins

	// Setup router
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(appmiddleware.SecurityHeaders(appmiddleware.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(appmiddleware.CORS(corsConfig))
	router.Use(appmiddleware.SecureLogger(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(60 * time.Second))

	// Register routes
	routes.RegisterRoutes(router, authHandler, keysHandler, auditHandler, sessionService, secretService, logger)

	// Health check with database and audit backlog signal
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := db.HealthCheck(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","database":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"healthy","database":"up","audit_events_dropped":%d}`, auditService.Dropped())
	})

	// Create server
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start cleanup task
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}
