package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/palisade-auth/palisade/internal/auth"
	"github.com/palisade-auth/palisade/internal/config"
	"github.com/palisade-auth/palisade/internal/crypto"
	"github.com/palisade-auth/palisade/internal/database"
	"github.com/palisade-auth/palisade/internal/handlers"
	middlewareCustom "github.com/palisade-auth/palisade/internal/middleware"
	"github.com/palisade-auth/palisade/internal/routes"
	"github.com/palisade-auth/palisade/internal/services"
	pkghttp "github.com/palisade-auth/palisade/pkg/http"
	pkglogger "github.com/palisade-auth/palisade/pkg/logger"
)

// Iteration count is deliberately tiny; key derivation strength is not under
// test here.
const testPBKDF2Iterations = 1000

// SentEmail represents a captured email message
type SentEmail struct {
	To    string
	Token string
}

// MockEmailService captures password reset emails for test assertions
type MockEmailService struct {
	SentEmails []SentEmail
	mu         sync.Mutex
}

// SendPasswordReset records the email instead of sending it
func (m *MockEmailService) SendPasswordReset(ctx context.Context, email, token string, expiresIn time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SentEmails = append(m.SentEmails, SentEmail{To: email, Token: token})
	return nil
}

// GetLastEmail returns the most recent email sent
func (m *MockEmailService) GetLastEmail() *SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.SentEmails) == 0 {
		return nil
	}
	return &m.SentEmails[len(m.SentEmails)-1]
}

// TestServer wraps httptest.Server with database and all dependencies
type TestServer struct {
	Server       *httptest.Server
	DB           *database.DB
	EmailService *MockEmailService
	Config       *config.Config
	Audit        *services.AuditService

	logger *slog.Logger
}

// NewTestServer initializes a complete HTTP server with real database + mocked email
func NewTestServer(db *database.DB) (*TestServer, error) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "0",
			Env:            "test",
			AllowedOrigins: []string{},
			TrustedProxies: []string{},
		},
		Security: config.SecurityConfig{
			MasterKey:          "integration-test-master-key-32ch",
			PBKDF2Iterations:   testPBKDF2Iterations,
			LockoutThreshold:   5,
			LockoutDuration:    30 * time.Minute,
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: 7 * 24 * time.Hour,
			ResetTokenExpiry:   15 * time.Minute,
		},
		RateLimit: config.RateLimitConfig{
			Rules: map[string]config.RateLimitRule{
				"default":        {Max: 60, Window: time.Minute},
				"login":          {Max: 10, Window: 15 * time.Minute},
				"register":       {Max: 100, Window: time.Hour},
				"password_reset": {Max: 3, Window: time.Hour},
			},
		},
	}

	userRepo, sessionRepo, rateLimitRepo, auditRepo, secretRepo := InitializeRepositories(db)

	cryptoManager, err := crypto.NewManager(cfg.Security.MasterKey, cfg.Security.PBKDF2Iterations)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize encryption: %w", err)
	}

	mockEmail := &MockEmailService{SentEmails: []SentEmail{}}

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
		mockEmail,
		logger,
	)

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}
	authHandler := handlers.NewAuthHandler(authService, ipConfig)
	keysHandler := handlers.NewKeysHandler(secretService, ipConfig)
	auditHandler := handlers.NewAuditHandler(auditService)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(r, authHandler, keysHandler, auditHandler, sessionService, secretService, logger)

	server := httptest.NewServer(r)

	return &TestServer{
		Server:       server,
		DB:           db,
		EmailService: mockEmail,
		Config:       cfg,
		Audit:        auditService,
		logger:       logger,
	}, nil
}

// Close shuts down the test server
func (ts *TestServer) Close() {
	if ts.Server != nil {
		ts.Server.Close()
	}
}

// Request makes an HTTP request to the test server
func (ts *TestServer) Request(method, path string, body interface{}, headers map[string]string) (*http.Response, error) {
	url := ts.Server.URL + path

	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	return http.DefaultClient.Do(req)
}

// RequestWithAuth makes an authenticated HTTP request with a session token
func (ts *TestServer) RequestWithAuth(method, path, sessionToken string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"Authorization": "Bearer " + sessionToken,
	}
	return ts.Request(method, path, body, headers)
}

// RequestWithAPIKey makes a programmatic HTTP request with an API key
func (ts *TestServer) RequestWithAPIKey(method, path, apiKey string, body interface{}) (*http.Response, error) {
	headers := map[string]string{
		"X-API-Key": apiKey,
	}
	return ts.Request(method, path, body, headers)
}

// ParseJSONResponse parses JSON response body into target struct
func ParseJSONResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(target)
}

// ExtractTokensFromResponse extracts session/refresh tokens from auth response
func ExtractTokensFromResponse(resp *http.Response) (sessionToken, refreshToken string, err error) {
	defer resp.Body.Close()

	var authResp struct {
		Tokens struct {
			SessionToken string `json:"session_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"tokens"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", "", fmt.Errorf("failed to parse response: %w", err)
	}

	return authResp.Tokens.SessionToken, authResp.Tokens.RefreshToken, nil
}

// GetErrorMessage extracts error message from error response
func GetErrorMessage(resp *http.Response) (string, error) {
	defer resp.Body.Close()
	var errResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return "", err
	}
	if msg, ok := errResp["message"].(string); ok {
		return msg, nil
	}
	return "", nil
}
