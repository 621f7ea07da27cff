package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AryanTejani/backend-Lms-sub001/internal/auth"
	"github.com/AryanTejani/backend-Lms-sub001/internal/config"
	"github.com/AryanTejani/backend-Lms-sub001/internal/mail"
	"github.com/AryanTejani/backend-Lms-sub001/internal/oauth"
	"github.com/AryanTejani/backend-Lms-sub001/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup always runs. Shuts down when ctx is cancelled
// (signal handling is the caller's concern). If ready is non-nil, the
// server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	db, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to set up postgres store: %w", err)
	}
	defer db.Close()

	migrationsFS, err := fs.Sub(migrationsDir, "migrations")
	if err != nil {
		return fmt.Errorf("failed to access embedded migrations: %w", err)
	}
	if err := db.Migrate(ctx, migrationsFS); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Shared Redis client; all Redis structs share one connection pool.
	rdb, err := store.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to set up redis client: %w", err)
	}
	defer rdb.Close()

	limiter := store.NewRateLimiter(rdb, cfg.RateLimitFailOpen)
	locker := store.NewLocker(rdb)

	var mailer mail.Mailer = mail.NopMailer{}
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:         cfg.SMTPHost,
			Port:         cfg.SMTPPort,
			Username:     cfg.SMTPUsername,
			Password:     cfg.SMTPPassword,
			FromAddress:  cfg.SMTPFromAddress,
			ResetURLBase: cfg.SMTPResetURLBase,
		})
	}

	limits := auth.RateLimits{
		Login:  auth.RatePolicy{Max: cfg.RateLoginMax, Window: cfg.RateLoginWindow},
		Signup: auth.RatePolicy{Max: cfg.RateSignupMax, Window: cfg.RateSignupWindow},
		Reset:  auth.RatePolicy{Max: cfg.RateResetMax, Window: cfg.RateResetWindow},
	}

	// Customer track.
	customerSessions := store.NewCustomerSessions(db, cfg.SessionMaxAge)
	customerCache := store.NewSessionCache(rdb, "customer", cfg.SessionCacheTTL)
	customerGW := &auth.Gateway{
		Track:      "customer",
		Principals: store.NewCustomerDirectory(db),
		Sessions:   customerSessions,
		Cache:      customerCache,
		BcryptCost: cfg.BcryptCost,
	}
	customerReset := &auth.ResetFlow{
		Track:       "customer",
		Principals:  customerGW.Principals,
		Sessions:    customerSessions,
		Cache:       customerCache,
		Tokens:      store.NewPasswordResetStore(rdb, "customer"),
		Mailer:      mailer,
		TokenTTL:    cfg.ResetTokenTTL,
		Cooldown:    cfg.ResetCooldown,
		MaxAttempts: cfg.ResetMaxAttempts,
		BcryptCost:  cfg.BcryptCost,
	}
	customerHandler := &auth.Handler{
		Track:         "customer",
		GW:            customerGW,
		Reset:         customerReset,
		RL:            limiter,
		Limits:        limits,
		SessionMaxAge: cfg.SessionMaxAge,
	}

	// Google OAuth mounts only when the client credentials are configured.
	if cfg.GoogleOAuthEnabled() {
		google, err := oauth.NewGoogleProvider(ctx,
			cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRedirectURL)
		if err != nil {
			return fmt.Errorf("failed to set up google oauth: %w", err)
		}
		customerHandler.OAuth = &auth.OAuthFlow{
			Provider:    google,
			States:      store.NewOAuthStateStore(rdb, cfg.OAuthStateTTL),
			Accounts:    db,
			Gateway:     customerGW,
			RedirectURI: cfg.GoogleRedirectURL,
		}
	}

	// Staff track. No self-signup and no OAuth; staff accounts are
	// provisioned out of band. Reset reveals unknown emails -- the console
	// is internal, enumeration is not a threat there.
	staffSessions := store.NewStaffSessions(db, cfg.SessionMaxAge)
	staffCache := store.NewSessionCache(rdb, "staff", cfg.SessionCacheTTL)
	staffGW := &auth.Gateway{
		Track:      "staff",
		Principals: store.NewStaffDirectory(db),
		Sessions:   staffSessions,
		Cache:      staffCache,
		BcryptCost: cfg.BcryptCost,
	}
	staffHandler := &auth.Handler{
		Track: "staff",
		GW:    staffGW,
		Reset: &auth.ResetFlow{
			Track:                "staff",
			Principals:           staffGW.Principals,
			Sessions:             staffSessions,
			Cache:                staffCache,
			Tokens:               store.NewPasswordResetStore(rdb, "staff"),
			Mailer:               mailer,
			TokenTTL:             cfg.ResetTokenTTL,
			Cooldown:             cfg.ResetCooldown,
			MaxAttempts:          cfg.ResetMaxAttempts,
			BcryptCost:           cfg.BcryptCost,
			RevealMissingAccount: true,
		},
		RL:            limiter,
		Limits:        limits,
		SessionMaxAge: cfg.SessionMaxAge,
	}

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{Handler: buildRouter(customerHandler, staffHandler)}

	// Session cleanup goroutine: sweeps at start and hourly, guarded by a
	// Redis lock so only one instance sweeps at a time.
	cleanup := &auth.CleanupJob{
		Locker: locker,
		Tables: []auth.JanitorTable{
			{Name: "customer_sessions", Janitor: customerSessions},
			{Name: "staff_sessions", Janitor: staffSessions},
		},
		Interval:         cfg.CleanupInterval,
		LockTTL:          5 * time.Minute,
		RevokedRetention: cfg.SessionRevokedRetention,
		SessionMaxAge:    cfg.SessionMaxAge,
		BatchSize:        cfg.CleanupBatchSize,
	}
	cleanupCtx, cancelCleanup := context.WithCancel(ctx)
	defer cancelCleanup()
	go cleanup.Run(cleanupCtx)

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildRouter wires all routes and middleware for both tracks.
// Called from run() and from router smoke tests.
func buildRouter(customer, staff *auth.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", func(r chi.Router) {
		mountTrack(r, customer, true)
	})
	r.Route("/admin/auth", func(r chi.Router) {
		mountTrack(r, staff, false)
	})

	return r
}

// mountTrack wires one track's endpoints. selfService enables signup and
// OAuth, which only exist on the customer track.
func mountTrack(r chi.Router, h *auth.Handler, selfService bool) {
	if selfService {
		r.Post("/signup", h.Signup)
		if h.OAuth != nil {
			r.Get("/oauth/google", h.OAuthRedirect)
			r.Get("/oauth/google/callback", h.OAuthCallback)
		}
	}
	r.Post("/login", h.Login)
	r.Post("/password/reset", h.PasswordResetRequest)
	r.Post("/password/reset/confirm", h.PasswordResetConfirm)

	guard := &auth.Guard{Track: h.Track, Sessions: h.GW}
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAuth)
		r.Get("/me", h.Me)
		r.Post("/logout", h.Logout)
		r.Post("/logout-all", h.LogoutAll)
		r.Post("/password/change", h.PasswordChange)
	})
}
