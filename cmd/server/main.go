package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/JonMunkholm/streakflow/internal/auth"
	"github.com/JonMunkholm/streakflow/internal/config"
	"github.com/JonMunkholm/streakflow/internal/core"
	"github.com/JonMunkholm/streakflow/internal/logging"
	"github.com/JonMunkholm/streakflow/internal/store"
	"github.com/JonMunkholm/streakflow/internal/tenant"
	"github.com/JonMunkholm/streakflow/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists; real environment variables win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"be_domain", cfg.Tenancy.BEDomain,
		"nl_domain", cfg.Tenancy.NLDomain,
		"be_key_set", cfg.Streak.BEKey != "",
		"nl_key_set", cfg.Streak.NLKey != "",
		"login_enabled", cfg.Auth.LoginEnabled(),
		"database_enabled", cfg.Database.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()

	users, closeStore, err := openUserStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to open user store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Background jobs stop with this context.
	jobCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()

	keyCache := tenant.NewKeyCache(cfg.Tenancy.KeyCacheTTL)
	go keyCache.StartSweeper(jobCtx, cfg.Tenancy.SweepInterval)

	router := tenant.NewRouter(tenant.Options{
		BEDomain: cfg.Tenancy.BEDomain,
		NLDomain: cfg.Tenancy.NLDomain,
		BEKey:    cfg.Streak.BEKey,
		NLKey:    cfg.Streak.NLKey,
		Cache:    keyCache,
	})

	limiter := core.NewCallLimiter(cfg.Streak.MaxConcurrent, cfg.Streak.MaxWaitTime)
	service, err := core.NewService(core.Options{
		Router: router,
		Fields: core.FieldConfig{
			PartnershipValueKey: cfg.Fields.PartnershipValueKey,
			PartnershipName:     cfg.Fields.PartnershipName,
			PartnershipKey:      cfg.Fields.PartnershipKey,
			PartnerPageLiveName: cfg.Fields.PartnerPageLiveName,
			PartnerPageLiveKey:  cfg.Fields.PartnerPageLiveKey,
		},
		BaseURL:    cfg.Streak.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Streak.Timeout},
		Limiter:    limiter,
		Users:      users,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	sessions, err := auth.NewSessions(auth.SessionOptions{
		Secret:     cfg.Auth.SessionSecret,
		TTL:        cfg.Auth.SessionTTL,
		CookieName: cfg.Auth.CookieName,
		Secure:     cfg.Auth.SecureCookies,
	})
	if err != nil {
		slog.Error("failed to create session manager", "error", err)
		os.Exit(1)
	}

	var login *auth.OIDC
	if cfg.Auth.LoginEnabled() {
		login, err = auth.NewOIDC(ctx, auth.OIDCOptions{
			Issuer:       cfg.Auth.Issuer,
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			RedirectURL:  cfg.Auth.RedirectURL,
			Secure:       cfg.Auth.SecureCookies,
			Users:        users,
		})
		if err != nil {
			slog.Error("failed to set up login", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("OIDC_ISSUER_URL not set, login is disabled")
	}

	server := web.NewServer(web.Options{
		Service:  service,
		Sessions: sessions,
		OIDC:     login,
		Config:   cfg,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := serve(server, limiter, sigCh, cfg.Server.ShutdownTimeout, cancelJobs); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// httpServer is the part of web.Server that serve drives.
type httpServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// upstreamCalls is the part of core.CallLimiter that serve drains.
type upstreamCalls interface {
	Status() core.LimiterStatus
	WaitForDrain(ctx context.Context) error
}

// serve runs srv until a signal arrives, then shuts it down and waits for
// upstream calls to drain. It returns only after shutdown has finished.
func serve(srv httpServer, upstream upstreamCalls, sigCh <-chan os.Signal, timeout time.Duration, stopJobs func()) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-sigCh

		slog.Info("shutting down...")
		stopJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Handlers are done; let detached upstream bodies drain.
		if status := upstream.Status(); status.Active > 0 {
			slog.Info("waiting for upstream calls to finish", "active", status.Active)
			if err := upstream.WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("upstream calls did not finish in time", "error", err)
			}
		}
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}

// openUserStore connects to Postgres when configured and migrates the user
// table; otherwise profiles live in memory.
func openUserStore(ctx context.Context, cfg config.DatabaseConfig) (store.UserStore, func(), error) {
	if !cfg.Enabled() {
		slog.Info("DATABASE_URL not set, keeping user profiles in memory")
		return store.NewMemoryStore(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	pg := store.NewPGStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return pg, pool.Close, nil
}
