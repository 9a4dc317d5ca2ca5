package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/schoolprogress/schoolprogress/internal/app"
	"github.com/schoolprogress/schoolprogress/internal/auth"
	"github.com/schoolprogress/schoolprogress/internal/observability"
	"github.com/schoolprogress/schoolprogress/internal/platform/backend"
	"github.com/schoolprogress/schoolprogress/internal/platform/cache"
	"github.com/schoolprogress/schoolprogress/internal/platform/db"
	"github.com/schoolprogress/schoolprogress/internal/rbac"
	"github.com/schoolprogress/schoolprogress/internal/roles"
	"github.com/schoolprogress/schoolprogress/internal/session"
	"github.com/schoolprogress/schoolprogress/internal/shared"
	"github.com/schoolprogress/schoolprogress/internal/view"
	"github.com/schoolprogress/schoolprogress/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if cfg.SharesSessionSecret() {
		logger.Warn("JWT_SECRET is empty, signing credentials with SESSION_SECRET; set JWT_SECRET before production")
	}

	redisClient, err := cache.New(ctx, cfg.Redis())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var dbpool *pgxpool.Pool
	dbpool, err = db.New(ctx, cfg.Postgres())
	if err != nil {
		if cfg.AuthMode == app.AuthModeLocal {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("postgres unavailable, login audit disabled", slog.Any("error", err))
		dbpool = nil
	} else {
		defer dbpool.Close()
	}

	var (
		authenticator   auth.Authenticator
		sessionRepo     auth.SessionRepository
		credentialCheck session.CredentialCheck
	)
	if dbpool != nil {
		repo := auth.NewRepository(dbpool)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Error("ensure auth schema", slog.Any("error", err))
			os.Exit(1)
		}
		sessionRepo = repo
		if cfg.AuthMode == app.AuthModeLocal {
			issuer := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
			authenticator = auth.NewLocalAuthenticator(repo, issuer)
			credentialCheck = issuer.Check
		}
	}
	if cfg.AuthMode == app.AuthModeRemote {
		authenticator = auth.NewRemoteAuthenticator(backend.NewClient(cfg.BackendURL, cfg.BackendTimeout))
	}
	logger.Info("authentication configured", slog.String("mode", cfg.AuthMode))

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	registry := roles.Default()
	routes := rbac.NewRouteTable(registry)
	if err := routes.Validate(); err != nil {
		logger.Error("route table", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	authService := auth.NewService(authenticator, sessionRepo)
	stores := session.RequestProvider(logger, credentialCheck)
	authHandler := auth.NewHandler(logger, authService, templates, sessionManager, csrfManager, registry, metrics).WithStores(stores)
	rbacMiddleware := rbac.Middleware{
		Routes:   routes,
		Stores:   stores,
		Logger:   logger,
		Observer: metrics,
	}

	redisOpts := cfg.Redis().Asynq()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		Templates:      templates,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Registry:       registry,
		AuthHandler:    authHandler,
		AuthService:    authService,
		RBACMiddleware: rbacMiddleware,
		Stores:         stores,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
