package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/platware/orgauth/pkg/audit"
	"github.com/platware/orgauth/pkg/config"
	"github.com/platware/orgauth/pkg/httputil"
	"github.com/platware/orgauth/pkg/observability"
	"github.com/platware/orgauth/pkg/orgac"
	"github.com/platware/orgauth/pkg/orgs"
	"github.com/platware/orgauth/pkg/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).
			WithError(err).Error("failed to load configuration")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnLifetime)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}

	if err := orgs.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run organization migrations")
		os.Exit(1)
	}
	if err := orgac.RunMigrations(ctx, db); err != nil {
		logger.WithError(err).Error("failed to run access-control migrations")
		os.Exit(1)
	}

	// Closed once, via the shutdown manager.
	auditLogger, err := buildAuditLogger(ctx, cfg, db)
	if err != nil {
		logger.WithError(err).Error("failed to configure audit logging")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var statementCache orgac.StatementCache
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		cache, err := orgac.NewRedisStatementCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.Prefix)
		if err != nil {
			logger.WithError(err).Error("failed to connect to redis")
			os.Exit(1)
		}
		defer cache.Close()
		statementCache = cache
		redisClient = cache.Client()
	}

	acConfig := orgac.DefaultConfig()
	acConfig.MaximumResourcesPerOrganization = cfg.AccessControl.MaximumResourcesPerOrganization
	acConfig.CompiledRoleCacheSize = cfg.AccessControl.CompiledRoleCacheSize
	if limit := cfg.AccessControl.MaximumRolesPerOrganization; limit > 0 {
		acConfig.MaximumRolesPerOrganization = orgac.StaticRoleLimit(limit)
	}

	acManager, err := orgac.NewManager(db, acConfig, orgac.ManagerOptions{
		Cache:       statementCache,
		Logger:      logger,
		Metrics:     metrics,
		AuditLogger: auditLogger,
	})
	if err != nil {
		logger.WithError(err).Error("failed to create access-control manager")
		os.Exit(1)
	}

	orgService := orgs.NewService(db, orgs.ServiceOptions{
		AccessControl: acManager,
		Logger:        logger,
		AuditLogger:   auditLogger,
		CreatorRole:   acConfig.CreatorRole,
		InvitationTTL: cfg.AccessControl.InvitationTTL,
	})

	janitor, err := orgs.NewInvitationJanitor(orgService, logger, cfg.AccessControl.InvitationSweepSchedule)
	if err != nil {
		logger.WithError(err).Error("failed to schedule invitation sweep")
		os.Exit(1)
	}
	janitor.Start()
	defer janitor.Stop()

	tokens := session.NewTokenManager(cfg.Session.Secret, cfg.Session.Issuer, cfg.Session.TTL)
	authn := session.NewMiddleware(tokens, false)

	router := mux.NewRouter()
	router.Use(httputil.RequestIDMiddleware)
	router.Use(httputil.RecoveryMiddleware(logger))
	router.Use(httputil.MaxBytesMiddleware(1 << 20))

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(authn.Handler)
	if metrics != nil {
		api.Use(observability.HTTPMetricsMiddleware(metrics))
	}
	acManager.RegisterRoutes(api)
	orgs.NewHandlers(orgService, acManager.Gate()).RegisterRoutes(api)

	// Health and metrics on a separate port for probes.
	if cfg.Observability.MetricsEnabled {
		opsMux := http.NewServeMux()
		observability.RegisterHealthRoutes(opsMux, observability.NewHealthChecker(db, redisClient))
		observability.RegisterMetricsEndpoint(opsMux, registry)
		go func() {
			addr := cfg.Server.Host + ":" + cfg.Observability.MetricsPort
			if err := http.ListenAndServe(addr, opsMux); err != nil && err != http.ErrServerClosed {
				logger.WithError(err).Error("metrics server failed")
			}
		}()
		go collectDBStats(db, metrics)
	}

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(context.Context) error { return db.Close() })
	shutdown.RegisterShutdownFunc(func(context.Context) error { return auditLogger.Close() })

	go func() {
		logger.WithField("addr", server.Addr).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			os.Exit(1)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("shutdown failed")
		os.Exit(1)
	}
}

func buildAuditLogger(ctx context.Context, cfg *config.Config, db *sql.DB) (audit.Logger, error) {
	var sinks []audit.Logger
	if cfg.Audit.DBEnabled {
		dbLogger, err := audit.NewDBLogger(ctx, db)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, dbLogger)
	}
	if cfg.Audit.FilePath != "" {
		fileLogger, err := audit.NewFileLogger(cfg.Audit.FilePath)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileLogger)
	}

	switch len(sinks) {
	case 0:
		return audit.NopLogger(), nil
	case 1:
		return sinks[0], nil
	default:
		return audit.NewMultiLogger(sinks...), nil
	}
}

func collectDBStats(db *sql.DB, metrics *observability.Metrics) {
	for {
		metrics.CollectDBStats(db.Stats())
		time.Sleep(15 * time.Second)
	}
}
