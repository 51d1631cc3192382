// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown helpers.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("addr", addr).Info("starting server")
//
// Context-aware logging:
//
//	observability.FromContext(ctx).WithError(err).Error("request failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(registry)
//	metrics.PermissionChecksTotal.WithLabelValues("true").Inc()
//	metrics.CacheHitsTotal.WithLabelValues("statements", "organization").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	observability.RegisterHealthRoutes(mux, checker)
//
// # Graceful Shutdown
//
//	shutdown := observability.NewShutdownManager(logger, server, 30*time.Second)
//	shutdown.RegisterShutdownFunc(func(ctx context.Context) error { return db.Close() })
//	shutdown.WaitForShutdown()
package observability
