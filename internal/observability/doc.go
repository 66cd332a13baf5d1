// Package observability provides the logging, metrics and health tooling
// shared by the gateway components.
//
// # Logging
//
// Build the process logger once at startup from configuration:
//
//	logger, err := observability.NewLogger(observability.LoggingOptions{Level: "info", Format: "json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
// Components receive a *zap.Logger. HTTP handlers wrap it to get the
// request-scoped helpers:
//
//	l := observability.Wrap(logger).WithContext(ctx)
//	l.LogDriverOperation("GetNs", "osm", orchestratorID, err)
//
// # Metrics
//
//	metrics := observability.InitMetrics("msolo")
//	start := time.Now()
//	body, headers, err := drv.GetNs(ctx, nsID, args)
//	metrics.RecordDriverOperation("osm", "GetNs", time.Since(start), err)
//
// # Health Checks
//
//	hc := observability.NewHealthChecker(version)
//	hc.RegisterHealthCheck("redis", observability.RedisHealthCheck(func(ctx context.Context) error {
//	    return rdb.Ping(ctx).Err()
//	}))
//	hc.RegisterReadinessCheck("repository", observability.RepositoryHealthCheck(repo.Ping))
//
//	router.GET("/health", hc.HealthHandler())
//	router.GET("/ready", hc.ReadinessHandler())
package observability
