package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	integrations "github.com/goliatone/go-integrations"
	"github.com/goliatone/go-integrations/adapters/gologger"
	"github.com/goliatone/go-integrations/core"
	"github.com/goliatone/go-integrations/transport/httpapi"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func newZapLogger(cfg daemonConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zapCfg := zap.NewProductionConfig()
	if cfg.LogDevelopment {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// buildRouter assembles the service, its providers and store, and the HTTP
// surface. The returned cleanup releases the store.
func buildRouter(ctx context.Context, cfg daemonConfig, zl *zap.Logger) (*gin.Engine, func(), error) {
	loggers := gologger.NewZapProvider(zl)
	storeLogger := loggers.GetLogger("store")

	providers, err := integrations.BuiltInProviders(cfg.providerSettings())
	if err != nil {
		return nil, nil, err
	}
	if len(providers) == 0 {
		zl.Warn("no provider client settings found; every integration route will return provider not found")
	}
	registry, err := integrations.NewRegistry(providers...)
	if err != nil {
		return nil, nil, err
	}

	opened, err := openStore(ctx, cfg, storeLogger)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	cleanup := func() {
		if closeErr := opened.close(); closeErr != nil {
			zl.Warn("store close failed", zap.Error(closeErr))
		}
	}

	svc, err := integrations.NewService(
		cfg.serviceConfig(),
		integrations.WithLoggerProvider(loggers),
		integrations.WithStore(opened.store),
		integrations.WithRegistry(registry),
		integrations.WithCompletionNotifier(core.CompletionNotifierFunc(func(_ context.Context, key core.CompositeKey) {
			zl.Info("integration flow completed",
				zap.String("provider", key.ProviderID),
				zap.String("user_id", key.UserID),
				zap.String("org_id", key.OrgID),
			)
		})),
	)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	facade, err := integrations.NewFacade(svc)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	handler, err := httpapi.NewHandler(facade, httpapi.WithHealthCheck(opened.ping))
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	router := httpapi.NewRouter(handler, httpapi.RouterConfig{
		Logger:            zl.Named("http"),
		RequestsPerMinute: cfg.RateLimitRPM,
	})
	return router, cleanup, nil
}

func run(ctx context.Context, cfg daemonConfig) error {
	zl, err := newZapLogger(cfg)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = zl.Sync() }()
	gin.SetMode(gin.ReleaseMode)

	router, cleanup, err := buildRouter(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer cleanup()

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		zl.Info("integrationsd listening", zap.String("addr", cfg.ListenAddr), zap.String("store", cfg.StoreDriver))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	zl.Info("integrationsd shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
