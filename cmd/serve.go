package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"arrively-api/apperr"
	"arrively-api/auth"
	"arrively-api/config"
	"arrively-api/handlers"
	"arrively-api/middleware"
	"arrively-api/routes"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer e.close()
	log := e.log

	ran, err := config.Migrate(ctx, e.db)
	if err != nil {
		return apperr.Startup("migrations", err)
	}
	for _, name := range ran {
		log.Info("migration applied", zap.String("name", name))
	}

	var denylist auth.Denylist = auth.NewDBDenylist(e.db)
	rdb, err := config.OpenRedis(ctx, e.cfg.Redis)
	if err != nil {
		return apperr.Startup("redis", err)
	}
	if rdb != nil {
		defer rdb.Close()
		denylist = auth.NewRedisDenylist(rdb)
		log.Info("token denylist backed by redis", zap.String("addr", e.cfg.Redis.Addr))
	}

	tokens := auth.NewTokenManager(auth.TokenConfig{
		AccessSecret:  []byte(e.cfg.JWT.AccessSecret),
		RefreshSecret: []byte(e.cfg.JWT.RefreshSecret),
		AccessTTL:     e.cfg.JWT.AccessTTL,
		RefreshTTL:    e.cfg.JWT.RefreshTTL,
		Leeway:        e.cfg.JWT.Leeway,
	})

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := middleware.NewMetrics(reg)

	if e.cfg.Env != "dev" && e.cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := routes.NewRouter(routes.Options{
		Deps: handlers.Deps{
			DB:       e.db,
			Tokens:   tokens,
			Hasher:   auth.NewPasswordHasher(e.cfg.Security.BcryptCost),
			Denylist: denylist,
			Metrics:  metrics,
			Logger:   log,
		},
		AuthRateLimitRPM:   e.cfg.Security.AuthRateLimitRPM,
		CORSAllowedOrigins: e.cfg.Security.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              e.cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", srv.Addr), zap.String("env", e.cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err, ok := <-errCh:
		if ok {
			return apperr.Startup("listen", err)
		}
		return nil
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), e.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}
