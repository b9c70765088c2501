package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/stewardhq/steward/internal/api"
	"github.com/stewardhq/steward/internal/auth"
	"github.com/stewardhq/steward/internal/config"
	"github.com/stewardhq/steward/internal/grpcapi"
	"github.com/stewardhq/steward/internal/metrics"
	"github.com/stewardhq/steward/internal/namespace"
	"github.com/stewardhq/steward/internal/ratelimit"
	"github.com/stewardhq/steward/internal/token"
	"github.com/stewardhq/steward/internal/usage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Steward API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return err
	}
	poolCfg.MaxConns = cfg.Database.MaxConns

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		stat := pool.Stat()
		return stat.TotalConns(), stat.IdleConns(), stat.AcquiredConns()
	})

	namespaceStore := namespace.NewStore(pool)
	tokenStore := token.NewStore(pool)
	usageStore := usage.NewStore(pool)

	resolver := auth.NewResolver(cfg.Auth.JWTSecret, tokenStore)

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Requests > 0 {
		limiter = ratelimit.New(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	}

	ready := func(ctx context.Context) error { return pool.Ping(ctx) }

	router := api.NewRouter(api.RouterDeps{
		Namespaces:      namespaceStore,
		Tokens:          tokenStore,
		Usage:           usageStore,
		Passwords:       namespaceStore,
		Resolver:        resolver,
		Limiter:         limiter,
		Metrics:         m,
		AdminKey:        cfg.Auth.AdminKey,
		AllowTypeChange: cfg.Policy.AllowTypeChange,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		Ready:           ready,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	grpcSrv := grpcapi.New(grpcapi.Deps{
		Logger:  logger,
		Metrics: m,
		Ready:   ready,
	})
	go grpcSrv.WatchReadiness(ctx, 15*time.Second)

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("grpc server starting", "addr", cfg.GRPCAddr())
		if err := grpcSrv.GRPC().Serve(grpcLis); err != nil {
			slog.Error("grpc server error", "error", err)
		}
	}()

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	grpcSrv.GracefulStop()

	return srv.Shutdown(shutdownCtx)
}
