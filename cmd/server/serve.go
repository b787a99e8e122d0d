package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/MarceloDuretti/Financeiro-sub001/internal/auth"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/database"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/handlers"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/realtime"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/relay"
	"github.com/MarceloDuretti/Financeiro-sub001/internal/routes"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the real-time endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap(*cfgPath)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			db, err := database.Open(cfg.Database.Path, cfg.Database.LogLevel)
			if err != nil {
				return err
			}
			tenants := database.NewTenantDirectory(db)
			tokens := auth.NewTokenService(cfg.Auth)

			registry := realtime.NewRegistry(logger)
			var fanout realtime.Fanout = registry
			if cfg.Redis.URL != "" {
				client, err := relay.Connect(ctx, cfg.Redis.URL)
				if err != nil {
					return err
				}
				defer client.Close()
				r := relay.New(client, cfg.Redis.Channel, registry, logger)
				go func() {
					if err := r.Run(ctx); err != nil {
						logger.Error("relay stopped", zap.Error(err))
					}
				}()
				fanout = r
				logger.Info("cross-instance relay enabled", zap.String("channel", cfg.Redis.Channel))
			}
			notifier := realtime.NewNotifier(fanout, logger)

			gin.SetMode(gin.ReleaseMode)
			router := routes.SetupRoutes(routes.Deps{
				Handler:        handlers.New(db, tokens, notifier, cfg.Auth.CookieSecure, logger),
				Tokens:         tokens,
				Tenants:        tenants,
				Logger:         logger,
				AllowedOrigins: cfg.Realtime.AllowedOrigins,
			})

			rt := realtime.NewServer(registry, realtime.NewAuthenticator(tokens, tenants),
				realtime.WithPath(cfg.Realtime.Path),
				realtime.WithAllowedOrigins(cfg.Realtime.AllowedOrigins...),
				realtime.WithWriteWait(cfg.Realtime.WriteWait),
				realtime.WithReadLimit(cfg.Realtime.ReadLimit),
				realtime.WithSendBuffer(cfg.Realtime.SendBuffer),
				realtime.WithLogger(logger),
			)
			go realtime.NewMonitor(registry, cfg.Realtime.PingInterval, logger).Run(ctx)

			srv := &http.Server{
				Addr:    cfg.Server.Addr,
				Handler: rt.Handler(router),
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("server starting",
					zap.String("addr", cfg.Server.Addr),
					zap.String("realtime_path", rt.Path()),
				)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			// Hijacked sockets are not tracked by Shutdown; close them explicitly.
			for _, c := range registry.Snapshot() {
				c.Terminate()
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return err
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
			return nil
		},
	}
}
