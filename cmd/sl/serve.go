package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"staffline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			e, conn, err := openEngine(ctx)
			if err != nil {
				return err
			}
			defer conn.Close()
			sc := e.Config.Server
			if cmd.Flags().Changed("addr") || sc.Addr == "" {
				sc.Addr = addr
			}
			if cmd.Flags().Changed("base-path") || sc.BasePath == "" {
				sc.BasePath = basePath
			}
			authCfg := server.AuthConfig{JWTSecret: viper.GetString("jwt-secret"), Logger: e.Log}
			if !authCfg.Enabled() {
				e.Log.Warn().Msg("STAFFLINE_JWT_SECRET not set; API accepts unauthenticated requests")
			}
			handler, err := server.New(server.Config{
				Engine:    e,
				BasePath:  sc.BasePath,
				Auth:      authCfg,
				RateLimit: sc.RateLimitPerSecond,
				RateBurst: sc.RateBurst,
				Logger:    e.Log,
			})
			if err != nil {
				return err
			}
			if d := server.StartWebhooks(ctx, e, e.Log); d != nil {
				e.Log.Info().Int("hooks", len(e.Config.Webhooks)).Msg("webhook dispatcher started")
			}
			srv := &http.Server{Addr: sc.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving Staffline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs, metrics at /metrics)\n", sc.Addr, sc.BasePath, sc.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path (overrides server.base_path)")
	cmd.Flags().String("jwt-secret", "", "HS256 secret enabling bearer auth (env STAFFLINE_JWT_SECRET)")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}
