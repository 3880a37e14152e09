package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/the-queue-must-flow/internal/api"
	"github.com/Veraticus/the-queue-must-flow/internal/certs"
	"github.com/Veraticus/the-queue-must-flow/internal/config"
	"github.com/Veraticus/the-queue-must-flow/internal/metrics"
	"github.com/Veraticus/the-queue-must-flow/internal/queue"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(e *env) *cobra.Command {
	var (
		useTLS   bool
		tlsDir   string
		tlsHosts []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the JSON API under /api/v1, with /health and Prometheus
metrics on /metrics. Callers identify themselves with the X-Account-ID header.

With --tls the API is served over HTTPS using a self-signed certificate
kept in --tls-dir and regenerated when it nears expiry.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			collector := metrics.New()
			svc, err := e.openServices(ctx, queue.WithObserver(collector))
			if err != nil {
				return err
			}
			defer svc.Close()

			var limiter *api.RateLimiter
			if e.cfg.Server.RateLimit > 0 {
				limiter = api.NewRateLimiter(e.cfg.Server.RateLimit, e.cfg.Server.RateBurst)
			}

			server := api.NewServer(api.Config{
				Engine:  svc.engine,
				Queries: svc.queries,
				Admin:   svc.admin,
				Store:   svc.store,
				Logger:  slog.Default(),
				Metrics: collector,
				Limiter: limiter,
			})

			httpServer := &http.Server{
				Addr:              e.cfg.Server.Addr,
				Handler:           server.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			if useTLS {
				cert, err := certs.NewStore(config.ExpandPath(tlsDir), tlsHosts...).Load()
				if err != nil {
					return fmt.Errorf("failed to load TLS certificate: %w", err)
				}
				httpServer.TLSConfig = &tls.Config{
					Certificates: []tls.Certificate{cert},
					MinVersion:   tls.VersionTLS12,
				}
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				slog.Info("API listening", "addr", httpServer.Addr, "tls", useTLS)
				var err error
				if useTLS {
					err = httpServer.ListenAndServeTLS("", "")
				} else {
					err = httpServer.ListenAndServe()
				}
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				slog.Info("Shutting down API")
				return httpServer.Shutdown(shutdownCtx)
			})
			if limiter != nil {
				g.Go(func() error {
					limiter.Run(gctx, time.Minute)
					return nil
				})
			}

			return g.Wait()
		},
	}

	cmd.Flags().String("addr", "", "listen address (default: server.addr)")
	_ = e.v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	cmd.Flags().BoolVar(&useTLS, "tls", false, "serve HTTPS with a self-signed certificate")
	cmd.Flags().StringVar(&tlsDir, "tls-dir", "~/.config/qflow/certs", "where the certificate is kept")
	cmd.Flags().StringSliceVar(&tlsHosts, "tls-host", nil, "host names the certificate covers (default: localhost)")

	return cmd
}
