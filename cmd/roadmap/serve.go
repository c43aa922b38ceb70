package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	httpapi "github.com/tbourn/go-roadmap-replica/internal/http"
	"github.com/tbourn/go-roadmap-replica/internal/observability"
	"github.com/tbourn/go-roadmap-replica/internal/sysutil"
)

const shutdownTimeout = 15 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API over the local replica",
		Long: `Serve the search and replication API. When SYNC_ON_START is set and
the replica is older than SYNC_STALE_AFTER (or has never synced), a
replication pass starts in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := sysutil.ShutdownContext(cmd.Context())
			defer stop()
			return c.serve(ctx)
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	shutdownOTel, err := observability.SetupOTel(ctx, c.cfg.OTEL, version, c.log)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			c.log.Warn().Err(err).Msg("tracer shutdown")
		}
	}()

	a, err := c.open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.close(); err != nil {
			c.log.Warn().Err(err).Msg("close store")
		}
	}()

	gin.SetMode(c.cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, a.catalog, a.syncer, c.cfg, c.log)

	srv := &http.Server{
		Addr:              ":" + c.cfg.Port,
		Handler:           r,
		ReadTimeout:       c.cfg.ReadTimeout,
		ReadHeaderTimeout: c.cfg.ReadHeaderTimeout,
		WriteTimeout:      c.cfg.WriteTimeout,
		IdleTimeout:       c.cfg.IdleTimeout,
		MaxHeaderBytes:    c.cfg.MaxHeaderBytes,
	}

	if c.cfg.Sync.OnStart && a.syncer.TriggerIfStale(ctx, c.cfg.Sync.StaleAfter) {
		c.log.Info().Dur("stale_after", c.cfg.Sync.StaleAfter).Msg("replica is stale, sync started")
	}

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		c.log.Info().
			Str("addr", srv.Addr).
			Str("base_path", c.cfg.APIBasePath).
			Str("version", version).
			Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	c.log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		c.log.Error().Err(err).Msg("http shutdown")
	}
	c.log.Info().Msg("waiting for background sync")
	a.syncer.Wait()
	return nil
}
