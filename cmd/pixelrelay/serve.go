package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/groblegark/pixelrelay/internal/bus"
	"github.com/groblegark/pixelrelay/internal/capi"
	"github.com/groblegark/pixelrelay/internal/catalog"
	"github.com/groblegark/pixelrelay/internal/config"
	"github.com/groblegark/pixelrelay/internal/diaglog"
	"github.com/groblegark/pixelrelay/internal/server"
	"github.com/groblegark/pixelrelay/internal/store/postgres"
	"github.com/groblegark/pixelrelay/internal/track"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Start the relay daemon",
	GroupID: "system",
	// Override PersistentPreRunE so serve doesn't build a CLI client.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

		// Load configuration.
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres.
		st, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Storefront catalog, when configured.
		var cat catalog.Provider
		var catPG *catalog.PostgresProvider
		if cfg.CatalogURL != "" {
			catPG, err = catalog.NewPostgres(cfg.CatalogURL)
			if err != nil {
				st.Close()
				return err
			}
			cat = catPG
			logger.Info("catalog enabled")
		} else {
			cat = catalog.NopProvider{}
			logger.Info("catalog disabled (PIXELRELAY_CATALOG_URL not set)")
		}

		// Delivery pipeline: diagnostic log, API client, async sender, tracker.
		diag := diaglog.NewSinkLogger(st, logger)
		apiClient := capi.NewClient(cfg.APIBaseURL, cfg.APIVersion, diag)
		sender := capi.NewSender(apiClient, logger)
		tracker := track.NewTracker(cat, sender, st, diag, logger)

		// Start HTTP server.
		relayServer := server.NewRelayServer(tracker, apiClient, st, cfg.SiteURL, logger)
		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: relayServer.NewHTTPHandler(cfg.AuthToken),
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the log retention janitor if a retention window is set.
		var janitor *diaglog.Janitor
		if cfg.LogRetention > 0 {
			var dest diaglog.Destination
			if cfg.ArchiveS3Bucket != "" {
				s3Dest, err := diaglog.NewS3Destination(
					context.Background(),
					cfg.ArchiveS3Bucket,
					cfg.ArchiveS3Prefix,
					cfg.ArchiveS3Region,
					cfg.ArchiveS3Endpoint,
				)
				if err != nil {
					logger.Error("failed to create S3 archive destination", "err", err)
				} else {
					dest = s3Dest
					logger.Info("log archive enabled", "bucket", cfg.ArchiveS3Bucket, "prefix", cfg.ArchiveS3Prefix)
				}
			}

			janitor = diaglog.NewJanitor(st, dest, cfg.LogRetention, cfg.LogCleanupInterval, logger)
			janitor.Start()
			logger.Info("log janitor started", "retention", cfg.LogRetention, "interval", cfg.LogCleanupInterval)
		}

		// Start the envelope subscriber if NATS is available.
		var subCancel context.CancelFunc
		if cfg.NATSURL != "" {
			sub, err := bus.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create envelope subscriber", "err", err)
			} else {
				var subCtx context.Context
				subCtx, subCancel = context.WithCancel(context.Background())
				go func() {
					if err := tracker.StartSubscriber(subCtx, sub); err != nil {
						logger.Error("envelope subscriber error", "err", err)
					}
					sub.Close()
				}()
				logger.Info("envelope subscriber started", "nats_url", cfg.NATSURL)
			}
		}

		logger.Info("relay started", "http_addr", cfg.HTTPAddr)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		// Graceful shutdown.
		if subCancel != nil {
			subCancel()
			logger.Info("envelope subscriber stopped")
		}

		if janitor != nil {
			janitor.Stop()
			logger.Info("log janitor stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		// Let in-flight deliveries finish before tearing down.
		waitCtx, waitCancel := context.WithTimeout(context.Background(), capi.RequestTimeout)
		defer waitCancel()
		if err := sender.Wait(waitCtx); err != nil {
			logger.Warn("in-flight deliveries abandoned", "err", err)
		}

		if catPG != nil {
			if err := catPG.Close(); err != nil {
				logger.Error("error closing catalog", "err", err)
			}
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
