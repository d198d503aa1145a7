// HostPulse - Entry Point
//
// HostPulse is a local host-metrics agent. It samples CPU, memory,
// battery, disk, GPU, and top-process usage on a cron schedule,
// appends a one-line reading to an append-only journal, evaluates
// threshold alerts, and serves the current state over a loopback HTTP
// API with CSV/PDF snapshot export and a websocket live feed.
// Snapshots can optionally be published to NATS for fleet collection.
//
// Configuration is loaded from /etc/hostpulse/config.yaml (or the path
// given with -config).
//
// Lifecycle:
//  1. Load configuration from YAML file
//  2. Setup structured JSON logger
//  3. Open the data directory, threshold store, and journal
//  4. Start the HTTP server and the scheduled recorder
//  5. Notify systemd that the service is ready (Type=notify)
//  6. Wait for shutdown signal (SIGTERM/SIGINT)
//  7. Notify systemd that the service is stopping
//  8. Coordinated shutdown with timeout
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/doughall/hostpulse/internal/alerts"
	"github.com/doughall/hostpulse/internal/config"
	"github.com/doughall/hostpulse/internal/journal"
	"github.com/doughall/hostpulse/internal/logging"
	"github.com/doughall/hostpulse/internal/natspub"
	"github.com/doughall/hostpulse/internal/recorder"
	"github.com/doughall/hostpulse/internal/sensors"
	"github.com/doughall/hostpulse/internal/server"
	"github.com/doughall/hostpulse/internal/shutdown"
	"github.com/doughall/hostpulse/internal/snapshot"
	"github.com/doughall/hostpulse/internal/systemd"
	"github.com/doughall/hostpulse/internal/version"
)

// How long coordinated shutdown may take before the process gives up.
const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", config.DefaultConfigPath, "path to configuration file")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		// Basic stderr logging before the logger is configured.
		fmt.Fprintf(os.Stderr, "ERROR: failed to load configuration from %s: %v\n", *configPath, err)
		os.Exit(1)
	}

	logger := logging.SetupLogger(cfg.LogLevel)

	logger.Info("hostpulse starting",
		slog.String("version", version.Version),
		slog.String("commit", version.Commit),
		slog.String("config_path", *configPath),
		slog.String("listen_addr", cfg.ListenAddr),
		slog.String("journal", cfg.JournalFile),
		slog.String("schedule", cfg.JournalCron),
		slog.Bool("nats", cfg.NATSEnabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		logger.Error("failed to create data directory",
			slog.String("dir", cfg.DataDir),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	store, err := alerts.NewStore(filepath.Join(cfg.DataDir, "thresholds.db"))
	if err != nil {
		logger.Error("failed to open threshold store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	j := journal.New(cfg.JournalFile, logger)

	adapter := sensors.NewAdapter(logger, cfg.SensorTimeout())
	builder := snapshot.NewBuilder(adapter, logger)
	evaluator := alerts.NewEvaluator(store, logger)

	coordinator := shutdown.NewCoordinator(logger)

	rec := recorder.New(builder, j, evaluator, logger)
	if cfg.AlertWebhookURL != "" {
		rec.SetNotifier(alerts.NewWebhookNotifier(cfg.AlertWebhookURL, logger))
	}

	hub := server.NewHub(logger)
	rec.SetBroadcaster(hub)

	if cfg.NATSEnabled() {
		pub, err := natspub.Connect(cfg.NATSServers, cfg.NATSNKeySeed, cfg.NATSSubjectPrefix, logger)
		if err != nil {
			// Publishing is best-effort; the local agent keeps working.
			logger.Warn("nats publishing disabled",
				slog.String("error", err.Error()),
			)
		} else {
			rec.SetPublisher(pub)
			coordinator.Register("natspub", pub)
		}
	}

	srv := server.New(cfg.ListenAddr, builder, j, store, hub, logger)
	serverErr := srv.Start()
	coordinator.Register("server", srv)

	if err := rec.Start(cfg.JournalCron); err != nil {
		logger.Error("failed to start recorder", "error", err)
		os.Exit(1)
	}
	coordinator.Register("recorder", rec)

	systemd.NotifyReady(logger)
	systemd.StartWatchdog(ctx, logger)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		logger.Error("http server failed", "error", err)
	}

	systemd.NotifyStopping(logger)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := coordinator.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown finished with errors", "error", err)
		os.Exit(1)
	}
	logger.Info("hostpulse stopped")
}
