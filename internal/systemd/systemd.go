// Package systemd sends sd_notify state changes so the agent can run
// as a Type=notify unit. Every call degrades to a no-op outside of
// systemd (no NOTIFY_SOCKET), so development runs behave identically.
package systemd

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady reports that initialization finished and the HTTP API is
// up. Returns whether the notification was actually delivered.
func NotifyReady(logger *slog.Logger) bool {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("sd_notify READY failed", slog.String("error", err.Error()))
		return false
	}
	return sent
}

// NotifyStopping reports that shutdown has begun, so systemd waits for
// a clean exit instead of escalating signals.
func NotifyStopping(logger *slog.Logger) bool {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("sd_notify STOPPING failed", slog.String("error", err.Error()))
		return false
	}
	return sent
}

// StartWatchdog pings the systemd watchdog at half the configured
// interval until the context is cancelled. Does nothing when
// WatchdogSec is not set on the unit.
func StartWatchdog(ctx context.Context, logger *slog.Logger) {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}

	logger.Info("systemd watchdog enabled",
		slog.Duration("interval", interval),
	)
	go func() {
		ticker := time.NewTicker(interval / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
					logger.Warn("watchdog ping failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}

// RunningUnderSystemd reports whether systemd started this process.
func RunningUnderSystemd() bool {
	return os.Getenv("NOTIFY_SOCKET") != ""
}
