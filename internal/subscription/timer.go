package subscription

import (
	"context"
	"log/slog"
	"time"
)

// Timer periodically runs the renewal scan.
type Timer struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
	stop     chan struct{}
}

// NewTimer creates a new renewal timer.
func NewTimer(service *Service, interval time.Duration, logger *slog.Logger) *Timer {
	return &Timer{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start begins the renewal loop. Call in a goroutine.
func (t *Timer) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-ticker.C:
			t.runScan(ctx)
		}
	}
}

// Stop signals the timer to stop.
func (t *Timer) Stop() {
	select {
	case t.stop <- struct{}{}:
	default:
	}
}

func (t *Timer) runScan(ctx context.Context) {
	renewed, deactivated, err := t.service.ProcessRenewals(ctx)
	if err != nil {
		t.logger.Warn("renewal scan failed", "error", err)
		return
	}
	if renewed > 0 || deactivated > 0 {
		t.logger.Info("renewal scan processed bundles",
			"renewed", renewed, "deactivated", deactivated)
	}
}
