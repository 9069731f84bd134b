package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/passport/internal/passport/store"
)

// HousekeepingService periodically sweeps expired session rows so the store
// does not grow unbounded with sessions whose cookies were deleted
// client-side and are never presented again.
type HousekeepingService struct {
	Store    store.Store
	Policy   Policy
	Logger   *slog.Logger
	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping service with the given
// sweep interval. If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(st store.Store, policy Policy, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    st,
		Policy:   policy,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Non-blocking; call after the store
// is ready. Call Stop() to shut the worker down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop shuts down the background worker, blocking until any in-progress
// sweep has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Sweep immediately on startup
	s.sweep()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep deletes every row past the absolute lifetime or the offline limit.
// The same cutoffs the verify path applies per-session, applied store-wide.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	n, err := s.Store.Sessions().DeleteExpired(ctx,
		now.Add(-s.Policy.Lifetime()),
		now.Add(-s.Policy.MaxOffline()),
	)
	if err != nil {
		s.Logger.Error("failed to sweep expired sessions", "error", err)
		return
	}
	if n > 0 {
		s.Logger.Info("swept expired sessions", "deleted", n)
	}
}
