package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/tabservice/journeyd/internal/journey/store"
)

// HousekeepingService periodically clears expired database records:
// refresh tokens, dead authorization codes, and signing keys past their
// post-expiry grace period.
type HousekeepingService struct {
	Store  store.Store
	Keys   *KeyService
	Logger *slog.Logger

	Interval time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService wires a housekeeping worker. An interval of
// zero or less defaults to one hour.
func NewHousekeepingService(st store.Store, keys *KeyService, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &HousekeepingService{
		Store:    st,
		Keys:     keys,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the background worker. Non-blocking.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping started", "interval", s.Interval)
}

// Stop shuts the worker down and waits for any in-progress sweep.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

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

// sweep runs each cleanup independently so one failure does not stop
// the others.
func (s *HousekeepingService) sweep() {
	ctx := context.Background()

	if err := s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx); err != nil {
		s.Logger.Error("cleanup expired refresh tokens", "error", err)
	}
	if err := s.Store.McpFlows().DeleteExpiredMcpFlowCodes(ctx); err != nil {
		s.Logger.Error("cleanup expired authorization codes", "error", err)
	}
	if s.Keys != nil {
		if err := s.Keys.CleanupExpiredKeys(ctx); err != nil {
			s.Logger.Error("cleanup expired signing keys", "error", err)
		}
	}
}
