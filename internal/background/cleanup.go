package background

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is anything that can drop stale in-memory state in one pass
type Sweeper interface {
	Sweep() int
}

// CleanupManager periodically sweeps stale throttle entries
type CleanupManager struct {
	sweeper  Sweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

func NewCleanupManager(sweeper Sweeper, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		sweeper:  sweeper,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks, sweeping once immediately and then on every interval, until
// Stop is called or ctx is cancelled.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup()

	for {
		select {
		case <-ticker.C:
			cm.runCleanup()
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup() {
	if removed := cm.sweeper.Sweep(); removed > 0 {
		cm.logger.Debug("stale throttle entries swept", slog.Int("removed", removed))
	}
}

// Stop signals the cleanup manager to stop. Call it at most once.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
