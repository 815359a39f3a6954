package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultAutoInterval is how often AutoBackup snapshots the collection.
const DefaultAutoInterval = 5 * time.Minute

// AutoBackup periodically snapshots the collection with LabelAuto.
//
// At most one timer goroutine exists per AutoBackup. Start and Stop are
// idempotent and safe to call from several goroutines.
type AutoBackup struct {
	manager  *Manager
	interval time.Duration
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewAutoBackup creates a stopped auto-backup service. A non-positive interval
// means DefaultAutoInterval.
func NewAutoBackup(manager *Manager, interval time.Duration) *AutoBackup {
	if interval <= 0 {
		interval = DefaultAutoInterval
	}
	return &AutoBackup{
		manager:  manager,
		interval: interval,
		logger:   manager.logger,
	}
}

// Interval returns the snapshot period.
func (a *AutoBackup) Interval() time.Duration {
	return a.interval
}

// Start takes one snapshot synchronously and then schedules one every interval
// until Stop is called or ctx is cancelled.
//
// Returns nil without doing anything if the service is already running.
// If the first snapshot fails the service is not started.
func (a *AutoBackup) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return nil
	}

	if _, err := a.manager.CreateBackup(ctx, LabelAuto); err != nil {
		return fmt.Errorf("initial auto backup failed: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.running = true
	a.cancel = cancel
	a.done = done

	go a.loop(runCtx, done)

	a.logger.Infow("Auto backup started", "interval", a.interval)
	return nil
}

// Stop cancels the timer and waits for an in-flight snapshot to finish.
// It is safe to call when the service was never started.
func (a *AutoBackup) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	cancel, done := a.cancel, a.done
	a.mu.Unlock()

	cancel()
	<-done

	a.logger.Infow("Auto backup stopped")
}

// IsRunning reports whether the timer is active.
func (a *AutoBackup) IsRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *AutoBackup) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		a.mu.Lock()
		if a.done == done {
			a.running = false
		}
		a.mu.Unlock()
		close(done)
	}()

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			if _, err := a.manager.CreateBackup(ctx, LabelAuto); err != nil {
				a.logger.Errorw("Auto backup failed", "error", err)
			}
		}
	}
}
