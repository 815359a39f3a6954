// Package daemon runs markbook's background duties in one long-lived process.
//
// The daemon:
// 1. Takes an auto backup every interval (backup.AutoBackup)
// 2. Watches the folder mirror, if one is configured
// 3. Debounces folder changes and publishes one folder_changed event per course
//
// Folder changes are never merged automatically. Merging is an explicit
// `mb sync` so that a half-synced cloud folder cannot overwrite local grading.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/events"
	"github.com/markbook/markbook/internal/folder"
)

// Config holds configuration for the daemon.
type Config struct {
	// AutoBackupInterval is how often to snapshot the collection
	// (default: backup.DefaultAutoInterval)
	AutoBackupInterval time.Duration

	// FolderPath is the folder mirror root; empty disables watching
	FolderPath string

	// DebounceInterval is how long a course must be quiet before its changes
	// are reported. Cloud clients write files in bursts.
	DebounceInterval time.Duration

	// Logger for daemon activity (default: no-op)
	Logger *zap.SugaredLogger

	// Publisher receives folder_changed events (default: discard)
	Publisher events.Publisher
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		AutoBackupInterval: backup.DefaultAutoInterval,
		DebounceInterval:   2 * time.Second,
		Logger:             zap.NewNop().Sugar(),
		Publisher:          events.Nop,
	}
}

// Daemon orchestrates auto backups and folder change notices.
type Daemon struct {
	config    *Config
	logger    *zap.SugaredLogger
	publisher events.Publisher

	auto    *backup.AutoBackup
	watcher *folder.Watcher

	pending   map[string]*pendingChange // course dir -> changes
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type pendingChange struct {
	last  time.Time
	count int
	kinds map[string]bool
}

// New creates a Daemon for the collection protected by backups.
// A nil config means DefaultConfig().
func New(backups *backup.Manager, config *Config) (*Daemon, error) {
	if backups == nil {
		return nil, fmt.Errorf("backups cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	d := &Daemon{
		config:    config,
		logger:    logger,
		publisher: events.OrNop(config.Publisher),
		auto:      backup.NewAutoBackup(backups, config.AutoBackupInterval),
		pending:   make(map[string]*pendingChange),
	}

	if config.FolderPath != "" {
		w, err := folder.NewWatcher(config.FolderPath)
		if err != nil {
			return nil, err
		}
		d.watcher = w
	}

	return d, nil
}

// Run starts the daemon and blocks until ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Infow("Starting daemon",
		"autoBackupInterval", d.auto.Interval(),
		"folder", d.config.FolderPath,
	)

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.auto.Start(d.ctx); err != nil {
		d.cancel()
		if d.watcher != nil {
			_ = d.watcher.Stop()
		}
		return fmt.Errorf("failed to start auto backup: %w", err)
	}

	if d.watcher != nil {
		if err := d.watcher.Start(); err != nil {
			d.auto.Stop()
			d.cancel()
			_ = d.watcher.Stop()
			return fmt.Errorf("failed to watch folder: %w", err)
		}
		d.logger.Infow("Watching folder", "path", d.config.FolderPath)

		d.wg.Add(2)
		go d.watchChanges()
		go d.processPending()
	}

	<-d.ctx.Done()
	d.logger.Infow("Shutdown signal received")
	return d.stop()
}

func (d *Daemon) stop() error {
	d.logger.Infow("Stopping daemon")

	d.auto.Stop()

	var err error
	if d.watcher != nil {
		if err = d.watcher.Stop(); err != nil {
			d.logger.Warnw("Error closing watcher", "error", err)
		}
	}

	d.wg.Wait()
	d.flushPending(true)

	d.logger.Infow("Daemon stopped")
	return err
}

// watchChanges queues watcher changes by course.
func (d *Daemon) watchChanges() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case change, ok := <-d.watcher.Changes():
			if !ok {
				return
			}
			d.logger.Debugw("Folder event", "op", change.Op.String(), "kind", change.Kind.String(), "path", change.Path)
			d.queueChange(change)

		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			d.logger.Warnw("Watcher error", "error", err)
		}
	}
}

func (d *Daemon) queueChange(change folder.Change) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	p, ok := d.pending[change.Course]
	if !ok {
		p = &pendingChange{kinds: make(map[string]bool)}
		d.pending[change.Course] = p
	}
	p.last = time.Now()
	p.count++
	p.kinds[change.Kind.String()] = true
}

func (d *Daemon) processPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			d.flushPending(false)
		}
	}
}

// flushPending reports courses that have been quiet for the debounce
// interval, or every pending course when all is true.
func (d *Daemon) flushPending(all bool) {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	now := time.Now()
	for course, p := range d.pending {
		if !all && now.Sub(p.last) < d.config.DebounceInterval {
			continue
		}

		kinds := make([]string, 0, len(p.kinds))
		for k := range p.kinds {
			kinds = append(kinds, k)
		}

		d.logger.Infow("Folder changed, run sync to merge", "course", course, "changes", p.count)
		d.publisher.Publish(events.New(events.FolderChanged, map[string]interface{}{
			"course":  course,
			"changes": p.count,
			"kinds":   kinds,
		}))

		delete(d.pending, course)
	}
}

// AutoBackupRunning reports whether the auto-backup timer is active.
func (d *Daemon) AutoBackupRunning() bool {
	return d.auto.IsRunning()
}

// WatchingFolder reports whether the folder watcher is started. Changes made
// before it returns true may be missed.
func (d *Daemon) WatchingFolder() bool {
	return d.watcher != nil && d.watcher.IsRunning()
}
