package backup

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/markbook/markbook/internal/events"
	"github.com/markbook/markbook/internal/storage"
	"github.com/markbook/markbook/internal/types"
)

// MaxBackups is the default cap on retained snapshots.
const MaxBackups = 10

// IDPrefix starts every backup id.
const IDPrefix = "backup-"

// Snapshot labels.
const (
	LabelManual        = "manual"
	LabelAuto          = "auto"
	LabelBeforeDelete  = "before-delete"
	LabelBeforeImport  = "before-import"
	LabelBeforeRestore = "before-restore"
	LabelBeforeSync    = "before-sync"
)

// ErrBackupNotFound is returned when a backup id is not in the index.
var ErrBackupNotFound = errors.New("backup not found")

// Entry is the metadata of one snapshot.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Label         string    `json:"label"`
	CourseCount   int       `json:"courseCount"`
	TotalFeedback int       `json:"totalFeedback"`
	SizeBytes     int       `json:"sizeBytes"`
}

// RestoreResult reports the outcome of RestoreFromBackup.
type RestoreResult struct {
	Success     bool `json:"success"`
	CourseCount int  `json:"courseCount"`
}

// Config holds configuration for the Manager.
type Config struct {
	// MaxBackups caps the number of retained snapshots (default: MaxBackups)
	MaxBackups int

	// Logger for backup activity (default: no-op)
	Logger *zap.SugaredLogger

	// Publisher receives backup events (default: discard)
	Publisher events.Publisher
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxBackups: MaxBackups,
		Logger:     zap.NewNop().Sugar(),
		Publisher:  events.Nop,
	}
}

// Manager creates, lists, restores and rotates snapshots of the course
// collection. Its methods are safe for concurrent use; mutations are serialized.
type Manager struct {
	courses    *storage.Courses
	store      storage.Store
	maxBackups int
	logger     *zap.SugaredLogger
	publisher  events.Publisher

	mu      sync.Mutex
	now     func() time.Time
	entropy io.Reader
}

// NewManager creates a Manager over the course repository's store.
func NewManager(courses *storage.Courses, config *Config) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	m := &Manager{
		courses:    courses,
		store:      courses.Store(),
		maxBackups: config.MaxBackups,
		logger:     config.Logger,
		publisher:  events.OrNop(config.Publisher),
		now:        time.Now,
		entropy:    ulid.Monotonic(rand.Reader, 0),
	}
	if m.maxBackups <= 0 {
		m.maxBackups = MaxBackups
	}
	if m.logger == nil {
		m.logger = zap.NewNop().Sugar()
	}
	return m
}

// Courses returns the repository the manager protects.
func (m *Manager) Courses() *storage.Courses {
	return m.courses
}

// CreateBackup snapshots the current collection under label.
//
// Returns (nil, nil) when the collection is empty.
func (m *Manager) CreateBackup(ctx context.Context, label string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createBackupLocked(ctx, label)
}

func (m *Manager) createBackupLocked(ctx context.Context, label string) (*Entry, error) {
	raw, err := m.courses.LoadRaw(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection for backup: %w", err)
	}
	courses, err := storage.DecodeCourses(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection for backup: %w", err)
	}
	if len(courses) == 0 {
		m.logger.Debugw("Skipping backup of empty collection", "label", label)
		return nil, nil
	}

	now := m.now()
	id, err := ulid.New(ulid.Timestamp(now), m.entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate backup id: %w", err)
	}

	entry := Entry{
		ID:            IDPrefix + strings.ToLower(id.String()),
		Timestamp:     now,
		Label:         label,
		CourseCount:   len(courses),
		TotalFeedback: types.TotalCompletedFeedback(courses),
		SizeBytes:     len(raw),
	}

	// Payload first: an index entry must never point at a missing payload.
	if err := m.store.Set(ctx, storage.BackupKey(entry.ID), raw); err != nil {
		return nil, fmt.Errorf("failed to write backup payload: %w", err)
	}

	index, err := m.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	index = append(index, entry)
	sortIndex(index)

	var dropped []Entry
	if len(index) > m.maxBackups {
		dropped = append(dropped, index[:len(index)-m.maxBackups]...)
		index = index[len(index)-m.maxBackups:]
	}

	if err := m.saveIndex(ctx, index); err != nil {
		return nil, err
	}

	for _, old := range dropped {
		if err := m.store.Delete(ctx, storage.BackupKey(old.ID)); err != nil {
			m.logger.Warnw("Failed to delete rotated backup payload", "id", old.ID, "error", err)
		}
	}

	m.logger.Infow("Created backup",
		"id", entry.ID,
		"label", label,
		"courses", entry.CourseCount,
		"feedback", entry.TotalFeedback,
		"bytes", entry.SizeBytes,
	)
	m.publisher.Publish(events.New(events.BackupCreated, map[string]interface{}{
		"id":          entry.ID,
		"label":       label,
		"courseCount": entry.CourseCount,
		"sizeBytes":   entry.SizeBytes,
	}))
	if len(dropped) > 0 {
		m.publisher.Publish(events.New(events.BackupRotated, map[string]interface{}{
			"dropped": len(dropped),
		}))
	}

	return &entry, nil
}

// ListBackups returns the index, newest first.
func (m *Manager) ListBackups(ctx context.Context) ([]Entry, error) {
	index, err := m.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Entry, len(index))
	for i, e := range index {
		out[len(index)-1-i] = e
	}
	return out, nil
}

// Lookup returns the index entry for id.
//
// Returns ErrBackupNotFound if the id is not in the index.
func (m *Manager) Lookup(ctx context.Context, id string) (*Entry, error) {
	index, err := m.loadIndex(ctx)
	if err != nil {
		return nil, err
	}
	for i := range index {
		if index[i].ID == id {
			return &index[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
}

// BackupPayload returns the serialized collection stored by a backup.
//
// Returns ErrBackupNotFound if the id is not in the index or its payload is gone.
func (m *Manager) BackupPayload(ctx context.Context, id string) ([]byte, error) {
	if _, err := m.Lookup(ctx, id); err != nil {
		return nil, err
	}
	data, err := m.store.Get(ctx, storage.BackupKey(id))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: payload of %s is missing", ErrBackupNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup payload: %w", err)
	}
	return data, nil
}

// BackupData returns the collection stored by a backup.
func (m *Manager) BackupData(ctx context.Context, id string) ([]types.Course, error) {
	data, err := m.BackupPayload(ctx, id)
	if err != nil {
		return nil, err
	}
	return storage.DecodeCourses(data)
}

// RestoreFromBackup replaces the live collection with a backup's payload.
//
// An unknown id yields {Success: false} with no side effects. Otherwise a
// LabelBeforeRestore snapshot of the current state is taken first, then the
// collection is overwritten. The two steps are not transactional.
func (m *Manager) RestoreFromBackup(ctx context.Context, id string) (RestoreResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	payload, err := m.BackupPayload(ctx, id)
	if errors.Is(err, ErrBackupNotFound) {
		m.logger.Warnw("Restore requested for unknown backup", "id", id)
		return RestoreResult{}, nil
	}
	if err != nil {
		return RestoreResult{}, err
	}

	courses, err := storage.DecodeCourses(payload)
	if err != nil {
		return RestoreResult{}, fmt.Errorf("backup %s is corrupt: %w", id, err)
	}

	if _, err := m.createBackupLocked(ctx, LabelBeforeRestore); err != nil {
		return RestoreResult{}, fmt.Errorf("failed to create safety backup: %w", err)
	}

	if err := m.store.Set(ctx, storage.CoursesKey, payload); err != nil {
		return RestoreResult{}, fmt.Errorf("failed to restore collection: %w", err)
	}

	m.logger.Infow("Restored backup", "id", id, "courses", len(courses))
	m.publisher.Publish(events.New(events.BackupRestored, map[string]interface{}{
		"id":          id,
		"courseCount": len(courses),
	}))

	return RestoreResult{Success: true, CourseCount: len(courses)}, nil
}

// DeleteBackup removes a backup's index entry and payload.
//
// Returns nil if the backup doesn't exist (idempotent).
func (m *Manager) DeleteBackup(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	index, err := m.loadIndex(ctx)
	if err != nil {
		return err
	}

	kept := index[:0]
	found := false
	for _, e := range index {
		if e.ID == id {
			found = true
			continue
		}
		kept = append(kept, e)
	}

	if found {
		if err := m.saveIndex(ctx, kept); err != nil {
			return err
		}
	}
	if err := m.store.Delete(ctx, storage.BackupKey(id)); err != nil {
		return fmt.Errorf("failed to delete backup payload: %w", err)
	}

	if found {
		m.logger.Infow("Deleted backup", "id", id)
		m.publisher.Publish(events.New(events.BackupDeleted, map[string]interface{}{"id": id}))
	}
	return nil
}

func (m *Manager) loadIndex(ctx context.Context) ([]Entry, error) {
	data, err := m.store.Get(ctx, storage.BackupIndexKey)
	if errors.Is(err, storage.ErrNotFound) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup index: %w", err)
	}

	var index []Entry
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse backup index: %w", err)
	}
	sortIndex(index)
	return index, nil
}

func (m *Manager) saveIndex(ctx context.Context, index []Entry) error {
	if index == nil {
		index = []Entry{}
	}
	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to marshal backup index: %w", err)
	}
	if err := m.store.Set(ctx, storage.BackupIndexKey, data); err != nil {
		return fmt.Errorf("failed to write backup index: %w", err)
	}
	return nil
}

// sortIndex orders entries oldest first. Ids are time-ordered ULIDs, so they
// break timestamp ties in creation order.
func sortIndex(index []Entry) {
	sort.SliceStable(index, func(i, j int) bool {
		if !index[i].Timestamp.Equal(index[j].Timestamp) {
			return index[i].Timestamp.Before(index[j].Timestamp)
		}
		return index[i].ID < index[j].ID
	})
}
