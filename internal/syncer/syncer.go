package syncer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/events"
	"github.com/markbook/markbook/internal/folder"
	"github.com/markbook/markbook/internal/merge"
	"github.com/markbook/markbook/internal/storage"
	"github.com/markbook/markbook/internal/types"
)

// syncer implements the Syncer interface.
type syncer struct {
	backups   *backup.Manager
	courses   *storage.Courses
	mirror    *folder.Mirror
	logger    *zap.SugaredLogger
	publisher events.Publisher
}

// New creates a new Syncer between the collection protected by backups and
// mirror.
//
// If logger is nil, logging is discarded. If publisher is nil, events are
// discarded.
//
// Example:
//
//	courses := storage.NewCourses(store)
//	backups := backup.NewManager(courses, nil)
//	s := syncer.New(backups, folder.New("/Users/me/OneDrive/markbook", logger), logger, nil)
func New(backups *backup.Manager, mirror *folder.Mirror, logger *zap.SugaredLogger, publisher events.Publisher) Syncer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &syncer{
		backups:   backups,
		courses:   backups.Courses(),
		mirror:    mirror,
		logger:    logger,
		publisher: events.OrNop(publisher),
	}
}

// SyncFromFolder implements Syncer.SyncFromFolder.
func (s *syncer) SyncFromFolder(ctx context.Context) (*Result, error) {
	s.logger.Infow("Starting folder sync", "folder", s.mirror.Root())

	folderCourses, err := s.mirror.LoadCourses()
	if err != nil {
		return nil, fmt.Errorf("failed to read folder: %w", err)
	}

	entry, err := s.backups.CreateBackup(ctx, backup.LabelBeforeSync)
	if err != nil {
		return nil, fmt.Errorf("failed to create safety backup: %w", err)
	}

	local, err := s.courses.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}

	merged := merge.DeduplicateCourses(merge.MergeCourses(local, folderCourses))

	if err := s.courses.SaveAll(ctx, merged); err != nil {
		return nil, fmt.Errorf("failed to save merged courses: %w", err)
	}
	if err := s.mirror.SaveAllCourses(merged); err != nil {
		return nil, fmt.Errorf("failed to write merged courses to folder: %w", err)
	}
	if err := s.recordSync(ctx); err != nil {
		return nil, err
	}

	result := &Result{
		LocalCourses:  len(local),
		FolderCourses: len(folderCourses),
		MergedCourses: len(merged),
	}
	if entry != nil {
		result.BackupID = entry.ID
	}

	s.logger.Infow("Sync complete",
		"local", result.LocalCourses,
		"folder", result.FolderCourses,
		"merged", result.MergedCourses,
		"backup", result.BackupID,
	)
	s.publisher.Publish(events.New(events.SyncCompleted, map[string]interface{}{
		"localCourses":  result.LocalCourses,
		"folderCourses": result.FolderCourses,
		"mergedCourses": result.MergedCourses,
	}))

	return result, nil
}

// MigrateToFolder implements Syncer.MigrateToFolder.
func (s *syncer) MigrateToFolder(ctx context.Context) (int, error) {
	courses, err := s.courses.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load courses: %w", err)
	}
	if len(courses) == 0 {
		s.logger.Infow("Nothing to migrate", "folder", s.mirror.Root())
		return 0, nil
	}

	if err := s.mirror.SaveAllCourses(courses); err != nil {
		return 0, fmt.Errorf("failed to migrate courses: %w", err)
	}
	if err := s.recordSync(ctx); err != nil {
		return 0, err
	}

	s.logger.Infow("Migrated courses to folder", "courses", len(courses), "folder", s.mirror.Root())
	return len(courses), nil
}

// PushCourse implements Syncer.PushCourse.
func (s *syncer) PushCourse(_ context.Context, course *types.Course) error {
	if err := s.mirror.SaveCourse(course); err != nil {
		return fmt.Errorf("failed to push course: %w", err)
	}
	return nil
}

// RemoveCourse implements Syncer.RemoveCourse.
func (s *syncer) RemoveCourse(_ context.Context, courseName string) error {
	if err := s.mirror.DeleteCourse(courseName); err != nil {
		return fmt.Errorf("failed to remove course: %w", err)
	}
	s.logger.Infow("Removed course from folder", "course", courseName)
	return nil
}

// Status implements Syncer.Status.
func (s *syncer) Status(ctx context.Context) (*Status, error) {
	status := &Status{
		FolderPath: s.mirror.Root(),
		HasCourses: s.mirror.HasCourses(),
	}

	raw, err := s.courses.Store().Get(ctx, storage.LastSyncKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return status, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read last sync time: %w", err)
	}

	if t, ok := types.ParseTime(string(raw)); ok {
		status.LastSync = &t
	}
	return status, nil
}

func (s *syncer) recordSync(ctx context.Context) error {
	store := s.courses.Store()
	if err := store.Set(ctx, storage.LastSyncKey, []byte(types.Now())); err != nil {
		return fmt.Errorf("failed to record sync time: %w", err)
	}
	if err := store.Set(ctx, storage.FolderPathKey, []byte(s.mirror.Root())); err != nil {
		return fmt.Errorf("failed to record folder path: %w", err)
	}
	return nil
}
