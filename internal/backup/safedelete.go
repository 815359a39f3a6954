package backup

import (
	"context"
	"fmt"

	"github.com/markbook/markbook/internal/events"
)

// SafeDeleteCourse snapshots the collection with LabelBeforeDelete, then removes
// the course. It returns the snapshot id, or "" when no snapshot was needed.
//
// Returns storage.ErrCourseNotFound, without taking a snapshot, if the course
// does not exist.
func (m *Manager) SafeDeleteCourse(ctx context.Context, courseID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.courses.Get(ctx, courseID); err != nil {
		return "", err
	}

	backupID, err := m.safetyBackupLocked(ctx)
	if err != nil {
		return "", err
	}

	removed, err := m.courses.Delete(ctx, courseID)
	if err != nil {
		return backupID, fmt.Errorf("failed to delete course: %w", err)
	}

	m.logger.Infow("Deleted course", "id", courseID, "name", removed.Name, "backup", backupID)
	m.publisher.Publish(events.New(events.CourseDeleted, map[string]interface{}{
		"courseId": courseID,
		"backupId": backupID,
	}))
	return backupID, nil
}

// SafeDeleteTest snapshots the collection, then removes one test of a course.
func (m *Manager) SafeDeleteTest(ctx context.Context, courseID, testID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.courses.Get(ctx, courseID); err != nil {
		return "", err
	}

	backupID, err := m.safetyBackupLocked(ctx)
	if err != nil {
		return "", err
	}

	if err := m.courses.DeleteTest(ctx, courseID, testID); err != nil {
		return backupID, fmt.Errorf("failed to delete test: %w", err)
	}

	m.logger.Infow("Deleted test", "course", courseID, "test", testID, "backup", backupID)
	m.publisher.Publish(events.New(events.TestDeleted, map[string]interface{}{
		"courseId": courseID,
		"testId":   testID,
		"backupId": backupID,
	}))
	return backupID, nil
}

// SafeDeleteStudent snapshots the collection, then removes a student and all
// of that student's feedback from the course.
func (m *Manager) SafeDeleteStudent(ctx context.Context, courseID, studentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.courses.Get(ctx, courseID); err != nil {
		return "", err
	}

	backupID, err := m.safetyBackupLocked(ctx)
	if err != nil {
		return "", err
	}

	if err := m.courses.DeleteStudent(ctx, courseID, studentID); err != nil {
		return backupID, fmt.Errorf("failed to delete student: %w", err)
	}

	m.logger.Infow("Deleted student", "course", courseID, "student", studentID, "backup", backupID)
	m.publisher.Publish(events.New(events.StudentDeleted, map[string]interface{}{
		"courseId":  courseID,
		"studentId": studentID,
		"backupId":  backupID,
	}))
	return backupID, nil
}

func (m *Manager) safetyBackupLocked(ctx context.Context) (string, error) {
	entry, err := m.createBackupLocked(ctx, LabelBeforeDelete)
	if err != nil {
		return "", fmt.Errorf("failed to create safety backup: %w", err)
	}
	if entry == nil {
		return "", nil
	}
	return entry.ID, nil
}
