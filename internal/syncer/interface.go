// Package syncer reconciles the live course collection with a folder mirror.
package syncer

import (
	"context"
	"time"

	"github.com/markbook/markbook/internal/types"
)

// Syncer keeps the live store and a folder mirror in agreement.
//
// Reconciliation only runs when asked to. Nothing in this package reacts to
// folder changes on its own; the daemon reports them and the user decides
// when to run SyncFromFolder.
type Syncer interface {
	// SyncFromFolder merges the folder mirror into the live collection.
	//
	// A before-sync backup is taken first. Courses are merged by id
	// (merge.MergeCourses), then collapsed by name (merge.DeduplicateCourses).
	// The result replaces the live collection and is written back to the
	// folder so both sides match. The last-sync timestamp is recorded.
	//
	// Feedback that exists only locally is never discarded.
	//
	// Example:
	//   res, err := s.SyncFromFolder(ctx)
	//   fmt.Printf("%d courses after sync\n", res.MergedCourses)
	SyncFromFolder(ctx context.Context) (*Result, error)

	// MigrateToFolder writes the whole live collection into the folder.
	//
	// Used after a folder is first connected. Returns the number of courses
	// written; an empty collection writes nothing and returns 0.
	//
	// Example:
	//   n, err := s.MigrateToFolder(ctx)
	MigrateToFolder(ctx context.Context) (int, error)

	// PushCourse writes one course to the folder.
	//
	// Returns nil if the course is written. The live store is not touched.
	PushCourse(ctx context.Context, course *types.Course) error

	// RemoveCourse deletes a course directory from the folder.
	//
	// Returns nil if the directory does not exist (idempotent).
	RemoveCourse(ctx context.Context, courseName string) error

	// Status reports the folder path and the time of the last completed sync.
	Status(ctx context.Context) (*Status, error)
}

// Result summarizes one SyncFromFolder run.
type Result struct {
	LocalCourses  int    `json:"localCourses"`
	FolderCourses int    `json:"folderCourses"`
	MergedCourses int    `json:"mergedCourses"`
	BackupID      string `json:"backupId,omitempty"`
}

// Status describes the connection to the folder mirror.
type Status struct {
	FolderPath string     `json:"folderPath"`
	HasCourses bool       `json:"hasCourses"`
	LastSync   *time.Time `json:"lastSync,omitempty"`
}
