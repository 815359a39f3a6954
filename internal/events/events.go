// Package events carries state-change notifications from the backup, import
// and sync components to observers such as the dashboard and metrics.
package events

import (
	"sync"
	"time"
)

// Type identifies what happened.
type Type string

const (
	// BackupCreated indicates a snapshot was written
	BackupCreated Type = "backup_created"

	// BackupRestored indicates the live collection was replaced from a snapshot
	BackupRestored Type = "backup_restored"

	// BackupDeleted indicates a snapshot was removed by request
	BackupDeleted Type = "backup_deleted"

	// BackupRotated indicates snapshots were dropped to respect the cap
	BackupRotated Type = "backup_rotated"

	// CourseDeleted indicates a course was removed
	CourseDeleted Type = "course_deleted"

	// TestDeleted indicates a test was removed from a course
	TestDeleted Type = "test_deleted"

	// StudentDeleted indicates a student and their feedback were removed
	StudentDeleted Type = "student_deleted"

	// ImportCompleted indicates an import run finished
	ImportCompleted Type = "import_completed"

	// SyncCompleted indicates a folder reconciliation finished
	SyncCompleted Type = "sync_completed"

	// FolderChanged indicates the folder mirror was modified externally
	FolderChanged Type = "folder_changed"
)

// Event is a single notification.
type Event struct {
	Type      Type                   `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// New returns an event stamped with the current time.
func New(typ Type, data map[string]interface{}) Event {
	return Event{Type: typ, Timestamp: time.Now(), Data: data}
}

// Publisher receives events. Publish must not block the caller for long.
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(e Event) {
	f(e)
}

type nop struct{}

func (nop) Publish(Event) {}

// Nop discards every event.
var Nop Publisher = nop{}

// Multi fans an event out to several publishers in order. Nil entries are skipped.
func Multi(publishers ...Publisher) Publisher {
	var out multi
	for _, p := range publishers {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}

type multi []Publisher

func (m multi) Publish(e Event) {
	for _, p := range m {
		p.Publish(e)
	}
}

// OrNop returns p, or Nop when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop
	}
	return p
}

// Relay forwards events to a target that can be attached after the
// publisher has been handed out. Until Attach is called events are dropped.
type Relay struct {
	mu     sync.RWMutex
	target Publisher
}

// Attach sets the publisher events are forwarded to.
func (r *Relay) Attach(p Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.target = p
}

// Publish implements Publisher.
func (r *Relay) Publish(e Event) {
	r.mu.RLock()
	target := r.target
	r.mu.RUnlock()
	if target != nil {
		target.Publish(e)
	}
}
