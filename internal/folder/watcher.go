package folder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// EventOp represents the type of file system operation.
type EventOp int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate EventOp = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted or renamed away.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op EventOp) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// FileKind classifies a changed path within the mirror layout.
type FileKind int

const (
	// KindCourseInfo is a course-info.json file.
	KindCourseInfo FileKind = iota
	// KindTestConfig is a test-config.json file.
	KindTestConfig
	// KindFeedback is a per-student feedback file.
	KindFeedback
	// KindDirectory is a course or test directory.
	KindDirectory
)

// String returns a human-readable representation of the kind.
func (k FileKind) String() string {
	switch k {
	case KindCourseInfo:
		return "course-info"
	case KindTestConfig:
		return "test-config"
	case KindFeedback:
		return "feedback"
	case KindDirectory:
		return "directory"
	default:
		return "unknown"
	}
}

// Change is a file system change inside the mirror.
type Change struct {
	// Path is the absolute path that changed.
	Path string
	// Course is the course directory name the path belongs to.
	Course string
	// Kind classifies the path.
	Kind FileKind
	// Op is the operation that occurred.
	Op EventOp
}

// Watcher reports changes to the mirror tree. It never merges anything into
// the live store; consumers decide whether to run a sync.
//
// fsnotify watches are not recursive, so the watcher adds the courses
// directory, every course directory and every test directory, and picks up
// directories created while it runs.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	changes chan Change
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a Watcher for the courses directory of root.
// The watcher must be started with Start() before it will emit changes.
func NewWatcher(root string) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(filepath.Join(root, CoursesDir))
	if err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}

	return &Watcher{
		watcher: watcher,
		root:    abs,
		changes: make(chan Change, 100),
		errors:  make(chan error, 10),
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching the mirror. The courses directory is created if it
// does not exist yet. A Watcher can be started once.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	select {
	case <-w.done:
		return fmt.Errorf("watcher already stopped")
	default:
	}

	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", w.root, err)
	}
	if err := w.addTree(w.root); err != nil {
		return err
	}

	w.running = true
	w.wg.Add(1)
	go w.processEvents()

	return nil
}

// Stop stops watching and closes the Changes and Errors channels.
// It blocks until the event goroutine has exited.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return w.watcher.Close()
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	w.wg.Wait()

	close(w.changes)
	close(w.errors)

	return nil
}

// Changes returns the channel that emits Change notifications.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Errors returns the channel that emits watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// IsRunning returns true if the watcher is currently running.
func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// addTree watches dir and its subdirectories down to test level.
func (w *Watcher) addTree(dir string) error {
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	if w.depth(dir) >= 2 {
		return nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.addTree(filepath.Join(dir, e.Name())); err != nil {
				return err
			}
		}
	}
	return nil
}

// depth returns 0 for the courses directory, 1 for a course directory and
// 2 for a test directory.
func (w *Watcher) depth(path string) int {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			change, ok := w.convertEvent(event)
			if !ok {
				continue
			}
			if change.Kind == KindDirectory && change.Op == OpCreate {
				if err := w.addTree(change.Path); err != nil {
					w.sendError(err)
				}
			}

			select {
			case w.changes <- change:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) sendError(err error) {
	select {
	case w.errors <- err:
	case <-w.done:
	}
}

// convertEvent maps an fsnotify event to a Change.
// Returns false for events outside the layout, temp files and chmod.
func (w *Watcher) convertEvent(event fsnotify.Event) (Change, bool) {
	var op EventOp
	switch {
	case event.Has(fsnotify.Create):
		op = OpCreate
	case event.Has(fsnotify.Write):
		op = OpModify
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		op = OpDelete
	default:
		return Change{}, false
	}

	path, err := filepath.Abs(event.Name)
	if err != nil {
		return Change{}, false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return Change{}, false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	base := parts[len(parts)-1]
	if strings.HasPrefix(base, ".") {
		return Change{}, false
	}

	change := Change{Path: path, Course: parts[0], Op: op}

	isDir := false
	if op == OpCreate {
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			isDir = true
		}
	}

	switch {
	case isDir && len(parts) <= 2:
		change.Kind = KindDirectory
	case op == OpDelete && len(parts) <= 2 && !strings.HasSuffix(base, ".json"):
		change.Kind = KindDirectory
	case len(parts) == 2 && base == CourseInfoFile:
		change.Kind = KindCourseInfo
	case len(parts) == 3 && base == TestConfigFile:
		change.Kind = KindTestConfig
	case len(parts) == 3 && strings.HasSuffix(base, ".json"):
		change.Kind = KindFeedback
	default:
		return Change{}, false
	}

	return change, true
}
