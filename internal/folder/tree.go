package folder

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/markbook/markbook/internal/types"
)

// Tree is what ReadTree found under a directory picked for import.
type Tree struct {
	// Courses read from course directories.
	Courses []types.Course

	// ExportFiles are loose *.json files beside the course directories,
	// expected to hold an exported course or course array.
	ExportFiles []string

	// Errors describes course directories that could not be read.
	Errors []string
}

// ReadTree reads courses from a directory chosen by the user, which may be:
//
//   - a single course directory (it contains course-info.json),
//   - a mirror root (it contains a courses directory),
//   - any directory whose subdirectories are course directories.
//
// Course ids on disk are kept so that re-importing a mirror matches the
// courses already in the store.
func ReadTree(dir string, logger *zap.SugaredLogger) (*Tree, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a folder", dir)
	}

	m := New(dir, logger)
	tree := &Tree{Courses: []types.Course{}, ExportFiles: []string{}, Errors: []string{}}

	if _, err := os.Stat(filepath.Join(dir, CourseInfoFile)); err == nil {
		m.readInto(tree, dir)
		return tree, nil
	}
	if m.HasCourses() {
		dir = m.CoursesPath()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		switch {
		case entry.IsDir():
			m.readInto(tree, path)
		case strings.EqualFold(filepath.Ext(entry.Name()), ".json"):
			tree.ExportFiles = append(tree.ExportFiles, path)
		}
	}
	return tree, nil
}

func (m *Mirror) readInto(tree *Tree, dir string) {
	name := filepath.Base(dir)
	course, err := m.readCourse(dir)
	switch {
	case err != nil:
		tree.Errors = append(tree.Errors, fmt.Sprintf("Could not import course from folder %q: %v", name, err))
	case course == nil:
		tree.Errors = append(tree.Errors, fmt.Sprintf("Could not import course from folder %q: no students or tests found", name))
	default:
		tree.Courses = append(tree.Courses, *course)
	}
}
