// Package folder mirrors the course collection into a plain directory tree so
// that a synced folder (OneDrive, Dropbox) can carry it between machines.
//
// Layout under the mirror root:
//
//	courses/<course>/course-info.json
//	courses/<course>/<test>/test-config.json
//	courses/<course>/<test>/<student>.json
//
// Directory and file names come from SanitizeFileName. Every write goes to a
// temporary file that is renamed into place.
package folder

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/markbook/markbook/internal/types"
)

const (
	// CoursesDir is the top-level directory holding one directory per course.
	CoursesDir = "courses"

	// CourseInfoFile holds course metadata and the roster.
	CourseInfoFile = "course-info.json"

	// TestConfigFile holds the configuration of one written test.
	TestConfigFile = "test-config.json"
)

var (
	unsafeChars = regexp.MustCompile(`(?i)[^a-z0-9æøå_\-\s]`)
	whitespace  = regexp.MustCompile(`\s+`)
)

// SanitizeFileName turns a course, test or student name into a directory or
// file name: characters outside letters a-z, digits, æøå, '_', '-' and
// whitespace are dropped, whitespace runs become '_', and the result is
// lowercased.
func SanitizeFileName(name string) string {
	name = unsafeChars.ReplaceAllString(name, "")
	name = whitespace.ReplaceAllString(name, "_")
	return strings.ToLower(name)
}

// courseInfo is the on-disk form of course-info.json.
type courseInfo struct {
	ID              string                `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Students        []types.CourseStudent `json:"students"`
	AvailableLabels []string              `json:"availableLabels"`
	OralTests       []types.OralTest      `json:"oralTests"`
	CreatedDate     string                `json:"createdDate"`
	LastModified    string                `json:"lastModified"`
}

// testConfig is the on-disk form of test-config.json.
type testConfig struct {
	ID                      string                  `json:"id"`
	Name                    string                  `json:"name"`
	Description             string                  `json:"description"`
	Date                    string                  `json:"date"`
	Tasks                   []types.Task            `json:"tasks"`
	GeneralComment          string                  `json:"generalComment"`
	CreatedDate             string                  `json:"createdDate"`
	LastModified            string                  `json:"lastModified"`
	HasTwoParts             bool                    `json:"hasTwoParts,omitempty"`
	Part1TaskCount          *int                    `json:"part1TaskCount,omitempty"`
	Part2TaskCount          *int                    `json:"part2TaskCount,omitempty"`
	RestartNumberingInPart2 bool                    `json:"restartNumberingInPart2,omitempty"`
	Snippets                []types.FeedbackSnippet `json:"snippets,omitempty"`
}

// studentFile is the on-disk form of one student's feedback for one test.
type studentFile struct {
	StudentID         string               `json:"studentId"`
	Name              string               `json:"name"`
	StudentNumber     string               `json:"studentNumber,omitempty"`
	Absent            bool                 `json:"absent,omitempty"`
	TaskFeedbacks     []types.TaskFeedback `json:"taskFeedbacks"`
	IndividualComment string               `json:"individualComment"`
	CompletedDate     string               `json:"completedDate,omitempty"`
}

// Mirror reads and writes the course collection under a root directory.
type Mirror struct {
	root   string
	logger *zap.SugaredLogger

	newID func(prefix string) string
}

// New creates a Mirror rooted at root. The directory is created lazily on the
// first write. A nil logger discards output.
func New(root string, logger *zap.SugaredLogger) *Mirror {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Mirror{
		root:   root,
		logger: logger,
		newID: func(prefix string) string {
			return prefix + "-" + uuid.NewString()
		},
	}
}

// Root returns the mirror root directory.
func (m *Mirror) Root() string {
	return m.root
}

// CoursesPath returns the directory holding the course directories.
func (m *Mirror) CoursesPath() string {
	return filepath.Join(m.root, CoursesDir)
}

// CoursePath returns the directory a course with the given name is stored in.
func (m *Mirror) CoursePath(courseName string) string {
	return filepath.Join(m.CoursesPath(), SanitizeFileName(courseName))
}

// HasCourses reports whether the mirror contains a courses directory.
func (m *Mirror) HasCourses() bool {
	info, err := os.Stat(m.CoursesPath())
	return err == nil && info.IsDir()
}

// LoadCourses reads every course directory under the mirror.
//
// A missing courses directory yields an empty collection. A course directory
// that cannot be read is logged and skipped. Missing ids are generated,
// missing dates default to now, and feedback files without a studentId are
// matched to the roster by name (adding a roster entry if none matches).
func (m *Mirror) LoadCourses() ([]types.Course, error) {
	entries, err := os.ReadDir(m.CoursesPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []types.Course{}, nil
		}
		return nil, fmt.Errorf("failed to list courses in %s: %w", m.CoursesPath(), err)
	}

	courses := make([]types.Course, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		course, err := m.readCourse(filepath.Join(m.CoursesPath(), entry.Name()))
		if err != nil {
			m.logger.Warnw("Skipping unreadable course folder", "folder", entry.Name(), "error", err)
			continue
		}
		if course != nil {
			courses = append(courses, *course)
		}
	}
	return courses, nil
}

// readCourse reads one course directory. It returns nil, nil for a directory
// holding neither an id, students nor tests.
func (m *Mirror) readCourse(dir string) (*types.Course, error) {
	dirName := filepath.Base(dir)
	now := types.Now()

	var info courseInfo
	found, err := readJSON(filepath.Join(dir, CourseInfoFile), &info)
	if err != nil {
		return nil, err
	}

	course := &types.Course{
		ID:              info.ID,
		Name:            info.Name,
		Description:     info.Description,
		Students:        make([]types.CourseStudent, 0, len(info.Students)),
		Tests:           []types.CourseTest{},
		OralTests:       info.OralTests,
		AvailableLabels: info.AvailableLabels,
		CreatedDate:     info.CreatedDate,
		LastModified:    info.LastModified,
	}
	if !found || course.Name == "" {
		course.Name = dirName
	}
	if course.AvailableLabels == nil {
		course.AvailableLabels = []string{}
	}
	if course.CreatedDate == "" {
		course.CreatedDate = now
	}
	if course.LastModified == "" {
		course.LastModified = now
	}
	for _, s := range info.Students {
		if s.ID == "" {
			s.ID = m.newID("student")
		}
		course.Students = append(course.Students, s)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		test, err := m.readTest(course, filepath.Join(dir, entry.Name()), entry.Name())
		if err != nil {
			m.logger.Warnw("Skipping unreadable test folder", "course", course.Name, "folder", entry.Name(), "error", err)
			continue
		}
		course.Tests = append(course.Tests, *test)
	}

	if course.ID == "" && len(course.Tests) == 0 && len(course.Students) == 0 {
		return nil, nil
	}
	if course.ID == "" {
		course.ID = m.newID("course")
	}
	return course, nil
}

// readTest reads one test directory. Students referenced only by name in a
// feedback file are added to course.Students.
func (m *Mirror) readTest(course *types.Course, dir, dirName string) (*types.CourseTest, error) {
	now := types.Now()

	var cfg testConfig
	found, err := readJSON(filepath.Join(dir, TestConfigFile), &cfg)
	if err != nil {
		return nil, err
	}

	test := &types.CourseTest{
		ID:                      cfg.ID,
		Name:                    cfg.Name,
		Description:             cfg.Description,
		Date:                    cfg.Date,
		Tasks:                   cfg.Tasks,
		GeneralComment:          cfg.GeneralComment,
		StudentFeedbacks:        []types.TestFeedbackData{},
		HasTwoParts:             cfg.HasTwoParts,
		Part1TaskCount:          cfg.Part1TaskCount,
		Part2TaskCount:          cfg.Part2TaskCount,
		RestartNumberingInPart2: cfg.RestartNumberingInPart2,
		Snippets:                cfg.Snippets,
		CreatedDate:             cfg.CreatedDate,
		LastModified:            cfg.LastModified,
	}
	if !found || test.Name == "" {
		test.Name = dirName
	}
	if test.ID == "" {
		test.ID = m.newID("test")
	}
	if test.Date == "" {
		test.Date = now
	}
	if test.Tasks == nil {
		test.Tasks = []types.Task{}
	}
	if test.CreatedDate == "" {
		test.CreatedDate = now
	}
	if test.LastModified == "" {
		test.LastModified = now
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || name == TestConfigFile || !strings.HasSuffix(name, ".json") {
			continue
		}

		var sf studentFile
		if _, err := readJSON(filepath.Join(dir, name), &sf); err != nil {
			m.logger.Warnw("Skipping unreadable feedback file", "test", test.Name, "file", name, "error", err)
			continue
		}

		studentID := sf.StudentID
		if studentID == "" && sf.Name != "" {
			if s := course.FindStudentByName(sf.Name); s != nil {
				studentID = s.ID
			} else {
				studentID = m.newID("student")
				course.Students = append(course.Students, types.CourseStudent{
					ID:            studentID,
					Name:          sf.Name,
					StudentNumber: sf.StudentNumber,
				})
			}
		}
		if studentID == "" {
			continue
		}

		feedbacks := sf.TaskFeedbacks
		if feedbacks == nil {
			feedbacks = []types.TaskFeedback{}
		}
		test.StudentFeedbacks = append(test.StudentFeedbacks, types.TestFeedbackData{
			StudentID:         studentID,
			Absent:            sf.Absent,
			TaskFeedbacks:     feedbacks,
			IndividualComment: sf.IndividualComment,
			CompletedDate:     sf.CompletedDate,
		})
	}

	return test, nil
}

// SaveCourse writes one course to the mirror. Feedback for students missing
// from the roster is not written.
func (m *Mirror) SaveCourse(course *types.Course) error {
	dir := m.CoursePath(course.Name)

	oral := course.OralTests
	if oral == nil {
		oral = []types.OralTest{}
	}
	info := courseInfo{
		ID:              course.ID,
		Name:            course.Name,
		Description:     course.Description,
		Students:        course.Students,
		AvailableLabels: course.AvailableLabels,
		OralTests:       oral,
		CreatedDate:     course.CreatedDate,
		LastModified:    course.LastModified,
	}
	if err := writeJSON(filepath.Join(dir, CourseInfoFile), info); err != nil {
		return err
	}

	for i := range course.Tests {
		test := &course.Tests[i]
		testDir := filepath.Join(dir, SanitizeFileName(test.Name))

		cfg := testConfig{
			ID:                      test.ID,
			Name:                    test.Name,
			Description:             test.Description,
			Date:                    test.Date,
			Tasks:                   test.Tasks,
			GeneralComment:          test.GeneralComment,
			CreatedDate:             test.CreatedDate,
			LastModified:            test.LastModified,
			HasTwoParts:             test.HasTwoParts,
			Part1TaskCount:          test.Part1TaskCount,
			Part2TaskCount:          test.Part2TaskCount,
			RestartNumberingInPart2: test.RestartNumberingInPart2,
			Snippets:                test.Snippets,
		}
		if err := writeJSON(filepath.Join(testDir, TestConfigFile), cfg); err != nil {
			return err
		}

		for _, fb := range test.StudentFeedbacks {
			student := course.FindStudent(fb.StudentID)
			if student == nil {
				continue
			}
			sf := studentFile{
				StudentID:         student.ID,
				Name:              student.Name,
				StudentNumber:     student.StudentNumber,
				Absent:            fb.Absent,
				TaskFeedbacks:     fb.TaskFeedbacks,
				IndividualComment: fb.IndividualComment,
				CompletedDate:     fb.CompletedDate,
			}
			path := filepath.Join(testDir, SanitizeFileName(student.Name)+".json")
			if err := writeJSON(path, sf); err != nil {
				return err
			}
		}
	}

	m.logger.Debugw("Wrote course to folder", "course", course.Name, "dir", dir)
	return nil
}

// SaveAllCourses writes every course to the mirror, stopping at the first
// failure.
func (m *Mirror) SaveAllCourses(courses []types.Course) error {
	for i := range courses {
		if err := m.SaveCourse(&courses[i]); err != nil {
			return fmt.Errorf("failed to save course %q: %w", courses[i].Name, err)
		}
	}
	return nil
}

// DeleteCourse removes the directory of the named course.
// Returns nil if it does not exist (idempotent).
func (m *Mirror) DeleteCourse(courseName string) error {
	dir := m.CoursePath(courseName)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete %s: %w", dir, err)
	}
	return nil
}

// readJSON decodes path into v. A missing file reports found == false and no
// error.
func readJSON(path string, v interface{}) (found bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return true, nil
}

// writeJSON writes v as indented JSON via a temp file and rename.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to rename %s: %w", tmpName, err)
	}
	return nil
}
