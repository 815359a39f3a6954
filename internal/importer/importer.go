// Package importer admits externally supplied course collections into the live
// store and exports the collection back out.
//
// Every candidate course passes the validation layer before it is decoded. A
// before-import snapshot is taken whenever at least one candidate is admitted,
// so any import can be undone with a restore.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/events"
	"github.com/markbook/markbook/internal/folder"
	"github.com/markbook/markbook/internal/merge"
	"github.com/markbook/markbook/internal/storage"
	"github.com/markbook/markbook/internal/types"
	"github.com/markbook/markbook/internal/validate"
)

// ImportedSuffix marks a duplicate that was inserted as a separate course.
const ImportedSuffix = " (imported)"

// Options selects the duplicate policy.
type Options struct {
	// SkipDuplicates drops candidates matching an existing course (default: true)
	SkipDuplicates bool

	// MergeExisting merges candidates into the matching course; takes
	// precedence over SkipDuplicates (default: false)
	MergeExisting bool
}

// DefaultOptions returns the default duplicate policy: skip duplicates.
func DefaultOptions() *Options {
	return &Options{SkipDuplicates: true}
}

// Result summarizes an import run.
type Result struct {
	Imported          int      `json:"imported"`
	Merged            int      `json:"merged"`
	SkippedDuplicates int      `json:"skippedDuplicates"`
	Errors            []string `json:"errors"`
}

// Importer imports into and exports from the course collection.
type Importer struct {
	courses   *storage.Courses
	backups   *backup.Manager
	logger    *zap.SugaredLogger
	publisher events.Publisher

	newID func() string
}

// New creates an Importer that takes safety snapshots through backups.
// A nil logger or publisher disables logging or events.
func New(backups *backup.Manager, logger *zap.SugaredLogger, publisher events.Publisher) *Importer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Importer{
		courses:   backups.Courses(),
		backups:   backups,
		logger:    logger,
		publisher: events.OrNop(publisher),
		newID:     NewCourseID,
	}
}

// NewCourseID returns a fresh course id.
func NewCourseID() string {
	return "course-" + uuid.NewString()
}

// ImportCourses imports a JSON course object or array.
//
// Malformed input never produces an error: unparsable JSON yields
// Errors == ["Invalid JSON format"], and each candidate failing validation
// contributes its messages and is skipped. The returned error is reserved for
// store faults.
//
// A nil opts means DefaultOptions().
func (im *Importer) ImportCourses(ctx context.Context, jsonText string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	result := &Result{Errors: []string{}}

	if !gjson.Valid(jsonText) {
		result.Errors = append(result.Errors, "Invalid JSON format")
		return result, nil
	}

	root := gjson.Parse(jsonText)
	var raw []gjson.Result
	switch {
	case root.IsArray():
		raw = root.Array()
	case root.IsObject():
		raw = []gjson.Result{root}
	default:
		result.Errors = append(result.Errors, validate.CourseData(root).Errors...)
		return result, nil
	}

	candidates := make([]types.Course, 0, len(raw))
	for i, c := range raw {
		if errs := validate.Candidate(i, c); len(errs) > 0 {
			result.Errors = append(result.Errors, errs...)
			continue
		}
		var course types.Course
		if err := json.Unmarshal([]byte(c.Raw), &course); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("Course %d: %v", i+1, err))
			continue
		}
		candidates = append(candidates, course)
	}

	if len(candidates) == 0 {
		return result, nil
	}

	if _, err := im.backups.CreateBackup(ctx, backup.LabelBeforeImport); err != nil {
		return result, fmt.Errorf("failed to create safety backup: %w", err)
	}

	courses, err := im.courses.LoadAll(ctx)
	if err != nil {
		return result, err
	}

	byID := make(map[string]int, len(courses))
	byName := make(map[string]int, len(courses))
	track := func(i int) {
		if id := courses[i].ID; id != "" {
			if _, ok := byID[id]; !ok {
				byID[id] = i
			}
		}
		key := merge.NameKey(courses[i].Name)
		if _, ok := byName[key]; !ok {
			byName[key] = i
		}
	}
	for i := range courses {
		track(i)
	}

	for _, incoming := range candidates {
		existing := -1
		if incoming.ID != "" {
			if i, ok := byID[incoming.ID]; ok {
				existing = i
			}
		}
		if existing < 0 {
			if i, ok := byName[merge.NameKey(incoming.Name)]; ok {
				existing = i
			}
		}

		switch {
		case existing < 0:
			if incoming.ID == "" {
				incoming.ID = im.newID()
			}
			courses = append(courses, incoming)
			track(len(courses) - 1)
			result.Imported++

		case opts.MergeExisting:
			courses[existing] = MergeCourse(courses[existing], incoming)
			result.Merged++

		case opts.SkipDuplicates:
			result.SkippedDuplicates++

		default:
			incoming.ID = im.newID()
			incoming.Name += ImportedSuffix
			courses = append(courses, incoming)
			track(len(courses) - 1)
			result.Imported++
		}
	}

	if err := im.courses.SaveAll(ctx, courses); err != nil {
		return result, err
	}

	im.logger.Infow("Import complete",
		"imported", result.Imported,
		"merged", result.Merged,
		"skipped", result.SkippedDuplicates,
		"errors", len(result.Errors),
	)
	im.publisher.Publish(events.New(events.ImportCompleted, map[string]interface{}{
		"imported":          result.Imported,
		"merged":            result.Merged,
		"skippedDuplicates": result.SkippedDuplicates,
		"errors":            len(result.Errors),
	}))

	return result, nil
}

// ImportCoursesFromData serializes courses and imports them.
func (im *Importer) ImportCoursesFromData(ctx context.Context, courses []types.Course, opts *Options) (*Result, error) {
	data, err := storage.EncodeCourses(courses)
	if err != nil {
		return nil, err
	}
	return im.ImportCourses(ctx, string(data), opts)
}

// ImportFromFolder imports the courses found by folder.ReadTree under dir,
// together with any exported course files lying beside the course
// directories. Unreadable folders and files are reported in Result.Errors.
func (im *Importer) ImportFromFolder(ctx context.Context, dir string, opts *Options) (*Result, error) {
	tree, err := folder.ReadTree(dir, im.logger)
	if err != nil {
		return nil, err
	}

	courses := tree.Courses
	errs := append([]string{}, tree.Errors...)
	for _, path := range tree.ExportFiles {
		found, fileErrs := readExportFile(path)
		courses = append(courses, found...)
		errs = append(errs, fileErrs...)
	}

	result, err := im.ImportCoursesFromData(ctx, courses, opts)
	if result != nil {
		result.Errors = append(errs, result.Errors...)
	}
	return result, err
}

// readExportFile reads a loose JSON file holding one course or an array of
// them. Candidates go through the same validation as ImportCourses.
func readExportFile(path string) ([]types.Course, []string) {
	name := filepath.Base(path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []string{fmt.Sprintf("Failed to read %s: %v", name, err)}
	}
	if !gjson.ValidBytes(data) {
		return nil, []string{fmt.Sprintf("Failed to read %s: invalid JSON", name)}
	}

	root := gjson.ParseBytes(data)
	var raw []gjson.Result
	switch {
	case root.IsArray():
		raw = root.Array()
	case root.IsObject():
		raw = []gjson.Result{root}
	default:
		return nil, []string{fmt.Sprintf("Failed to read %s: not a course or course list", name)}
	}

	var (
		courses []types.Course
		errs    []string
	)
	for i, c := range raw {
		if cerrs := validate.Candidate(i, c); len(cerrs) > 0 {
			for _, e := range cerrs {
				errs = append(errs, name+": "+e)
			}
			continue
		}
		var course types.Course
		if err := json.Unmarshal([]byte(c.Raw), &course); err != nil {
			errs = append(errs, fmt.Sprintf("%s: Course %d: %v", name, i+1, err))
			continue
		}
		courses = append(courses, course)
	}
	return courses, errs
}

// MergeCourse folds an incoming duplicate into the existing course: students
// and tests are unioned by id, feedback of shared tests is merged with the
// sync precedence rules, labels are unioned. The existing course keeps its
// identity and metadata; lastModified is refreshed.
func MergeCourse(existing, incoming types.Course) types.Course {
	out := existing
	out.Students = merge.UnionStudents(existing.Students, incoming.Students)
	out.AvailableLabels = merge.UnionLabels(existing.AvailableLabels, incoming.AvailableLabels)

	tests := make([]types.CourseTest, 0, len(existing.Tests)+len(incoming.Tests))
	index := make(map[string]int, len(existing.Tests))
	for _, t := range existing.Tests {
		index[t.ID] = len(tests)
		tests = append(tests, t)
	}
	for _, t := range incoming.Tests {
		i, ok := index[t.ID]
		if !ok {
			index[t.ID] = len(tests)
			tests = append(tests, t)
			continue
		}
		tests[i].StudentFeedbacks = merge.MergeFeedbacks(tests[i].StudentFeedbacks, t.StudentFeedbacks)
	}
	out.Tests = tests

	out.LastModified = types.Now()
	return out
}

// ExportAllCourses serializes the full collection as indented JSON. An empty
// collection exports as "[]".
func (im *Importer) ExportAllCourses(ctx context.Context) (string, error) {
	courses, err := im.courses.LoadAll(ctx)
	if err != nil {
		return "", err
	}
	if len(courses) == 0 {
		return "[]", nil
	}

	data, err := json.MarshalIndent(courses, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal courses: %w", err)
	}
	return string(data), nil
}
