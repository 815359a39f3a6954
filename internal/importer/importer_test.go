package importer

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/storage"
	"github.com/markbook/markbook/internal/types"
)

type courseOpts struct {
	students []types.CourseStudent
	tests    []types.CourseTest
	labels   []string
}

func makeCourse(id, name string, opts courseOpts) types.Course {
	c := types.Course{
		ID:              id,
		Name:            name,
		Students:        opts.students,
		Tests:           opts.tests,
		AvailableLabels: opts.labels,
		CreatedDate:     "2026-01-01T00:00:00Z",
		LastModified:    "2026-01-01T00:00:00Z",
	}
	if c.Students == nil {
		c.Students = []types.CourseStudent{{ID: "s1", Name: "Alice", StudentNumber: "1"}}
	}
	if c.Tests == nil {
		c.Tests = []types.CourseTest{makeTest("test1")}
	}
	if c.AvailableLabels == nil {
		c.AvailableLabels = []string{}
	}
	return c
}

func makeTest(id string, feedbacks ...types.TestFeedbackData) types.CourseTest {
	return types.CourseTest{
		ID:               id,
		Name:             "Test " + id,
		Date:             "2026-01-01",
		Tasks:            []types.Task{},
		StudentFeedbacks: feedbacks,
		CreatedDate:      "2026-01-01T00:00:00Z",
		LastModified:     "2026-01-01T00:00:00Z",
	}
}

func setupTestImporter(t *testing.T, existing ...types.Course) (*Importer, *backup.Manager) {
	t.Helper()

	logger := zaptest.NewLogger(t).Sugar()
	courses := storage.NewCourses(storage.NewMemoryStore())
	if len(existing) > 0 {
		if err := courses.SaveAll(context.Background(), existing); err != nil {
			t.Fatalf("SaveAll() failed: %v", err)
		}
	}
	backups := backup.NewManager(courses, &backup.Config{Logger: logger})
	return New(backups, logger, nil), backups
}

func toJSON(t *testing.T, v interface{}) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	return string(data)
}

func loadAll(t *testing.T, im *Importer) []types.Course {
	t.Helper()
	courses, err := im.courses.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll() failed: %v", err)
	}
	return courses
}

func TestImportCourses_InvalidJSON(t *testing.T) {
	im, backups := setupTestImporter(t, makeCourse("c1", "Math", courseOpts{}))

	result, err := im.ImportCourses(context.Background(), "not json {", nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}

	want := &Result{Errors: []string{"Invalid JSON format"}}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}

	list, _ := backups.ListBackups(context.Background())
	if len(list) != 0 {
		t.Errorf("invalid import created %d backups", len(list))
	}
}

func TestImportCourses_NewCourses(t *testing.T) {
	ctx := context.Background()
	im, backups := setupTestImporter(t, makeCourse("c1", "Math", courseOpts{}))

	result, err := im.ImportCourses(ctx, toJSON(t, []types.Course{
		makeCourse("c2", "Science", courseOpts{}),
		makeCourse("", "History", courseOpts{}),
	}), nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.Imported != 2 || len(result.Errors) != 0 {
		t.Errorf("result = %+v, want 2 imported", result)
	}

	courses := loadAll(t, im)
	if len(courses) != 3 {
		t.Fatalf("collection size = %d, want 3", len(courses))
	}
	if !strings.HasPrefix(courses[2].ID, "course-") {
		t.Errorf("empty id should be generated, got %q", courses[2].ID)
	}

	list, _ := backups.ListBackups(ctx)
	if len(list) != 1 || list[0].Label != backup.LabelBeforeImport {
		t.Errorf("backups = %+v, want one %s", list, backup.LabelBeforeImport)
	}
}

func TestImportCourses_SingleObject(t *testing.T) {
	im, _ := setupTestImporter(t)

	result, err := im.ImportCourses(context.Background(), toJSON(t, makeCourse("c1", "Math", courseOpts{})), nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
}

func TestImportCourses_SkipsDuplicatesByDefault(t *testing.T) {
	im, _ := setupTestImporter(t, makeCourse("c1", "Math", courseOpts{}))

	result, err := im.ImportCourses(context.Background(), toJSON(t, []types.Course{
		makeCourse("c1", "Other name", courseOpts{}), // same id
		makeCourse("c9", "MATH", courseOpts{}),       // same name, other case
	}), nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.SkippedDuplicates != 2 || result.Imported != 0 {
		t.Errorf("result = %+v, want 2 skipped", result)
	}
	if got := len(loadAll(t, im)); got != 1 {
		t.Errorf("collection size = %d, want 1", got)
	}
}

func TestImportCourses_PaddedNameIsDuplicate(t *testing.T) {
	im, _ := setupTestImporter(t, makeCourse("c1", "Math", courseOpts{}))

	incoming := makeCourse("c2", "  MATH ", courseOpts{})
	result, err := im.ImportCourses(context.Background(), toJSON(t, incoming), nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.SkippedDuplicates != 1 || result.Imported != 0 {
		t.Errorf("result = %+v, want the padded name skipped as a duplicate", result)
	}
}

func TestImportCourses_DuplicatesWithinImport(t *testing.T) {
	im, _ := setupTestImporter(t)

	result, err := im.ImportCourses(context.Background(), toJSON(t, []types.Course{
		makeCourse("c1", "Math", courseOpts{}),
		makeCourse("c2", "math", courseOpts{}),
	}), nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.Imported != 1 || result.SkippedDuplicates != 1 {
		t.Errorf("result = %+v, want 1 imported, 1 skipped", result)
	}
}

func TestImportCourses_ForceImportRenames(t *testing.T) {
	im, _ := setupTestImporter(t, makeCourse("c1", "Math", courseOpts{}))

	result, err := im.ImportCourses(context.Background(),
		toJSON(t, []types.Course{makeCourse("c1", "Math", courseOpts{})}),
		&Options{SkipDuplicates: false, MergeExisting: false},
	)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}

	courses := loadAll(t, im)
	if len(courses) != 2 {
		t.Fatalf("collection size = %d, want 2", len(courses))
	}
	if !strings.Contains(courses[1].Name, "(imported)") {
		t.Errorf("Name = %q, want (imported) marker", courses[1].Name)
	}
	if courses[1].ID == "c1" {
		t.Error("renamed copy must get a fresh id")
	}
}

func TestImportCourses_Merge(t *testing.T) {
	ctx := context.Background()

	existingFb := types.TestFeedbackData{StudentID: "s1", TaskFeedbacks: []types.TaskFeedback{{TaskID: "t1", Points: types.IntPtr(4)}}}
	existing := makeCourse("c1", "Math", courseOpts{
		students: []types.CourseStudent{{ID: "s1", Name: "Alice"}},
		tests:    []types.CourseTest{makeTest("test1", existingFb)},
		labels:   []string{"algebra"},
	})

	incomingFb := types.TestFeedbackData{
		StudentID:     "s2",
		TaskFeedbacks: []types.TaskFeedback{{TaskID: "t1", Points: types.IntPtr(5)}},
		CompletedDate: "2026-02-01T00:00:00Z",
	}
	incoming := makeCourse("c1", "Math", courseOpts{
		students: []types.CourseStudent{{ID: "s1", Name: "Alice Renamed"}, {ID: "s2", Name: "Bob"}},
		tests:    []types.CourseTest{makeTest("test1", incomingFb), makeTest("test2")},
		labels:   []string{"algebra", "geometry"},
	})

	im, _ := setupTestImporter(t, existing)
	result, err := im.ImportCourses(ctx, toJSON(t, []types.Course{incoming}), &Options{MergeExisting: true})
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.Merged != 1 || result.Imported != 0 {
		t.Errorf("result = %+v, want 1 merged", result)
	}

	courses := loadAll(t, im)
	if len(courses) != 1 {
		t.Fatalf("collection size = %d, want 1", len(courses))
	}
	c := courses[0]

	wantStudents := []types.CourseStudent{{ID: "s1", Name: "Alice"}, {ID: "s2", Name: "Bob"}}
	if diff := cmp.Diff(wantStudents, c.Students); diff != "" {
		t.Errorf("Students mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"algebra", "geometry"}, c.AvailableLabels); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if len(c.Tests) != 2 {
		t.Fatalf("Tests = %d, want 2", len(c.Tests))
	}
	if len(c.Tests[0].StudentFeedbacks) != 2 {
		t.Errorf("test1 feedbacks = %d, want 2", len(c.Tests[0].StudentFeedbacks))
	}
	if c.LastModified == "2026-01-01T00:00:00Z" {
		t.Error("merge should refresh lastModified")
	}
}

func TestImportCourses_InvalidCandidatesSkipped(t *testing.T) {
	im, _ := setupTestImporter(t)

	input := `[{"name":"Math","students":[],"tests":[]},{"name":"Broken","tests":[]}]`
	result, err := im.ImportCourses(context.Background(), input, nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.Imported != 1 || result.SkippedDuplicates != 0 {
		t.Errorf("result = %+v, want 1 imported", result)
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "students") {
		t.Errorf("Errors = %v, want one message about students", result.Errors)
	}
}

func TestImportCourses_AllInvalidNoBackup(t *testing.T) {
	ctx := context.Background()
	im, backups := setupTestImporter(t, makeCourse("c1", "Math", courseOpts{}))

	result, err := im.ImportCourses(ctx, `{"students":[]}`, nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if len(result.Errors) != 2 {
		t.Errorf("Errors = %v, want 2", result.Errors)
	}
	list, _ := backups.ListBackups(ctx)
	if len(list) != 0 {
		t.Errorf("rejected import created %d backups", len(list))
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	original := []types.Course{
		makeCourse("c1", "Math", courseOpts{labels: []string{"algebra"}}),
		makeCourse("c2", "Science", courseOpts{}),
	}
	im, _ := setupTestImporter(t, original...)

	exported, err := im.ExportAllCourses(ctx)
	if err != nil {
		t.Fatalf("ExportAllCourses() failed: %v", err)
	}
	if !strings.Contains(exported, "\n  ") {
		t.Error("export should be indented")
	}

	// Same store, default options: everything is a duplicate.
	result, err := im.ImportCourses(ctx, exported, nil)
	if err != nil {
		t.Fatalf("ImportCourses() failed: %v", err)
	}
	if result.SkippedDuplicates != len(original) || result.Imported != 0 {
		t.Errorf("result = %+v, want %d skipped", result, len(original))
	}

	// Fresh store: lossless round trip.
	fresh, _ := setupTestImporter(t)
	if _, err := fresh.ImportCourses(ctx, exported, nil); err != nil {
		t.Fatalf("ImportCourses() into fresh store failed: %v", err)
	}
	if diff := cmp.Diff(original, loadAll(t, fresh)); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestExportAllCourses_Empty(t *testing.T) {
	im, _ := setupTestImporter(t)

	got, err := im.ExportAllCourses(context.Background())
	if err != nil {
		t.Fatalf("ExportAllCourses() failed: %v", err)
	}
	if got != "[]" {
		t.Errorf("ExportAllCourses() = %q, want []", got)
	}
}

func TestImportCoursesFromData(t *testing.T) {
	im, _ := setupTestImporter(t)

	result, err := im.ImportCoursesFromData(context.Background(), []types.Course{
		makeCourse("c1", "Math", courseOpts{}),
	}, nil)
	if err != nil {
		t.Fatalf("ImportCoursesFromData() failed: %v", err)
	}
	if result.Imported != 1 {
		t.Errorf("Imported = %d, want 1", result.Imported)
	}
}
