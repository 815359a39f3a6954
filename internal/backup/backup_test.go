package backup

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/markbook/markbook/internal/events"
	"github.com/markbook/markbook/internal/storage"
	"github.com/markbook/markbook/internal/types"
)

// setupTestManager returns a manager over an in-memory store with a clock that
// advances one second per snapshot.
func setupTestManager(t *testing.T) (*Manager, *storage.MemoryStore) {
	t.Helper()

	store := storage.NewMemoryStore()
	m := NewManager(storage.NewCourses(store), &Config{
		Logger: zaptest.NewLogger(t).Sugar(),
	})

	clock := time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)
	m.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return m, store
}

func makeCourse(id, name string, completedFeedbacks int) types.Course {
	c := types.Course{
		ID:              id,
		Name:            name,
		Students:        []types.CourseStudent{{ID: "s1", Name: "Alice"}},
		AvailableLabels: []string{},
		CreatedDate:     "2024-01-01T00:00:00.000Z",
		LastModified:    "2024-01-01T00:00:00.000Z",
	}
	test := types.CourseTest{ID: "test1", Name: "Test 1"}
	for i := 0; i < completedFeedbacks; i++ {
		test.StudentFeedbacks = append(test.StudentFeedbacks, types.TestFeedbackData{
			StudentID:     "s1",
			CompletedDate: "2024-02-01T00:00:00.000Z",
		})
	}
	c.Tests = []types.CourseTest{test}
	return c
}

func seed(t *testing.T, m *Manager, courses ...types.Course) {
	t.Helper()
	if err := m.Courses().SaveAll(context.Background(), courses); err != nil {
		t.Fatalf("SaveAll() failed: %v", err)
	}
}

func TestCreateBackup_EmptyCollection(t *testing.T) {
	m, _ := setupTestManager(t)

	entry, err := m.CreateBackup(context.Background(), LabelManual)
	if err != nil {
		t.Fatalf("CreateBackup() failed: %v", err)
	}
	if entry != nil {
		t.Errorf("CreateBackup() on empty collection = %+v, want nil", entry)
	}

	list, _ := m.ListBackups(context.Background())
	if len(list) != 0 {
		t.Errorf("ListBackups() = %d entries, want 0", len(list))
	}
}

func TestCreateBackup_Metadata(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 2), makeCourse("c2", "Physics", 1))

	entry, err := m.CreateBackup(ctx, LabelManual)
	if err != nil {
		t.Fatalf("CreateBackup() failed: %v", err)
	}
	if entry == nil {
		t.Fatal("CreateBackup() returned nil")
	}

	if !strings.HasPrefix(entry.ID, IDPrefix) {
		t.Errorf("ID = %q, want prefix %q", entry.ID, IDPrefix)
	}
	if entry.Label != LabelManual {
		t.Errorf("Label = %q", entry.Label)
	}
	if entry.CourseCount != 2 {
		t.Errorf("CourseCount = %d, want 2", entry.CourseCount)
	}
	if entry.TotalFeedback != 3 {
		t.Errorf("TotalFeedback = %d, want 3", entry.TotalFeedback)
	}

	raw, _ := m.Courses().LoadRaw(ctx)
	if entry.SizeBytes != len(raw) {
		t.Errorf("SizeBytes = %d, want %d", entry.SizeBytes, len(raw))
	}

	data, err := m.BackupData(ctx, entry.ID)
	if err != nil {
		t.Fatalf("BackupData() failed: %v", err)
	}
	if len(data) != 2 || data[0].Name != "Math" {
		t.Errorf("BackupData() = %+v", data)
	}
}

func TestCreateBackup_Rotation(t *testing.T) {
	ctx := context.Background()
	m, store := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 1))

	var ids []string
	for i := 0; i < 12; i++ {
		entry, err := m.CreateBackup(ctx, LabelAuto)
		if err != nil {
			t.Fatalf("CreateBackup() #%d failed: %v", i, err)
		}
		ids = append(ids, entry.ID)
	}

	list, err := m.ListBackups(ctx)
	if err != nil {
		t.Fatalf("ListBackups() failed: %v", err)
	}
	if len(list) != MaxBackups {
		t.Fatalf("ListBackups() = %d entries, want %d", len(list), MaxBackups)
	}

	// Newest first
	if list[0].ID != ids[11] || list[9].ID != ids[2] {
		t.Errorf("ListBackups() order = %s ... %s, want %s ... %s", list[0].ID, list[9].ID, ids[11], ids[2])
	}

	for _, dropped := range ids[:2] {
		if _, err := store.Get(ctx, storage.BackupKey(dropped)); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("payload of rotated backup %s still present", dropped)
		}
		if _, err := m.BackupData(ctx, dropped); !errors.Is(err, ErrBackupNotFound) {
			t.Errorf("BackupData(%s) error = %v, want ErrBackupNotFound", dropped, err)
		}
	}

	// courses + index + 10 payloads
	if got := store.Keys(); got != 12 {
		t.Errorf("store holds %d keys, want 12", got)
	}
}

func TestCreateBackup_RotationIgnoresLabel(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 0))

	first, _ := m.CreateBackup(ctx, LabelBeforeDelete)
	for i := 0; i < MaxBackups; i++ {
		if _, err := m.CreateBackup(ctx, LabelAuto); err != nil {
			t.Fatalf("CreateBackup() failed: %v", err)
		}
	}

	if _, err := m.Lookup(ctx, first.ID); !errors.Is(err, ErrBackupNotFound) {
		t.Errorf("safety backup should rotate out, Lookup() error = %v", err)
	}
}

func TestRestoreFromBackup_Unknown(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 0))

	result, err := m.RestoreFromBackup(ctx, "nonexistent")
	if err != nil {
		t.Fatalf("RestoreFromBackup() failed: %v", err)
	}
	if result.Success || result.CourseCount != 0 {
		t.Errorf("RestoreFromBackup(nonexistent) = %+v, want {false 0}", result)
	}

	list, _ := m.ListBackups(ctx)
	if len(list) != 0 {
		t.Errorf("unknown restore created %d backups, want 0", len(list))
	}
}

func TestRestoreFromBackup_Valid(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 0), makeCourse("c2", "Physics", 0))

	entry, err := m.CreateBackup(ctx, LabelManual)
	if err != nil {
		t.Fatalf("CreateBackup() failed: %v", err)
	}

	// Modify state after the backup.
	seed(t, m, makeCourse("c3", "Chemistry", 0))

	result, err := m.RestoreFromBackup(ctx, entry.ID)
	if err != nil {
		t.Fatalf("RestoreFromBackup() failed: %v", err)
	}
	if !result.Success || result.CourseCount != 2 {
		t.Errorf("RestoreFromBackup() = %+v, want {true 2}", result)
	}

	courses, _ := m.Courses().LoadAll(ctx)
	if len(courses) != 2 || courses[0].ID != "c1" {
		t.Errorf("live collection after restore = %+v", courses)
	}

	list, _ := m.ListBackups(ctx)
	if len(list) != 2 || list[0].Label != LabelBeforeRestore {
		t.Fatalf("ListBackups() = %+v, want newest labeled %s", list, LabelBeforeRestore)
	}
	safety, _ := m.BackupData(ctx, list[0].ID)
	if len(safety) != 1 || safety[0].ID != "c3" {
		t.Errorf("safety backup holds %+v, want the pre-restore state", safety)
	}
}

func TestDeleteBackup(t *testing.T) {
	ctx := context.Background()
	m, store := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 0))

	entry, _ := m.CreateBackup(ctx, LabelManual)
	if err := m.DeleteBackup(ctx, entry.ID); err != nil {
		t.Fatalf("DeleteBackup() failed: %v", err)
	}

	list, _ := m.ListBackups(ctx)
	if len(list) != 0 {
		t.Errorf("ListBackups() after delete = %d entries", len(list))
	}
	if _, err := store.Get(ctx, storage.BackupKey(entry.ID)); !errors.Is(err, storage.ErrNotFound) {
		t.Error("payload should be deleted")
	}

	if err := m.DeleteBackup(ctx, entry.ID); err != nil {
		t.Errorf("second DeleteBackup() failed: %v", err)
	}
	if err := m.DeleteBackup(ctx, "never-existed"); err != nil {
		t.Errorf("DeleteBackup(unknown) failed: %v", err)
	}
}

func TestSafeDeleteCourse(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 1), makeCourse("c2", "Physics", 0))

	backupID, err := m.SafeDeleteCourse(ctx, "c1")
	if err != nil {
		t.Fatalf("SafeDeleteCourse() failed: %v", err)
	}
	if backupID == "" {
		t.Fatal("SafeDeleteCourse() returned empty backup id")
	}

	courses, _ := m.Courses().LoadAll(ctx)
	if len(courses) != 1 || courses[0].ID != "c2" {
		t.Errorf("collection after delete = %+v", courses)
	}

	entry, err := m.Lookup(ctx, backupID)
	if err != nil {
		t.Fatalf("Lookup() failed: %v", err)
	}
	if entry.Label != LabelBeforeDelete {
		t.Errorf("Label = %q, want %q", entry.Label, LabelBeforeDelete)
	}

	data, _ := m.BackupData(ctx, backupID)
	found := false
	for _, c := range data {
		if c.ID == "c1" && c.Name == "Math" {
			found = true
		}
	}
	if !found {
		t.Error("before-delete backup should contain the deleted course")
	}
}

func TestSafeDeleteCourse_Missing(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 0))

	_, err := m.SafeDeleteCourse(ctx, "nope")
	if !errors.Is(err, storage.ErrCourseNotFound) {
		t.Errorf("SafeDeleteCourse(nope) error = %v, want ErrCourseNotFound", err)
	}
	list, _ := m.ListBackups(ctx)
	if len(list) != 0 {
		t.Errorf("missing course should not create a backup, got %d", len(list))
	}
}

func TestSafeDeleteStudentAndTest(t *testing.T) {
	ctx := context.Background()
	m, _ := setupTestManager(t)
	seed(t, m, makeCourse("c1", "Math", 2))

	if _, err := m.SafeDeleteStudent(ctx, "c1", "s1"); err != nil {
		t.Fatalf("SafeDeleteStudent() failed: %v", err)
	}
	c, _ := m.Courses().Get(ctx, "c1")
	if len(c.Students) != 0 || len(c.Tests[0].StudentFeedbacks) != 0 {
		t.Errorf("student or feedback left behind: %+v", c)
	}

	if _, err := m.SafeDeleteTest(ctx, "c1", "test1"); err != nil {
		t.Fatalf("SafeDeleteTest() failed: %v", err)
	}
	c, _ = m.Courses().Get(ctx, "c1")
	if len(c.Tests) != 0 {
		t.Errorf("Tests = %+v, want none", c.Tests)
	}

	list, _ := m.ListBackups(ctx)
	if len(list) != 2 {
		t.Fatalf("ListBackups() = %d, want 2", len(list))
	}
	for _, e := range list {
		if e.Label != LabelBeforeDelete {
			t.Errorf("Label = %q, want %q", e.Label, LabelBeforeDelete)
		}
	}
	// The first snapshot still holds the student's completed feedback.
	if list[1].TotalFeedback != 2 {
		t.Errorf("oldest snapshot TotalFeedback = %d, want 2", list[1].TotalFeedback)
	}
}

func TestManager_PublishesEvents(t *testing.T) {
	ctx := context.Background()
	var got []events.Type
	m := NewManager(storage.NewCourses(storage.NewMemoryStore()), &Config{
		Publisher: events.PublisherFunc(func(e events.Event) { got = append(got, e.Type) }),
	})
	seed(t, m, makeCourse("c1", "Math", 0))

	entry, _ := m.CreateBackup(ctx, LabelManual)
	_, _ = m.RestoreFromBackup(ctx, entry.ID)
	_ = m.DeleteBackup(ctx, entry.ID)

	want := []events.Type{events.BackupCreated, events.BackupCreated, events.BackupRestored, events.BackupDeleted}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestSafeDelete_PublishesScopedEvents(t *testing.T) {
	ctx := context.Background()
	var got []events.Event
	m := NewManager(storage.NewCourses(storage.NewMemoryStore()), &Config{
		Publisher: events.PublisherFunc(func(e events.Event) {
			if e.Type != events.BackupCreated {
				got = append(got, e)
			}
		}),
	})
	seed(t, m, makeCourse("c1", "Math", 2))

	if _, err := m.SafeDeleteStudent(ctx, "c1", "s1"); err != nil {
		t.Fatalf("SafeDeleteStudent() failed: %v", err)
	}
	if _, err := m.SafeDeleteTest(ctx, "c1", "test1"); err != nil {
		t.Fatalf("SafeDeleteTest() failed: %v", err)
	}
	if _, err := m.SafeDeleteCourse(ctx, "c1"); err != nil {
		t.Fatalf("SafeDeleteCourse() failed: %v", err)
	}

	want := []events.Type{events.StudentDeleted, events.TestDeleted, events.CourseDeleted}
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Type != want[i] {
			t.Errorf("event[%d] = %s, want %s", i, got[i].Type, want[i])
		}
	}
	if got[0].Data["studentId"] != "s1" || got[1].Data["testId"] != "test1" {
		t.Errorf("event data = %v / %v, want studentId s1 and testId test1", got[0].Data, got[1].Data)
	}
}

// Benchmark for CreateBackup including rotation once the cap is reached
func BenchmarkCreateBackup_50Courses(b *testing.B) {
	ctx := context.Background()
	m := NewManager(storage.NewCourses(storage.NewMemoryStore()), nil)

	courses := make([]types.Course, 0, 50)
	for i := 0; i < 50; i++ {
		courses = append(courses, makeCourse(fmt.Sprintf("course-%d", i), fmt.Sprintf("Course %d", i), 25))
	}
	if err := m.Courses().SaveAll(ctx, courses); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := m.CreateBackup(ctx, LabelAuto); err != nil {
			b.Fatal(err)
		}
	}
}
