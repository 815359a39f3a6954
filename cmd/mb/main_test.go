package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/storage"
	"github.com/markbook/markbook/internal/types"
)

func TestParseSince(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T08:00:00Z", time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		got, err := parseSince(tt.in, now)
		if err != nil {
			t.Errorf("parseSince(%q) error: %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("parseSince(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	got, err := parseSince("yesterday", now)
	if err != nil {
		t.Fatalf("parseSince(yesterday) error: %v", err)
	}
	if !got.Before(now) || got.Before(now.Add(-48*time.Hour)) {
		t.Errorf("parseSince(yesterday) = %v", got)
	}

	if _, err := parseSince("banana", now); err == nil {
		t.Error("expected error for unparsable input")
	}
}

func TestFilterBackups(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	entries := []backup.Entry{
		{ID: "c", Timestamp: base.Add(2 * time.Hour), Label: backup.LabelAuto},
		{ID: "b", Timestamp: base.Add(time.Hour), Label: backup.LabelManual},
		{ID: "a", Timestamp: base, Label: backup.LabelAuto},
	}

	ids := func(es []backup.Entry) []string {
		out := []string{}
		for _, e := range es {
			out = append(out, e.ID)
		}
		return out
	}

	if diff := cmp.Diff([]string{"c", "b", "a"}, ids(filterBackups(entries, time.Time{}, ""))); diff != "" {
		t.Errorf("no filter (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c", "b"}, ids(filterBackups(entries, base.Add(time.Hour), ""))); diff != "" {
		t.Errorf("since (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c", "a"}, ids(filterBackups(entries, time.Time{}, backup.LabelAuto))); diff != "" {
		t.Errorf("label (-want +got):\n%s", diff)
	}
}

func TestFindCourseTestStudent(t *testing.T) {
	ctx := context.Background()
	courses := storage.NewCourses(storage.NewMemoryStore())
	err := courses.SaveAll(ctx, []types.Course{
		{
			ID:   "course-1",
			Name: "Math 10A",
			Students: []types.CourseStudent{
				{ID: "s1", Name: "Alice"},
			},
			Tests: []types.CourseTest{
				{ID: "test-1", Name: "Algebra 1"},
			},
		},
	})
	if err != nil {
		t.Fatalf("SaveAll failed: %v", err)
	}

	for _, ref := range []string{"course-1", "math 10a", "MATH 10A"} {
		c, err := findCourse(ctx, courses, ref)
		if err != nil {
			t.Fatalf("findCourse(%q) failed: %v", ref, err)
		}
		if c.ID != "course-1" {
			t.Errorf("findCourse(%q) = %s", ref, c.ID)
		}
	}
	if _, err := findCourse(ctx, courses, "history"); !errors.Is(err, storage.ErrCourseNotFound) {
		t.Errorf("findCourse(missing) = %v, want ErrCourseNotFound", err)
	}

	c, _ := findCourse(ctx, courses, "course-1")
	if test, err := findTest(c, "algebra 1"); err != nil || test.ID != "test-1" {
		t.Errorf("findTest by name = %v, %v", test, err)
	}
	if _, err := findTest(c, "geometry"); err == nil {
		t.Error("expected error for missing test")
	}
	if s, err := findStudent(c, "alice"); err != nil || s.ID != "s1" {
		t.Errorf("findStudent by name = %v, %v", s, err)
	}
	if _, err := findStudent(c, "s9"); err == nil {
		t.Error("expected error for missing student")
	}
}

func TestDistribution(t *testing.T) {
	got := distribution([]int{1, 0, 2, 0, 0, 0, 3})
	want := "0:1 1:0 2:2 3:0 4:0 5:0 6:3"
	if got != want {
		t.Errorf("distribution = %q, want %q", got, want)
	}
}

func TestCommandTree(t *testing.T) {
	want := [][]string{
		{"backup", "create"}, {"backup", "list"}, {"backup", "show"}, {"backup", "restore"}, {"backup", "delete"},
		{"import"}, {"export"}, {"course", "list"}, {"course", "delete"}, {"test", "delete"}, {"student", "delete"},
		{"scores"}, {"report"}, {"sync"}, {"migrate-folder"}, {"status"}, {"daemon"}, {"dashboard"}, {"config", "print"},
	}
	for _, path := range want {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not registered", path)
		}
	}
}

func TestOptionalArguments(t *testing.T) {
	if err := scoresCmd.Args(scoresCmd, []string{"math"}); err != nil {
		t.Errorf("scores <course> rejected: %v", err)
	}
	if err := scoresCmd.Args(scoresCmd, []string{"math", "t1", "extra"}); err == nil {
		t.Error("scores with three arguments should be rejected")
	}
	if err := importCmd.Args(importCmd, nil); err != nil {
		t.Errorf("import --from-folder without a file rejected: %v", err)
	}
	if importCmd.Flags().Lookup("from-folder") == nil {
		t.Error("import has no --from-folder flag")
	}
}
