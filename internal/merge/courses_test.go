package merge

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/markbook/markbook/internal/types"
)

func course(id, name, modified string) types.Course {
	return types.Course{
		ID:              id,
		Name:            name,
		Students:        []types.CourseStudent{},
		Tests:           []types.CourseTest{},
		AvailableLabels: []string{},
		CreatedDate:     "2026-01-01T00:00:00Z",
		LastModified:    modified,
	}
}

func TestMergeCourses(t *testing.T) {
	local := course("c1", "Math", "2026-01-01T00:00:00Z")
	local.Students = []types.CourseStudent{{ID: "s1", Name: "Alice"}}
	local.AvailableLabels = []string{"algebra", "logarithms"}
	local.Tests = []types.CourseTest{makeTest("t1", []types.TestFeedbackData{makeFb("s1", 2, fbOpts{})}, "2026-01-01T00:00:00Z")}
	local.OralTests = []types.OralTest{{ID: "o1", Name: "Oral"}}

	folder := course("c1", "Math (renamed)", "2026-03-01T00:00:00Z")
	folder.Students = []types.CourseStudent{{ID: "s1", Name: "Alice B."}, {ID: "s2", Name: "Bob"}}
	folder.AvailableLabels = []string{"logarithms", "geometry"}
	folder.Tests = []types.CourseTest{makeTest("t2", nil, "2026-01-01T00:00:00Z")}
	folder.OralTests = []types.OralTest{{ID: "o1", Name: "Oral (folder)"}, {ID: "o2", Name: "Oral 2"}}

	onlyFolder := course("c2", "Physics", "2026-01-01T00:00:00Z")

	got := MergeCourses([]types.Course{local}, []types.Course{folder, onlyFolder})

	if len(got) != 2 || got[0].ID != "c1" || got[1].ID != "c2" {
		t.Fatalf("MergeCourses() ids = %+v", got)
	}

	m := got[0]
	if m.Name != "Math (renamed)" {
		t.Errorf("Name = %q, want newer folder metadata", m.Name)
	}
	if diff := cmp.Diff([]types.CourseStudent{{ID: "s1", Name: "Alice"}, {ID: "s2", Name: "Bob"}}, m.Students); diff != "" {
		t.Errorf("Students mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"algebra", "logarithms", "geometry"}, m.AvailableLabels); diff != "" {
		t.Errorf("Labels mismatch (-want +got):\n%s", diff)
	}
	if len(m.Tests) != 2 {
		t.Errorf("Tests = %d, want 2", len(m.Tests))
	}
	if len(m.OralTests) != 2 || m.OralTests[0].Name != "Oral" {
		t.Errorf("OralTests = %+v, want local o1 plus folder o2", m.OralTests)
	}
}

func TestDeduplicateCourses(t *testing.T) {
	rich := course("c1", "Math 10A", "2026-01-01T00:00:00Z")
	rich.Tests = []types.CourseTest{makeTest("t1", []types.TestFeedbackData{makeFb("s1", 1, fbOpts{completed: true})}, "2026-01-01T00:00:00Z")}

	poor := course("c9", "  math 10a ", "2026-05-01T00:00:00Z")
	poor.Students = []types.CourseStudent{{ID: "s1"}, {ID: "s2"}}

	other := course("c2", "Physics", "2026-01-01T00:00:00Z")

	t.Run("more data wins", func(t *testing.T) {
		got := DeduplicateCourses([]types.Course{poor, other, rich})
		if len(got) != 2 {
			t.Fatalf("len = %d, want 2", len(got))
		}
		if got[0].ID != "c1" || got[1].ID != "c2" {
			t.Errorf("ids = %s,%s want c1 at first position then c2", got[0].ID, got[1].ID)
		}
	})

	t.Run("newer wins equal score", func(t *testing.T) {
		a := course("a", "Chem", "2026-01-01T00:00:00Z")
		b := course("b", "CHEM", "2026-02-01T00:00:00Z")
		got := DeduplicateCourses([]types.Course{a, b})
		if len(got) != 1 || got[0].ID != "b" {
			t.Errorf("DeduplicateCourses() = %+v, want b", got)
		}
	})

	t.Run("earlier copy wins full tie", func(t *testing.T) {
		a := course("a", "Chem", "2026-01-01T00:00:00Z")
		b := course("b", "chem", "2026-01-01T00:00:00Z")
		got := DeduplicateCourses([]types.Course{a, b})
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("DeduplicateCourses() = %+v, want a", got)
		}
	})
}

func TestNameKey(t *testing.T) {
	if NameKey("  MATH 10a ") != NameKey("math 10A") {
		t.Errorf("NameKey should ignore case and padding: %q vs %q", NameKey("  MATH 10a "), NameKey("math 10A"))
	}
	if NameKey("Åse") != NameKey("åse") {
		t.Error("NameKey should fold Å")
	}
}

func TestDataScore(t *testing.T) {
	c := course("c", "x", "")
	c.Students = []types.CourseStudent{{ID: "s1"}, {ID: "s2"}}
	c.Tests = []types.CourseTest{makeTest("t1", []types.TestFeedbackData{makeFb("s1", 0, fbOpts{completed: true})}, "")}
	if got := DataScore(&c); got != 112 {
		t.Errorf("DataScore() = %d, want 112", got)
	}
}
