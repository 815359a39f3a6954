package merge_test

import (
	"fmt"

	"github.com/markbook/markbook/internal/merge"
	"github.com/markbook/markbook/internal/types"
)

func graded(studentID string, n int, completed bool) types.TestFeedbackData {
	fb := types.TestFeedbackData{StudentID: studentID}
	for i := 0; i < n; i++ {
		fb.TaskFeedbacks = append(fb.TaskFeedbacks, types.TaskFeedback{
			TaskID: fmt.Sprintf("t%d", i+1),
			Points: types.IntPtr(4),
		})
	}
	if completed {
		fb.CompletedDate = "2026-02-01T10:00:00.000Z"
	}
	return fb
}

// ExampleMergeFeedbacks shows that a completed folder record only wins when
// it holds at least as much work as the local one.
func ExampleMergeFeedbacks() {
	local := []types.TestFeedbackData{
		graded("alice", 2, false),
		graded("bob", 5, false),
	}
	folder := []types.TestFeedbackData{
		graded("alice", 3, true),
		graded("bob", 3, true),
		graded("carol", 1, false),
	}

	for _, fb := range merge.MergeFeedbacks(local, folder) {
		fmt.Printf("%s: %d tasks, completed=%v\n", fb.StudentID, len(fb.TaskFeedbacks), fb.IsCompleted())
	}
	// Output:
	// alice: 3 tasks, completed=true
	// bob: 5 tasks, completed=false
	// carol: 1 tasks, completed=false
}

// ExampleDeduplicateCourses collapses courses whose names differ only in case.
func ExampleDeduplicateCourses() {
	courses := []types.Course{
		{ID: "c1", Name: "Math 10A", LastModified: "2026-01-01T00:00:00.000Z"},
		{ID: "c2", Name: "History"},
		{
			ID:           "c3",
			Name:         "MATH 10a",
			Students:     []types.CourseStudent{{ID: "s1", Name: "Alice"}},
			LastModified: "2026-01-02T00:00:00.000Z",
		},
	}

	for _, c := range merge.DeduplicateCourses(courses) {
		fmt.Println(c.ID, c.Name)
	}
	// Output:
	// c3 MATH 10a
	// c2 History
}
