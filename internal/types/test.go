package types

// Task is a gradable item of a written test. A task either carries its own
// TaskFeedback entry or is split into subtasks that are graded separately.
type Task struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Subtasks    []Subtask `json:"subtasks"`
	HasSubtasks bool      `json:"hasSubtasks"`
	Labels      []string  `json:"labels"`
	Category    *int      `json:"category,omitempty"`
	Part        *int      `json:"part,omitempty"`

	// Weight overrides the automatic weight (number of subtasks, or 1).
	Weight *float64 `json:"weight,omitempty"`
}

// Subtask is a part of a Task, e.g. "a", "b".
type Subtask struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Labels   []string `json:"labels"`
	Category *int     `json:"category,omitempty"`
}

// TaskFeedback is the grade for one task or subtask.
// Points is nil while the item is ungraded; graded values are 0-6.
type TaskFeedback struct {
	TaskID    string `json:"taskId"`
	SubtaskID string `json:"subtaskId,omitempty"`
	Points    *int   `json:"points"`
	Comment   string `json:"comment"`
}

// TestFeedbackData is one student's feedback for one written test.
type TestFeedbackData struct {
	StudentID         string         `json:"studentId"`
	Absent            bool           `json:"absent,omitempty"`
	TaskFeedbacks     []TaskFeedback `json:"taskFeedbacks"`
	IndividualComment string         `json:"individualComment"`
	CompletedDate     string         `json:"completedDate,omitempty"`
	Score             *int           `json:"score,omitempty"`
}

// IsCompleted reports whether this feedback was marked finished.
func (f *TestFeedbackData) IsCompleted() bool {
	return f.CompletedDate != ""
}

// FeedbackSnippet is a reusable comment fragment attached to a test.
type FeedbackSnippet struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Category    string `json:"category,omitempty"`
	CreatedDate string `json:"createdDate"`
}

// CourseTest is a written test of a course.
type CourseTest struct {
	ID               string             `json:"id"`
	Name             string             `json:"name"`
	Description      string             `json:"description,omitempty"`
	Date             string             `json:"date"`
	Tasks            []Task             `json:"tasks"`
	GeneralComment   string             `json:"generalComment"`
	StudentFeedbacks []TestFeedbackData `json:"studentFeedbacks"`

	HasTwoParts             bool              `json:"hasTwoParts,omitempty"`
	Part1TaskCount          *int              `json:"part1TaskCount,omitempty"`
	Part2TaskCount          *int              `json:"part2TaskCount,omitempty"`
	RestartNumberingInPart2 bool              `json:"restartNumberingInPart2,omitempty"`
	Snippets                []FeedbackSnippet `json:"snippets,omitempty"`

	CreatedDate  string `json:"createdDate"`
	LastModified string `json:"lastModified"`
}

// FindFeedback returns the feedback for the given student, or nil.
func (t *CourseTest) FindFeedback(studentID string) *TestFeedbackData {
	for i := range t.StudentFeedbacks {
		if t.StudentFeedbacks[i].StudentID == studentID {
			return &t.StudentFeedbacks[i]
		}
	}
	return nil
}
