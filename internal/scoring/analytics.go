package scoring

import (
	"fmt"

	"github.com/markbook/markbook/internal/types"
)

// TaskAnalytics describes how one task unit (a task, or one of its subtasks)
// went across the completed feedback of a test.
type TaskAnalytics struct {
	TaskID    string `json:"taskId"`
	SubtaskID string `json:"subtaskId,omitempty"`

	// Label is e.g. "1" or "1a"; FullLabel is e.g. "Task 1a" or "Part 2 - Task 3".
	Label     string   `json:"label"`
	FullLabel string   `json:"fullLabel"`
	Part      *int     `json:"part,omitempty"`
	Category  *int     `json:"category,omitempty"`
	Labels    []string `json:"labels"`

	AverageScore      float64 `json:"averageScore"`
	AttemptCount      int     `json:"attemptCount"`
	AttemptPercentage float64 `json:"attemptPercentage"`
	TotalStudents     int     `json:"totalStudents"`

	// ScoreDistribution counts students per point value 0-6. Ungraded and
	// missing entries count as 0.
	ScoreDistribution [DefaultPointsPerTask + 1]int `json:"scoreDistribution"`
}

// AnalyzeTest returns one TaskAnalytics per task unit, in task order.
// Only completed, non-absent feedback is considered; with none, the result is
// empty.
func AnalyzeTest(test *types.CourseTest) []TaskAnalytics {
	var completed []types.TestFeedbackData
	for _, fb := range test.StudentFeedbacks {
		if fb.IsCompleted() && !fb.Absent {
			completed = append(completed, fb)
		}
	}
	if len(completed) == 0 {
		return []TaskAnalytics{}
	}

	out := make([]TaskAnalytics, 0, CountTaskUnits(test.Tasks))
	for _, task := range test.Tasks {
		if !hasSubtasks(task) {
			out = append(out, analyzeUnit(task, nil, completed, test.HasTwoParts))
			continue
		}
		for i := range task.Subtasks {
			out = append(out, analyzeUnit(task, &task.Subtasks[i], completed, test.HasTwoParts))
		}
	}
	return out
}

func analyzeUnit(task types.Task, sub *types.Subtask, completed []types.TestFeedbackData, twoParts bool) TaskAnalytics {
	a := TaskAnalytics{
		TaskID:        task.ID,
		Label:         task.Label,
		Part:          task.Part,
		Category:      task.Category,
		Labels:        task.Labels,
		TotalStudents: len(completed),
	}
	if sub != nil {
		a.SubtaskID = sub.ID
		a.Label = task.Label + sub.Label
		a.Labels = sub.Labels
		if sub.Category != nil {
			a.Category = sub.Category
		}
	}
	if a.Labels == nil {
		a.Labels = []string{}
	}

	if twoParts && task.Part != nil {
		a.FullLabel = fmt.Sprintf("Part %d - Task %s", *task.Part, a.Label)
	} else {
		a.FullLabel = "Task " + a.Label
	}

	entries, total := 0, 0
	for _, fb := range completed {
		for _, tf := range fb.TaskFeedbacks {
			if tf.TaskID != task.ID || tf.SubtaskID != a.SubtaskID {
				continue
			}
			entries++
			if tf.Points == nil {
				a.ScoreDistribution[0]++
				continue
			}
			p := clampPoints(*tf.Points)
			a.ScoreDistribution[p]++
			total += p
			a.AttemptCount++
		}
	}
	if missing := len(completed) - entries; missing > 0 {
		a.ScoreDistribution[0] += missing
	}

	if a.AttemptCount > 0 {
		a.AverageScore = float64(total) / float64(a.AttemptCount)
	}
	a.AttemptPercentage = float64(a.AttemptCount) / float64(len(completed)) * 100
	return a
}

func clampPoints(p int) int {
	switch {
	case p < 0:
		return 0
	case p > DefaultPointsPerTask:
		return DefaultPointsPerTask
	default:
		return p
	}
}
