// Package scoring computes normalized grades for written tests and oral assessments.
//
// Scores are reported on a fixed 0-60 scale: each task is graded 0-6 points and
// the weighted average is scaled by 10. The scale does not depend on the number
// of tasks in a test.
package scoring

import (
	"math"

	"github.com/markbook/markbook/internal/types"
)

const (
	// MaxScore is the top of the normalized score scale.
	MaxScore = 60

	// DefaultPointsPerTask is the point ceiling of one task unit.
	DefaultPointsPerTask = 6
)

// TaskWeight returns the weight of a task in the score: its explicit weight
// when set, otherwise the number of subtasks, otherwise 1.
func TaskWeight(task types.Task) float64 {
	if task.Weight != nil {
		return *task.Weight
	}
	if hasSubtasks(task) {
		return float64(len(task.Subtasks))
	}
	return 1
}

// TaskAverage returns the mean points of a task across its feedback entries.
// Missing entries and ungraded points count as 0.
func TaskAverage(task types.Task, feedbacks []types.TaskFeedback) float64 {
	if !hasSubtasks(task) {
		for _, fb := range feedbacks {
			if fb.TaskID == task.ID && fb.SubtaskID == "" {
				return float64(points(fb))
			}
		}
		return 0
	}

	total := 0
	for _, st := range task.Subtasks {
		for _, fb := range feedbacks {
			if fb.TaskID == task.ID && fb.SubtaskID == st.ID {
				total += points(fb)
				break
			}
		}
	}
	return float64(total) / float64(len(task.Subtasks))
}

// CalculateStudentScore returns the weighted score (0-60) of one student's
// feedback against a test's task configuration. It returns 0 when there are
// no tasks or the weights sum to zero.
func CalculateStudentScore(tasks []types.Task, feedbacks []types.TaskFeedback) int {
	if len(tasks) == 0 {
		return 0
	}

	var weighted, totalWeight float64
	for _, task := range tasks {
		w := TaskWeight(task)
		weighted += TaskAverage(task, feedbacks) * w
		totalWeight += w
	}

	if totalWeight == 0 {
		return 0
	}
	return roundHalfUp(10 * weighted / totalWeight)
}

// CalculateMaxScore returns the top of the score scale.
func CalculateMaxScore() int {
	return MaxScore
}

// CalculateOralScore applies the weighted score formula over the assessment
// dimensions. A dimension without an explicit weight counts once.
func CalculateOralScore(data types.OralFeedbackData) int {
	if len(data.Dimensions) == 0 {
		return 0
	}

	var weighted, totalWeight float64
	for _, dim := range data.Dimensions {
		w := 1.0
		if dim.Weight != nil {
			w = *dim.Weight
		}
		weighted += float64(dim.Points) * w
		totalWeight += w
	}

	if totalWeight == 0 {
		return 0
	}
	return roundHalfUp(10 * weighted / totalWeight)
}

// CalculateTotalPoints sums the raw graded points. Ungraded entries add nothing.
func CalculateTotalPoints(feedbacks []types.TaskFeedback) int {
	total := 0
	for _, fb := range feedbacks {
		total += points(fb)
	}
	return total
}

// CalculateMaxPoints returns pointsPerTask once per task unit (a task without
// subtasks, or each subtask). A non-positive pointsPerTask means DefaultPointsPerTask.
func CalculateMaxPoints(tasks []types.Task, pointsPerTask int) int {
	if pointsPerTask <= 0 {
		pointsPerTask = DefaultPointsPerTask
	}
	return CountTaskUnits(tasks) * pointsPerTask
}

// CountTaskUnits counts gradable units: subtasks where a task is split, the
// task itself otherwise.
func CountTaskUnits(tasks []types.Task) int {
	n := 0
	for _, task := range tasks {
		if hasSubtasks(task) {
			n += len(task.Subtasks)
		} else {
			n++
		}
	}
	return n
}

func hasSubtasks(task types.Task) bool {
	return task.HasSubtasks && len(task.Subtasks) > 0
}

func points(fb types.TaskFeedback) int {
	if fb.Points == nil {
		return 0
	}
	return *fb.Points
}

func roundHalfUp(x float64) int {
	return int(math.Floor(x + 0.5))
}
