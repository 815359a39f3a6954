package scoring

import "github.com/markbook/markbook/internal/types"

// StudentResult is one roster entry's result on a test.
type StudentResult struct {
	Student   types.CourseStudent `json:"student"`
	Score     int                 `json:"score"`
	Completed bool                `json:"completed"`
	Absent    bool                `json:"absent,omitempty"`
}

// TestSummary aggregates the results of one written test.
// Average, Highest and Lowest only consider completed, non-absent feedback.
type TestSummary struct {
	TestID         string          `json:"testId"`
	TestName       string          `json:"testName"`
	CompletedCount int             `json:"completedCount"`
	AverageScore   float64         `json:"averageScore"`
	HighestScore   int             `json:"highestScore"`
	LowestScore    int             `json:"lowestScore"`
	MaxScore       int             `json:"maxScore"`
	StudentResults []StudentResult `json:"studentResults"`
}

// SummarizeTest scores every student on the course roster for the given test.
// Students without feedback, and absent students, score 0 and are not completed.
func SummarizeTest(course *types.Course, test *types.CourseTest) TestSummary {
	summary := TestSummary{
		TestID:         test.ID,
		TestName:       test.Name,
		MaxScore:       MaxScore,
		StudentResults: make([]StudentResult, 0, len(course.Students)),
	}

	var total int
	for _, student := range course.Students {
		result := StudentResult{Student: student}
		if fb := test.FindFeedback(student.ID); fb != nil {
			result.Absent = fb.Absent
			if !fb.Absent {
				result.Score = CalculateStudentScore(test.Tasks, fb.TaskFeedbacks)
				result.Completed = fb.IsCompleted()
			}
		}
		summary.StudentResults = append(summary.StudentResults, result)

		if !result.Completed {
			continue
		}
		if summary.CompletedCount == 0 || result.Score > summary.HighestScore {
			summary.HighestScore = result.Score
		}
		if summary.CompletedCount == 0 || result.Score < summary.LowestScore {
			summary.LowestScore = result.Score
		}
		summary.CompletedCount++
		total += result.Score
	}

	if summary.CompletedCount > 0 {
		summary.AverageScore = float64(total) / float64(summary.CompletedCount)
	}
	return summary
}
