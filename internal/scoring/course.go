package scoring

import (
	"fmt"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/markbook/markbook/internal/types"
)

// Task categories run from 1 (easiest) to 3.
const (
	MinCategory = 1
	MaxCategory = 3
)

// LabelStudentScore is one student's mean points on the units carrying a label.
type LabelStudentScore struct {
	StudentID      string  `json:"studentId"`
	StudentName    string  `json:"studentName"`
	AverageScore   float64 `json:"averageScore"`
	CompletedTasks int     `json:"completedTasks"`
}

// LabelPerformance aggregates the graded units carrying one label across every
// test of a course.
type LabelPerformance struct {
	Label         string              `json:"label"`
	AverageScore  float64             `json:"averageScore"`
	TaskCount     int                 `json:"taskCount"`
	StudentScores []LabelStudentScore `json:"studentScores"`
}

// CategoryPerformance aggregates the graded units of one difficulty category.
type CategoryPerformance struct {
	Category     int     `json:"category"`
	Description  string  `json:"description"`
	AverageScore float64 `json:"averageScore"`
	TaskCount    int     `json:"taskCount"`
}

// StudentTestResult is one test's outcome in a StudentProgress.
type StudentTestResult struct {
	TestID     string  `json:"testId"`
	TestName   string  `json:"testName"`
	TestDate   string  `json:"testDate"`
	Score      int     `json:"score"`
	MaxScore   int     `json:"maxScore"`
	Percentage float64 `json:"percentage"`
	Completed  bool    `json:"completed"`
}

// StudentProgress is a student's results across all tests of a course, in
// test date order. The averages cover completed tests only.
type StudentProgress struct {
	Student           types.CourseStudent `json:"student"`
	TestResults       []StudentTestResult `json:"testResults"`
	AverageScore      float64             `json:"averageScore"`
	AveragePercentage float64             `json:"averagePercentage"`
	CompletedTests    int                 `json:"completedTests"`
	TotalTests        int                 `json:"totalTests"`
}

// gradedUnit is one task feedback entry of a completed, non-absent feedback,
// resolved to the task or subtask it grades.
type gradedUnit struct {
	studentID string
	points    int
	labels    []string
	category  *int
}

// forEachGradedUnit visits every task feedback of completed, non-absent
// feedback whose task still exists. A feedback naming a subtask takes that
// subtask's labels and category; otherwise the task's own.
func forEachGradedUnit(course *types.Course, fn func(gradedUnit)) {
	for ti := range course.Tests {
		test := &course.Tests[ti]
		tasks := make(map[string]*types.Task, len(test.Tasks))
		for i := range test.Tasks {
			tasks[test.Tasks[i].ID] = &test.Tasks[i]
		}

		for _, fb := range test.StudentFeedbacks {
			if !fb.IsCompleted() || fb.Absent {
				continue
			}
			for _, tf := range fb.TaskFeedbacks {
				task, ok := tasks[tf.TaskID]
				if !ok {
					continue
				}
				unit := gradedUnit{studentID: fb.StudentID, points: points(tf)}
				if tf.SubtaskID != "" {
					for i := range task.Subtasks {
						if task.Subtasks[i].ID == tf.SubtaskID {
							unit.labels = task.Subtasks[i].Labels
							unit.category = task.Subtasks[i].Category
							break
						}
					}
				} else {
					unit.labels = task.Labels
					unit.category = task.Category
				}
				fn(unit)
			}
		}
	}
}

type tally struct {
	points int
	count  int
}

func (t tally) mean() float64 {
	if t.count == 0 {
		return 0
	}
	return float64(t.points) / float64(t.count)
}

// AnalyzeLabels returns one LabelPerformance per label in the course's
// AvailableLabels, sorted by label. Labels on tasks that the course does not
// list are ignored. Student scores are sorted best first.
func AnalyzeLabels(course *types.Course) []LabelPerformance {
	if len(course.AvailableLabels) == 0 {
		return []LabelPerformance{}
	}

	type labelTally struct {
		total    tally
		students map[string]*tally
		order    []string
	}
	byLabel := make(map[string]*labelTally, len(course.AvailableLabels))
	for _, l := range course.AvailableLabels {
		byLabel[l] = &labelTally{students: map[string]*tally{}}
	}

	forEachGradedUnit(course, func(u gradedUnit) {
		for _, l := range u.labels {
			lt, ok := byLabel[l]
			if !ok {
				continue
			}
			lt.total.points += u.points
			lt.total.count++
			st, ok := lt.students[u.studentID]
			if !ok {
				st = &tally{}
				lt.students[u.studentID] = st
				lt.order = append(lt.order, u.studentID)
			}
			st.points += u.points
			st.count++
		}
	})

	names := make(map[string]string, len(course.Students))
	for _, s := range course.Students {
		names[s.ID] = s.Name
	}

	out := make([]LabelPerformance, 0, len(byLabel))
	for label, lt := range byLabel {
		lp := LabelPerformance{
			Label:         label,
			AverageScore:  lt.total.mean(),
			TaskCount:     lt.total.count,
			StudentScores: make([]LabelStudentScore, 0, len(lt.order)),
		}
		for _, id := range lt.order {
			name, ok := names[id]
			if !ok {
				name = "Unknown"
			}
			st := lt.students[id]
			lp.StudentScores = append(lp.StudentScores, LabelStudentScore{
				StudentID:      id,
				StudentName:    name,
				AverageScore:   st.mean(),
				CompletedTasks: st.count,
			})
		}
		sort.SliceStable(lp.StudentScores, func(i, j int) bool {
			return lp.StudentScores[i].AverageScore > lp.StudentScores[j].AverageScore
		})
		out = append(out, lp)
	}

	col := collate.New(language.Norwegian)
	sort.Slice(out, func(i, j int) bool {
		return col.CompareString(out[i].Label, out[j].Label) < 0
	})
	return out
}

// AnalyzeCategories returns one CategoryPerformance per category 1-3 that has
// at least one graded unit, in category order.
func AnalyzeCategories(course *types.Course) []CategoryPerformance {
	var tallies [MaxCategory + 1]tally
	forEachGradedUnit(course, func(u gradedUnit) {
		if u.category == nil || *u.category < MinCategory || *u.category > MaxCategory {
			return
		}
		tallies[*u.category].points += u.points
		tallies[*u.category].count++
	})

	out := []CategoryPerformance{}
	for c := MinCategory; c <= MaxCategory; c++ {
		if tallies[c].count == 0 {
			continue
		}
		out = append(out, CategoryPerformance{
			Category:     c,
			Description:  fmt.Sprintf("Category %d", c),
			AverageScore: tallies[c].mean(),
			TaskCount:    tallies[c].count,
		})
	}
	return out
}

// ProgressFor returns the progress of the student with the given id, or nil
// if the student is not on the roster. Absent students are not completed.
func ProgressFor(course *types.Course, studentID string) *StudentProgress {
	for _, s := range course.Students {
		if s.ID == studentID {
			p := progress(course, s)
			return &p
		}
	}
	return nil
}

// CourseProgress returns the progress of every student on the roster, in
// roster order.
func CourseProgress(course *types.Course) []StudentProgress {
	out := make([]StudentProgress, 0, len(course.Students))
	for _, s := range course.Students {
		out = append(out, progress(course, s))
	}
	return out
}

func progress(course *types.Course, student types.CourseStudent) StudentProgress {
	p := StudentProgress{
		Student:     student,
		TestResults: make([]StudentTestResult, 0, len(course.Tests)),
		TotalTests:  len(course.Tests),
	}

	var totalScore, totalPct float64
	for i := range course.Tests {
		test := &course.Tests[i]
		r := StudentTestResult{
			TestID:   test.ID,
			TestName: test.Name,
			TestDate: test.Date,
			MaxScore: MaxScore,
		}
		if fb := test.FindFeedback(student.ID); fb != nil && !fb.Absent {
			r.Score = CalculateStudentScore(test.Tasks, fb.TaskFeedbacks)
			r.Percentage = float64(r.Score) / float64(MaxScore) * 100
			r.Completed = fb.IsCompleted()
		}
		if r.Completed {
			p.CompletedTests++
			totalScore += float64(r.Score)
			totalPct += r.Percentage
		}
		p.TestResults = append(p.TestResults, r)
	}

	// ISO dates order lexically.
	sort.SliceStable(p.TestResults, func(i, j int) bool {
		return p.TestResults[i].TestDate < p.TestResults[j].TestDate
	})
	if p.CompletedTests > 0 {
		p.AverageScore = totalScore / float64(p.CompletedTests)
		p.AveragePercentage = totalPct / float64(p.CompletedTests)
	}
	return p
}
