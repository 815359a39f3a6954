package types

import "strings"

// Course is the unit of storage, backup, import and sync.
type Course struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Students        []CourseStudent `json:"students"`
	Tests           []CourseTest    `json:"tests"`
	OralTests       []OralTest      `json:"oralTests,omitempty"`
	AvailableLabels []string        `json:"availableLabels"`
	CreatedDate     string          `json:"createdDate"`
	LastModified    string          `json:"lastModified"`
}

// CourseStudent is a roster entry.
type CourseStudent struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	StudentNumber string `json:"studentNumber,omitempty"`
}

// CourseSummary is the lightweight listing form of a Course.
type CourseSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	StudentCount int    `json:"studentCount"`
	TestCount    int    `json:"testCount"`
	CreatedDate  string `json:"createdDate"`
	LastModified string `json:"lastModified"`
}

// Summary returns the listing form of the course.
func (c *Course) Summary() CourseSummary {
	return CourseSummary{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		StudentCount: len(c.Students),
		TestCount:    len(c.Tests),
		CreatedDate:  c.CreatedDate,
		LastModified: c.LastModified,
	}
}

// FindTest returns the test with the given id, or nil.
func (c *Course) FindTest(testID string) *CourseTest {
	for i := range c.Tests {
		if c.Tests[i].ID == testID {
			return &c.Tests[i]
		}
	}
	return nil
}

// FindStudent returns the student with the given id, or nil.
func (c *Course) FindStudent(studentID string) *CourseStudent {
	for i := range c.Students {
		if c.Students[i].ID == studentID {
			return &c.Students[i]
		}
	}
	return nil
}

// FindStudentByName matches a roster entry by name, ignoring case and
// surrounding whitespace.
func (c *Course) FindStudentByName(name string) *CourseStudent {
	want := strings.TrimSpace(name)
	for i := range c.Students {
		if strings.EqualFold(strings.TrimSpace(c.Students[i].Name), want) {
			return &c.Students[i]
		}
	}
	return nil
}

// CompletedFeedbackCount counts feedback records carrying a completion date
// across all written tests of the course.
func (c *Course) CompletedFeedbackCount() int {
	n := 0
	for _, t := range c.Tests {
		for _, fb := range t.StudentFeedbacks {
			if fb.IsCompleted() {
				n++
			}
		}
	}
	return n
}

// TotalCompletedFeedback sums CompletedFeedbackCount over a collection.
func TotalCompletedFeedback(courses []Course) int {
	n := 0
	for i := range courses {
		n += courses[i].CompletedFeedbackCount()
	}
	return n
}
