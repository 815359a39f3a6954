package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/markbook/markbook/internal/types"
)

// Courses reads and writes the course collection, which is stored as a single
// JSON array under CoursesKey.
type Courses struct {
	store Store
}

// NewCourses returns a course repository over store.
func NewCourses(store Store) *Courses {
	return &Courses{store: store}
}

// Store returns the underlying key-value store.
func (c *Courses) Store() Store {
	return c.store
}

// LoadAll returns the full collection. A store without the key holds an empty
// collection.
func (c *Courses) LoadAll(ctx context.Context) ([]types.Course, error) {
	data, err := c.store.Get(ctx, CoursesKey)
	if errors.Is(err, ErrNotFound) {
		return []types.Course{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}
	return DecodeCourses(data)
}

// LoadRaw returns the serialized collection exactly as stored, or "[]".
func (c *Courses) LoadRaw(ctx context.Context) ([]byte, error) {
	data, err := c.store.Get(ctx, CoursesKey)
	if errors.Is(err, ErrNotFound) {
		return []byte("[]"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load courses: %w", err)
	}
	return data, nil
}

// SaveAll replaces the full collection.
func (c *Courses) SaveAll(ctx context.Context, courses []types.Course) error {
	data, err := EncodeCourses(courses)
	if err != nil {
		return err
	}
	if err := c.store.Set(ctx, CoursesKey, data); err != nil {
		return fmt.Errorf("failed to save courses: %w", err)
	}
	return nil
}

// Get returns the course with the given id.
//
// Returns ErrCourseNotFound if no course has that id.
func (c *Courses) Get(ctx context.Context, courseID string) (*types.Course, error) {
	courses, err := c.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		if courses[i].ID == courseID {
			return &courses[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
}

// Save inserts or replaces a course by id and stamps its lastModified.
func (c *Courses) Save(ctx context.Context, course *types.Course) error {
	courses, err := c.LoadAll(ctx)
	if err != nil {
		return err
	}

	course.LastModified = types.Now()

	replaced := false
	for i := range courses {
		if courses[i].ID == course.ID {
			courses[i] = *course
			replaced = true
			break
		}
	}
	if !replaced {
		courses = append(courses, *course)
	}

	return c.SaveAll(ctx, courses)
}

// Delete removes a course.
//
// Returns ErrCourseNotFound if no course has that id.
func (c *Courses) Delete(ctx context.Context, courseID string) (*types.Course, error) {
	courses, err := c.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	for i := range courses {
		if courses[i].ID != courseID {
			continue
		}
		removed := courses[i]
		courses = append(courses[:i], courses[i+1:]...)
		if err := c.SaveAll(ctx, courses); err != nil {
			return nil, err
		}
		return &removed, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCourseNotFound, courseID)
}

// DeleteTest removes a test from a course. Removing a test the course does
// not have is a no-op.
func (c *Courses) DeleteTest(ctx context.Context, courseID, testID string) error {
	course, err := c.Get(ctx, courseID)
	if err != nil {
		return err
	}

	tests := course.Tests[:0]
	for _, t := range course.Tests {
		if t.ID != testID {
			tests = append(tests, t)
		}
	}
	course.Tests = tests

	return c.Save(ctx, course)
}

// DeleteStudent removes a student from the roster together with that
// student's feedback on every test.
func (c *Courses) DeleteStudent(ctx context.Context, courseID, studentID string) error {
	course, err := c.Get(ctx, courseID)
	if err != nil {
		return err
	}

	students := course.Students[:0]
	for _, s := range course.Students {
		if s.ID != studentID {
			students = append(students, s)
		}
	}
	course.Students = students

	for i := range course.Tests {
		feedbacks := course.Tests[i].StudentFeedbacks[:0]
		for _, fb := range course.Tests[i].StudentFeedbacks {
			if fb.StudentID != studentID {
				feedbacks = append(feedbacks, fb)
			}
		}
		course.Tests[i].StudentFeedbacks = feedbacks
	}

	return c.Save(ctx, course)
}

// Summaries returns the listing form of every course.
func (c *Courses) Summaries(ctx context.Context) ([]types.CourseSummary, error) {
	courses, err := c.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.CourseSummary, 0, len(courses))
	for i := range courses {
		out = append(out, courses[i].Summary())
	}
	return out, nil
}

// EncodeCourses serializes a collection. A nil collection encodes as "[]".
func EncodeCourses(courses []types.Course) ([]byte, error) {
	if courses == nil {
		courses = []types.Course{}
	}
	data, err := json.Marshal(courses)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal courses: %w", err)
	}
	return data, nil
}

// DecodeCourses parses a serialized collection.
func DecodeCourses(data []byte) ([]types.Course, error) {
	var courses []types.Course
	if err := json.Unmarshal(data, &courses); err != nil {
		return nil, fmt.Errorf("failed to parse courses: %w", err)
	}
	if courses == nil {
		courses = []types.Course{}
	}
	return courses, nil
}
