package merge

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/markbook/markbook/internal/types"
)

// MergeCourses reconciles the local collection with the folder copy.
//
// Courses are matched by id. A course on one side only is kept as is. For a
// shared course the metadata comes from the side with the newer lastModified,
// while the students, oral tests and labels are unioned and the tests are
// merged with MergeTests. Result order is local order, then folder-only courses.
func MergeCourses(local, folder []types.Course) []types.Course {
	merged := make([]types.Course, 0, len(local)+len(folder))
	index := make(map[string]int, len(local)+len(folder))

	for _, c := range local {
		if i, ok := index[c.ID]; ok {
			merged[i] = c
			continue
		}
		index[c.ID] = len(merged)
		merged = append(merged, c)
	}

	for _, fc := range folder {
		i, ok := index[fc.ID]
		if !ok {
			index[fc.ID] = len(merged)
			merged = append(merged, fc)
			continue
		}
		merged[i] = mergeCourse(merged[i], fc)
	}

	return merged
}

func mergeCourse(local, folder types.Course) types.Course {
	result := local
	if types.Newer(folder.LastModified, local.LastModified) {
		result = folder
	}

	result.Students = UnionStudents(local.Students, folder.Students)
	result.Tests = MergeTests(local.Tests, folder.Tests)
	result.OralTests = unionOralTests(local.OralTests, folder.OralTests)
	result.AvailableLabels = UnionLabels(local.AvailableLabels, folder.AvailableLabels)
	return result
}

// UnionStudents appends the incoming students whose id is not already present.
// Existing entries are left untouched.
func UnionStudents(existing, incoming []types.CourseStudent) []types.CourseStudent {
	out := make([]types.CourseStudent, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, group := range [][]types.CourseStudent{existing, incoming} {
		for _, s := range group {
			if seen[s.ID] {
				continue
			}
			seen[s.ID] = true
			out = append(out, s)
		}
	}
	return out
}

// UnionLabels returns the set union of two label lists in first-seen order.
func UnionLabels(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, group := range [][]string{existing, incoming} {
		for _, l := range group {
			if seen[l] {
				continue
			}
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

func unionOralTests(local, folder []types.OralTest) []types.OralTest {
	if len(local) == 0 && len(folder) == 0 {
		return nil
	}
	out := make([]types.OralTest, 0, len(local)+len(folder))
	seen := make(map[string]bool, len(local))
	for _, t := range local {
		seen[t.ID] = true
		out = append(out, t)
	}
	for _, t := range folder {
		if !seen[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// NameKey is the duplicate-detection key of a course name: trimmed and
// Unicode case-folded. Leading and trailing whitespace never distinguishes two
// courses, so " Math " and "math" are the same course for import, sync and
// migration.
func NameKey(name string) string {
	return cases.Fold().String(strings.TrimSpace(name))
}

// DataScore ranks how much work a course holds. Completed feedback dominates,
// then tests, then students.
func DataScore(c *types.Course) int {
	return len(c.Students) + 10*len(c.Tests) + 100*c.CompletedFeedbackCount()
}

// DeduplicateCourses collapses courses sharing a name key into one. The copy
// with the higher DataScore wins; equal scores go to the newer lastModified,
// then to the earlier copy. The survivor takes the position of the first copy.
func DeduplicateCourses(courses []types.Course) []types.Course {
	out := make([]types.Course, 0, len(courses))
	index := make(map[string]int, len(courses))

	for _, c := range courses {
		key := NameKey(c.Name)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, c)
			continue
		}

		kept := &out[i]
		keptScore, score := DataScore(kept), DataScore(&c)
		if score > keptScore || (score == keptScore && types.Newer(c.LastModified, kept.LastModified)) {
			out[i] = c
		}
	}

	return out
}
