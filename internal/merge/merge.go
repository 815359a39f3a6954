// Package merge reconciles two divergently edited copies of course data.
//
// The functions here are pure: they never touch a store or the file system,
// never modify their inputs, and are total over well-formed input. The same
// rules serve the folder sync (local vs. folder copy) and the import merge
// (existing vs. incoming course).
//
// # Feedback precedence
//
// For a student present on both sides, the first matching rule decides:
//
//  1. One side is completed and the other is not, and the completed side has
//     at least as much data: keep the completed side.
//  2. One side has strictly more data: keep it, even if the other side is
//     completed.
//  3. Otherwise keep the local side.
//
// "Data" is the number of task feedback entries. A record without task entries
// but with a non-blank individual comment counts as one.
package merge

import (
	"strings"

	"github.com/markbook/markbook/internal/types"
)

// DataSize measures how much grading work a feedback record holds.
func DataSize(fb *types.TestFeedbackData) int {
	if n := len(fb.TaskFeedbacks); n > 0 {
		return n
	}
	if strings.TrimSpace(fb.IndividualComment) != "" {
		return 1
	}
	return 0
}

// PreferFolder reports whether the folder record should replace the local one.
func PreferFolder(local, folder *types.TestFeedbackData) bool {
	localSize, folderSize := DataSize(local), DataSize(folder)
	localDone, folderDone := local.IsCompleted(), folder.IsCompleted()

	// Rule 1
	if folderDone && !localDone && folderSize >= localSize {
		return true
	}
	if localDone && !folderDone && localSize >= folderSize {
		return false
	}

	// Rule 2
	if folderSize != localSize {
		return folderSize > localSize
	}

	// Rule 3
	return false
}

// MergeFeedbacks merges two feedback lists keyed by student id. Every student
// appears exactly once: local students in local order, then folder-only
// students in folder order.
func MergeFeedbacks(local, folder []types.TestFeedbackData) []types.TestFeedbackData {
	merged := make([]types.TestFeedbackData, 0, len(local)+len(folder))
	index := make(map[string]int, len(local)+len(folder))

	for _, fb := range local {
		if i, ok := index[fb.StudentID]; ok {
			merged[i] = fb
			continue
		}
		index[fb.StudentID] = len(merged)
		merged = append(merged, fb)
	}

	for _, fb := range folder {
		i, ok := index[fb.StudentID]
		if !ok {
			index[fb.StudentID] = len(merged)
			merged = append(merged, fb)
			continue
		}
		if PreferFolder(&merged[i], &fb) {
			merged[i] = fb
		}
	}

	return merged
}

// MergeTests merges two test lists keyed by test id. Tests on one side only
// pass through. For a shared test the configuration comes from the side with
// the strictly newer lastModified (local on ties) and the feedback lists are
// merged with MergeFeedbacks.
func MergeTests(local, folder []types.CourseTest) []types.CourseTest {
	merged := make([]types.CourseTest, 0, len(local)+len(folder))
	index := make(map[string]int, len(local)+len(folder))

	for _, t := range local {
		if i, ok := index[t.ID]; ok {
			merged[i] = t
			continue
		}
		index[t.ID] = len(merged)
		merged = append(merged, t)
	}

	for _, ft := range folder {
		i, ok := index[ft.ID]
		if !ok {
			index[ft.ID] = len(merged)
			merged = append(merged, ft)
			continue
		}

		lt := merged[i]
		result := lt
		if types.Newer(ft.LastModified, lt.LastModified) {
			result = ft
		}
		result.StudentFeedbacks = MergeFeedbacks(lt.StudentFeedbacks, ft.StudentFeedbacks)
		merged[i] = result
	}

	return merged
}
