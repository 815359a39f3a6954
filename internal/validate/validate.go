// Package validate gates externally supplied course data before it is decoded
// into the typed model.
//
// Input arrives as an untyped JSON value (gjson.Result). Validation only checks
// structure: a candidate must be an object with a string name and students and
// tests arrays. Nothing is normalized or repaired here.
package validate

import (
	"fmt"

	"github.com/tidwall/gjson"
)

// Result is the outcome of validating one or more course candidates.
type Result struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// CourseJSON validates raw JSON bytes. Unparsable input is invalid.
func CourseJSON(data []byte) Result {
	if !gjson.ValidBytes(data) {
		return Result{Valid: false, Errors: []string{"Invalid JSON format"}}
	}
	return CourseData(gjson.ParseBytes(data))
}

// CourseData validates a single course object or an array of them.
// An array is valid only if every element is; errors from all elements are
// concatenated in order. An empty array is valid.
func CourseData(v gjson.Result) Result {
	if !v.IsObject() && !v.IsArray() {
		return Result{Valid: false, Errors: []string{"Data is not a valid object"}}
	}

	var errs []string
	if v.IsArray() {
		i := 0
		v.ForEach(func(_, c gjson.Result) bool {
			errs = append(errs, Candidate(i, c)...)
			i++
			return true
		})
	} else {
		errs = Candidate(0, v)
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Candidate validates the course at position i (0-based) and returns its
// error messages. Messages number courses from 1.
func Candidate(i int, c gjson.Result) []string {
	if !c.IsObject() {
		return []string{fmt.Sprintf("Course %d: not a valid object", i+1)}
	}

	var errs []string
	name := c.Get("name")
	if name.Type != gjson.String || name.Str == "" {
		errs = append(errs, fmt.Sprintf("Course %d: missing or invalid name", i+1))
	}

	label := "unknown"
	if name.Type == gjson.String && name.Str != "" {
		label = name.Str
	}
	if !c.Get("students").IsArray() {
		errs = append(errs, fmt.Sprintf("Course %d (%q): missing students array", i+1, label))
	}
	if !c.Get("tests").IsArray() {
		errs = append(errs, fmt.Sprintf("Course %d (%q): missing tests array", i+1, label))
	}
	return errs
}
