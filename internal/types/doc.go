// Package types defines the course data model shared by every markbook component.
//
// # Overview
//
// A Course owns an ordered roster of students, an ordered list of written tests
// and (optionally) oral assessments. Each written test carries its task
// configuration and one TestFeedbackData record per graded student.
//
// The JSON form of these types is the interchange format used by the local
// store, backups, export/import files and the folder mirror, so field names
// follow the camelCase names found in existing data files and unknown optional
// fields are preserved through omitempty.
//
// # Timestamps
//
// Dates are kept as the ISO-8601 strings found in the data. A value written by
// another device must round-trip byte for byte, so the model never normalizes
// them. Use ParseTime when ordering matters and Now when stamping new records.
//
//	course.LastModified = types.Now()
//	if types.Newer(folder.LastModified, local.LastModified) {
//	    // folder copy wins
//	}
package types
