// Package report exports a course as an Excel workbook: a Students overview
// sheet with one score column per test, one sheet per test with task
// analytics and the per-student results, and a closing Course Analytics sheet
// with label, category and student progress figures.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/markbook/markbook/internal/scoring"
	"github.com/markbook/markbook/internal/types"
)

// StudentsSheet is the name of the overview sheet.
const StudentsSheet = "Students"

// AnalyticsSheet is the name of the course analytics sheet, added last.
const AnalyticsSheet = "Course Analytics"

const maxSheetName = 31

// Score colour bands.
const (
	fillHigh = "C6EFCE"
	fillLow  = "FFC7CE"
)

type styles struct {
	header       int
	title        int
	analytics    int
	scores       int
	subHeader    int
	scoresHeader int
	high         int
	low          int
}

// Build creates the workbook for course. The caller must Close the file.
func Build(course *types.Course) (*excelize.File, error) {
	f := excelize.NewFile()

	st, err := newStyles(f)
	if err != nil {
		f.Close()
		return nil, err
	}

	if err := f.SetSheetName("Sheet1", StudentsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to name overview sheet: %w", err)
	}
	if err := writeStudentsSheet(f, st, course); err != nil {
		f.Close()
		return nil, err
	}

	used := map[string]bool{strings.ToLower(StudentsSheet): true}
	for i := range course.Tests {
		name := uniqueSheetName(SanitizeSheetName(course.Tests[i].Name), used)
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
		}
		if err := writeTestSheet(f, st, name, course, &course.Tests[i]); err != nil {
			f.Close()
			return nil, err
		}
	}

	name := uniqueSheetName(AnalyticsSheet, used)
	if _, err := f.NewSheet(name); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to add sheet %q: %w", name, err)
	}
	if err := writeAnalyticsSheet(f, st, name, course); err != nil {
		f.Close()
		return nil, err
	}

	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook for course and writes it to w.
func Write(w io.Writer, course *types.Course) error {
	f, err := Build(course)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Save builds the workbook for course and saves it to path.
func Save(path string, course *types.Course) error {
	f, err := Build(course)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

// SanitizeSheetName strips characters Excel forbids in sheet names and
// truncates to 31 characters. An empty result becomes "Test".
func SanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(strings.TrimSpace(name), "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		name = "Test"
	}
	return name
}

// uniqueSheetName appends " (n)" until name is unused. Excel compares sheet
// names case-insensitively.
func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		base := []rune(name)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func newStyles(f *excelize.File) (*styles, error) {
	solid := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}
	st := &styles{}
	defs := []struct {
		dst   *int
		style *excelize.Style
	}{
		{&st.header, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 12},
			Fill:      solid("4472C4"),
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
		}},
		{&st.title, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 16},
			Fill:      solid("4472C4"),
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&st.analytics, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 14},
			Fill:      solid("70AD47"),
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&st.scores, &excelize.Style{
			Font:      &excelize.Font{Bold: true, Size: 14},
			Fill:      solid("FFC000"),
			Alignment: &excelize.Alignment{Horizontal: "center"},
		}},
		{&st.subHeader, &excelize.Style{Font: &excelize.Font{Bold: true}, Fill: solid("D9E1F2")}},
		{&st.scoresHeader, &excelize.Style{Font: &excelize.Font{Bold: true}, Fill: solid("FCE4D6")}},
		{&st.high, &excelize.Style{Fill: solid(fillHigh)}},
		{&st.low, &excelize.Style{Fill: solid(fillLow)}},
	}
	for _, d := range defs {
		id, err := f.NewStyle(d.style)
		if err != nil {
			return nil, fmt.Errorf("failed to create style: %w", err)
		}
		*d.dst = id
	}
	return st, nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// sheetWriter writes to one sheet and keeps the first error, so a run of
// cell writes can be checked once at the end.
type sheetWriter struct {
	f     *excelize.File
	sheet string
	err   error
}

func (w *sheetWriter) keep(err error, what string) {
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("failed to %s on sheet %q: %w", what, w.sheet, err)
	}
}

func (w *sheetWriter) value(ref string, v interface{}) {
	w.keep(w.f.SetCellValue(w.sheet, ref, v), "set "+ref)
}

func (w *sheetWriter) row(ref string, values []interface{}) {
	w.keep(w.f.SetSheetRow(w.sheet, ref, &values), "write row "+ref)
}

func (w *sheetWriter) style(from, to string, style int) {
	w.keep(w.f.SetCellStyle(w.sheet, from, to, style), "style "+from)
}

func (w *sheetWriter) merge(from, to string) {
	w.keep(w.f.MergeCell(w.sheet, from, to), "merge "+from)
}

func (w *sheetWriter) width(from, to string, width float64) {
	w.keep(w.f.SetColWidth(w.sheet, from, to, width), "size column "+from)
}

// banner writes a merged, styled title across columns 1..cols of row.
func (w *sheetWriter) banner(row, cols int, title string, style int) {
	w.merge(cell(1, row), cell(cols, row))
	w.value(cell(1, row), title)
	w.style(cell(1, row), cell(cols, row), style)
}

func writeStudentsSheet(f *excelize.File, st *styles, course *types.Course) error {
	w := &sheetWriter{f: f, sheet: StudentsSheet}

	header := []interface{}{"Student Name", "Student Number"}
	for _, t := range course.Tests {
		header = append(header, t.Name)
	}
	header = append(header, "Average Score", "Tests Completed")
	lastCol := len(header)

	w.row("A1", header)
	w.style("A1", cell(lastCol, 1), st.header)
	w.keep(f.SetRowHeight(w.sheet, 1, 25), "size header row")

	for i, student := range course.Students {
		rowNum := i + 2
		row := []interface{}{student.Name, orNA(student.StudentNumber)}

		total, completed := 0, 0
		for j := range course.Tests {
			test := &course.Tests[j]
			fb := test.FindFeedback(student.ID)
			if fb == nil || !fb.IsCompleted() {
				row = append(row, "-")
				continue
			}
			score := scoring.CalculateStudentScore(test.Tasks, fb.TaskFeedbacks)
			row = append(row, score)
			total += score
			completed++

			switch ref := cell(j+3, rowNum); {
			case score >= 50:
				w.style(ref, ref, st.high)
			case score < 30:
				w.style(ref, ref, st.low)
			}
		}

		if completed > 0 {
			row = append(row, fmt.Sprintf("%.1f", float64(total)/float64(completed)))
		} else {
			row = append(row, "-")
		}
		row = append(row, fmt.Sprintf("%d/%d", completed, len(course.Tests)))
		w.row(cell(1, rowNum), row)
	}

	w.width("A", "A", 25)
	last, err := excelize.ColumnNumberToName(lastCol)
	w.keep(err, "name last column")
	if err == nil {
		w.width("B", last, 15)
	}

	w.keep(f.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	}), "freeze panes")
	return w.err
}

func writeTestSheet(f *excelize.File, st *styles, sheet string, course *types.Course, test *types.CourseTest) error {
	w := &sheetWriter{f: f, sheet: sheet}
	summary := scoring.SummarizeTest(course, test)

	w.banner(1, 4, test.Name, st.title)
	w.value("A2", "Test Date:")
	w.value("B2", test.Date)
	w.value("A3", "Description:")
	w.value("B3", orNA(test.Description))
	w.value("A4", "Students Completed:")
	w.value("B4", fmt.Sprintf("%d/%d", completedFeedback(test), len(course.Students)))

	w.banner(6, 8, "Task Performance Analytics", st.analytics)
	w.row("A7", []interface{}{"Task", "Part", "Category", "Labels", "Avg Score", "Attempts", "Attempt %", "Distribution (0-6)"})
	w.style("A7", "H7", st.subHeader)

	rowNum := 8
	for _, a := range scoring.AnalyzeTest(test) {
		part, category := "N/A", "N/A"
		if a.Part != nil {
			part = fmt.Sprintf("Part %d", *a.Part)
		}
		if a.Category != nil {
			category = fmt.Sprintf("Cat %d", *a.Category)
		}
		labels := strings.Join(a.Labels, ", ")
		if labels == "" {
			labels = "N/A"
		}
		dist := make([]string, len(a.ScoreDistribution))
		for p, n := range a.ScoreDistribution {
			dist[p] = fmt.Sprintf("%d:%d", p, n)
		}

		w.row(cell(1, rowNum), []interface{}{
			a.FullLabel,
			part,
			category,
			labels,
			fmt.Sprintf("%.2f", a.AverageScore),
			a.AttemptCount,
			fmt.Sprintf("%.1f%%", a.AttemptPercentage),
			strings.Join(dist, " | "),
		})
		rowNum++
	}

	rowNum += 2
	w.banner(rowNum, 6, "Student Scores", st.scores)
	rowNum++

	w.row(cell(1, rowNum), []interface{}{"Student Name", "Student Number", "Score", "Max Score", "Percentage", "Status"})
	w.style(cell(1, rowNum), cell(6, rowNum), st.scoresHeader)
	rowNum++

	for _, r := range summary.StudentResults {
		var row []interface{}
		switch {
		case r.Completed:
			pct := float64(r.Score) / float64(scoring.MaxScore) * 100
			row = []interface{}{r.Student.Name, orNA(r.Student.StudentNumber), r.Score, scoring.MaxScore, fmt.Sprintf("%.1f%%", pct), "Completed"}
			switch ref := cell(3, rowNum); {
			case pct >= 80:
				w.style(ref, ref, st.high)
			case pct < 50:
				w.style(ref, ref, st.low)
			}
		case r.Absent:
			row = []interface{}{r.Student.Name, orNA(r.Student.StudentNumber), "-", scoring.MaxScore, "-", "Absent"}
		default:
			row = []interface{}{r.Student.Name, orNA(r.Student.StudentNumber), "-", scoring.MaxScore, "-", "Not Completed"}
		}
		w.row(cell(1, rowNum), row)
		rowNum++
	}

	for _, c := range []struct {
		col   string
		width float64
	}{{"A", 20}, {"B", 12}, {"C", 12}, {"D", 25}, {"E", 12}, {"F", 12}, {"G", 12}, {"H", 40}} {
		w.width(c.col, c.col, c.width)
	}
	return w.err
}

// writeAnalyticsSheet writes course-wide label and category performance and
// each student's progress across tests.
func writeAnalyticsSheet(f *excelize.File, st *styles, sheet string, course *types.Course) error {
	w := &sheetWriter{f: f, sheet: sheet}

	w.banner(1, 4, course.Name+" - Course Analytics", st.title)

	rowNum := 3
	w.banner(rowNum, 4, "Label Performance", st.analytics)
	rowNum++
	w.row(cell(1, rowNum), []interface{}{"Label", "Avg Points", "Graded Tasks", "Best Student"})
	w.style(cell(1, rowNum), cell(4, rowNum), st.subHeader)
	rowNum++
	for _, lp := range scoring.AnalyzeLabels(course) {
		best := "-"
		if len(lp.StudentScores) > 0 {
			top := lp.StudentScores[0]
			best = fmt.Sprintf("%s (%.2f)", top.StudentName, top.AverageScore)
		}
		w.row(cell(1, rowNum), []interface{}{lp.Label, fmt.Sprintf("%.2f", lp.AverageScore), lp.TaskCount, best})
		rowNum++
	}

	rowNum++
	w.banner(rowNum, 4, "Category Performance", st.analytics)
	rowNum++
	w.row(cell(1, rowNum), []interface{}{"Category", "Avg Points", "Graded Tasks"})
	w.style(cell(1, rowNum), cell(3, rowNum), st.subHeader)
	rowNum++
	for _, cp := range scoring.AnalyzeCategories(course) {
		w.row(cell(1, rowNum), []interface{}{cp.Description, fmt.Sprintf("%.2f", cp.AverageScore), cp.TaskCount})
		rowNum++
	}

	rowNum++
	w.banner(rowNum, 4, "Student Progress", st.scores)
	rowNum++
	w.row(cell(1, rowNum), []interface{}{"Student Name", "Avg Score", "Avg %", "Tests Completed"})
	w.style(cell(1, rowNum), cell(4, rowNum), st.scoresHeader)
	rowNum++
	for _, p := range scoring.CourseProgress(course) {
		avg, pct := "-", "-"
		if p.CompletedTests > 0 {
			avg = fmt.Sprintf("%.1f", p.AverageScore)
			pct = fmt.Sprintf("%.1f%%", p.AveragePercentage)
		}
		w.row(cell(1, rowNum), []interface{}{p.Student.Name, avg, pct, fmt.Sprintf("%d/%d", p.CompletedTests, p.TotalTests)})
		rowNum++
	}

	w.width("A", "A", 25)
	w.width("B", "C", 12)
	w.width("D", "D", 25)
	return w.err
}

func completedFeedback(test *types.CourseTest) int {
	n := 0
	for i := range test.StudentFeedbacks {
		if test.StudentFeedbacks[i].IsCompleted() {
			n++
		}
	}
	return n
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
