package main

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/markbook/markbook/internal/report"
	"github.com/markbook/markbook/internal/scoring"
	"github.com/markbook/markbook/internal/types"
	"github.com/markbook/markbook/internal/ui"
)

var scoresCmd = &cobra.Command{
	Use:     "scores <course> [test]",
	GroupID: "data",
	Short:   "Show student scores for a test or a whole course",
	Long: `Show each student's weighted score (0-60) on a test, plus the average,
highest and lowest score over completed feedback.

With --tasks, per-task averages and point distributions are shown as well.

Without a test, course analytics are shown instead: average points per label
and per task category across all tests, and each student's progress.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		showTasks, _ := cmd.Flags().GetBool("tasks")

		a := openApp()
		defer a.close()

		course, err := findCourse(cmd.Context(), a.courses, args[0])
		if err != nil {
			exitf("%v", err)
		}
		if len(args) == 1 {
			printCourseAnalytics(course)
			return
		}
		test, err := findTest(course, args[1])
		if err != nil {
			exitf("%v", err)
		}

		summary := scoring.SummarizeTest(course, test)
		var tasks []scoring.TaskAnalytics
		if showTasks {
			tasks = scoring.AnalyzeTest(test)
		}

		if jsonOutput {
			out := map[string]interface{}{"summary": summary}
			if showTasks {
				out["tasks"] = tasks
			}
			printJSON(out)
			return
		}

		fmt.Printf("\n%s %s / %s\n\n", ui.RenderAccent("📊"), course.Name, test.Name)

		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"STUDENT", "NUMBER", "SCORE", "STATUS"})
		for _, r := range summary.StudentResults {
			status := "Not completed"
			score := "-"
			switch {
			case r.Absent:
				status = "Absent"
			case r.Completed:
				status = "Completed"
				score = fmt.Sprintf("%d/%d", r.Score, summary.MaxScore)
			}
			tw.Append([]string{r.Student.Name, r.Student.StudentNumber, score, status})
		}
		tw.Render()

		fmt.Printf("\nCompleted: %d/%d\n", summary.CompletedCount, len(summary.StudentResults))
		if summary.CompletedCount > 0 {
			fmt.Printf("Average: %.1f  Highest: %s  Lowest: %s\n",
				summary.AverageScore,
				ui.RenderScore(summary.HighestScore, strconv.Itoa(summary.HighestScore)),
				ui.RenderScore(summary.LowestScore, strconv.Itoa(summary.LowestScore)))
		}

		if showTasks && len(tasks) > 0 {
			fmt.Println()
			tw := tablewriter.NewWriter(os.Stdout)
			tw.SetHeader([]string{"TASK", "CATEGORY", "AVERAGE", "ATTEMPTED", "DISTRIBUTION"})
			for _, t := range tasks {
				tw.Append([]string{
					t.FullLabel,
					categoryLabel(t.Category),
					fmt.Sprintf("%.2f", t.AverageScore),
					fmt.Sprintf("%d/%d (%.0f%%)", t.AttemptCount, t.TotalStudents, t.AttemptPercentage),
					distribution(t.ScoreDistribution[:]),
				})
			}
			tw.Render()
		}
	},
}

var reportCmd = &cobra.Command{
	Use:     "report <course> <file.xlsx>",
	GroupID: "data",
	Short:   "Write an Excel grade workbook for a course",
	Long: `Write an Excel workbook with a Students overview sheet and one sheet per
test holding task analytics and per-student scores, followed by a Course
Analytics sheet with label, category and student progress figures.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		course, err := findCourse(cmd.Context(), a.courses, args[0])
		if err != nil {
			exitf("%v", err)
		}
		if err := report.Save(args[1], course); err != nil {
			exitf("%v", err)
		}
		fmt.Printf("%s Wrote %s (%d tests, %d students)\n", ui.RenderPass("✓"), args[1], len(course.Tests), len(course.Students))
	},
}

func printCourseAnalytics(course *types.Course) {
	labels := scoring.AnalyzeLabels(course)
	categories := scoring.AnalyzeCategories(course)
	progress := scoring.CourseProgress(course)

	if jsonOutput {
		printJSON(map[string]interface{}{
			"labels":     labels,
			"categories": categories,
			"progress":   progress,
		})
		return
	}

	fmt.Printf("\n%s %s\n", ui.RenderAccent("📊"), course.Name)

	if len(labels) > 0 {
		fmt.Printf("\nLabels\n")
		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"LABEL", "AVERAGE", "GRADED", "BEST"})
		for _, lp := range labels {
			best := "-"
			if len(lp.StudentScores) > 0 {
				best = lp.StudentScores[0].StudentName
			}
			tw.Append([]string{lp.Label, fmt.Sprintf("%.2f", lp.AverageScore), strconv.Itoa(lp.TaskCount), best})
		}
		tw.Render()
	}

	if len(categories) > 0 {
		fmt.Printf("\nCategories\n")
		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"CATEGORY", "AVERAGE", "GRADED"})
		for _, cp := range categories {
			tw.Append([]string{cp.Description, fmt.Sprintf("%.2f", cp.AverageScore), strconv.Itoa(cp.TaskCount)})
		}
		tw.Render()
	}

	fmt.Printf("\nStudents\n")
	tw := tablewriter.NewWriter(os.Stdout)
	tw.SetHeader([]string{"STUDENT", "AVERAGE", "COMPLETED"})
	for _, p := range progress {
		avg := "-"
		if p.CompletedTests > 0 {
			score := int(math.Round(p.AverageScore))
			avg = ui.RenderScore(score, fmt.Sprintf("%.1f", p.AverageScore))
		}
		tw.Append([]string{p.Student.Name, avg, fmt.Sprintf("%d/%d", p.CompletedTests, p.TotalTests)})
	}
	tw.Render()
}

func categoryLabel(c *int) string {
	if c == nil {
		return "-"
	}
	return strconv.Itoa(*c)
}

func distribution(d []int) string {
	parts := make([]string, 0, len(d))
	for p, n := range d {
		parts = append(parts, fmt.Sprintf("%d:%d", p, n))
	}
	return strings.Join(parts, " ")
}

func init() {
	scoresCmd.Flags().Bool("tasks", false, "show per-task analytics")
	rootCmd.AddCommand(scoresCmd, reportCmd)
}
