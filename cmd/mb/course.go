package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/markbook/markbook/internal/types"
	"github.com/markbook/markbook/internal/ui"
)

var courseCmd = &cobra.Command{
	Use:     "course",
	GroupID: "data",
	Short:   "List and delete courses",
}

var courseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List courses",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		summaries, err := a.courses.Summaries(cmd.Context())
		if err != nil {
			exitf("%v", err)
		}
		if jsonOutput {
			printJSON(summaries)
			return
		}
		if len(summaries) == 0 {
			fmt.Println("No courses")
			return
		}

		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"ID", "NAME", "STUDENTS", "TESTS", "MODIFIED"})
		for _, s := range summaries {
			modified := s.LastModified
			if t, ok := types.ParseTime(s.LastModified); ok {
				modified = humanize.Time(t)
			}
			tw.Append([]string{s.ID, s.Name, strconv.Itoa(s.StudentCount), strconv.Itoa(s.TestCount), modified})
		}
		tw.Render()
	},
}

var courseDeleteCmd = &cobra.Command{
	Use:   "delete <course>",
	Short: "Delete a course (backed up first)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		ctx := cmd.Context()
		course, err := findCourse(ctx, a.courses, args[0])
		if err != nil {
			exitf("%v", err)
		}

		desc := fmt.Sprintf("%d students, %d tests. A before-delete backup is taken first.", len(course.Students), len(course.Tests))
		if err := ui.Confirm("Delete course "+course.Name+"?", desc, assumeYes); err != nil {
			exitf("%v", err)
		}

		backupID, err := a.backups.SafeDeleteCourse(ctx, course.ID)
		if err != nil {
			exitf("%v", err)
		}
		printDeleted("course "+course.Name, backupID)
	},
}

var testCmd = &cobra.Command{
	Use:     "test",
	GroupID: "data",
	Short:   "Manage tests within a course",
}

var testDeleteCmd = &cobra.Command{
	Use:   "delete <course> <test>",
	Short: "Delete a test and its feedback (backed up first)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		ctx := cmd.Context()
		course, err := findCourse(ctx, a.courses, args[0])
		if err != nil {
			exitf("%v", err)
		}
		test, err := findTest(course, args[1])
		if err != nil {
			exitf("%v", err)
		}

		desc := fmt.Sprintf("%d feedback records are removed. A before-delete backup is taken first.", len(test.StudentFeedbacks))
		if err := ui.Confirm("Delete test "+test.Name+"?", desc, assumeYes); err != nil {
			exitf("%v", err)
		}

		backupID, err := a.backups.SafeDeleteTest(ctx, course.ID, test.ID)
		if err != nil {
			exitf("%v", err)
		}
		printDeleted("test "+test.Name, backupID)
	},
}

var studentCmd = &cobra.Command{
	Use:     "student",
	GroupID: "data",
	Short:   "Manage students within a course",
}

var studentDeleteCmd = &cobra.Command{
	Use:   "delete <course> <student>",
	Short: "Remove a student and their feedback from every test (backed up first)",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		ctx := cmd.Context()
		course, err := findCourse(ctx, a.courses, args[0])
		if err != nil {
			exitf("%v", err)
		}
		student, err := findStudent(course, args[1])
		if err != nil {
			exitf("%v", err)
		}

		if err := ui.Confirm("Remove "+student.Name+" from "+course.Name+"?",
			"Their feedback on every test is removed. A before-delete backup is taken first.", assumeYes); err != nil {
			exitf("%v", err)
		}

		backupID, err := a.backups.SafeDeleteStudent(ctx, course.ID, student.ID)
		if err != nil {
			exitf("%v", err)
		}
		printDeleted("student "+student.Name, backupID)
	},
}

func printDeleted(what, backupID string) {
	if jsonOutput {
		printJSON(map[string]string{"deleted": what, "backupId": backupID})
		return
	}
	fmt.Printf("%s Deleted %s\n", ui.RenderPass("✓"), what)
	if backupID != "" {
		fmt.Printf("   Backup: %s (restore with 'mb backup restore %s')\n", backupID, backupID)
	}
}

func init() {
	for _, c := range []*cobra.Command{courseDeleteCmd, testDeleteCmd, studentDeleteCmd} {
		c.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")
	}

	courseCmd.AddCommand(courseListCmd, courseDeleteCmd)
	testCmd.AddCommand(testDeleteCmd)
	studentCmd.AddCommand(studentDeleteCmd)
	rootCmd.AddCommand(courseCmd, testCmd, studentCmd)
}
