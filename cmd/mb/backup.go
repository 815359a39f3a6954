package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/ui"
)

var backupCmd = &cobra.Command{
	Use:     "backup",
	GroupID: "backup",
	Short:   "Create, list and restore backups",
	Long: `Manage the rotating history of full-collection backups.

Backups are labeled by why they were taken: manual, auto, before-delete,
before-import, before-restore or before-sync. Only the 10 newest are kept,
regardless of label.`,
}

var backupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Back up the current collection",
	Run: func(cmd *cobra.Command, args []string) {
		label, _ := cmd.Flags().GetString("label")

		a := openApp()
		defer a.close()

		entry, err := a.backups.CreateBackup(cmd.Context(), label)
		if err != nil {
			exitf("%v", err)
		}
		if entry == nil {
			fmt.Printf("%s Nothing to back up: the collection is empty\n", ui.RenderWarn("⚠"))
			return
		}
		if jsonOutput {
			printJSON(entry)
			return
		}
		fmt.Printf("%s Created backup %s\n", ui.RenderPass("✓"), entry.ID)
		fmt.Printf("   Courses: %d\n", entry.CourseCount)
		fmt.Printf("   Completed feedback: %d\n", entry.TotalFeedback)
		fmt.Printf("   Size: %s\n", humanize.Bytes(uint64(entry.SizeBytes)))
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List backups, newest first",
	Long: `List backups, newest first.

--since accepts an RFC3339 timestamp or a phrase such as "yesterday",
"last monday" or "3 hours ago".`,
	Run: func(cmd *cobra.Command, args []string) {
		sinceFlag, _ := cmd.Flags().GetString("since")
		label, _ := cmd.Flags().GetString("label")

		var since time.Time
		if sinceFlag != "" {
			t, err := parseSince(sinceFlag, time.Now())
			if err != nil {
				exitf("--since: %v", err)
			}
			since = t
		}

		a := openApp()
		defer a.close()

		entries, err := a.backups.ListBackups(cmd.Context())
		if err != nil {
			exitf("%v", err)
		}
		entries = filterBackups(entries, since, label)

		if jsonOutput {
			printJSON(entries)
			return
		}
		if len(entries) == 0 {
			fmt.Println("No backups")
			return
		}

		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"ID", "CREATED", "LABEL", "COURSES", "FEEDBACK", "SIZE"})
		for _, e := range entries {
			tw.Append([]string{
				e.ID,
				humanize.Time(e.Timestamp),
				e.Label,
				strconv.Itoa(e.CourseCount),
				strconv.Itoa(e.TotalFeedback),
				humanize.Bytes(uint64(e.SizeBytes)),
			})
		}
		tw.Render()
	},
}

var backupShowCmd = &cobra.Command{
	Use:   "show <backup-id>",
	Short: "Show a backup and the courses it holds",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		ctx := cmd.Context()
		entry, err := a.backups.Lookup(ctx, args[0])
		if err != nil {
			exitf("%v", err)
		}
		courses, err := a.backups.BackupData(ctx, entry.ID)
		if err != nil {
			exitf("%v", err)
		}

		if jsonOutput {
			summaries := make([]interface{}, 0, len(courses))
			for i := range courses {
				summaries = append(summaries, courses[i].Summary())
			}
			printJSON(map[string]interface{}{"backup": entry, "courses": summaries})
			return
		}

		fmt.Printf("\n%s Backup %s\n\n", ui.RenderAccent("📦"), entry.ID)
		fmt.Printf("Created: %s (%s)\n", entry.Timestamp.Local().Format("2006-01-02 15:04:05"), humanize.Time(entry.Timestamp))
		fmt.Printf("Label: %s\n", entry.Label)
		fmt.Printf("Size: %s\n\n", humanize.Bytes(uint64(entry.SizeBytes)))

		tw := tablewriter.NewWriter(os.Stdout)
		tw.SetHeader([]string{"COURSE", "STUDENTS", "TESTS", "COMPLETED"})
		for i := range courses {
			c := &courses[i]
			tw.Append([]string{c.Name, strconv.Itoa(len(c.Students)), strconv.Itoa(len(c.Tests)), strconv.Itoa(c.CompletedFeedbackCount())})
		}
		tw.Render()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <backup-id>",
	Short: "Replace the collection with a backup",
	Long: `Replace the live collection with the contents of a backup.

The current collection is backed up first with the label before-restore.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		ctx := cmd.Context()
		entry, err := a.backups.Lookup(ctx, args[0])
		if err != nil {
			exitf("%v", err)
		}

		desc := fmt.Sprintf("%d courses from %s. The current collection is backed up first.",
			entry.CourseCount, humanize.Time(entry.Timestamp))
		if err := ui.Confirm("Restore backup "+entry.ID+"?", desc, assumeYes); err != nil {
			exitf("%v", err)
		}

		res, err := a.backups.RestoreFromBackup(ctx, entry.ID)
		if err != nil {
			exitf("%v", err)
		}
		if !res.Success {
			exitf("%v: %s", backup.ErrBackupNotFound, entry.ID)
		}
		if jsonOutput {
			printJSON(res)
			return
		}
		fmt.Printf("%s Restored %d courses from %s\n", ui.RenderPass("✓"), res.CourseCount, entry.ID)
	},
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <backup-id>",
	Short: "Delete a backup",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		if err := ui.Confirm("Delete backup "+args[0]+"?", "", assumeYes); err != nil {
			exitf("%v", err)
		}
		if err := a.backups.DeleteBackup(cmd.Context(), args[0]); err != nil {
			exitf("%v", err)
		}
		fmt.Printf("%s Deleted backup %s\n", ui.RenderPass("✓"), args[0])
	},
}

// parseSince accepts RFC3339, a date, or a natural language phrase relative
// to now.
func parseSince(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, now.Location()); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, err
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("could not understand %q", s)
	}
	return r.Time, nil
}

// filterBackups keeps entries at or after since (zero keeps all) whose label
// matches (empty keeps all).
func filterBackups(entries []backup.Entry, since time.Time, label string) []backup.Entry {
	out := make([]backup.Entry, 0, len(entries))
	for _, e := range entries {
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if label != "" && e.Label != label {
			continue
		}
		out = append(out, e)
	}
	return out
}

func init() {
	backupCreateCmd.Flags().String("label", backup.LabelManual, "label recorded on the backup")
	backupListCmd.Flags().String("since", "", "only backups created at or after this time")
	backupListCmd.Flags().String("label", "", "only backups with this label")
	backupRestoreCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")
	backupDeleteCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip confirmation")

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupShowCmd, backupRestoreCmd, backupDeleteCmd)
	rootCmd.AddCommand(backupCmd)
}
