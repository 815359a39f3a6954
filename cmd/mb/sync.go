package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/markbook/markbook/internal/backup"
	"github.com/markbook/markbook/internal/syncer"
	"github.com/markbook/markbook/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Reconcile the local collection with the folder mirror",
	Long: `Merge the folder mirror into the local collection and write the result
back to both sides.

This performs a full reconciliation:
  1. Reads every course from <folder>/courses
  2. Backs up the local collection (label before-sync)
  3. Merges courses by id, tests by id and feedback per student
  4. Collapses courses sharing a name, keeping the one with more data
  5. Saves the result locally and to the folder`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		s := a.syncer()
		fmt.Printf("%s Syncing with %s...\n", ui.RenderAccent("🔄"), a.cfg.Folder.Path)
		start := time.Now()

		res, err := s.SyncFromFolder(cmd.Context())
		if err != nil {
			exitf("sync failed: %v", err)
		}
		if jsonOutput {
			printJSON(res)
			return
		}

		fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Local courses: %d\n", res.LocalCourses)
		fmt.Printf("   Folder courses: %d\n", res.FolderCourses)
		fmt.Printf("   Result: %d\n", res.MergedCourses)
		if res.BackupID != "" {
			fmt.Printf("   Backup: %s\n", res.BackupID)
		}
	},
}

var migrateFolderCmd = &cobra.Command{
	Use:     "migrate-folder",
	GroupID: "sync",
	Short:   "Write every local course to the folder mirror",
	Long: `Write every local course to the folder mirror without reading it first.

Use this once when connecting an empty folder. Existing course folders with
the same name are overwritten file by file.`,
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		n, err := a.syncer().MigrateToFolder(cmd.Context())
		if err != nil {
			exitf("%v", err)
		}
		if jsonOutput {
			printJSON(map[string]int{"courses": n})
			return
		}
		fmt.Printf("%s Wrote %d courses to %s\n", ui.RenderPass("✓"), n, a.cfg.Folder.Path)
	},
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "sync",
	Short:   "Show store, backup and folder status",
	Run: func(cmd *cobra.Command, args []string) {
		a := openApp()
		defer a.close()

		ctx := cmd.Context()
		summaries, err := a.courses.Summaries(ctx)
		if err != nil {
			exitf("%v", err)
		}
		backups, err := a.backups.ListBackups(ctx)
		if err != nil {
			exitf("%v", err)
		}

		status := map[string]interface{}{
			"store":   a.cfg.Store.Driver,
			"courses": len(summaries),
			"backups": len(backups),
		}
		var last *backup.Entry
		if len(backups) > 0 {
			last = &backups[0]
			status["lastBackup"] = last
		}
		var fs *syncer.Status
		if a.cfg.Folder.Path != "" {
			fs, err = a.syncer().Status(ctx)
			if err != nil {
				exitf("%v", err)
			}
			status["folder"] = fs
		}

		if jsonOutput {
			printJSON(status)
			return
		}

		fmt.Printf("\n%s markbook status\n\n", ui.RenderAccent("📊"))
		if a.cfg.Store.Driver == "sqlite" {
			fmt.Printf("Store: sqlite (%s)\n", a.cfg.StorePath())
		} else {
			fmt.Printf("Store: %s\n", a.cfg.Store.Driver)
		}
		fmt.Printf("Courses: %d\n", len(summaries))
		fmt.Printf("Backups: %d/%d\n", len(backups), a.cfg.Backup.Max)
		if last != nil {
			fmt.Printf("Last backup: %s (%s, %s)\n", last.ID, last.Label, humanize.Time(last.Timestamp))
		}

		if fs == nil {
			fmt.Printf("\n%s No folder configured\n", ui.RenderWarn("⚠"))
			fmt.Printf("   Set folder.path to mirror courses to a shared folder\n\n")
			return
		}
		fmt.Printf("Folder: %s\n", fs.FolderPath)
		if !fs.HasCourses {
			fmt.Printf("   %s folder has no courses yet (run 'mb migrate-folder')\n", ui.RenderWarn("⚠"))
		}
		if fs.LastSync != nil {
			fmt.Printf("Last sync: %s\n", humanize.Time(*fs.LastSync))
		} else {
			fmt.Printf("Last sync: %s\n", ui.RenderMuted("never"))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd, migrateFolderCmd, statusCmd)
}
