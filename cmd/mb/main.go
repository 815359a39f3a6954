// Command mb manages markbook grading data: backups, import/export, folder
// sync and reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configFile string
	jsonOutput bool
	assumeYes  bool
)

var rootCmd = &cobra.Command{
	Use:   "mb",
	Short: "markbook: offline-first grading data tool",
	Long: `mb manages markbook course data kept in a local store.

Every destructive command (delete, import, restore, sync) takes a backup of
the full collection first. The last 10 backups are kept.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: "data", Title: "Course data:"},
		&cobra.Group{ID: "backup", Title: "Backups:"},
		&cobra.Group{ID: "sync", Title: "Folder sync:"},
		&cobra.Group{ID: "advanced", Title: "Services:"},
	)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: search $MARKBOOK_HOME, ~/.markbook, .)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

// exitf prints an error to stderr and exits.
func exitf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
