package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/markbook/markbook/internal/daemon"
	"github.com/markbook/markbook/internal/dashboard"
	"github.com/markbook/markbook/internal/events"
	"github.com/markbook/markbook/internal/metrics"
	"github.com/markbook/markbook/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "advanced",
	Short:   "Run auto backups and watch the folder mirror (foreground)",
	Long: `Run the markbook daemon in the foreground.

The daemon will:
  1. Back up the collection immediately and then every backup.auto_interval
  2. Watch <folder>/courses for changes made on other devices
  3. Report changed courses (run 'mb sync' to merge them)

With --dashboard, the dashboard server runs in the same process and streams
backup and folder events to connected clients.`,
	Run: func(cmd *cobra.Command, args []string) {
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")

		a := openApp()
		defer a.close()
		if port == 0 {
			port = a.cfg.Dashboard.Port
		}

		collector := metrics.NewCollector()
		var server *dashboard.Server
		if withDashboard {
			server = newDashboard(a, collector, port)
			a.events.Attach(events.Multi(collector, server))
		} else {
			a.events.Attach(collector)
		}

		d, err := daemon.New(a.backups, &daemon.Config{
			AutoBackupInterval: a.cfg.Backup.AutoInterval,
			FolderPath:         a.cfg.Folder.Path,
			Logger:             a.log.WithComponent("daemon"),
			Publisher:          a.events,
		})
		if err != nil {
			exitf("failed to create daemon: %v", err)
		}

		if server != nil {
			if err := server.Start(); err != nil {
				exitf("failed to start dashboard: %v", err)
			}
			defer func() {
				if err := server.Stop(); err != nil {
					fmt.Fprintf(os.Stderr, "Error during dashboard shutdown: %v\n", err)
				}
			}()
		}

		fmt.Printf("%s Starting markbook daemon...\n", ui.RenderAccent("🚀"))
		fmt.Printf("   Auto backup: every %v\n", a.cfg.Backup.AutoInterval)
		if a.cfg.Folder.Path != "" {
			fmt.Printf("   Folder: %s\n", a.cfg.Folder.Path)
		} else {
			fmt.Printf("   Folder: %s\n", ui.RenderMuted("not configured"))
		}
		if server != nil {
			fmt.Printf("   Dashboard: http://localhost:%d\n", port)
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := d.Run(cmd.Context()); err != nil {
			fmt.Fprintf(os.Stderr, "Daemon stopped with error: %v\n", err)
			return
		}
		fmt.Println("Daemon stopped")
	},
}

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	GroupID: "advanced",
	Short:   "Serve the status dashboard and WebSocket event feed",
	Long: `Start an HTTP server reporting the collection and its backups.

Endpoints:
  /ws             WebSocket feed: a snapshot on connect, then events
  /api/snapshot   collection totals and the latest backup
  /api/courses    course summaries
  /api/backups    backup index, newest first
  /metrics        Prometheus metrics
  /health         health check

Events only reach the feed for changes made by this process. Run the daemon
with --dashboard to include auto backups and folder change notices.`,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetInt("port")

		a := openApp()
		defer a.close()
		if port == 0 {
			port = a.cfg.Dashboard.Port
		}

		collector := metrics.NewCollector()
		server := newDashboard(a, collector, port)
		a.events.Attach(events.Multi(collector, server))

		if err := server.Start(); err != nil {
			exitf("failed to start dashboard: %v", err)
		}

		fmt.Printf("Dashboard server started on http://localhost:%d\n", port)
		fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		fmt.Printf("Health check: http://localhost:%d/health\n", port)
		fmt.Println("\nPress Ctrl+C to stop...")

		<-cmd.Context().Done()

		fmt.Println("\nShutting down dashboard server...")
		if err := server.Stop(); err != nil {
			exitf("during shutdown: %v", err)
		}
		fmt.Println("Dashboard server stopped")
	},
}

func newDashboard(a *app, collector *metrics.Collector, port int) *dashboard.Server {
	return dashboard.NewServer(&dashboard.Config{
		Port:    port,
		Backups: a.backups,
		Metrics: collector,
		Logger:  a.log.WithComponent("dashboard"),
	})
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "also serve the dashboard")
	daemonCmd.Flags().IntP("port", "p", 0, "dashboard port (default: dashboard.port)")
	dashboardCmd.Flags().IntP("port", "p", 0, "port to listen on (default: dashboard.port)")
	rootCmd.AddCommand(daemonCmd, dashboardCmd)
}
