package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/markbook/markbook/internal/config"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "advanced",
	Short:   "Inspect configuration",
}

var configPrintCmd = &cobra.Command{
	Use:   "print",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration after defaults, markbook.yaml, .env and
MARKBOOK_* environment variables have been applied. The Redis password is
masked.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitf("%v", err)
		}
		if cfg.Store.Redis.Password != "" {
			cfg.Store.Redis.Password = "********"
		}

		if jsonOutput {
			printJSON(cfg)
			return
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(cfg); err != nil {
			exitf("failed to encode config: %v", err)
		}
		if err := enc.Close(); err != nil {
			exitf("%v", err)
		}
		fmt.Fprintf(os.Stderr, "# store path: %s\n", cfg.StorePath())
	},
}

func init() {
	configCmd.AddCommand(configPrintCmd)
	rootCmd.AddCommand(configCmd)
}
