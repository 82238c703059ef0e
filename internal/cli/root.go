// Package cli implements the moneytime command-line interface.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/moneytime-app/moneytime/internal/daemon"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "moneytime",
	Short: "Personal finance with a live daily balance",
	Long: `moneytime tracks income and expenses against a finance API (or a local
sqlite ledger), reconstructs the running balance of every day of a month and
classifies it against your thresholds. Drafts entered as previews count
toward the balance for 60 seconds before they must be saved.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.toml (default ~/.moneytime/config.toml)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (daemon.Config, error) {
	return daemon.LoadConfig(configPath)
}

// openDaemon builds the components without serving HTTP.
func openDaemon() (*daemon.Daemon, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return daemon.New(cfg)
}

// addMonthFlags registers --year and --month, defaulting to the current month.
func addMonthFlags(cmd *cobra.Command) {
	now := time.Now()
	cmd.Flags().Int("year", now.Year(), "Year")
	cmd.Flags().Int("month", int(now.Month()), "Month (1-12)")
}

func monthFlags(cmd *cobra.Command) (int, int, error) {
	year, _ := cmd.Flags().GetInt("year")
	month, _ := cmd.Flags().GetInt("month")
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("--month must be 1-12, got %d", month)
	}
	return year, month, nil
}
