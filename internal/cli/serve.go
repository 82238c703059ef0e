package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/moneytime-app/moneytime/internal/daemon"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Int("port", 0, "Override api.port")
	serveCmd.Flags().String("ledger", "", "Override ledger.backend (remote or local)")
}

// ─── serve ──────────────────────────────────────────────────────────────────

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the moneytime API server",
	Long: `Start the HTTP API: transactions with previews folded in, the daily
balance and calendar, smart entry and insights. Previews live in this
process and expire after the configured TTL. Stops on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		cfg.API.Port = port
	}
	if backend, _ := cmd.Flags().GetString("ledger"); backend != "" {
		cfg.Ledger.Backend = backend
	}

	d, err := daemon.New(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "moneytime serving on http://%s\n", cfg.Addr())
	return d.Run(ctx)
}
