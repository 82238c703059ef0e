package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/moneytime-app/moneytime/internal/domain"
)

func init() {
	rootCmd.AddCommand(materializeCmd)
	rootCmd.AddCommand(txCmd)
	rootCmd.AddCommand(prefsCmd)
	txCmd.AddCommand(txListCmd)
	txCmd.AddCommand(txAddCmd)
	prefsCmd.AddCommand(prefsSetCmd)

	materializeCmd.Flags().String("through", "", "Materialize occurrences up to this date (YYYY-MM-DD, default today)")

	txListCmd.Flags().String("date", "", "Only transactions on this date (YYYY-MM-DD)")
	txListCmd.Flags().Int("limit", 20, "Maximum rows")

	txAddCmd.Flags().Bool("income", false, "Record income instead of an expense")
	txAddCmd.Flags().String("date", "", "Transaction date (YYYY-MM-DD, default today)")
}

// ─── materialize ────────────────────────────────────────────────────────────

var materializeCmd = &cobra.Command{
	Use:   "materialize",
	Short: "Create the transactions due from recurring rules",
	RunE:  runMaterialize,
}

func runMaterialize(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	through, _ := cmd.Flags().GetString("through")
	var res domain.MaterializeResult
	if through == "" {
		res, err = d.MaterializeDue(cmd.Context())
	} else {
		if _, err := domain.ParseDate(through); err != nil {
			return err
		}
		res, err = d.Ledger().MaterializeRecurring(cmd.Context(), through)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ %d recurring transaction(s) created\n", res.Created)
	return nil
}

// ─── tx ─────────────────────────────────────────────────────────────────────

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "List and record transactions",
}

var txListCmd = &cobra.Command{
	Use:   "list",
	Short: "List transactions, most recent first",
	RunE:  runTxList,
}

func runTxList(cmd *cobra.Command, args []string) error {
	date, _ := cmd.Flags().GetString("date")
	limit, _ := cmd.Flags().GetInt("limit")
	if date != "" {
		if _, err := domain.ParseDate(date); err != nil {
			return err
		}
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	txs, err := d.Ledger().ListTransactions(cmd.Context(), domain.TransactionFilter{OnDate: date, Limit: limit})
	if err != nil {
		return err
	}
	return printTransactions(cmd.OutOrStdout(), txs)
}

func printTransactions(w io.Writer, txs []domain.Transaction) error {
	if len(txs) == 0 {
		fmt.Fprintln(w, "No transactions.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tDESCRIPTION\tAMOUNT")
	for _, t := range txs {
		date, err := domain.FormatDisplayDate(t.TransactionDate)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, date, t.Description, domain.FormatCurrency(t.SignedAmount(), false))
	}
	return tw.Flush()
}

var txAddCmd = &cobra.Command{
	Use:   "add DESCRIPTION AMOUNT",
	Short: "Record a transaction",
	Long:  `Record a transaction. AMOUNT accepts a comma as decimal separator, e.g. 12,50.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runTxAdd,
}

func runTxAdd(cmd *cobra.Command, args []string) error {
	amount, err := domain.ParseNumber(args[1])
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[1])
	}
	typ := domain.Expense
	if income, _ := cmd.Flags().GetBool("income"); income {
		typ = domain.Income
	}
	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = domain.Today(time.Now(), nil)
	}

	req := domain.TransactionCreate{Description: args[0], Amount: amount, Type: typ, TransactionDate: date}
	if err := req.Validate(); err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	tx, err := d.Ledger().CreateTransaction(cmd.Context(), req)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ #%d %s %s\n", tx.ID, tx.Description, domain.FormatCurrency(tx.SignedAmount(), false))
	return nil
}

// ─── prefs ──────────────────────────────────────────────────────────────────

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show the balance thresholds",
	RunE:  runPrefs,
}

func runPrefs(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	p, err := d.Ledger().GetPreferences(cmd.Context())
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if p == nil {
		fmt.Fprintln(w, "Thresholds not configured.")
		fmt.Fprintln(w, "Use 'moneytime prefs set BAD OK GOOD' to configure them.")
		return nil
	}
	fmt.Fprintf(w, "bad:  %s\nok:   %s\ngood: %s\n",
		domain.FormatCurrency(p.BadThreshold, false),
		domain.FormatCurrency(p.OkThreshold, false),
		domain.FormatCurrency(p.GoodThreshold, false))
	return nil
}

var prefsSetCmd = &cobra.Command{
	Use:   "set BAD OK GOOD",
	Short: "Set the balance thresholds (bad <= ok <= good)",
	Args:  cobra.ExactArgs(3),
	RunE:  runPrefsSet,
}

func runPrefsSet(cmd *cobra.Command, args []string) error {
	var p domain.UserPreferences
	for i, dst := range []*decimal.Decimal{&p.BadThreshold, &p.OkThreshold, &p.GoodThreshold} {
		v, err := domain.ParseNumber(args[i])
		if err != nil {
			return fmt.Errorf("invalid threshold %q", args[i])
		}
		*dst = v
	}
	if err := p.Validate(); err != nil {
		return err
	}

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if _, err := d.Ledger().UpdatePreferences(cmd.Context(), p); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ Thresholds saved")
	return nil
}
