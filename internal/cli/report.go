package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/moneytime-app/moneytime/internal/app/balance"
	"github.com/moneytime-app/moneytime/internal/app/insights"
	"github.com/moneytime-app/moneytime/internal/domain"
)

func init() {
	rootCmd.AddCommand(balanceCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(insightsCmd)

	addMonthFlags(balanceCmd)
	addMonthFlags(calendarCmd)
	addMonthFlags(insightsCmd)
	balanceCmd.Flags().Bool("hide", false, "Mask amounts")
}

// ─── balance ────────────────────────────────────────────────────────────────

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print the running balance of every day of a month",
	RunE:  runBalance,
}

func runBalance(cmd *cobra.Command, args []string) error {
	year, month, err := monthFlags(cmd)
	if err != nil {
		return err
	}
	hide, _ := cmd.Flags().GetBool("hide")

	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	series, err := balance.NewService(d.Ledger(), d.Previews()).Month(cmd.Context(), year, month)
	if err != nil {
		return err
	}
	return printBalances(cmd.OutOrStdout(), series, hide)
}

func printBalances(w io.Writer, series []domain.DailyBalance, hide bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "DATE\tBALANCE\tSTATUS\t")
	for _, b := range series {
		date, err := domain.FormatDisplayDate(b.Date)
		if err != nil {
			return err
		}
		status := string(b.Status)
		if status == "" {
			status = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t\n", date, domain.FormatCurrency(b.Balance, hide), status)
	}
	return tw.Flush()
}

// ─── calendar ───────────────────────────────────────────────────────────────

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Print a month grid with each day's status",
	Long: `Print a Sunday-first month grid. Each in-month day shows its number and
a status marker: + green, ~ yellow, - red, ? unconfigured, blank when unknown.
Today is bracketed.`,
	RunE: runCalendar,
}

func runCalendar(cmd *cobra.Command, args []string) error {
	year, month, err := monthFlags(cmd)
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	today := domain.Today(d.Now(), nil)
	days, err := balance.NewService(d.Ledger(), d.Previews()).Calendar(cmd.Context(), year, month, today)
	if err != nil {
		return err
	}
	printCalendar(cmd.OutOrStdout(), days)
	return nil
}

var statusMarks = map[domain.BalanceStatus]string{
	domain.StatusGreen:        "+",
	domain.StatusYellow:       "~",
	domain.StatusRed:          "-",
	domain.StatusUnconfigured: "?",
}

func printCalendar(w io.Writer, days []balance.CalendarDay) {
	fmt.Fprintln(w, "  Dom   Seg   Ter   Qua   Qui   Sex   Sáb")
	var row strings.Builder
	for i, day := range days {
		cell := "     "
		if day.InMonth {
			mark := " "
			if day.Balance != nil {
				if m, ok := statusMarks[day.Balance.Status]; ok {
					mark = m
				}
			}
			num := fmt.Sprintf("%2d", day.Day)
			if day.IsToday {
				cell = fmt.Sprintf("[%s]%s", num, mark)
			} else {
				cell = fmt.Sprintf(" %s %s", num, mark)
			}
		}
		row.WriteString(" " + cell)
		if i%7 == 6 {
			fmt.Fprintln(w, strings.TrimRight(row.String(), " "))
			row.Reset()
		}
	}
}

// ─── insights ───────────────────────────────────────────────────────────────

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Analyze a month's spending",
	RunE:  runInsights,
}

func runInsights(cmd *cobra.Command, args []string) error {
	year, month, err := monthFlags(cmd)
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	a, err := insights.NewService(d.Ledger()).Month(cmd.Context(), year, month)
	if err != nil {
		return err
	}
	printInsights(cmd.OutOrStdout(), a)
	return nil
}

var insightIcons = map[insights.Kind]string{
	insights.KindWarning: "⚠️ ",
	insights.KindTip:     "💡",
	insights.KindSuccess: "✅",
}

func printInsights(w io.Writer, a insights.Analysis) {
	s := a.Summary
	fmt.Fprintf(w, "Income:   %s\n", domain.FormatCurrency(s.TotalIncome, false))
	fmt.Fprintf(w, "Expenses: %s\n", domain.FormatCurrency(s.TotalExpenses, false))
	fmt.Fprintf(w, "Balance:  %s (savings %.1f%%)\n", domain.FormatCurrency(s.Balance, false), s.SavingsRate)
	if len(a.Insights) == 0 {
		fmt.Fprintln(w, "\nNo insights for this month.")
		return
	}
	fmt.Fprintln(w)
	for _, in := range a.Insights {
		fmt.Fprintf(w, "%s %s\n", insightIcons[in.Kind], in.Message)
	}
}
