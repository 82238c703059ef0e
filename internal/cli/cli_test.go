package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/moneytime-app/moneytime/internal/app/balance"
	"github.com/moneytime-app/moneytime/internal/domain"
)

func TestPrintBalances(t *testing.T) {
	var buf bytes.Buffer
	err := printBalances(&buf, []domain.DailyBalance{
		{Date: "2024-03-01", Balance: decimal.NewFromInt(1234), Status: domain.StatusGreen},
		{Date: "2024-03-02", Balance: decimal.NewFromInt(-5), Status: domain.StatusNone},
	}, false)
	if err != nil {
		t.Fatalf("printBalances: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"01-03-2024", "R$ 1.234,00", "green", "-R$ 5,00"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintBalances_Hidden(t *testing.T) {
	var buf bytes.Buffer
	printBalances(&buf, []domain.DailyBalance{{Date: "2024-03-01", Balance: decimal.NewFromInt(10)}}, true)
	if strings.Contains(buf.String(), "R$") || !strings.Contains(buf.String(), domain.HiddenAmount) {
		t.Errorf("hidden output should mask amounts:\n%s", buf.String())
	}
}

func TestPrintCalendar(t *testing.T) {
	series := balance.Reconstruct(nil, nil, 2024, 3, &domain.UserPreferences{
		OkThreshold: decimal.NewFromInt(500), GoodThreshold: decimal.NewFromInt(1500),
	})
	days := balance.BuildCalendar(2024, 3, series, "2024-03-10")

	var buf bytes.Buffer
	printCalendar(&buf, days)
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")

	// Header plus six weeks.
	if len(lines) != 7 {
		t.Fatalf("got %d lines, want 7:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(buf.String(), "[10]-") {
		t.Errorf("today should be bracketed with a red mark:\n%s", buf.String())
	}
	if !strings.Contains(lines[1], " 1 -") {
		t.Errorf("first week should end with March 1st: %q", lines[1])
	}
}

func TestPrintTransactions(t *testing.T) {
	var buf bytes.Buffer
	printTransactions(&buf, nil)
	if !strings.Contains(buf.String(), "No transactions") {
		t.Errorf("empty list output = %q", buf.String())
	}

	buf.Reset()
	printTransactions(&buf, []domain.Transaction{
		{ID: 7, Description: "Uber", Amount: decimal.NewFromInt(20), Type: domain.Expense, TransactionDate: "2024-03-10"},
	})
	for _, want := range []string{"7", "10-03-2024", "Uber", "-R$ 20,00"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestCommands_LocalLedger(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("MONEYTIME_HOME", dir)
	t.Setenv("MONEYTIME_LEDGER_BACKEND", "local")
	t.Setenv("MONEYTIME_STORAGE_DIR", dir)
	t.Chdir(dir)

	if out, err := execute(t, "config", "init"); err != nil {
		t.Fatalf("config init: %v\n%s", err, out)
	}
	if _, err := execute(t, "config", "init"); err == nil {
		t.Error("second config init should refuse to overwrite")
	}

	if out, err := execute(t, "tx", "add", "Salário", "1500,50", "--income", "--date", "2024-03-05"); err != nil {
		t.Fatalf("tx add: %v\n%s", err, out)
	}
	if out, err := execute(t, "prefs", "set", "0", "500", "1500"); err != nil {
		t.Fatalf("prefs set: %v\n%s", err, out)
	}

	out, err := execute(t, "balance", "--year", "2024", "--month", "3")
	if err != nil {
		t.Fatalf("balance: %v\n%s", err, out)
	}
	if !strings.Contains(out, "05-03-2024") || !strings.Contains(out, "R$ 1.500,50") || !strings.Contains(out, "green") {
		t.Errorf("balance output missing day 5:\n%s", out)
	}

	out, err = execute(t, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if !strings.Contains(out, `backend = "local"`) {
		t.Errorf("config show should reflect env override:\n%s", out)
	}
}
