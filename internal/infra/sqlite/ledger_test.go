package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/moneytime-app/moneytime/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustCreate(t *testing.T, db *DB, typ domain.TransactionType, amount, date string) *domain.Transaction {
	t.Helper()
	tx, err := db.CreateTransaction(context.Background(), domain.TransactionCreate{
		Description:     "tx " + date,
		Amount:          decimal.RequireFromString(amount),
		Type:            typ,
		TransactionDate: date,
	})
	if err != nil {
		t.Fatalf("CreateTransaction() error: %v", err)
	}
	return tx
}

// ─── Transactions ───────────────────────────────────────────────────────────

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("second Open() error: %v", err)
	}
	db.Close()
}

func TestTransactions_CRUD(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created := mustCreate(t, db, domain.Expense, "12.34", "2024-03-10")
	if created.ID == 0 || !created.Amount.Equal(decimal.RequireFromString("12.34")) {
		t.Fatalf("created = %+v", created)
	}

	desc := "Mercado"
	updated, err := db.UpdateTransaction(ctx, created.ID, domain.TransactionUpdate{Description: &desc})
	if err != nil {
		t.Fatalf("UpdateTransaction() error: %v", err)
	}
	if updated.Description != "Mercado" || updated.UpdatedAt == nil {
		t.Errorf("updated = %+v, want new description and updated_at", updated)
	}
	if updated.Type != domain.Expense {
		t.Errorf("Type = %q, want unchanged expense", updated.Type)
	}

	if err := db.DeleteTransaction(ctx, created.ID); err != nil {
		t.Fatalf("DeleteTransaction() error: %v", err)
	}
	if _, err := db.GetTransaction(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetTransaction() after delete error = %v, want ErrNotFound", err)
	}
	if err := db.DeleteTransaction(ctx, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestCreateTransaction_Validates(t *testing.T) {
	db := newTestDB(t)
	_, err := db.CreateTransaction(context.Background(), domain.TransactionCreate{
		Description: "x", Amount: decimal.Zero, Type: domain.Expense, TransactionDate: "2024-03-10",
	})
	if !errors.Is(err, domain.ErrInvalidTransaction) {
		t.Errorf("error = %v, want ErrInvalidTransaction", err)
	}
}

func TestListTransactions_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	cat, err := db.CreateCategory(ctx, domain.CategoryCreate{Name: "Food"})
	if err != nil {
		t.Fatalf("CreateCategory() error: %v", err)
	}
	db.CreateTransaction(ctx, domain.TransactionCreate{
		Description: "lunch", Amount: decimal.NewFromInt(30), Type: domain.Expense,
		TransactionDate: "2024-03-10", CategoryID: &cat.ID,
	})
	mustCreate(t, db, domain.Income, "100", "2024-03-10")
	mustCreate(t, db, domain.Expense, "5", "2024-03-11")

	all, _ := db.ListTransactions(ctx, domain.TransactionFilter{})
	if len(all) != 3 || all[0].TransactionDate != "2024-03-11" {
		t.Errorf("all = %d entries starting %v, want 3 newest first", len(all), all)
	}

	onDate, _ := db.ListTransactions(ctx, domain.TransactionFilter{OnDate: "2024-03-10"})
	if len(onDate) != 2 {
		t.Errorf("on_date = %d entries, want 2", len(onDate))
	}

	byCat, _ := db.ListTransactions(ctx, domain.TransactionFilter{CategoryID: cat.ID})
	if len(byCat) != 1 || byCat[0].Category == nil || byCat[0].Category.Name != "Food" {
		t.Errorf("by category = %+v, want lunch with Food category", byCat)
	}

	page, _ := db.ListTransactions(ctx, domain.TransactionFilter{Skip: 1, Limit: 1})
	if len(page) != 1 {
		t.Errorf("page = %d entries, want 1", len(page))
	}
}

// ─── Daily Balance ──────────────────────────────────────────────────────────

func TestDailyBalance_CumulativeWithHistory(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mustCreate(t, db, domain.Income, "1000", "2024-02-20")
	mustCreate(t, db, domain.Expense, "300", "2024-03-05")
	mustCreate(t, db, domain.Expense, "50", "2024-03-05")
	mustCreate(t, db, domain.Income, "25.5", "2024-03-20")
	mustCreate(t, db, domain.Expense, "999", "2024-04-01")

	got, err := db.DailyBalance(ctx, 2024, 3)
	if err != nil {
		t.Fatalf("DailyBalance() error: %v", err)
	}
	want := []struct{ date, balance string }{
		{"2024-03-05", "650"},
		{"2024-03-20", "675.5"},
	}
	if len(got) != len(want) {
		t.Fatalf("DailyBalance() = %+v, want %d active days", got, len(want))
	}
	for i, w := range want {
		if got[i].Date != w.date || !got[i].Balance.Equal(decimal.RequireFromString(w.balance)) {
			t.Errorf("entry %d = %s %s, want %s %s", i, got[i].Date, got[i].Balance, w.date, w.balance)
		}
		if got[i].Status != domain.StatusUnconfigured {
			t.Errorf("entry %d status = %q, want unconfigured", i, got[i].Status)
		}
	}
}

func TestDailyBalance_StatusFromPreferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := db.UpdatePreferences(ctx, domain.DefaultPreferences()); err != nil {
		t.Fatalf("UpdatePreferences() error: %v", err)
	}
	mustCreate(t, db, domain.Income, "600", "2024-03-01")
	mustCreate(t, db, domain.Income, "1000", "2024-03-02")

	got, _ := db.DailyBalance(ctx, 2024, 3)
	if got[0].Status != domain.StatusYellow || got[1].Status != domain.StatusGreen {
		t.Errorf("statuses = %q, %q, want yellow, green", got[0].Status, got[1].Status)
	}
}

// ─── Preferences ────────────────────────────────────────────────────────────

func TestPreferences(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	p, err := db.GetPreferences(ctx)
	if err != nil || p != nil {
		t.Fatalf("GetPreferences() = %v, %v, want nil, nil before configuration", p, err)
	}

	bad := domain.UserPreferences{
		BadThreshold: decimal.NewFromInt(100), OkThreshold: decimal.NewFromInt(50), GoodThreshold: decimal.NewFromInt(200),
	}
	if _, err := db.UpdatePreferences(ctx, bad); !errors.Is(err, domain.ErrInvalidThresholds) {
		t.Errorf("UpdatePreferences(bad > ok) error = %v, want ErrInvalidThresholds", err)
	}

	db.UpdatePreferences(ctx, domain.DefaultPreferences())
	next := domain.DefaultPreferences()
	next.GoodThreshold = decimal.RequireFromString("2000.50")
	db.UpdatePreferences(ctx, next)

	p, _ = db.GetPreferences(ctx)
	if p == nil || !p.GoodThreshold.Equal(decimal.RequireFromString("2000.50")) {
		t.Errorf("GetPreferences() = %+v, want good 2000.50", p)
	}
}

// ─── Categories ─────────────────────────────────────────────────────────────

func TestCategories(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	food, _ := db.CreateCategory(ctx, domain.CategoryCreate{Name: "Food"})
	if _, err := db.CreateCategory(ctx, domain.CategoryCreate{Name: "Food"}); !errors.Is(err, domain.ErrRejected) {
		t.Errorf("duplicate category error = %v, want ErrRejected", err)
	}

	tx, _ := db.CreateTransaction(ctx, domain.TransactionCreate{
		Description: "lunch", Amount: decimal.NewFromInt(30), Type: domain.Expense,
		TransactionDate: "2024-03-10", CategoryID: &food.ID,
	})
	if err := db.DeleteCategory(ctx, food.ID); err != nil {
		t.Fatalf("DeleteCategory() error: %v", err)
	}

	got, _ := db.GetTransaction(ctx, tx.ID)
	if got.CategoryID != nil {
		t.Errorf("CategoryID = %v, want nil after category delete", *got.CategoryID)
	}
	cats, _ := db.ListCategories(ctx)
	if len(cats) != 0 {
		t.Errorf("ListCategories() = %v, want empty", cats)
	}
}

// ─── Recurring ──────────────────────────────────────────────────────────────

func TestMaterializeRecurring(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	end := "2024-04-15"
	rule, err := db.CreateRecurring(ctx, domain.RecurringCreate{
		Description: "Aluguel",
		Amount:      decimal.NewFromInt(1500),
		Type:        domain.Expense,
		Frequency:   domain.Monthly,
		Interval:    1,
		StartDate:   "2024-01-31",
		EndDate:     &end,
	})
	if err != nil {
		t.Fatalf("CreateRecurring() error: %v", err)
	}
	if rule.NextRunDate == nil || *rule.NextRunDate != "2024-01-31" {
		t.Fatalf("NextRunDate = %v, want 2024-01-31", rule.NextRunDate)
	}

	res, err := db.MaterializeRecurring(ctx, "2024-02-29")
	if err != nil {
		t.Fatalf("MaterializeRecurring() error: %v", err)
	}
	if res.Created != 2 {
		t.Errorf("Created = %d, want 2 (Jan 31, Feb 29)", res.Created)
	}

	// Idempotent for the same horizon.
	res, _ = db.MaterializeRecurring(ctx, "2024-02-29")
	if res.Created != 0 {
		t.Errorf("second run Created = %d, want 0", res.Created)
	}

	// March 31 is created; April 30 is past the end date.
	res, _ = db.MaterializeRecurring(ctx, "2024-12-31")
	if res.Created != 1 {
		t.Errorf("Created = %d, want 1", res.Created)
	}

	rules, _ := db.ListRecurring(ctx)
	if len(rules) != 1 || rules[0].NextRunDate != nil {
		t.Errorf("rules = %+v, want finished rule without next run date", rules)
	}

	txs, _ := db.ListTransactions(ctx, domain.TransactionFilter{})
	dates := map[string]bool{}
	for _, tx := range txs {
		dates[tx.TransactionDate] = true
	}
	for _, d := range []string{"2024-01-31", "2024-02-29", "2024-03-31"} {
		if !dates[d] {
			t.Errorf("missing materialized transaction on %s", d)
		}
	}
}

func TestMaterializeRecurring_ConcurrentHandles(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	open := func() *DB {
		db, err := Open(dir)
		if err != nil {
			t.Fatalf("Open() error: %v", err)
		}
		t.Cleanup(func() { db.Close() })
		return db
	}
	a, b := open(), open()

	for i := 0; i < 20; i++ {
		_, err := a.CreateRecurring(ctx, domain.RecurringCreate{
			Description: fmt.Sprintf("rule %d", i),
			Amount:      decimal.NewFromInt(10),
			Type:        domain.Expense,
			Frequency:   domain.Daily,
			Interval:    1,
			StartDate:   "2024-01-01",
		})
		if err != nil {
			t.Fatalf("CreateRecurring() error: %v", err)
		}
	}

	var wg sync.WaitGroup
	results := make([]domain.MaterializeResult, 2)
	errs := make([]error, 2)
	for i, db := range []*DB{a, b} {
		wg.Add(1)
		go func(i int, db *DB) {
			defer wg.Done()
			results[i], errs[i] = db.MaterializeRecurring(ctx, "2024-01-31")
		}(i, db)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("MaterializeRecurring() #%d error: %v", i, err)
		}
	}
	if got := results[0].Created + results[1].Created; got != 620 {
		t.Errorf("Created total = %d, want 620", got)
	}

	var rows int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 620 {
		t.Errorf("transactions = %d, want 620 (20 rules x 31 days)", rows)
	}
}

func TestDeleteRecurring_KeepsTransactions(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	rule, _ := db.CreateRecurring(ctx, domain.RecurringCreate{
		Description: "Gym", Amount: decimal.NewFromInt(90), Type: domain.Expense,
		Frequency: domain.Weekly, Interval: 1, StartDate: "2024-03-01",
	})
	db.MaterializeRecurring(ctx, "2024-03-10")

	if err := db.DeleteRecurring(ctx, rule.ID); err != nil {
		t.Fatalf("DeleteRecurring() error: %v", err)
	}
	txs, _ := db.ListTransactions(ctx, domain.TransactionFilter{})
	if len(txs) != 2 {
		t.Errorf("transactions = %d, want 2 kept after rule delete", len(txs))
	}
}
