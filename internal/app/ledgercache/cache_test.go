package ledgercache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneytime-app/moneytime/internal/domain"
)

type countingLedger struct {
	domain.Ledger

	mu        sync.Mutex
	listCalls int
	balCalls  int
	txs       []domain.Transaction
	series    []domain.DailyBalance
	createErr error
	release   chan struct{} // when set, DailyBalance waits on it
}

func (c *countingLedger) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listCalls++
	return c.txs, nil
}

func (c *countingLedger) DailyBalance(ctx context.Context, year, month int) ([]domain.DailyBalance, error) {
	c.mu.Lock()
	c.balCalls++
	release := c.release
	series := c.series
	c.mu.Unlock()
	if release != nil {
		<-release
	}
	return series, nil
}

func (c *countingLedger) CreateTransaction(ctx context.Context, tc domain.TransactionCreate) (*domain.Transaction, error) {
	if c.createErr != nil {
		return nil, c.createErr
	}
	return &domain.Transaction{ID: 1, Description: tc.Description}, nil
}

func (c *countingLedger) UpdatePreferences(ctx context.Context, p domain.UserPreferences) (*domain.UserPreferences, error) {
	return &p, nil
}

func (c *countingLedger) calls() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listCalls, c.balCalls
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCache(next domain.Ledger) (*Ledger, *clock) {
	clk := &clock{now: time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)}
	return New(next, Config{TTL: 30 * time.Second, Now: clk.Now}), clk
}

func TestListTransactions_CachedPerFilter(t *testing.T) {
	inner := &countingLedger{txs: []domain.Transaction{{ID: 1}}}
	c, _ := newTestCache(inner)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.ListTransactions(ctx, domain.TransactionFilter{OnDate: "2024-03-10"}); err != nil {
			t.Fatalf("ListTransactions() error: %v", err)
		}
	}
	if lists, _ := inner.calls(); lists != 1 {
		t.Errorf("inner list calls = %d, want 1", lists)
	}

	c.ListTransactions(ctx, domain.TransactionFilter{OnDate: "2024-03-11"})
	if lists, _ := inner.calls(); lists != 2 {
		t.Errorf("different filter should miss: inner list calls = %d, want 2", lists)
	}
}

func TestDailyBalance_ExpiresAfterTTL(t *testing.T) {
	inner := &countingLedger{series: []domain.DailyBalance{{Date: "2024-03-05", Balance: decimal.NewFromInt(200)}}}
	c, clk := newTestCache(inner)
	ctx := context.Background()

	c.DailyBalance(ctx, 2024, 3)
	clk.Advance(29 * time.Second)
	c.DailyBalance(ctx, 2024, 3)
	if _, bals := inner.calls(); bals != 1 {
		t.Errorf("inner balance calls = %d, want 1 within TTL", bals)
	}

	clk.Advance(2 * time.Second)
	c.DailyBalance(ctx, 2024, 3)
	if _, bals := inner.calls(); bals != 2 {
		t.Errorf("inner balance calls = %d, want 2 after TTL", bals)
	}
}

func TestCachedSliceIsCopied(t *testing.T) {
	inner := &countingLedger{series: []domain.DailyBalance{{Date: "2024-03-05", Balance: decimal.NewFromInt(200)}}}
	c, _ := newTestCache(inner)
	ctx := context.Background()

	first, _ := c.DailyBalance(ctx, 2024, 3)
	first[0].Balance = decimal.NewFromInt(-1)

	second, _ := c.DailyBalance(ctx, 2024, 3)
	if !second[0].Balance.Equal(decimal.NewFromInt(200)) {
		t.Errorf("cached balance = %s, want 200 (caller mutation leaked into cache)", second[0].Balance)
	}
}

func TestCreateTransaction_InvalidatesBothScopes(t *testing.T) {
	inner := &countingLedger{}
	c, _ := newTestCache(inner)
	ctx := context.Background()

	c.ListTransactions(ctx, domain.TransactionFilter{})
	c.DailyBalance(ctx, 2024, 3)

	if _, err := c.CreateTransaction(ctx, domain.TransactionCreate{Description: "x"}); err != nil {
		t.Fatalf("CreateTransaction() error: %v", err)
	}

	c.ListTransactions(ctx, domain.TransactionFilter{})
	c.DailyBalance(ctx, 2024, 3)
	lists, bals := inner.calls()
	if lists != 2 || bals != 2 {
		t.Errorf("inner calls after create = (%d, %d), want (2, 2)", lists, bals)
	}
}

func TestCreateTransaction_FailureKeepsCache(t *testing.T) {
	inner := &countingLedger{createErr: errors.New("boom")}
	c, _ := newTestCache(inner)
	ctx := context.Background()

	c.ListTransactions(ctx, domain.TransactionFilter{})
	if _, err := c.CreateTransaction(ctx, domain.TransactionCreate{}); err == nil {
		t.Fatal("CreateTransaction() should return the inner error")
	}
	c.ListTransactions(ctx, domain.TransactionFilter{})
	if lists, _ := inner.calls(); lists != 1 {
		t.Errorf("inner list calls = %d, want 1", lists)
	}
}

func TestUpdatePreferences_InvalidatesBalancesOnly(t *testing.T) {
	inner := &countingLedger{}
	c, _ := newTestCache(inner)
	ctx := context.Background()

	c.ListTransactions(ctx, domain.TransactionFilter{})
	c.DailyBalance(ctx, 2024, 3)
	c.UpdatePreferences(ctx, domain.DefaultPreferences())
	c.ListTransactions(ctx, domain.TransactionFilter{})
	c.DailyBalance(ctx, 2024, 3)

	lists, bals := inner.calls()
	if lists != 1 || bals != 2 {
		t.Errorf("inner calls = (%d, %d), want (1, 2)", lists, bals)
	}
}

func TestInvalidateDuringFetch_DoesNotStoreStaleResult(t *testing.T) {
	inner := &countingLedger{release: make(chan struct{})}
	c, _ := newTestCache(inner)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		c.DailyBalance(ctx, 2024, 3)
		close(done)
	}()

	// Wait until the fetch is in flight, then invalidate.
	for {
		if _, bals := inner.calls(); bals == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}
	c.InvalidateDailyBalance()
	close(inner.release)
	<-done

	inner.mu.Lock()
	inner.release = nil
	inner.mu.Unlock()

	c.DailyBalance(ctx, 2024, 3)
	if _, bals := inner.calls(); bals != 2 {
		t.Errorf("inner balance calls = %d, want 2 (stale fill must be dropped)", bals)
	}
}
