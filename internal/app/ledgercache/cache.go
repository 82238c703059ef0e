// Package ledgercache is a read-through cache in front of the finance
// collaborator. Transaction lists and daily balances are cached per query
// for a short TTL; every write passes through and drops the scopes it makes
// stale.
package ledgercache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/moneytime-app/moneytime/internal/domain"
	"github.com/moneytime-app/moneytime/internal/infra/observability"
)

// Cache scopes.
const (
	ScopeTransactions = "transactions"
	ScopeDailyBalance = "daily-balance"
)

// Config controls cache freshness.
type Config struct {
	TTL time.Duration    // How long a cached read is served (default: 30s)
	Now func() time.Time // Clock (default: time.Now)
}

// DefaultConfig returns the standard cache settings.
func DefaultConfig() Config {
	return Config{
		TTL: 30 * time.Second,
		Now: time.Now,
	}
}

type entry struct {
	value     any
	expiresAt time.Time
}

// scope holds the cached queries of one kind. gen is bumped on every
// invalidation so fetches that started earlier do not repopulate it.
type scope struct {
	name    string
	gen     uint64
	entries map[string]entry
}

// Ledger wraps a domain.Ledger with caching. It satisfies domain.Ledger and
// the preview store's Invalidator.
type Ledger struct {
	next domain.Ledger
	cfg  Config

	mu       sync.Mutex
	txs      *scope
	balances *scope
}

var _ domain.Ledger = (*Ledger)(nil)

// New creates a caching ledger in front of next.
func New(next domain.Ledger, cfg Config) *Ledger {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Ledger{
		next:     next,
		cfg:      cfg,
		txs:      &scope{name: ScopeTransactions, entries: make(map[string]entry)},
		balances: &scope{name: ScopeDailyBalance, entries: make(map[string]entry)},
	}
}

// ─── Invalidation ───────────────────────────────────────────────────────────

// InvalidateTransactions drops every cached transaction list.
func (l *Ledger) InvalidateTransactions() { l.invalidate(l.txs) }

// InvalidateDailyBalance drops every cached month of daily balances.
func (l *Ledger) InvalidateDailyBalance() { l.invalidate(l.balances) }

func (l *Ledger) invalidate(s *scope) {
	l.mu.Lock()
	s.gen++
	s.entries = make(map[string]entry)
	l.mu.Unlock()
	observability.CacheInvalidations.WithLabelValues(s.name).Inc()
}

func (l *Ledger) invalidateAll() {
	l.InvalidateTransactions()
	l.InvalidateDailyBalance()
}

// ─── Lookup ─────────────────────────────────────────────────────────────────

func (l *Ledger) lookup(s *scope, key string) (any, uint64, bool) {
	now := l.cfg.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := s.entries[key]
	if ok && now.Before(e.expiresAt) {
		observability.CacheLookups.WithLabelValues(s.name, "hit").Inc()
		return e.value, s.gen, true
	}
	if ok {
		delete(s.entries, key)
	}
	observability.CacheLookups.WithLabelValues(s.name, "miss").Inc()
	return nil, s.gen, false
}

func (l *Ledger) store(s *scope, key string, gen uint64, v any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s.gen != gen {
		return
	}
	s.entries[key] = entry{value: v, expiresAt: l.cfg.Now().Add(l.cfg.TTL)}
}

// ─── Cached Reads ───────────────────────────────────────────────────────────

// ListTransactions serves a cached list for the same filter when fresh.
func (l *Ledger) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error) {
	key := fmt.Sprintf("%s|%d|%d|%d", f.OnDate, f.CategoryID, f.Skip, f.Limit)
	v, gen, ok := l.lookup(l.txs, key)
	if ok {
		return append([]domain.Transaction(nil), v.([]domain.Transaction)...), nil
	}

	txs, err := l.next.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	l.store(l.txs, key, gen, append([]domain.Transaction(nil), txs...))
	return txs, nil
}

// DailyBalance serves a cached month when fresh.
func (l *Ledger) DailyBalance(ctx context.Context, year, month int) ([]domain.DailyBalance, error) {
	key := fmt.Sprintf("%04d-%02d", year, month)
	v, gen, ok := l.lookup(l.balances, key)
	if ok {
		return append([]domain.DailyBalance(nil), v.([]domain.DailyBalance)...), nil
	}

	series, err := l.next.DailyBalance(ctx, year, month)
	if err != nil {
		return nil, err
	}
	l.store(l.balances, key, gen, append([]domain.DailyBalance(nil), series...))
	return series, nil
}

// ─── Pass-through Writes ────────────────────────────────────────────────────

func (l *Ledger) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	return l.next.GetTransaction(ctx, id)
}

func (l *Ledger) CreateTransaction(ctx context.Context, c domain.TransactionCreate) (*domain.Transaction, error) {
	tx, err := l.next.CreateTransaction(ctx, c)
	if err == nil {
		l.invalidateAll()
	}
	return tx, err
}

func (l *Ledger) UpdateTransaction(ctx context.Context, id int64, u domain.TransactionUpdate) (*domain.Transaction, error) {
	tx, err := l.next.UpdateTransaction(ctx, id, u)
	if err == nil {
		l.invalidateAll()
	}
	return tx, err
}

func (l *Ledger) DeleteTransaction(ctx context.Context, id int64) error {
	err := l.next.DeleteTransaction(ctx, id)
	if err == nil {
		l.invalidateAll()
	}
	return err
}

func (l *Ledger) GetPreferences(ctx context.Context) (*domain.UserPreferences, error) {
	return l.next.GetPreferences(ctx)
}

// UpdatePreferences drops cached balances since their status depends on
// the thresholds.
func (l *Ledger) UpdatePreferences(ctx context.Context, p domain.UserPreferences) (*domain.UserPreferences, error) {
	out, err := l.next.UpdatePreferences(ctx, p)
	if err == nil {
		l.InvalidateDailyBalance()
	}
	return out, err
}

func (l *Ledger) ListCategories(ctx context.Context) ([]domain.Category, error) {
	return l.next.ListCategories(ctx)
}

func (l *Ledger) CreateCategory(ctx context.Context, c domain.CategoryCreate) (*domain.Category, error) {
	return l.next.CreateCategory(ctx, c)
}

// DeleteCategory drops cached transaction lists, which embed categories.
func (l *Ledger) DeleteCategory(ctx context.Context, id int64) error {
	err := l.next.DeleteCategory(ctx, id)
	if err == nil {
		l.InvalidateTransactions()
	}
	return err
}

func (l *Ledger) ListRecurring(ctx context.Context) ([]domain.Recurring, error) {
	return l.next.ListRecurring(ctx)
}

func (l *Ledger) CreateRecurring(ctx context.Context, r domain.RecurringCreate) (*domain.Recurring, error) {
	return l.next.CreateRecurring(ctx, r)
}

func (l *Ledger) DeleteRecurring(ctx context.Context, id int64) error {
	return l.next.DeleteRecurring(ctx, id)
}

func (l *Ledger) MaterializeRecurring(ctx context.Context, upToDate string) (domain.MaterializeResult, error) {
	res, err := l.next.MaterializeRecurring(ctx, upToDate)
	if err == nil && res.Created > 0 {
		log.Printf("[ledgercache] %d recurring transactions materialized, dropping cache", res.Created)
		l.invalidateAll()
	}
	return res, err
}
