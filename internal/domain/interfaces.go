package domain

import (
	"context"
	"io"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Ledger is the finance REST collaborator: the authoritative owner of
// transactions, categories, recurring rules and preferences.
type Ledger interface {
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, error)
	GetTransaction(ctx context.Context, id int64) (*Transaction, error)
	CreateTransaction(ctx context.Context, c TransactionCreate) (*Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, u TransactionUpdate) (*Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error

	// DailyBalance returns server-computed balances for a month.
	// Days without activity may be omitted.
	DailyBalance(ctx context.Context, year, month int) ([]DailyBalance, error)

	// GetPreferences returns nil, nil when the user never configured thresholds.
	GetPreferences(ctx context.Context) (*UserPreferences, error)
	UpdatePreferences(ctx context.Context, p UserPreferences) (*UserPreferences, error)

	ListCategories(ctx context.Context) ([]Category, error)
	CreateCategory(ctx context.Context, c CategoryCreate) (*Category, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListRecurring(ctx context.Context) ([]Recurring, error)
	CreateRecurring(ctx context.Context, r RecurringCreate) (*Recurring, error)
	DeleteRecurring(ctx context.Context, id int64) error
	MaterializeRecurring(ctx context.Context, upToDate string) (MaterializeResult, error)
}

// SmartParser is the opaque natural-language transaction oracle.
type SmartParser interface {
	ParseCommand(ctx context.Context, command string) (*SmartParseResult, error)
	ParseImage(ctx context.Context, filename string, r io.Reader) (*SmartParseResult, error)
	ParseAudio(ctx context.Context, filename string, r io.Reader) (*SmartParseResult, error)
}
