// Package domain contains pure business types with ZERO infrastructure imports.
// Money is the one exception: amounts are decimal.Decimal so that cumulative
// balances never drift the way float sums do.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The REST API speaks JSON numbers for amounts, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// ─── Transaction Types ──────────────────────────────────────────────────────

// TransactionType is the direction of a money movement.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// Valid reports whether t is one of the two allowed types.
func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

// Transaction is a persisted, server-owned money movement.
// Amount is always a positive magnitude; Type carries the sign.
type Transaction struct {
	ID              int64           `json:"id"`
	UserID          int64           `json:"user_id,omitempty"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	TransactionDate string          `json:"transaction_date"`
	CategoryID      *int64          `json:"category_id,omitempty"`
	Category        *Category       `json:"category,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       *time.Time      `json:"updated_at,omitempty"`
}

// SignedAmount returns +amount for income and -amount for expense.
func (t Transaction) SignedAmount() decimal.Decimal {
	return Signed(t.Type, t.Amount)
}

// TransactionCreate is the payload for creating a transaction.
type TransactionCreate struct {
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	TransactionDate string          `json:"transaction_date"`
	CategoryID      *int64          `json:"category_id,omitempty"`
}

// Validate checks the payload shape before it is sent anywhere.
func (c TransactionCreate) Validate() error {
	if strings.TrimSpace(c.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidTransaction)
	}
	if !c.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrInvalidTransaction)
	}
	if !c.Type.Valid() {
		return fmt.Errorf("%w: type must be income or expense", ErrInvalidTransaction)
	}
	if _, err := ParseDate(c.TransactionDate); err != nil {
		return err
	}
	return nil
}

// TransactionUpdate is a partial update; nil fields are left unchanged.
type TransactionUpdate struct {
	Description     *string          `json:"description,omitempty"`
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	Type            *TransactionType `json:"type,omitempty"`
	TransactionDate *string          `json:"transaction_date,omitempty"`
	CategoryID      *int64           `json:"category_id,omitempty"`
}

// TransactionFilter narrows ListTransactions. Zero values mean "no filter".
type TransactionFilter struct {
	OnDate     string
	CategoryID int64
	Skip       int
	Limit      int
}

// Signed applies the sign implied by typ to a positive magnitude.
func Signed(typ TransactionType, amount decimal.Decimal) decimal.Decimal {
	if typ == Expense {
		return amount.Neg()
	}
	return amount
}

// ─── Categories ─────────────────────────────────────────────────────────────

// Category groups transactions.
type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UserID    int64     `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryCreate is the payload for creating or renaming a category.
type CategoryCreate struct {
	Name string `json:"name"`
}

// ─── Recurring ──────────────────────────────────────────────────────────────

// RecurringFrequency is the base period of a recurring rule.
type RecurringFrequency string

const (
	Daily   RecurringFrequency = "daily"
	Weekly  RecurringFrequency = "weekly"
	Monthly RecurringFrequency = "monthly"
)

// RecurringCreate is the payload for a new recurring rule.
type RecurringCreate struct {
	Description string             `json:"description"`
	Amount      decimal.Decimal    `json:"amount"`
	Type        TransactionType    `json:"type"`
	Frequency   RecurringFrequency `json:"frequency"`
	Interval    int                `json:"interval"`
	StartDate   string             `json:"start_date"`
	EndDate     *string            `json:"end_date,omitempty"`
	Weekday     *int               `json:"weekday,omitempty"`
	DayOfMonth  *int               `json:"day_of_month,omitempty"`
	CategoryID  *int64             `json:"category_id,omitempty"`
}

// Validate checks a recurring rule before it is stored.
func (r RecurringCreate) Validate() error {
	if strings.TrimSpace(r.Description) == "" || !r.Amount.IsPositive() || !r.Type.Valid() {
		return fmt.Errorf("%w: description, positive amount and type are required", ErrInvalidTransaction)
	}
	switch r.Frequency {
	case Daily, Weekly, Monthly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidTransaction, r.Frequency)
	}
	if r.Interval < 1 {
		return fmt.Errorf("%w: interval must be at least 1", ErrInvalidTransaction)
	}
	if _, err := ParseDate(r.StartDate); err != nil {
		return err
	}
	if r.EndDate != nil {
		if _, err := ParseDate(*r.EndDate); err != nil {
			return err
		}
	}
	if r.Weekday != nil && (*r.Weekday < 0 || *r.Weekday > 6) {
		return fmt.Errorf("%w: weekday must be 0-6", ErrInvalidTransaction)
	}
	if r.DayOfMonth != nil && (*r.DayOfMonth < 1 || *r.DayOfMonth > 31) {
		return fmt.Errorf("%w: day_of_month must be 1-31", ErrInvalidTransaction)
	}
	return nil
}

// Recurring is a stored rule that materializes into transactions over time.
type Recurring struct {
	ID int64 `json:"id"`
	RecurringCreate
	UserID      int64     `json:"user_id,omitempty"`
	NextRunDate *string   `json:"next_run_date,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MaterializeResult reports how many transactions a materialize call created.
type MaterializeResult struct {
	Created int `json:"created"`
}

// ─── Dates ──────────────────────────────────────────────────────────────────

// ParseDate parses a date-only ISO string (YYYY-MM-DD) as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders the date part of t as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(time.DateOnly)
}
