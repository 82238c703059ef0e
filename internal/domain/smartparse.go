package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// SmartParseResult is the oracle's structured guess for a free-form command.
type SmartParseResult struct {
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	TransactionDate string          `json:"transaction_date"`
	Confidence      float64         `json:"confidence"`
}

// Validate applies the only checks made on oracle output: every field present,
// amount > 0, type allowed. Anything else is a parse failure.
func (r *SmartParseResult) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: empty response", ErrParseFailed)
	}
	if strings.TrimSpace(r.Description) == "" || strings.TrimSpace(r.TransactionDate) == "" {
		return fmt.Errorf("%w: missing fields", ErrParseFailed)
	}
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than zero", ErrParseFailed)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrParseFailed, r.Type)
	}
	if _, err := ParseDate(r.TransactionDate); err != nil {
		return fmt.Errorf("%w: %v", ErrParseFailed, err)
	}
	return nil
}

// Create converts a validated result into a transaction payload.
func (r *SmartParseResult) Create() TransactionCreate {
	return TransactionCreate{
		Description:     r.Description,
		Amount:          r.Amount,
		Type:            r.Type,
		TransactionDate: r.TransactionDate,
	}
}
