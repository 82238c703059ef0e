package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ─── Preview Transactions ───────────────────────────────────────────────────

// PreviewIDPrefix tags client-generated preview ids so they never collide
// with the server's integer ids.
const PreviewIDPrefix = "preview-"

// IsPreviewID reports whether id belongs to a preview transaction.
func IsPreviewID(id string) bool {
	return strings.HasPrefix(id, PreviewIDPrefix)
}

// PreviewTransaction is a client-owned, time-bounded draft transaction.
// It is visible iff now < ExpiresAt and carries no server identity until promoted.
type PreviewTransaction struct {
	ID              string          `json:"id"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	Type            TransactionType `json:"type"`
	TransactionDate string          `json:"transaction_date"`
	CategoryID      *int64          `json:"category_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// Visible reports whether the preview is still live at now.
func (p PreviewTransaction) Visible(now time.Time) bool {
	return now.Before(p.ExpiresAt)
}

// Remaining is the time left before expiry, never negative.
// Countdown displays compute this on their own tick instead of trusting sweeps.
func (p PreviewTransaction) Remaining(now time.Time) time.Duration {
	if d := p.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// SignedAmount returns the preview's impact on the balance.
func (p PreviewTransaction) SignedAmount() decimal.Decimal {
	return Signed(p.Type, p.Amount)
}

// Create returns the create-transaction payload used for promotion.
func (p PreviewTransaction) Create() TransactionCreate {
	return TransactionCreate{
		Description:     p.Description,
		Amount:          p.Amount,
		Type:            p.Type,
		TransactionDate: p.TransactionDate,
		CategoryID:      p.CategoryID,
	}
}

// PreviewEventType names a preview lifecycle transition.
type PreviewEventType string

const (
	PreviewAdded    PreviewEventType = "added"
	PreviewRemoved  PreviewEventType = "removed"
	PreviewPromoted PreviewEventType = "promoted"
	PreviewExpired  PreviewEventType = "expired"
)

// PreviewEvent is published whenever a preview enters or leaves the live set.
type PreviewEvent struct {
	Type          PreviewEventType   `json:"type"`
	Preview       PreviewTransaction `json:"preview"`
	TransactionID int64              `json:"transaction_id,omitempty"`
	At            time.Time          `json:"at"`
}
