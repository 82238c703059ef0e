package preview

import (
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneytime-app/moneytime/internal/domain"
)

// Entry is one row of the transaction list: either a persisted transaction
// or a live preview folded in beside them.
type Entry struct {
	ID               string                 `json:"id"`
	Description      string                 `json:"description"`
	Amount           decimal.Decimal        `json:"amount"`
	Type             domain.TransactionType `json:"type"`
	TransactionDate  string                 `json:"transaction_date"`
	CategoryID       *int64                 `json:"category_id,omitempty"`
	Category         *domain.Category       `json:"category,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	IsPreview        bool                   `json:"is_preview"`
	ExpiresAt        *time.Time             `json:"expires_at,omitempty"`
	SecondsRemaining int                    `json:"seconds_remaining,omitempty"`
}

// Filter keeps previews matching the same filter the server applied to the
// persisted list, so a filtered view never shows unrelated drafts.
func Filter(previews []domain.PreviewTransaction, f domain.TransactionFilter) []domain.PreviewTransaction {
	out := make([]domain.PreviewTransaction, 0, len(previews))
	for _, p := range previews {
		if f.OnDate != "" && p.TransactionDate != f.OnDate {
			continue
		}
		if f.CategoryID != 0 && (p.CategoryID == nil || *p.CategoryID != f.CategoryID) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Merge folds previews into the persisted list and orders the result:
// today first, then upcoming days ascending, then past days most recent first.
// Rows on the same day keep their input order, persisted before previews.
func Merge(real []domain.Transaction, previews []domain.PreviewTransaction, today string, now time.Time) []Entry {
	out := make([]Entry, 0, len(real)+len(previews))
	for _, t := range real {
		out = append(out, Entry{
			ID:              strconv.FormatInt(t.ID, 10),
			Description:     t.Description,
			Amount:          t.Amount,
			Type:            t.Type,
			TransactionDate: t.TransactionDate,
			CategoryID:      t.CategoryID,
			Category:        t.Category,
			CreatedAt:       t.CreatedAt,
		})
	}
	for _, p := range previews {
		expires := p.ExpiresAt
		out = append(out, Entry{
			ID:               p.ID,
			Description:      p.Description,
			Amount:           p.Amount,
			Type:             p.Type,
			TransactionDate:  p.TransactionDate,
			CategoryID:       p.CategoryID,
			CreatedAt:        p.CreatedAt,
			IsPreview:        true,
			ExpiresAt:        &expires,
			SecondsRemaining: int(p.Remaining(now).Round(time.Second) / time.Second),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return listBefore(out[i].TransactionDate, out[j].TransactionDate, today)
	})
	return out
}

// listBefore orders two ISO dates relative to today.
func listBefore(a, b, today string) bool {
	aToday, bToday := a == today, b == today
	if aToday || bToday {
		return aToday && !bToday
	}
	aFuture, bFuture := a > today, b > today
	switch {
	case aFuture && bFuture:
		return a < b
	case !aFuture && !bFuture:
		return a > b
	default:
		return aFuture
	}
}
