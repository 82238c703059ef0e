package balance

import (
	"context"
	"fmt"
	"time"

	"github.com/moneytime-app/moneytime/internal/domain"
	"github.com/moneytime-app/moneytime/internal/infra/observability"
)

// PreviewSource supplies the live previews merged into each reconstruction.
type PreviewSource interface {
	List() []domain.PreviewTransaction
}

// Service fetches authoritative balances and overlays live previews.
type Service struct {
	ledger   domain.Ledger
	previews PreviewSource
}

// NewService creates a balance service. previews may be nil.
func NewService(ledger domain.Ledger, previews PreviewSource) *Service {
	return &Service{ledger: ledger, previews: previews}
}

// Month returns the reconstructed series for year/month.
func (s *Service) Month(ctx context.Context, year, month int) ([]domain.DailyBalance, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d out of range", domain.ErrInvalidDate, month)
	}
	start := time.Now()
	defer func() { observability.ReconstructDuration.Observe(time.Since(start).Seconds()) }()

	server, err := s.ledger.DailyBalance(ctx, year, month)
	if err != nil {
		return nil, fmt.Errorf("daily balance %04d-%02d: %w", year, month, err)
	}
	prefs, err := s.ledger.GetPreferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("preferences: %w", err)
	}

	var previews []domain.PreviewTransaction
	if s.previews != nil {
		previews = s.previews.List()
	}
	return Reconstruct(server, previews, year, month, prefs), nil
}

// Calendar returns the month grid with reconstructed balances.
func (s *Service) Calendar(ctx context.Context, year, month int, today string) ([]CalendarDay, error) {
	series, err := s.Month(ctx, year, month)
	if err != nil {
		return nil, err
	}
	return BuildCalendar(year, month, series, today), nil
}
