package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ─── Balance Status ─────────────────────────────────────────────────────────

// BalanceStatus is the qualitative tier of a daily balance.
// StatusNone means "no status known" and travels as JSON null; it is distinct
// from StatusUnconfigured, which the server uses when the user never set
// thresholds.
type BalanceStatus string

const (
	StatusNone         BalanceStatus = ""
	StatusRed          BalanceStatus = "red"
	StatusYellow       BalanceStatus = "yellow"
	StatusGreen        BalanceStatus = "green"
	StatusUnconfigured BalanceStatus = "unconfigured"
)

// MarshalJSON encodes StatusNone as null.
func (s BalanceStatus) MarshalJSON() ([]byte, error) {
	if s == StatusNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(s))
}

// UnmarshalJSON decodes null as StatusNone.
func (s *BalanceStatus) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*s = StatusNone
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = BalanceStatus(v)
	return nil
}

// DailyBalance is the cumulative running balance as of one calendar day.
type DailyBalance struct {
	Date    string          `json:"date"`
	Balance decimal.Decimal `json:"balance"`
	Status  BalanceStatus   `json:"status"`
}

// ─── Preferences ────────────────────────────────────────────────────────────

// UserPreferences holds the per-user thresholds that drive status classification.
type UserPreferences struct {
	BadThreshold  decimal.Decimal `json:"bad_threshold"`
	OkThreshold   decimal.Decimal `json:"ok_threshold"`
	GoodThreshold decimal.Decimal `json:"good_threshold"`
}

// DefaultPreferences are the values a fresh profile form starts from.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		BadThreshold:  decimal.Zero,
		OkThreshold:   decimal.NewFromInt(500),
		GoodThreshold: decimal.NewFromInt(1500),
	}
}

// Validate enforces bad <= ok <= good.
func (p UserPreferences) Validate() error {
	if p.BadThreshold.GreaterThan(p.OkThreshold) {
		return fmt.Errorf("%w: bad (%s) is above ok (%s)", ErrInvalidThresholds, p.BadThreshold, p.OkThreshold)
	}
	if p.OkThreshold.GreaterThan(p.GoodThreshold) {
		return fmt.Errorf("%w: ok (%s) is above good (%s)", ErrInvalidThresholds, p.OkThreshold, p.GoodThreshold)
	}
	return nil
}

// Classify maps a balance to red/yellow/green. First match wins:
// >= good is green, >= ok is yellow, everything else is red.
// BadThreshold does not split the red tier.
func (p UserPreferences) Classify(balance decimal.Decimal) BalanceStatus {
	switch {
	case balance.GreaterThanOrEqual(p.GoodThreshold):
		return StatusGreen
	case balance.GreaterThanOrEqual(p.OkThreshold):
		return StatusYellow
	default:
		return StatusRed
	}
}

// StatusFor classifies balance with prefs, or reports unconfigured when the
// user has no thresholds.
func StatusFor(balance decimal.Decimal, prefs *UserPreferences) BalanceStatus {
	if prefs == nil {
		return StatusUnconfigured
	}
	return prefs.Classify(balance)
}
