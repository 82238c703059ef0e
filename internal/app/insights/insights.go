// Package insights analyses a month of transactions and produces spending
// tips: where the money goes, how much of the income is kept, and which
// expenses stand out.
package insights

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moneytime-app/moneytime/internal/domain"
)

// Kind grades an insight.
type Kind string

const (
	KindWarning Kind = "warning"
	KindTip     Kind = "tip"
	KindSuccess Kind = "success"
)

// Spending buckets, matched by keywords in the description.
const (
	BucketTransport     = "Transporte"
	BucketFood          = "Alimentação"
	BucketSubscriptions = "Assinaturas"
	BucketFixedBills    = "Contas Fixas"
	BucketHealth        = "Saúde"
	BucketOther         = "Outros"
)

const (
	topicSavings      = "Economia"
	topicHighExpenses = "Gastos Altos"
)

// bucketKeywords is checked in order; the first bucket with a matching
// keyword wins.
var bucketKeywords = []struct {
	bucket   string
	keywords []string
}{
	{BucketTransport, []string{"uber", "taxi", "transporte", "gasolina", "combustivel"}},
	{BucketFood, []string{"mercado", "supermercado", "alimentação", "restaurante", "delivery", "ifood"}},
	{BucketSubscriptions, []string{"netflix", "spotify", "disney", "prime", "assinatura"}},
	{BucketFixedBills, []string{"energia", "agua", "luz", "internet", "aluguel"}},
	{BucketHealth, []string{"farmacia", "remedio", "medico", "saude"}},
}

var hundred = decimal.NewFromInt(100)

// Insight is one piece of advice.
type Insight struct {
	Kind       Kind             `json:"type"`
	Topic      string           `json:"category"`
	Message    string           `json:"message"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Percentage *float64         `json:"percentage,omitempty"`
}

// Pattern is the spending of one bucket.
type Pattern struct {
	Name       string          `json:"name"`
	Amount     decimal.Decimal `json:"amount"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

// Summary holds the month's totals.
type Summary struct {
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	Balance          decimal.Decimal `json:"balance"`
	SavingsRate      float64         `json:"savings_rate"`
	TransactionCount int             `json:"transaction_count"`
	ExpenseCount     int             `json:"expense_count"`
	IncomeCount      int             `json:"income_count"`
	AvgExpense       decimal.Decimal `json:"avg_expense"`
	HighExpenseCount int             `json:"high_expense_count"`
	Patterns         []Pattern       `json:"patterns"`
}

// Analysis is the full result for a month.
type Analysis struct {
	Insights []Insight `json:"insights"`
	Summary  Summary   `json:"summary"`
}

// Bucket classifies an expense description.
func Bucket(description string) string {
	desc := strings.ToLower(description)
	for _, b := range bucketKeywords {
		for _, kw := range b.keywords {
			if strings.Contains(desc, kw) {
				return b.bucket
			}
		}
	}
	return BucketOther
}

// InMonth keeps the transactions dated in year/month.
func InMonth(txs []domain.Transaction, year, month int) []domain.Transaction {
	prefix := fmt.Sprintf("%04d-%02d-", year, month)
	var out []domain.Transaction
	for _, tx := range txs {
		if strings.HasPrefix(tx.TransactionDate, prefix) {
			out = append(out, tx)
		}
	}
	return out
}

// Analyze computes totals, spending patterns and insights for txs, which
// should already be limited to one month.
func Analyze(txs []domain.Transaction) Analysis {
	var s Summary
	s.TransactionCount = len(txs)

	var expenses []domain.Transaction
	byBucket := make(map[string]*Pattern)
	for _, tx := range txs {
		switch tx.Type {
		case domain.Income:
			s.IncomeCount++
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case domain.Expense:
			s.ExpenseCount++
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
			expenses = append(expenses, tx)

			name := Bucket(tx.Description)
			p, ok := byBucket[name]
			if !ok {
				p = &Pattern{Name: name}
				byBucket[name] = p
			}
			p.Amount = p.Amount.Add(tx.Amount)
			p.Count++
		}
	}
	s.Balance = s.TotalIncome.Sub(s.TotalExpenses)
	if s.TotalIncome.IsPositive() {
		s.SavingsRate = percent(s.Balance, s.TotalIncome)
	}

	s.Patterns = make([]Pattern, 0, len(byBucket))
	for _, p := range byBucket {
		p.Percentage = percent(p.Amount, s.TotalExpenses)
		s.Patterns = append(s.Patterns, *p)
	}
	sort.Slice(s.Patterns, func(i, j int) bool {
		if c := s.Patterns[i].Amount.Cmp(s.Patterns[j].Amount); c != 0 {
			return c > 0
		}
		return s.Patterns[i].Name < s.Patterns[j].Name
	})

	var out []Insight
	out = append(out, patternInsights(s.Patterns)...)
	if in, ok := savingsInsight(s); ok {
		out = append(out, in)
	}

	if len(expenses) > 0 {
		s.AvgExpense = s.TotalExpenses.Div(decimal.NewFromInt(int64(len(expenses))))
		limit := s.AvgExpense.Mul(decimal.NewFromInt(2))
		for _, tx := range expenses {
			if tx.Amount.GreaterThan(limit) {
				s.HighExpenseCount++
			}
		}
		if s.HighExpenseCount > 0 {
			out = append(out, Insight{
				Kind:    KindTip,
				Topic:   topicHighExpenses,
				Message: fmt.Sprintf("Você teve %d transação(ões) com valores acima da média. Revise se eram realmente necessárias.", s.HighExpenseCount),
			})
		}
	}

	return Analysis{Insights: out, Summary: s}
}

// patternInsights grades the three largest buckets. A bucket above 40% of
// spending is a warning, above 25% a tip; otherwise only the largest bucket
// gets a success note.
func patternInsights(patterns []Pattern) []Insight {
	var out []Insight
	for i, p := range patterns {
		if i == 3 {
			break
		}
		amount, pct := p.Amount, p.Percentage
		in := Insight{Topic: p.Name, Amount: &amount, Percentage: &pct}
		switch {
		case pct > 40:
			in.Kind = KindWarning
			in.Message = fmt.Sprintf("Você está gastando muito com %s. Representa %.0f%% dos seus gastos totais. Considere revisar esses gastos.", p.Name, pct)
		case pct > 25:
			in.Kind = KindTip
			in.Message = fmt.Sprintf("%s é uma das suas maiores despesas (%.0f%%). Há oportunidades de economia aqui.", p.Name, pct)
		case i == 0:
			in.Kind = KindSuccess
			in.Message = fmt.Sprintf("Seus gastos com %s estão bem distribuídos (%.0f%%). Continue assim!", p.Name, pct)
		default:
			continue
		}
		out = append(out, in)
	}
	return out
}

func savingsInsight(s Summary) (Insight, bool) {
	balance, rate := s.Balance, s.SavingsRate
	in := Insight{Topic: topicSavings, Amount: &balance, Percentage: &rate}
	switch {
	case s.TotalIncome.IsPositive() && rate < 10:
		in.Kind = KindWarning
		in.Message = fmt.Sprintf("Você está economizando apenas %.0f%% da sua renda. Tente aumentar para pelo menos 20%%.", rate)
	case rate >= 20:
		in.Kind = KindSuccess
		in.Message = fmt.Sprintf("Parabéns! Você está economizando %.0f%% da sua renda. Continue assim!", rate)
	default:
		return Insight{}, false
	}
	return in, true
}

func percent(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	return part.Mul(hundred).Div(whole).InexactFloat64()
}

// ─── Service ────────────────────────────────────────────────────────────────

// TransactionLister is the part of the ledger the analysis reads.
type TransactionLister interface {
	ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error)
}

// Service loads a month of transactions and analyses it.
type Service struct {
	ledger TransactionLister
}

// NewService creates an insights service.
func NewService(ledger TransactionLister) *Service {
	return &Service{ledger: ledger}
}

// Month analyses the persisted transactions of year/month.
func (s *Service) Month(ctx context.Context, year, month int) (Analysis, error) {
	if month < 1 || month > 12 {
		return Analysis{}, fmt.Errorf("%w: month %d out of range", domain.ErrInvalidDate, month)
	}
	txs, err := s.ledger.ListTransactions(ctx, domain.TransactionFilter{})
	if err != nil {
		return Analysis{}, fmt.Errorf("list transactions: %w", err)
	}
	return Analyze(InMonth(txs, year, month)), nil
}
