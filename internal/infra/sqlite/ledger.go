package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/moneytime-app/moneytime/internal/domain"
)

var _ domain.Ledger = (*DB)(nil)

const timeLayout = "2006-01-02T15:04:05Z"

func nowText() string { return time.Now().UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func ptrInt64(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// ─── Transactions ───────────────────────────────────────────────────────────

const transactionColumns = `
	t.id, t.description, t.amount, t.type, t.transaction_date, t.category_id,
	t.created_at, t.updated_at, c.id, c.name, c.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var (
		tx                 domain.Transaction
		amount, created    string
		updated            sql.NullString
		categoryID         sql.NullInt64
		catID              sql.NullInt64
		catName, catCreate sql.NullString
	)
	err := row.Scan(&tx.ID, &tx.Description, &amount, &tx.Type, &tx.TransactionDate, &categoryID,
		&created, &updated, &catID, &catName, &catCreate)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %d amount %q: %w", tx.ID, amount, err)
	}
	tx.CategoryID = ptrInt64(categoryID)
	tx.CreatedAt = parseTime(created)
	if updated.Valid {
		u := parseTime(updated.String)
		tx.UpdatedAt = &u
	}
	if catID.Valid {
		tx.Category = &domain.Category{ID: catID.Int64, Name: catName.String, CreatedAt: parseTime(catCreate.String)}
	}
	return tx, nil
}

// ListTransactions returns transactions newest date first.
func (db *DB) ListTransactions(ctx context.Context, f domain.TransactionFilter) ([]domain.Transaction, error) {
	var (
		where []string
		args  []any
	)
	if f.OnDate != "" {
		where = append(where, "t.transaction_date = ?")
		args = append(args, f.OnDate)
	}
	if f.CategoryID != 0 {
		where = append(where, "t.category_id = ?")
		args = append(args, f.CategoryID)
	}

	q := `SELECT ` + transactionColumns + `
		FROM transactions t LEFT JOIN categories c ON c.id = t.category_id`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY t.transaction_date DESC, t.id DESC"

	limit := f.Limit
	if limit <= 0 {
		limit = -1
	}
	q += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Skip)

	rows, err := db.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// GetTransaction returns one transaction or domain.ErrNotFound.
func (db *DB) GetTransaction(ctx context.Context, id int64) (*domain.Transaction, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+transactionColumns+`
		FROM transactions t LEFT JOIN categories c ON c.id = t.category_id
		WHERE t.id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CreateTransaction validates and inserts a transaction.
func (db *DB) CreateTransaction(ctx context.Context, c domain.TransactionCreate) (*domain.Transaction, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	res, err := db.db.ExecContext(ctx, `
		INSERT INTO transactions (description, amount, type, transaction_date, category_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.Description, c.Amount.String(), c.Type, c.TransactionDate, nullInt64(c.CategoryID), nowText())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return db.GetTransaction(ctx, id)
}

// UpdateTransaction applies the non-nil fields of u.
func (db *DB) UpdateTransaction(ctx context.Context, id int64, u domain.TransactionUpdate) (*domain.Transaction, error) {
	cur, err := db.GetTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	next := domain.TransactionCreate{
		Description:     cur.Description,
		Amount:          cur.Amount,
		Type:            cur.Type,
		TransactionDate: cur.TransactionDate,
		CategoryID:      cur.CategoryID,
	}
	if u.Description != nil {
		next.Description = *u.Description
	}
	if u.Amount != nil {
		next.Amount = *u.Amount
	}
	if u.Type != nil {
		next.Type = *u.Type
	}
	if u.TransactionDate != nil {
		next.TransactionDate = *u.TransactionDate
	}
	if u.CategoryID != nil {
		next.CategoryID = u.CategoryID
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	_, err = db.db.ExecContext(ctx, `
		UPDATE transactions SET
			description = ?, amount = ?, type = ?, transaction_date = ?, category_id = ?, updated_at = ?
		WHERE id = ?
	`, next.Description, next.Amount.String(), next.Type, next.TransactionDate, nullInt64(next.CategoryID), nowText(), id)
	if err != nil {
		return nil, err
	}
	return db.GetTransaction(ctx, id)
}

// DeleteTransaction removes a transaction or returns domain.ErrNotFound.
func (db *DB) DeleteTransaction(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "transactions", id)
}

func (db *DB) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %d: %w", strings.TrimSuffix(table, "s"), id, domain.ErrNotFound)
	}
	return nil
}

// ─── Daily Balance ──────────────────────────────────────────────────────────

// DailyBalance mirrors the server: one entry per day of the month that has
// transactions, each the cumulative balance through that day including all
// earlier history. Days without activity are omitted.
func (db *DB) DailyBalance(ctx context.Context, year, month int) ([]domain.DailyBalance, error) {
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("%w: month %d out of range", domain.ErrInvalidDate, month)
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	start := domain.FormatDate(first)
	end := domain.FormatDate(first.AddDate(0, 1, -1))

	prefs, err := db.GetPreferences(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.db.QueryContext(ctx, `
		SELECT transaction_date, amount, type FROM transactions
		WHERE transaction_date <= ?
		ORDER BY transaction_date, id
	`, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out     []domain.DailyBalance
		running decimal.Decimal
	)
	for rows.Next() {
		var (
			date, amount string
			typ          domain.TransactionType
		)
		if err := rows.Scan(&date, &amount, &typ); err != nil {
			return nil, err
		}
		amt, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("amount %q on %s: %w", amount, date, err)
		}
		running = running.Add(domain.Signed(typ, amt))
		if date < start {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Date == date {
			out[n-1].Balance = running
			continue
		}
		out = append(out, domain.DailyBalance{Date: date, Balance: running})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Status = domain.StatusFor(out[i].Balance, prefs)
	}
	return out, nil
}

// ─── Preferences ────────────────────────────────────────────────────────────

// GetPreferences returns nil, nil until thresholds are saved.
func (db *DB) GetPreferences(ctx context.Context) (*domain.UserPreferences, error) {
	var bad, ok, good string
	err := db.db.QueryRowContext(ctx, `
		SELECT bad_threshold, ok_threshold, good_threshold FROM preferences WHERE id = 1
	`).Scan(&bad, &ok, &good)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var p domain.UserPreferences
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&p.BadThreshold, bad}, {&p.OkThreshold, ok}, {&p.GoodThreshold, good}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return nil, fmt.Errorf("preferences: %w", err)
		}
	}
	return &p, nil
}

// UpdatePreferences validates and stores thresholds.
func (db *DB) UpdatePreferences(ctx context.Context, p domain.UserPreferences) (*domain.UserPreferences, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO preferences (id, bad_threshold, ok_threshold, good_threshold, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			bad_threshold  = excluded.bad_threshold,
			ok_threshold   = excluded.ok_threshold,
			good_threshold = excluded.good_threshold,
			updated_at     = excluded.updated_at
	`, p.BadThreshold.String(), p.OkThreshold.String(), p.GoodThreshold.String(), nowText())
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ─── Categories ─────────────────────────────────────────────────────────────

// ListCategories returns categories by name.
func (db *DB) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := db.db.QueryContext(ctx, `SELECT id, name, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var (
			c       domain.Category
			created string
		)
		if err := rows.Scan(&c.ID, &c.Name, &created); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(created)
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCategory inserts a category. Names are unique.
func (db *DB) CreateCategory(ctx context.Context, c domain.CategoryCreate) (*domain.Category, error) {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", domain.ErrRejected)
	}
	created := nowText()
	res, err := db.db.ExecContext(ctx, `INSERT INTO categories (name, created_at) VALUES (?, ?)`, name, created)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("%w: category %q already exists", domain.ErrRejected, name)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &domain.Category{ID: id, Name: name, CreatedAt: parseTime(created)}, nil
}

// DeleteCategory removes a category; its transactions become uncategorized.
func (db *DB) DeleteCategory(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "categories", id)
}

// ─── Recurring ──────────────────────────────────────────────────────────────

const recurringColumns = `id, description, amount, type, frequency, interval, start_date, end_date,
	weekday, day_of_month, category_id, next_run_date, created_at`

func scanRecurring(row rowScanner) (domain.Recurring, error) {
	var (
		r                         domain.Recurring
		amount, created           string
		endDate, nextRun          sql.NullString
		weekday, dayOfMonth, catI sql.NullInt64
	)
	err := row.Scan(&r.ID, &r.Description, &amount, &r.Type, &r.Frequency, &r.Interval, &r.StartDate,
		&endDate, &weekday, &dayOfMonth, &catI, &nextRun, &created)
	if err != nil {
		return domain.Recurring{}, err
	}
	if r.Amount, err = decimal.NewFromString(amount); err != nil {
		return domain.Recurring{}, fmt.Errorf("recurring %d amount: %w", r.ID, err)
	}
	if endDate.Valid {
		r.EndDate = &endDate.String
	}
	if nextRun.Valid {
		r.NextRunDate = &nextRun.String
	}
	if weekday.Valid {
		v := int(weekday.Int64)
		r.Weekday = &v
	}
	if dayOfMonth.Valid {
		v := int(dayOfMonth.Int64)
		r.DayOfMonth = &v
	}
	r.CategoryID = ptrInt64(catI)
	r.CreatedAt = parseTime(created)
	return r, nil
}

// ListRecurring returns all rules in creation order.
func (db *DB) ListRecurring(ctx context.Context) ([]domain.Recurring, error) {
	return listRecurring(ctx, db.db)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRecurring(ctx context.Context, q queryer) ([]domain.Recurring, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+recurringColumns+` FROM recurring ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Recurring
	for rows.Next() {
		r, err := scanRecurring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CreateRecurring validates and stores a rule with its first run date.
func (db *DB) CreateRecurring(ctx context.Context, rc domain.RecurringCreate) (*domain.Recurring, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	first, err := rc.First()
	if err != nil {
		return nil, err
	}
	next := domain.FormatDate(first)

	var weekday, dom sql.NullInt64
	if rc.Weekday != nil {
		weekday = sql.NullInt64{Int64: int64(*rc.Weekday), Valid: true}
	}
	if rc.DayOfMonth != nil {
		dom = sql.NullInt64{Int64: int64(*rc.DayOfMonth), Valid: true}
	}
	var endDate sql.NullString
	if rc.EndDate != nil {
		endDate = sql.NullString{String: *rc.EndDate, Valid: true}
	}

	res, err := db.db.ExecContext(ctx, `
		INSERT INTO recurring (description, amount, type, frequency, interval, start_date, end_date,
			weekday, day_of_month, category_id, next_run_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rc.Description, rc.Amount.String(), rc.Type, rc.Frequency, rc.Interval, rc.StartDate, endDate,
		weekday, dom, nullInt64(rc.CategoryID), next, nowText())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	r, err := scanRecurring(db.db.QueryRowContext(ctx, `SELECT `+recurringColumns+` FROM recurring WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteRecurring removes a rule. Transactions it created stay.
func (db *DB) DeleteRecurring(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "recurring", id)
}

// MaterializeRecurring creates every pending occurrence up to and including
// upToDate and advances each rule's next run date. Rules are read and
// advanced inside one immediate transaction, so concurrent runs against the
// same file never create an occurrence twice.
func (db *DB) MaterializeRecurring(ctx context.Context, upToDate string) (domain.MaterializeResult, error) {
	upTo, err := domain.ParseDate(upToDate)
	if err != nil {
		return domain.MaterializeResult{}, err
	}

	sqlTx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.MaterializeResult{}, err
	}
	defer sqlTx.Rollback()

	rules, err := listRecurring(ctx, sqlTx)
	if err != nil {
		return domain.MaterializeResult{}, err
	}

	created := 0
	for _, r := range rules {
		if r.NextRunDate == nil {
			continue
		}
		next, err := domain.ParseDate(*r.NextRunDate)
		if err != nil {
			return domain.MaterializeResult{}, fmt.Errorf("recurring %d: %w", r.ID, err)
		}
		start := next
		for !next.After(upTo) && !r.Ended(next) {
			_, err := sqlTx.ExecContext(ctx, `
				INSERT INTO transactions (description, amount, type, transaction_date, category_id, recurring_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, r.Description, r.Amount.String(), r.Type, domain.FormatDate(next), nullInt64(r.CategoryID), r.ID, nowText())
			if err != nil {
				return domain.MaterializeResult{}, err
			}
			created++
			next = r.Next(next)
		}
		if next.Equal(start) {
			continue
		}

		var nextRun sql.NullString
		if !r.Ended(next) {
			nextRun = sql.NullString{String: domain.FormatDate(next), Valid: true}
		}
		if _, err := sqlTx.ExecContext(ctx, `UPDATE recurring SET next_run_date = ? WHERE id = ?`, nextRun, r.ID); err != nil {
			return domain.MaterializeResult{}, err
		}
	}

	if err := sqlTx.Commit(); err != nil {
		return domain.MaterializeResult{}, err
	}
	if created > 0 {
		log.Printf("[sqlite] materialized %d recurring transactions up to %s", created, upToDate)
	}
	return domain.MaterializeResult{Created: created}, nil
}
