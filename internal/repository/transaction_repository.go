package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/models"
)

type TransactionRepository struct {
	client db.Client
	loc    *time.Location
}

func NewTransactionRepository(client db.Client, loc *time.Location) *TransactionRepository {
	return &TransactionRepository{client: client, loc: loc}
}

func (r *TransactionRepository) AddTransaction(ctx context.Context, txn models.Transaction) (*models.Transaction, error) {
	if txn.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if txn.Kind != models.KindIncome && txn.Kind != models.KindExpense {
		return nil, fmt.Errorf("unknown transaction kind %q", txn.Kind)
	}

	var note any
	if strings.TrimSpace(txn.Note) != "" {
		note = txn.Note
	}

	err := r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		exists, err := userExists(tx, txn.UserID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUnknownUser
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO transactions (user_id, type, amount, category, note, date) VALUES (?, ?, ?, ?, ?, ?)`,
			txn.UserID, txn.Kind, txn.Amount, txn.Category, note, formatTS(txn.OccurredAt, r.loc))
		if err != nil {
			return fmt.Errorf("failed to add transaction: %w", err)
		}
		txn.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	txn.OccurredAt = parseTS(formatTS(txn.OccurredAt, r.loc), r.loc)
	return &txn, nil
}

// ListTransactions returns the newest first.
func (r *TransactionRepository) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT id, user_id, type, amount, category, note, date
		 FROM transactions WHERE user_id = ?
		 ORDER BY date DESC, id DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, r.client.Classify(err)
	}
	defer rows.Close()

	var txns []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var note sql.NullString
		var date string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Kind, &t.Amount, &t.Category, &note, &date); err != nil {
			return nil, r.client.Classify(err)
		}
		t.Note = note.String
		t.OccurredAt = parseTS(date, r.loc)
		txns = append(txns, t)
	}
	return txns, r.client.Classify(rows.Err())
}

// windowClause renders the date filter for a window.
func (r *TransactionRepository) windowClause(w models.Window, now time.Time) (string, []any) {
	from, to, bounded := w.Bounds(now.In(r.loc))
	if !bounded {
		return "", nil
	}
	return " AND date >= ? AND date < ?", []any{formatTS(from, r.loc), formatTS(to, r.loc)}
}

func (r *TransactionRepository) Totals(ctx context.Context, userID int64, w models.Window, now time.Time) (models.Totals, error) {
	clause, args := r.windowClause(w, now)
	var t models.Totals
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN type = 'income' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type = 'expense' THEN amount ELSE 0 END), 0)
		 FROM transactions WHERE user_id = ?`+clause,
		append([]any{userID}, args...)...,
	).Scan(&t.Income, &t.Expense)
	if err != nil {
		return models.Totals{}, r.client.Classify(err)
	}
	t.Balance = t.Income - t.Expense
	return t, nil
}

// CategoryBreakdown sums per category, largest total first. An empty kind covers both kinds.
func (r *TransactionRepository) CategoryBreakdown(ctx context.Context, userID int64, kind string, w models.Window, now time.Time) ([]models.CategoryTotal, error) {
	clause, args := r.windowClause(w, now)
	query := `SELECT category, COUNT(*), SUM(amount) FROM transactions WHERE user_id = ?`
	params := []any{userID}
	if kind != "" {
		query += ` AND type = ?`
		params = append(params, kind)
	}
	query += clause + ` GROUP BY category ORDER BY SUM(amount) DESC, category ASC`
	params = append(params, args...)

	rows, err := r.client.DB().QueryContext(ctx, query, params...)
	if err != nil {
		return nil, r.client.Classify(err)
	}
	defer rows.Close()

	var out []models.CategoryTotal
	for rows.Next() {
		var c models.CategoryTotal
		if err := rows.Scan(&c.Category, &c.Count, &c.Total); err != nil {
			return nil, r.client.Classify(err)
		}
		out = append(out, c)
	}
	return out, r.client.Classify(rows.Err())
}

func (r *TransactionRepository) Biggest(ctx context.Context, userID int64, kind string) (models.Biggest, error) {
	var b models.Biggest
	var note sql.NullString
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT amount, note FROM transactions WHERE user_id = ? AND type = ?
		 ORDER BY amount DESC, id ASC LIMIT 1`, userID, kind,
	).Scan(&b.Amount, &note)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Biggest{}, nil
	}
	if err != nil {
		return models.Biggest{}, r.client.Classify(err)
	}
	b.Found = true
	b.Note = note.String
	return b, nil
}

func (r *TransactionRepository) MostActiveDay(ctx context.Context, userID int64) (models.ActiveDay, error) {
	var d models.ActiveDay
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT substr(date, 1, 10) AS day, COUNT(*) AS cnt FROM transactions WHERE user_id = ?
		 GROUP BY day ORDER BY cnt DESC, day DESC LIMIT 1`, userID,
	).Scan(&d.Date, &d.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ActiveDay{}, nil
	}
	if err != nil {
		return models.ActiveDay{}, r.client.Classify(err)
	}
	d.Found = true
	return d, nil
}

func (r *TransactionRepository) Count(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE user_id = ?`, userID).Scan(&n)
	if err != nil {
		return 0, r.client.Classify(err)
	}
	return n, nil
}
