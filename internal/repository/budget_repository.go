package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/models"
)

type BudgetRepository struct {
	client db.Client
	loc    *time.Location
}

func NewBudgetRepository(client db.Client, loc *time.Location) *BudgetRepository {
	return &BudgetRepository{client: client, loc: loc}
}

const budgetColumns = `id, user_id, category, amount, spent, period, created_at`

func (r *BudgetRepository) CreateBudget(ctx context.Context, userID int64, category string, amount int64, period string, now time.Time) (*models.Budget, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if period == "" {
		period = models.PeriodMonthly
	}
	var cat any
	if category != "" {
		cat = category
	}
	ts := formatTS(now, r.loc)
	budget := &models.Budget{
		UserID:    userID,
		Category:  category,
		Amount:    amount,
		Period:    period,
		CreatedAt: parseTS(ts, r.loc),
	}
	err := r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		exists, err := userExists(tx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUnknownUser
		}
		res, err := tx.ExecContext(ctx,
			`INSERT INTO budgets (user_id, category, amount, spent, period, created_at) VALUES (?, ?, ?, 0, ?, ?)`,
			userID, cat, amount, period, ts)
		if err != nil {
			return fmt.Errorf("failed to create budget: %w", err)
		}
		budget.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return budget, nil
}

func (r *BudgetRepository) scanBudget(row interface{ Scan(...any) error }) (models.Budget, error) {
	var b models.Budget
	var category sql.NullString
	var createdAt string
	if err := row.Scan(&b.ID, &b.UserID, &category, &b.Amount, &b.Spent, &b.Period, &createdAt); err != nil {
		return b, err
	}
	b.Category = category.String
	b.CreatedAt = parseTS(createdAt, r.loc)
	return b, nil
}

// ListBudgets returns budgets created in the given month, newest first.
func (r *BudgetRepository) ListBudgets(ctx context.Context, userID int64, year int, month time.Month) ([]models.Budget, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, r.loc)
	to := from.AddDate(0, 1, 0)
	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets
		 WHERE user_id = ? AND created_at >= ? AND created_at < ?
		 ORDER BY created_at DESC, id DESC`,
		userID, formatTS(from, r.loc), formatTS(to, r.loc))
	if err != nil {
		return nil, r.client.Classify(err)
	}
	defer rows.Close()

	var budgets []models.Budget
	for rows.Next() {
		b, err := r.scanBudget(rows)
		if err != nil {
			return nil, r.client.Classify(err)
		}
		budgets = append(budgets, b)
	}
	return budgets, r.client.Classify(rows.Err())
}

// LatestBudget returns nil when the user never set an overall budget.
func (r *BudgetRepository) LatestBudget(ctx context.Context, userID int64) (*models.Budget, error) {
	b, err := r.scanBudget(r.client.DB().QueryRowContext(ctx,
		`SELECT `+budgetColumns+` FROM budgets WHERE user_id = ? AND category IS NULL
		 ORDER BY created_at DESC, id DESC LIMIT 1`, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.client.Classify(err)
	}
	return &b, nil
}
