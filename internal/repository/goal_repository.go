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

type GoalRepository struct {
	client db.Client
	loc    *time.Location
}

func NewGoalRepository(client db.Client, loc *time.Location) *GoalRepository {
	return &GoalRepository{client: client, loc: loc}
}

const goalColumns = `id, user_id, name, target_amount, current_amount, deadline, status, created_at, updated_at`

func (r *GoalRepository) CreateGoal(ctx context.Context, userID int64, name string, targetAmount int64, deadline string, now time.Time) (*models.Goal, error) {
	if targetAmount <= 0 {
		return nil, ErrInvalidAmount
	}
	ts := formatTS(now, r.loc)
	goal := &models.Goal{
		UserID:       userID,
		Name:         name,
		TargetAmount: targetAmount,
		Deadline:     deadline,
		Status:       models.GoalActive,
		CreatedAt:    parseTS(ts, r.loc),
		UpdatedAt:    parseTS(ts, r.loc),
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
			`INSERT INTO goals (user_id, name, target_amount, current_amount, deadline, status, created_at, updated_at)
			 VALUES (?, ?, ?, 0, ?, ?, ?, ?)`,
			userID, name, targetAmount, deadline, models.GoalActive, ts, ts)
		if err != nil {
			return fmt.Errorf("failed to create goal: %w", err)
		}
		goal.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

func (r *GoalRepository) scanGoal(row interface{ Scan(...any) error }) (models.Goal, error) {
	var g models.Goal
	var createdAt, updatedAt string
	err := row.Scan(&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentAmount, &g.Deadline, &g.Status, &createdAt, &updatedAt)
	if err != nil {
		return g, err
	}
	g.CreatedAt = parseTS(createdAt, r.loc)
	g.UpdatedAt = parseTS(updatedAt, r.loc)
	return g, nil
}

// ListGoals returns the user's goals, oldest first. activeOnly skips completed ones.
func (r *GoalRepository) ListGoals(ctx context.Context, userID int64, activeOnly bool) ([]models.Goal, error) {
	query := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = ?`
	args := []any{userID}
	if activeOnly {
		query += ` AND status = ?`
		args = append(args, models.GoalActive)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := r.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.client.Classify(err)
	}
	defer rows.Close()

	var goals []models.Goal
	for rows.Next() {
		g, err := r.scanGoal(rows)
		if err != nil {
			return nil, r.client.Classify(err)
		}
		goals = append(goals, g)
	}
	return goals, r.client.Classify(rows.Err())
}

// IncrementGoal adds delta to the goal's current amount. A nil goal means
// the goal does not exist or belongs to someone else.
func (r *GoalRepository) IncrementGoal(ctx context.Context, goalID, userID, delta int64, now time.Time) (*models.Goal, error) {
	if delta <= 0 {
		return nil, ErrInvalidAmount
	}
	var goal *models.Goal
	err := r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		g, err := r.scanGoal(tx.QueryRowContext(ctx,
			`SELECT `+goalColumns+` FROM goals WHERE id = ? AND user_id = ?`, goalID, userID))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		g.CurrentAmount += delta
		if g.CurrentAmount >= g.TargetAmount {
			g.Status = models.GoalCompleted
		}
		ts := formatTS(now, r.loc)
		_, err = tx.ExecContext(ctx,
			`UPDATE goals SET current_amount = ?, status = ?, updated_at = ? WHERE id = ?`,
			g.CurrentAmount, g.Status, ts, g.ID)
		if err != nil {
			return fmt.Errorf("failed to update goal: %w", err)
		}
		g.UpdatedAt = parseTS(ts, r.loc)
		goal = &g
		return nil
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}
