package services

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Lina3386/moliya-bot/internal/models"
)

type MonthlyRollup struct {
	Current  models.Totals
	Previous models.Totals
}

// MonthlyRollup compares the current calendar month with the previous one.
func (s *FinanceService) MonthlyRollup(ctx context.Context, userID int64) (MonthlyRollup, error) {
	now := s.now()
	prev := now.AddDate(0, 0, -now.Day())

	current, err := s.Balance(ctx, userID, models.MonthOf(now.Year(), now.Month()))
	if err != nil {
		return MonthlyRollup{}, err
	}
	previous, err := s.Balance(ctx, userID, models.MonthOf(prev.Year(), prev.Month()))
	if err != nil {
		return MonthlyRollup{}, err
	}
	return MonthlyRollup{Current: current, Previous: previous}, nil
}

type WeeklyStats struct {
	Totals        models.Totals
	TopExpenses   []models.CategoryTotal
	AvgDayExpense int64
	Transactions  int64
}

const statsDays = 7

func (s *FinanceService) WeeklyStats(ctx context.Context, userID int64) (WeeklyStats, error) {
	w := models.LastDays(statsDays)
	totals, err := s.Balance(ctx, userID, w)
	if err != nil {
		return WeeklyStats{}, err
	}
	breakdown, err := s.CategoryBreakdown(ctx, userID, "", w)
	if err != nil {
		return WeeklyStats{}, err
	}

	stats := WeeklyStats{Totals: totals}
	for _, c := range breakdown {
		stats.Transactions += c.Count
	}

	expenses, err := s.CategoryBreakdown(ctx, userID, models.KindExpense, w)
	if err != nil {
		return WeeklyStats{}, err
	}
	if len(expenses) > 3 {
		expenses = expenses[:3]
	}
	stats.TopExpenses = expenses
	stats.AvgDayExpense = decimal.NewFromInt(totals.Expense).
		DivRound(decimal.NewFromInt(statsDays), 0).
		IntPart()
	return stats, nil
}

type Records struct {
	BiggestIncome  models.Biggest
	BiggestExpense models.Biggest
	ActiveDay      models.ActiveDay
	Total          int64
}

func (s *FinanceService) Records(ctx context.Context, userID int64) (Records, error) {
	var r Records
	var err error
	if r.BiggestIncome, err = s.Biggest(ctx, userID, models.KindIncome); err != nil {
		return Records{}, err
	}
	if r.BiggestExpense, err = s.Biggest(ctx, userID, models.KindExpense); err != nil {
		return Records{}, err
	}
	if r.ActiveDay, err = s.MostActiveDay(ctx, userID); err != nil {
		return Records{}, err
	}
	if r.Total, err = s.CountTransactions(ctx, userID); err != nil {
		return Records{}, err
	}
	return r, nil
}

// Snapshot is the user-data blob sent to the advice oracle.
type Snapshot struct {
	Currency   string                 `json:"currency"`
	Language   string                 `json:"language"`
	AllTime    models.Totals          `json:"all_time"`
	ThisMonth  models.Totals          `json:"this_month"`
	Categories []models.CategoryTotal `json:"expense_categories"`
	Goals      []SnapshotGoal         `json:"goals"`
	Budget     int64                  `json:"monthly_budget"`
}

type SnapshotGoal struct {
	Name     string `json:"name"`
	Target   int64  `json:"target"`
	Current  int64  `json:"current"`
	Deadline string `json:"deadline"`
}

func (s *FinanceService) Snapshot(ctx context.Context, userID int64) (Snapshot, error) {
	now := s.now()
	settings, err := s.GetSettings(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Currency: settings.Currency, Language: settings.Language}

	if snap.AllTime, err = s.Balance(ctx, userID, models.AllTime()); err != nil {
		return Snapshot{}, err
	}
	if snap.ThisMonth, err = s.Balance(ctx, userID, models.MonthOf(now.Year(), now.Month())); err != nil {
		return Snapshot{}, err
	}
	if snap.Categories, err = s.SpentByCategory(ctx, userID, now.Year(), now.Month()); err != nil {
		return Snapshot{}, err
	}
	goals, err := s.ListGoals(ctx, userID, true)
	if err != nil {
		return Snapshot{}, err
	}
	for _, g := range goals {
		snap.Goals = append(snap.Goals, SnapshotGoal{Name: g.Name, Target: g.TargetAmount, Current: g.CurrentAmount, Deadline: g.Deadline})
	}
	budget, err := s.LatestBudget(ctx, userID)
	if err != nil {
		return Snapshot{}, err
	}
	if budget != nil {
		snap.Budget = budget.Amount
	}
	return snap, nil
}
