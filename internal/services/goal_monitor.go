package services

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/parser"
)

const (
	GlyphDone       = "✅"
	GlyphHalfway    = "🔄"
	GlyphInProgress = "⏳"
)

var half = decimal.NewFromFloat(0.5)

type GoalProgress struct {
	Goal          models.Goal
	Progress      decimal.Decimal
	Percent       int64
	Remaining     int64
	DaysLeft      int
	DeadlineKnown bool
	// MonthlyNeed is what has to be saved per month to hit the deadline.
	MonthlyNeed int64
	Glyph       string
}

// MonitorGoal computes progress, remaining amount and days left for one goal.
func MonitorGoal(g models.Goal, now time.Time) GoalProgress {
	p := GoalProgress{Goal: g, Progress: decimal.Zero}
	if g.TargetAmount > 0 {
		p.Progress = decimal.NewFromInt(g.CurrentAmount).Div(decimal.NewFromInt(g.TargetAmount))
	}
	p.Percent = p.Progress.Mul(decimal.NewFromInt(100)).Floor().IntPart()
	p.Remaining = g.TargetAmount - g.CurrentAmount
	if p.Remaining < 0 {
		p.Remaining = 0
	}

	switch {
	case p.Progress.GreaterThanOrEqual(decimal.NewFromInt(1)):
		p.Glyph = GlyphDone
	case p.Progress.GreaterThanOrEqual(half):
		p.Glyph = GlyphHalfway
	default:
		p.Glyph = GlyphInProgress
	}

	p.DaysLeft, p.DeadlineKnown = parser.DaysUntil(g.Deadline, now)
	if p.DeadlineKnown {
		p.MonthlyNeed = MonthlyNeed(p.Remaining, p.DaysLeft)
	}
	return p
}

func MonitorGoals(goals []models.Goal, now time.Time) []GoalProgress {
	out := make([]GoalProgress, 0, len(goals))
	for _, g := range goals {
		out = append(out, MonitorGoal(g, now))
	}
	return out
}

// MonthlyNeed spreads the remaining amount over the months left (30-day months, at least one).
func MonthlyNeed(remaining int64, daysLeft int) int64 {
	if remaining <= 0 {
		return 0
	}
	months := decimal.NewFromInt(int64(daysLeft)).Div(decimal.NewFromInt(30)).Ceil()
	if months.LessThan(decimal.NewFromInt(1)) {
		months = decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(remaining).Div(months).Ceil().IntPart()
}
