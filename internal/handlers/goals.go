package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/parser"
	"github.com/Lina3386/moliya-bot/internal/services"
	"github.com/Lina3386/moliya-bot/internal/state"
)

func init() {
	register(state.StateGoalMenu, promptGoalMenu, handleGoalMenu)
	register(state.StateGoalName, promptGoalName, handleGoalName)
	register(state.StateGoalAmount, promptGoalAmount, handleGoalAmount)
	register(state.StateGoalDeadline, promptGoalDeadline, handleGoalDeadline)
	register(state.StateGoalConfirm, promptGoalConfirm, handleGoalConfirm)
	register(state.StateGoalDepositPick, promptGoalDepositPick, handleGoalDepositPick)
	register(state.StateGoalDepositAmount, promptGoalDepositAmount, handleGoalDepositAmount)
}

// goalLines renders the monitoring view; completed goals carry the done glyph.
func (h *BotHandler) goalLines(t *turn, goals []models.Goal) []string {
	lines := make([]string, 0, len(goals))
	for _, p := range services.MonitorGoals(goals, h.financeService.Now()) {
		deadline := h.text(t, "deadline_unknown", nil)
		if p.DeadlineKnown {
			deadline = h.text(t, "days_left", i18n.Args{"days": p.DaysLeft})
		}
		lines = append(lines, h.text(t, "goal_line", i18n.Args{
			"glyph":     p.Glyph,
			"name":      escape(p.Goal.Name),
			"current":   t.money(p.Goal.CurrentAmount),
			"target":    t.money(p.Goal.TargetAmount),
			"percent":   p.Percent,
			"remaining": t.money(p.Remaining),
			"deadline":  deadline,
		}))
	}
	return lines
}

func promptGoalMenu(h *BotHandler, ctx context.Context, t *turn) (screen, error) {
	goals, err := h.financeService.ListGoals(ctx, t.userID, false)
	if err != nil {
		return screen{}, err
	}
	text := h.text(t, "goals_empty", nil)
	if len(goals) > 0 {
		text, _ = fitLines(h.text(t, "goals_header", nil), h.goalLines(t, goals), "\n\n")
	}
	return screen{text: text, keyboard: h.keyboard(t, "goals", navRow)}, nil
}

func handleGoalMenu(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	switch key, _ := h.catalog.Match(t.text); key {
	case "goal_new":
		return state.StateGoalName, nil
	case "goal_topup":
		goals, err := h.financeService.ListGoals(ctx, t.userID, true)
		if err != nil {
			return state.StateIdle, err
		}
		if len(goals) == 0 {
			return h.retry(ctx, t, "goals_none_active")
		}
		return state.StateGoalDepositPick, nil
	}
	return h.retry(ctx, t, "pick_from_menu")
}

func promptGoalName(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{text: h.text(t, "goal_name", nil), keyboard: h.navKeyboard(t)}, nil
}

func handleGoalName(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	name, err := parser.ValidateName(t.text)
	if err != nil {
		return h.retry(ctx, t, nameError(err))
	}
	h.stateManager.SetTempData(t.userID, "name", name)
	return state.StateGoalAmount, nil
}

func promptGoalAmount(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text: h.text(t, "goal_amount", i18n.Args{
			"name":    escape(h.stateManager.GetTempData(t.userID, "name")),
			"example": t.money(10_000_000),
		}),
		keyboard: h.navKeyboard(t),
	}, nil
}

func handleGoalAmount(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	target, err := parser.ParseAmount(t.text)
	if err != nil {
		return h.retry(ctx, t, amountError(err))
	}
	h.stateManager.SetTempData(t.userID, "target", strconv.FormatInt(target, 10))
	return state.StateGoalDeadline, nil
}

func promptGoalDeadline(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	example := h.financeService.Now().AddDate(1, 0, 0).Format(parser.DeadlineLayout)
	return screen{
		text:     h.text(t, "goal_deadline", i18n.Args{"example": example}),
		keyboard: h.navKeyboard(t),
	}, nil
}

func handleGoalDeadline(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	deadline, err := parser.ParseDeadline(t.text, h.financeService.Now())
	if err != nil {
		if errors.Is(err, parser.ErrDeadlineNotFuture) {
			return h.retry(ctx, t, "deadline_past")
		}
		return h.retry(ctx, t, "deadline_format")
	}
	h.stateManager.SetTempData(t.userID, "deadline", deadline.Format(parser.DeadlineLayout))
	return state.StateGoalConfirm, nil
}

// draftGoal reads the goal being created from scratch.
func (h *BotHandler) draftGoal(t *turn) (models.Goal, bool) {
	target, err := strconv.ParseInt(h.stateManager.GetTempData(t.userID, "target"), 10, 64)
	g := models.Goal{
		UserID:       t.userID,
		Name:         h.stateManager.GetTempData(t.userID, "name"),
		TargetAmount: target,
		Deadline:     h.stateManager.GetTempData(t.userID, "deadline"),
		Status:       models.GoalActive,
	}
	return g, err == nil && target > 0 && g.Name != "" && g.Deadline != ""
}

func promptGoalConfirm(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	g, _ := h.draftGoal(t)
	p := services.MonitorGoal(g, h.financeService.Now())
	return screen{
		text: h.text(t, "goal_confirm", i18n.Args{
			"name":     escape(g.Name),
			"target":   t.money(g.TargetAmount),
			"deadline": g.Deadline,
			"days":     p.DaysLeft,
			"monthly":  t.money(p.MonthlyNeed),
		}),
		keyboard: h.catalog.Keyboard(t.lang, "", confirmRows...),
	}, nil
}

func handleGoalConfirm(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	if !h.catalog.Is(t.text, "confirm") {
		return h.retry(ctx, t, "pick_from_menu")
	}
	g, ok := h.draftGoal(t)
	if !ok {
		h.stateManager.ClearSession(t.userID)
		h.showMainMenu(ctx, t, h.text(t, "cancelled", nil))
		return state.StateTerminal, nil
	}
	if _, err := h.financeService.CreateGoal(ctx, t.userID, g.Name, g.TargetAmount, g.Deadline); err != nil {
		return state.StateIdle, err
	}
	h.showMainMenu(ctx, t, h.text(t, "goal_saved", i18n.Args{"name": escape(g.Name)}))
	return state.StateTerminal, nil
}

func promptGoalDepositPick(h *BotHandler, ctx context.Context, t *turn) (screen, error) {
	goals, err := h.financeService.ListGoals(ctx, t.userID, true)
	if err != nil {
		return screen{}, err
	}
	rows := make([][]string, 0, len(goals)+1)
	for _, g := range goals {
		rows = append(rows, []string{g.Name})
	}
	rows = append(rows, h.navKeyboard(t)...)
	return screen{text: h.text(t, "goal_pick", nil), keyboard: rows}, nil
}

func handleGoalDepositPick(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	goals, err := h.financeService.ListGoals(ctx, t.userID, true)
	if err != nil {
		return state.StateIdle, err
	}
	for _, g := range goals {
		if strings.EqualFold(g.Name, t.text) {
			h.stateManager.SetTempData(t.userID, "goal_id", strconv.FormatInt(g.ID, 10))
			h.stateManager.SetTempData(t.userID, "name", g.Name)
			return state.StateGoalDepositAmount, nil
		}
	}
	return h.retry(ctx, t, "pick_from_menu")
}

func promptGoalDepositAmount(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text:     h.text(t, "goal_deposit_amount", i18n.Args{"name": escape(h.stateManager.GetTempData(t.userID, "name"))}),
		keyboard: h.navKeyboard(t),
	}, nil
}

func handleGoalDepositAmount(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	delta, err := parser.ParseAmount(t.text)
	if err != nil {
		return h.retry(ctx, t, amountError(err))
	}
	goalID, _ := strconv.ParseInt(h.stateManager.GetTempData(t.userID, "goal_id"), 10, 64)

	goal, err := h.financeService.IncrementGoal(ctx, goalID, t.userID, delta)
	if err != nil {
		return state.StateIdle, err
	}
	if goal == nil {
		h.showMainMenu(ctx, t, h.text(t, "goal_not_found", nil))
		return state.StateTerminal, nil
	}

	if goal.Status == models.GoalCompleted {
		h.showMainMenu(ctx, t, h.text(t, "goal_reached", i18n.Args{
			"name":   escape(goal.Name),
			"target": t.money(goal.TargetAmount),
		}))
		return state.StateTerminal, nil
	}
	p := services.MonitorGoal(*goal, h.financeService.Now())
	h.showMainMenu(ctx, t, h.text(t, "goal_deposited", i18n.Args{
		"name":      escape(goal.Name),
		"amount":    t.money(delta),
		"percent":   p.Percent,
		"remaining": t.money(p.Remaining),
	}))
	return state.StateTerminal, nil
}
