package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/parser"
	"github.com/Lina3386/moliya-bot/internal/services"
	"github.com/Lina3386/moliya-bot/internal/state"
)

func init() {
	register(state.StateBudgetIncome, promptBudgetIncome, handleBudgetIncome)
	register(state.StateBudgetConfirm, promptBudgetConfirm, handleBudgetConfirm)
}

// promptBudgetIncome shows this month's budget against spending, then asks for the income.
func promptBudgetIncome(h *BotHandler, ctx context.Context, t *turn) (screen, error) {
	budget, err := h.financeService.LatestBudget(ctx, t.userID)
	if err != nil {
		return screen{}, err
	}
	now := h.financeService.Now()
	spent, err := h.financeService.SpentByCategory(ctx, t.userID, now.Year(), now.Month())
	if err != nil {
		return screen{}, err
	}

	var total int64
	for _, c := range spent {
		total += c.Total
	}

	var b strings.Builder
	if budget == nil {
		b.WriteString(h.text(t, "budget_none", nil))
	} else {
		b.WriteString(h.text(t, "budget_current", i18n.Args{
			"amount": t.money(budget.Amount),
			"spent":  t.money(total),
			"left":   t.money(budget.Amount - total),
		}))
	}
	for _, c := range spent {
		b.WriteString("\n")
		b.WriteString(h.text(t, "category_line", i18n.Args{
			"category": escape(c.Category),
			"count":    c.Count,
			"total":    t.money(c.Total),
		}))
	}
	b.WriteString("\n\n")
	b.WriteString(h.text(t, "budget_income", i18n.Args{"example": t.money(8_000_000)}))

	return screen{text: b.String(), keyboard: h.navKeyboard(t)}, nil
}

func handleBudgetIncome(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	income, err := parser.ParseAmount(t.text)
	if err != nil {
		return h.retry(ctx, t, amountError(err))
	}
	h.stateManager.SetTempData(t.userID, "income", strconv.FormatInt(income, 10))
	return state.StateBudgetConfirm, nil
}

// promptBudgetConfirm presents the recommended split; it is advice only.
func promptBudgetConfirm(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	income, _ := strconv.ParseInt(h.stateManager.GetTempData(t.userID, "income"), 10, 64)
	plan := services.RecommendBudget(income)

	var b strings.Builder
	b.WriteString(h.text(t, "budget_plan", i18n.Args{
		"income":  t.money(plan.Income),
		"needs":   t.money(plan.Needs),
		"wants":   t.money(plan.Wants),
		"savings": t.money(plan.Savings),
	}))
	for _, c := range plan.Categories {
		b.WriteString("\n")
		b.WriteString(h.text(t, "budget_plan_line", i18n.Args{
			"category": h.text(t, "budget_cat_"+c.Key, nil),
			"percent":  c.Share.Shift(2).IntPart(),
			"amount":   t.money(c.Amount),
		}))
	}
	return screen{text: b.String(), keyboard: h.catalog.Keyboard(t.lang, "", confirmRows...)}, nil
}

func handleBudgetConfirm(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	if !h.catalog.Is(t.text, "confirm") {
		return h.retry(ctx, t, "pick_from_menu")
	}
	income, err := strconv.ParseInt(h.stateManager.GetTempData(t.userID, "income"), 10, 64)
	if err != nil || income <= 0 {
		h.showMainMenu(ctx, t, h.text(t, "cancelled", nil))
		return state.StateTerminal, nil
	}
	if _, err := h.financeService.CreateBudget(ctx, t.userID, "", income); err != nil {
		return state.StateIdle, err
	}
	h.showMainMenu(ctx, t, h.text(t, "budget_saved", i18n.Args{"income": t.money(income)}))
	return state.StateTerminal, nil
}
