package handlers

import (
	"context"

	"github.com/Lina3386/moliya-bot/internal/state"
)

func init() {
	register(state.StateIdle, promptIdle, handleIdle)
	register(state.StateTxnKind, promptTxnKind, handleTxnKind)
}

// ✅ главное меню
var menuTargets = map[string]state.DialogState{
	"menu_money":    state.StateTxnKind,
	"menu_reports":  state.StateReportsRoot,
	"menu_goals":    state.StateGoalMenu,
	"menu_budget":   state.StateBudgetIncome,
	"menu_ai":       state.StateAIRoot,
	"menu_settings": state.StateSettingsRoot,
	"kind_income":   state.StateIncCategory,
	"kind_expense":  state.StateExpCategory,
}

func promptIdle(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{text: h.text(t, "main_menu", nil), keyboard: h.mainMenu(t)}, nil
}

func handleIdle(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	key, _ := h.catalog.Match(t.text)
	if next, ok := menuTargets[key]; ok {
		return next, nil
	}
	// AI actions work straight from the main menu
	if kind, ok := adviceActions[key]; ok {
		h.stateManager.SetState(t.userID, state.StateAIRoot)
		h.runAdvice(ctx, t, kind)
		return state.StateAIRoot, nil
	}
	return h.retry(ctx, t, "pick_from_menu")
}

func promptTxnKind(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text:     h.text(t, "txn_kind", nil),
		keyboard: h.keyboard(t, "txn_kind", navRow),
	}, nil
}

func handleTxnKind(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	switch key, _ := h.catalog.Match(t.text); key {
	case "kind_income":
		return state.StateIncCategory, nil
	case "kind_expense":
		return state.StateExpCategory, nil
	}
	return h.retry(ctx, t, "pick_from_menu")
}
