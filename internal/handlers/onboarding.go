package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/parser"
	"github.com/Lina3386/moliya-bot/internal/state"
)

func init() {
	register(state.StateOnbCurrency, promptOnbCurrency, handleOnbCurrency)
	register(state.StateOnbIncome, promptOnbIncome, handleOnbIncome)
	register(state.StateOnbGoal, promptOnbGoal, handleOnbGoal)
}

// currencyKey maps a currency button ("cur_usd") to its code.
func currencyKey(key string) (string, bool) {
	if !strings.HasPrefix(key, "cur_") {
		return "", false
	}
	code := strings.ToUpper(strings.TrimPrefix(key, "cur_"))
	if _, ok := models.LookupCurrency(code); !ok {
		return "", false
	}
	return code, true
}

func promptOnbCurrency(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{text: h.text(t, "onb_currency", nil), keyboard: h.keyboard(t, "currency")}, nil
}

func handleOnbCurrency(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	key, _ := h.catalog.Match(t.text)
	code, ok := currencyKey(key)
	if !ok {
		return h.retry(ctx, t, "pick_from_menu")
	}
	if err := h.financeService.UpdateSettings(ctx, t.userID, models.SettingsPatch{"currency": code}); err != nil {
		return state.StateIdle, err
	}
	t.settings.Currency = code
	return state.StateOnbIncome, nil
}

func promptOnbIncome(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text:     h.text(t, "onb_income", i18n.Args{"example": t.money(5_000_000)}),
		keyboard: h.keyboard(t, "skip"),
	}, nil
}

// handleOnbIncome keeps a typed monthly income as the overall budget.
func handleOnbIncome(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	if h.catalog.Is(t.text, "skip") {
		return state.StateOnbGoal, nil
	}
	income, err := parser.ParseAmount(t.text)
	if err != nil {
		return h.retry(ctx, t, amountError(err))
	}
	if _, err := h.financeService.CreateBudget(ctx, t.userID, "", income); err != nil {
		return state.StateIdle, err
	}
	return state.StateOnbGoal, nil
}

func promptOnbGoal(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{text: h.text(t, "onb_goal", nil), keyboard: h.keyboard(t, "skip")}, nil
}

// handleOnbGoal finishes onboarding; a typed goal name continues in the goal flow.
func handleOnbGoal(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	if h.catalog.Is(t.text, "skip") {
		if err := h.finishOnboarding(ctx, t); err != nil {
			return state.StateIdle, err
		}
		h.showMainMenu(ctx, t, h.text(t, "onb_done", nil))
		return state.StateTerminal, nil
	}

	name, err := parser.ValidateName(t.text)
	if err != nil {
		return h.retry(ctx, t, nameError(err))
	}
	if err := h.finishOnboarding(ctx, t); err != nil {
		return state.StateIdle, err
	}
	h.sendMessage(ctx, t, h.text(t, "onb_done", nil))

	h.stateManager.SetState(t.userID, state.StateGoalAmount)
	h.stateManager.SetTempData(t.userID, "name", name)
	return state.StateGoalAmount, nil
}

func (h *BotHandler) finishOnboarding(ctx context.Context, t *turn) error {
	if err := h.financeService.UpdateSettings(ctx, t.userID, models.SettingsPatch{"onboarding_done": true}); err != nil {
		return err
	}
	t.settings.OnboardingDone = true
	t.log(h.log).Info("🎉 onboarding finished")
	return nil
}

func nameError(err error) string {
	if errors.Is(err, parser.ErrNameTooLong) {
		return "name_too_long"
	}
	return "name_empty"
}
