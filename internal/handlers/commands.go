package handlers

import (
	"context"
	"strings"

	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/state"
)

func (h *BotHandler) handleCommand(ctx context.Context, t *turn) {
	// "/start@moliya_bot arg" -> "start"
	command := strings.Fields(t.text)[0]
	command = strings.TrimPrefix(command, "/")
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}

	switch strings.ToLower(command) {
	case "start":
		h.HandleStart(ctx, t)
	case "cancel":
		h.HandleCancel(ctx, t)
	case "help":
		h.HandleHelp(ctx, t)
	case "ai_byudjet":
		h.stateManager.SetState(t.userID, state.StateAIRoot)
		h.runAdvice(ctx, t, adviceBudget)
	case "ai_maqsad":
		h.stateManager.SetState(t.userID, state.StateAIRoot)
		h.runAdvice(ctx, t, adviceGoals)
	case "push":
		h.HandlePush(ctx, t)
	default:
		h.HandleUnknownCommand(ctx, t)
	}
}

// HandleStart resets the dialog; users who have not finished onboarding start it.
func (h *BotHandler) HandleStart(ctx context.Context, t *turn) {
	h.stateManager.ClearSession(t.userID)

	created, err := h.financeService.EnsureUser(ctx, t.userID, t.profile)
	if err != nil {
		h.softError(ctx, t, err)
		return
	}
	t.log(h.log).WithField("created", created).Info("👋 /start")

	if !t.settings.OnboardingDone {
		h.sendMessage(ctx, t, h.text(t, "welcome", nil))
		h.enter(ctx, t, state.StateOnbCurrency)
		return
	}
	h.showMainMenu(ctx, t, h.text(t, "welcome_back", i18n.Args{"name": escape(t.profile.FirstName)}))
}

func (h *BotHandler) HandleCancel(ctx context.Context, t *turn) {
	if h.stateManager.GetState(t.userID) == state.StateIdle {
		h.showMainMenu(ctx, t, h.text(t, "nothing_to_cancel", nil))
		return
	}
	h.stateManager.ClearSession(t.userID)
	h.showMainMenu(ctx, t, h.text(t, "cancelled", nil))
}

func (h *BotHandler) HandleHelp(ctx context.Context, t *turn) {
	h.sendMessage(ctx, t, h.text(t, "help", nil))
}

func (h *BotHandler) HandleUnknownCommand(ctx context.Context, t *turn) {
	h.sendMessage(ctx, t, h.text(t, "unknown_command", nil))
}

// HandlePush starts the admin broadcast flow. Other users get a refusal and keep their state.
func (h *BotHandler) HandlePush(ctx context.Context, t *turn) {
	if h.adminID == 0 || t.userID != h.adminID {
		t.log(h.log).Warn("⛔ /push from non-admin")
		h.sendMessage(ctx, t, h.text(t, "permission_denied", nil))
		return
	}
	h.enter(ctx, t, state.StatePushTopic)
}
