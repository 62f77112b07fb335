package handlers

import (
	"context"

	"github.com/goccy/go-json"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/state"
)

const (
	adviceGeneral = "general"
	adviceBudget  = "budget"
	adviceGoals   = "goals"
)

// adviceActions maps AI buttons to the analysis they run.
var adviceActions = map[string]string{
	"ai_advice": adviceGeneral,
	"ai_budget": adviceBudget,
	"ai_goals":  adviceGoals,
}

func init() {
	register(state.StateAIRoot, promptAIRoot, handleAIRoot)
}

func promptAIRoot(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{text: h.text(t, "ai_menu", nil), keyboard: h.keyboard(t, "ai", navRow)}, nil
}

// handleAIRoot answers within one message and stays in the AI menu.
func handleAIRoot(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	key, _ := h.catalog.Match(t.text)
	kind, ok := adviceActions[key]
	if !ok {
		return h.retry(ctx, t, "pick_from_menu")
	}
	h.runAdvice(ctx, t, kind)
	return state.StateAIRoot, nil
}

// runAdvice sends the user's snapshot to the advisor. Advisor failures turn
// into the fallback text; only store failures become a soft error.
func (h *BotHandler) runAdvice(ctx context.Context, t *turn, kind string) {
	snapshot, err := h.financeService.Snapshot(ctx, t.userID)
	if err != nil {
		h.softError(ctx, t, err)
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		h.softError(ctx, t, err)
		return
	}

	h.sendMessage(ctx, t, h.text(t, "ai_thinking", nil))

	prompt := h.text(t, "ai_prompt_"+kind, i18n.Args{"data": string(data)})
	fallback := h.text(t, "ai_fallback", nil)
	result := h.advisor.Advice(ctx, prompt, fallback)

	if err := h.financeService.SaveAnalysis(ctx, t.userID, kind, result); err != nil {
		t.log(h.log).WithError(err).Warn("failed to save analysis")
	}

	// oracle text is not HTML-safe, send it plain
	h.send(ctx, t, chat.Message{
		Text:     clip(h.text(t, "ai_title_"+kind, nil)+"\n\n"+result, maxMessageUnits),
		Keyboard: h.keyboard(t, "ai", navRow),
	})
	t.prompted = true
}
