package handlers

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/services"
	"github.com/Lina3386/moliya-bot/internal/state"
)

func init() {
	register(state.StatePushTopic, promptPushTopic, handlePushTopic)
	register(state.StatePushConfirm, promptPushConfirm, handlePushConfirm)
}

// push buttons are named after the trigger: push_daily -> daily
func pushTrigger(key string) (services.Trigger, bool) {
	if !strings.HasPrefix(key, "push_") {
		return "", false
	}
	return services.ParseTrigger(strings.TrimPrefix(key, "push_"))
}

func promptPushTopic(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{text: h.text(t, "push_topic", nil), keyboard: h.keyboard(t, "push_topics", navRow)}, nil
}

func handlePushTopic(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	key, _ := h.catalog.Match(t.text)
	trigger, ok := pushTrigger(key)
	if !ok {
		return h.retry(ctx, t, "pick_from_menu")
	}
	h.stateManager.SetTempData(t.userID, "topic", string(trigger))
	return state.StatePushConfirm, nil
}

func promptPushConfirm(h *BotHandler, ctx context.Context, t *turn) (screen, error) {
	trigger := services.Trigger(h.stateManager.GetTempData(t.userID, "topic"))
	recipients, err := h.pusher.Recipients(ctx, trigger)
	if err != nil {
		return screen{}, err
	}
	return screen{
		text: h.text(t, "push_confirm", i18n.Args{
			"topic": h.catalog.Button(t.lang, "push_"+string(trigger)),
			"count": len(recipients),
		}),
		keyboard: h.catalog.Keyboard(t.lang, "", confirmRows...),
	}, nil
}

func handlePushConfirm(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	if !h.catalog.Is(t.text, "confirm") {
		return h.retry(ctx, t, "pick_from_menu")
	}
	if t.userID != h.adminID {
		h.showMainMenu(ctx, t, h.text(t, "permission_denied", nil))
		return state.StateTerminal, nil
	}

	trigger := services.Trigger(h.stateManager.GetTempData(t.userID, "topic"))
	h.sendMessage(ctx, t, h.text(t, "push_started", nil))

	summary, err := h.pusher.Fire(ctx, trigger)
	if err != nil {
		return state.StateIdle, err
	}
	t.log(h.log).WithFields(logrus.Fields{
		"trigger":   trigger,
		"batch_id":  summary.BatchID,
		"successes": summary.Successes,
		"failures":  summary.Failures,
	}).Info("📣 admin push finished")

	h.showMainMenu(ctx, t, h.text(t, "push_done", i18n.Args{
		"successes": summary.Successes,
		"failures":  summary.Failures,
	}))
	return state.StateTerminal, nil
}
