package handlers

import (
	"context"
	"strings"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/state"
)

func init() {
	register(state.StateSettingsRoot, promptSettingsRoot, handleSettingsRoot)
	register(state.StateSettingsCurrency, promptSettingsCurrency, handleSettingsCurrency)
	register(state.StateSettingsLanguage, promptSettingsLanguage, handleSettingsLanguage)
	register(state.StateSettingsDeleteConfirm, promptSettingsDelete, handleSettingsDelete)
}

func (h *BotHandler) onOff(t *turn, v bool) string {
	if v {
		return h.text(t, "on", nil)
	}
	return h.text(t, "off", nil)
}

func promptSettingsRoot(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	s := t.settings
	return screen{
		text: h.text(t, "settings", i18n.Args{
			"language":      h.catalog.Button(t.lang, "lang_"+t.lang),
			"currency":      s.Currency,
			"notifications": h.onOff(t, s.Notifications),
			"reports":       h.onOff(t, s.AutoReports),
		}),
		keyboard: h.keyboard(t, "settings", navRow),
	}, nil
}

func handleSettingsRoot(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	switch key, _ := h.catalog.Match(t.text); key {
	case "set_currency":
		return state.StateSettingsCurrency, nil
	case "set_language":
		return state.StateSettingsLanguage, nil
	case "set_delete":
		return state.StateSettingsDeleteConfirm, nil
	case "set_notifications":
		return h.toggle(ctx, t, "notifications", !t.settings.Notifications)
	case "set_reports":
		return h.toggle(ctx, t, "auto_reports", !t.settings.AutoReports)
	}
	return h.retry(ctx, t, "pick_from_menu")
}

func (h *BotHandler) toggle(ctx context.Context, t *turn, key string, value bool) (state.DialogState, error) {
	if err := h.financeService.UpdateSettings(ctx, t.userID, models.SettingsPatch{key: value}); err != nil {
		return state.StateIdle, err
	}
	if key == "notifications" {
		t.settings.Notifications = value
	} else {
		t.settings.AutoReports = value
	}
	h.render(ctx, t, state.StateSettingsRoot, "settings_saved")
	return state.StateSettingsRoot, nil
}

func promptSettingsCurrency(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text:     h.text(t, "settings_currency", i18n.Args{"currency": t.settings.Currency}),
		keyboard: h.keyboard(t, "currency", navRow),
	}, nil
}

func handleSettingsCurrency(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	key, _ := h.catalog.Match(t.text)
	code, ok := currencyKey(key)
	if !ok {
		return h.retry(ctx, t, "pick_from_menu")
	}
	if err := h.financeService.UpdateSettings(ctx, t.userID, models.SettingsPatch{"currency": code}); err != nil {
		return state.StateIdle, err
	}
	t.settings.Currency = code
	h.sendMessage(ctx, t, h.text(t, "settings_saved", nil))
	return state.StateSettingsRoot, nil
}

func promptSettingsLanguage(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{text: h.text(t, "settings_language", nil), keyboard: h.keyboard(t, "language", navRow)}, nil
}

func handleSettingsLanguage(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	key, _ := h.catalog.Match(t.text)
	lang := strings.TrimPrefix(key, "lang_")
	if !strings.HasPrefix(key, "lang_") || !models.IsLanguage(lang) {
		return h.retry(ctx, t, "pick_from_menu")
	}
	if err := h.financeService.UpdateSettings(ctx, t.userID, models.SettingsPatch{"language": lang}); err != nil {
		return state.StateIdle, err
	}
	t.settings.Language = lang
	t.lang = h.catalog.Lang(lang)
	h.sendMessage(ctx, t, h.text(t, "settings_saved", nil))
	return state.StateSettingsRoot, nil
}

func promptSettingsDelete(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text:     h.text(t, "delete_confirm", i18n.Args{"yes": h.catalog.Button(t.lang, "delete_yes")}),
		keyboard: h.catalog.Keyboard(t.lang, "", []string{"delete_yes"}, []string{"cancel"}),
	}, nil
}

// handleSettingsDelete erases only on the confirmation label of the user's
// own language; anything else cancels.
func handleSettingsDelete(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	if !h.catalog.IsIn(t.lang, t.text, "delete_yes") {
		h.showMainMenu(ctx, t, h.text(t, "delete_cancelled", nil))
		return state.StateTerminal, nil
	}
	if err := h.financeService.EraseUserData(ctx, t.userID); err != nil {
		return state.StateIdle, err
	}
	h.send(ctx, t, chat.Message{
		Text:           h.text(t, "data_deleted", nil),
		ParseMode:      chat.ParseModeHTML,
		RemoveKeyboard: true,
	})
	return state.StateTerminal, nil
}
