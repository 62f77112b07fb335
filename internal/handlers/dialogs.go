package handlers

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/state"
)

// screen is what a state shows when it is entered or re-prompted.
type screen struct {
	text     string
	keyboard [][]string
}

type (
	promptFunc func(h *BotHandler, ctx context.Context, t *turn) (screen, error)
	handleFunc func(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error)
)

type dialogState struct {
	prompt promptFunc
	handle handleFunc
}

// dialogs is the transition table; it is filled by the flow files.
var dialogs = map[state.DialogState]dialogState{}

func register(s state.DialogState, prompt promptFunc, handle handleFunc) {
	dialogs[s] = dialogState{prompt: prompt, handle: handle}
}

// HandleUpdate routes one inbound message. Calls for the same user must be serial.
func (h *BotHandler) HandleUpdate(ctx context.Context, u chat.Update) {
	t, err := h.begin(ctx, u)
	if err != nil {
		h.softError(ctx, t, err)
		return
	}

	h.log.WithFields(logrus.Fields{
		"user_id": t.userID,
		"state":   h.stateManager.GetState(t.userID),
	}).Debug("📨 message received")

	if strings.HasPrefix(t.text, "/") {
		h.handleCommand(ctx, t)
		return
	}
	if h.handleNavigation(ctx, t) {
		return
	}
	h.HandleTextMessage(ctx, t)
}

// begin registers first-time users and loads their settings.
func (h *BotHandler) begin(ctx context.Context, u chat.Update) (*turn, error) {
	t := &turn{
		chatID:  u.ChatID,
		userID:  u.UserID,
		text:    strings.TrimSpace(u.Text),
		profile: u.Profile,
		lang:    h.catalog.Lang(""),
	}
	if t.chatID == 0 {
		t.chatID = t.userID
	}

	user, err := h.financeService.GetUser(ctx, t.userID)
	if err != nil {
		return t, err
	}
	if user == nil {
		if _, err := h.financeService.EnsureUser(ctx, t.userID, t.profile); err != nil {
			return t, err
		}
	}

	if t.settings, err = h.financeService.GetSettings(ctx, t.userID); err != nil {
		return t, err
	}
	t.lang = h.catalog.Lang(t.settings.Language)
	return t, nil
}

// handleNavigation handles main menu, back and cancel from every state.
func (h *BotHandler) handleNavigation(ctx context.Context, t *turn) bool {
	key, ok := h.catalog.Match(t.text)
	if !ok {
		return false
	}

	switch key {
	case "main_menu":
		h.stateManager.ClearSession(t.userID)
		h.showMainMenu(ctx, t, h.text(t, "main_menu", nil))
	case "cancel":
		h.HandleCancel(ctx, t)
	case "back":
		prev := state.Back(h.stateManager.GetState(t.userID))
		if prev == state.StateIdle {
			h.stateManager.ClearSession(t.userID)
			h.showMainMenu(ctx, t, h.text(t, "main_menu", nil))
			return true
		}
		h.stateManager.SetState(t.userID, prev)
		h.render(ctx, t, prev, "")
	default:
		return false
	}
	return true
}

// HandleTextMessage dispatches to the handler of the current state.
func (h *BotHandler) HandleTextMessage(ctx context.Context, t *turn) {
	current := h.stateManager.GetState(t.userID)
	d, ok := dialogs[current]
	if !ok {
		t.log(h.log).WithField("state", current).Warn("no handler for state, resetting")
		h.stateManager.ClearSession(t.userID)
		current, d = state.StateIdle, dialogs[state.StateIdle]
	}

	next, err := d.handle(h, ctx, t)
	if err != nil {
		h.softError(ctx, t, err)
		return
	}
	h.transition(ctx, t, current, next)
}

// transition stores the next state and shows its screen unless the handler already did.
func (h *BotHandler) transition(ctx context.Context, t *turn, current, next state.DialogState) {
	h.stateManager.SetState(t.userID, next)
	if next == state.StateTerminal || next == state.StateIdle || next == current || t.prompted {
		return
	}
	h.render(ctx, t, next, "")
}

// enter starts a flow at s from outside the table, e.g. a command.
func (h *BotHandler) enter(ctx context.Context, t *turn, s state.DialogState) {
	h.stateManager.SetState(t.userID, s)
	h.render(ctx, t, s, "")
}

// render shows the screen of s, optionally prefixed by a hint.
func (h *BotHandler) render(ctx context.Context, t *turn, s state.DialogState, hintKey string) {
	d, ok := dialogs[s]
	if !ok || d.prompt == nil {
		h.showMainMenu(ctx, t, h.text(t, "main_menu", nil))
		return
	}
	sc, err := d.prompt(h, ctx, t)
	if err != nil {
		h.softError(ctx, t, err)
		return
	}
	text := sc.text
	if hintKey != "" {
		text = h.text(t, hintKey, nil) + "\n\n" + text
	}
	h.sendMessageWithKeyboard(ctx, t, text, sc.keyboard)
	t.prompted = true
}

// retry re-prompts the current state with a corrective hint; the state does not change.
func (h *BotHandler) retry(ctx context.Context, t *turn, hintKey string) (state.DialogState, error) {
	current := h.stateManager.GetState(t.userID)
	h.render(ctx, t, current, hintKey)
	return current, nil
}
