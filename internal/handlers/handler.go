package handlers

import (
	"context"
	"errors"
	"html"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/parser"
	"github.com/Lina3386/moliya-bot/internal/services"
	"github.com/Lina3386/moliya-bot/internal/state"
)

// Advisor answers free-form finance questions; it never fails, it falls back.
type Advisor interface {
	Advice(ctx context.Context, prompt, fallback string) string
}

// Pusher runs the broadcast triggers for the admin push flow.
type Pusher interface {
	Recipients(ctx context.Context, trigger services.Trigger) ([]int64, error)
	Fire(ctx context.Context, trigger services.Trigger) (services.Summary, error)
}

type BotHandler struct {
	sender         chat.Sender
	financeService *services.FinanceService
	catalog        *i18n.Catalog
	stateManager   *state.StateManager
	advisor        Advisor
	pusher         Pusher
	adminID        int64
	log            *logrus.Logger
}

func NewBotHandler(
	sender chat.Sender,
	financeService *services.FinanceService,
	catalog *i18n.Catalog,
	stateManager *state.StateManager,
	advisor Advisor,
	pusher Pusher,
	adminID int64,
	log *logrus.Logger,
) *BotHandler {
	return &BotHandler{
		sender:         sender,
		financeService: financeService,
		catalog:        catalog,
		stateManager:   stateManager,
		advisor:        advisor,
		pusher:         pusher,
		adminID:        adminID,
		log:            log,
	}
}

// turn is one inbound message together with what the handlers need to answer it.
type turn struct {
	chatID   int64
	userID   int64
	text     string
	profile  models.Profile
	settings models.Settings
	lang     string
	// prompted is set when a handler already showed the next state's screen
	prompted bool
}

func (t *turn) money(n int64) string {
	return parser.FormatAmount(n, t.settings.Currency)
}

func (t *turn) log(l *logrus.Logger) *logrus.Entry {
	return l.WithFields(logrus.Fields{"user_id": t.userID, "chat_id": t.chatID})
}

func (h *BotHandler) text(t *turn, key string, args i18n.Args) string {
	return h.catalog.Text(t.lang, key, args)
}

// escape is for user-supplied text placed into HTML templates.
func escape(s string) string {
	return html.EscapeString(s)
}

// maxMessageUnits is the Telegram text limit, counted in UTF-16 code units.
const maxMessageUnits = 4096

// utf16RuneLen mirrors utf16.RuneLen (Go 1.23+) for older toolchains.
func utf16RuneLen(r rune) int {
	switch {
	case 0 <= r && r < 0xd800, 0xe000 <= r && r < 0x10000:
		return 1
	case 0x10000 <= r && r <= unicode.MaxRune:
		return 2
	default:
		return -1
	}
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16RuneLen(r)
	}
	return n
}

// clip cuts plain text to limit UTF-16 units, marking the cut with an ellipsis.
func clip(s string, limit int) string {
	if utf16Len(s) <= limit {
		return s
	}
	var b strings.Builder
	n := 1 // the ellipsis
	for _, r := range s {
		w := utf16RuneLen(r)
		if n+w > limit {
			break
		}
		b.WriteRune(r)
		n += w
	}
	b.WriteString("…")
	return b.String()
}

// fitLines appends lines to head while the message stays within the limit.
// It returns the text and how many lines made it.
func fitLines(head string, lines []string, sep string) (string, int) {
	var b strings.Builder
	b.WriteString(head)
	n := utf16Len(head)
	for i, line := range lines {
		w := utf16Len(sep) + utf16Len(line)
		if n+w > maxMessageUnits {
			return b.String(), i
		}
		b.WriteString(sep)
		b.WriteString(line)
		n += w
	}
	return b.String(), len(lines)
}

func (h *BotHandler) send(ctx context.Context, t *turn, msg chat.Message) {
	msg.ChatID = t.chatID
	if err := h.sender.Send(ctx, msg); err != nil {
		t.log(h.log).WithError(err).Warn("failed to send reply")
	}
}

func (h *BotHandler) sendMessage(ctx context.Context, t *turn, text string) {
	h.send(ctx, t, chat.Message{Text: text, ParseMode: chat.ParseModeHTML})
}

func (h *BotHandler) sendMessageWithKeyboard(ctx context.Context, t *turn, text string, keyboard [][]string) {
	h.send(ctx, t, chat.Message{Text: text, ParseMode: chat.ParseModeHTML, Keyboard: keyboard})
}

// navRow is appended under every in-flow keyboard.
var navRow = []string{"back", "main_menu"}

var confirmRows = [][]string{{"confirm"}, {"back", "cancel"}}

func (h *BotHandler) keyboard(t *turn, screen string, extra ...[]string) [][]string {
	return h.catalog.Keyboard(t.lang, screen, extra...)
}

func (h *BotHandler) navKeyboard(t *turn) [][]string {
	return h.catalog.Keyboard(t.lang, "", navRow)
}

func (h *BotHandler) mainMenu(t *turn) [][]string {
	return h.keyboard(t, "main")
}

// showMainMenu finishes a flow: text plus the main keyboard.
func (h *BotHandler) showMainMenu(ctx context.Context, t *turn, text string) {
	h.sendMessageWithKeyboard(ctx, t, text, h.mainMenu(t))
}

// softError reports a store failure; the flow is dropped so the user can retry.
func (h *BotHandler) softError(ctx context.Context, t *turn, err error) {
	entry := t.log(h.log).WithError(err).WithField("state", h.stateManager.GetState(t.userID))
	if errors.Is(err, db.ErrCorrupt) {
		entry.Error("❌ ledger store is corrupt")
	} else {
		entry.Warn("ledger store failure")
	}
	h.stateManager.ClearSession(t.userID)
	h.showMainMenu(ctx, t, h.text(t, "soft_error", nil))
}

// amountError maps parser failures to their corrective hint.
func amountError(err error) string {
	switch {
	case errors.Is(err, parser.ErrAmountNotPositive):
		return "amount_not_positive"
	case errors.Is(err, parser.ErrAmountTooLarge):
		return "amount_too_large"
	default:
		return "invalid_amount"
	}
}

// recoverUser resets a user whose update panicked.
func (h *BotHandler) recoverUser(ctx context.Context, u chat.Update) {
	h.stateManager.ClearSession(u.UserID)
	t := &turn{chatID: u.ChatID, userID: u.UserID, lang: h.catalog.Lang("")}
	if t.chatID == 0 {
		t.chatID = u.UserID
	}
	if settings, err := h.financeService.GetSettings(ctx, u.UserID); err == nil {
		t.settings = settings
		t.lang = h.catalog.Lang(settings.Language)
	}
	h.showMainMenu(ctx, t, h.text(t, "soft_error", nil))
}
