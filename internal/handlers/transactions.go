package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/parser"
	"github.com/Lina3386/moliya-bot/internal/state"
)

// txnFlow describes one of the two symmetric entry flows.
type txnFlow struct {
	kind      string
	prefix    string // category button keys
	keyboard  string
	category  state.DialogState
	amount    state.DialogState
	note      state.DialogState
	noteKey   string // default note
	savedKey  string
	promptKey string
}

var (
	incomeFlow = txnFlow{
		kind:      models.KindIncome,
		prefix:    "inc_",
		keyboard:  "income_categories",
		category:  state.StateIncCategory,
		amount:    state.StateIncAmount,
		note:      state.StateIncNote,
		noteKey:   "default_note_income",
		savedKey:  "income_saved",
		promptKey: "inc_category",
	}
	expenseFlow = txnFlow{
		kind:      models.KindExpense,
		prefix:    "exp_",
		keyboard:  "expense_categories",
		category:  state.StateExpCategory,
		amount:    state.StateExpAmount,
		note:      state.StateExpNote,
		noteKey:   "default_note_expense",
		savedKey:  "expense_saved",
		promptKey: "exp_category",
	}
)

func init() {
	for _, f := range []txnFlow{incomeFlow, expenseFlow} {
		register(f.category, f.promptCategory, f.handleCategory)
		register(f.amount, f.promptAmount, f.handleAmount)
		register(f.note, f.promptNote, f.handleNote)
	}
}

func (f txnFlow) promptCategory(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text:     h.text(t, f.promptKey, nil),
		keyboard: h.keyboard(t, f.keyboard, navRow),
	}, nil
}

// handleCategory stores the tapped label without its emoji, in the user's language.
func (f txnFlow) handleCategory(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	key, ok := h.catalog.Match(t.text)
	if !ok || !strings.HasPrefix(key, f.prefix) {
		return h.retry(ctx, t, "pick_from_menu")
	}
	h.stateManager.SetTempData(t.userID, "category", i18n.StripLabel(h.catalog.Button(t.lang, key)))
	return f.amount, nil
}

func (f txnFlow) promptAmount(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text: h.text(t, "enter_amount", i18n.Args{
			"category": escape(h.stateManager.GetTempData(t.userID, "category")),
			"example":  t.money(150_000),
		}),
		keyboard: h.navKeyboard(t),
	}, nil
}

func (f txnFlow) handleAmount(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	amount, err := parser.ParseAmount(t.text)
	if err != nil {
		return h.retry(ctx, t, amountError(err))
	}
	h.stateManager.SetTempData(t.userID, "amount", strconv.FormatInt(amount, 10))
	return f.note, nil
}

func (f txnFlow) promptNote(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{
		text:     h.text(t, "enter_note", nil),
		keyboard: h.keyboard(t, "skip", navRow),
	}, nil
}

// handleNote commits the single transaction of the flow.
func (f txnFlow) handleNote(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	note := t.text
	if note == "" || h.catalog.Is(note, "skip") {
		note = h.text(t, f.noteKey, nil)
	}

	amount, err := strconv.ParseInt(h.stateManager.GetTempData(t.userID, "amount"), 10, 64)
	if err != nil || amount <= 0 {
		// scratch lost its amount; ask again
		h.stateManager.SetState(t.userID, f.amount)
		h.render(ctx, t, f.amount, "invalid_amount")
		return f.amount, nil
	}
	category := h.stateManager.GetTempData(t.userID, "category")

	if _, err := h.financeService.AddTransaction(ctx, t.userID, f.kind, amount, category, note); err != nil {
		return state.StateIdle, err
	}

	total, err := h.financeService.Balance(ctx, t.userID, models.AllTime())
	if err != nil {
		return state.StateIdle, err
	}
	text := h.text(t, f.savedKey, i18n.Args{
		"amount":   t.money(amount),
		"category": escape(category),
		"note":     escape(note),
		"balance":  t.money(total.Balance),
	})

	if f.kind == models.KindExpense {
		if warning, err := h.budgetWarning(ctx, t); err != nil {
			return state.StateIdle, err
		} else if warning != "" {
			text += "\n\n" + warning
		}
	}

	h.showMainMenu(ctx, t, text)
	return state.StateTerminal, nil
}

// budgetWarning is non-empty once this month's expenses exceed the latest budget.
func (h *BotHandler) budgetWarning(ctx context.Context, t *turn) (string, error) {
	budget, err := h.financeService.LatestBudget(ctx, t.userID)
	if err != nil || budget == nil {
		return "", err
	}
	now := h.financeService.Now()
	month, err := h.financeService.Balance(ctx, t.userID, models.MonthOf(now.Year(), now.Month()))
	if err != nil {
		return "", err
	}
	if month.Expense <= budget.Amount {
		return "", nil
	}
	return h.text(t, "budget_exceeded", i18n.Args{
		"budget": t.money(budget.Amount),
		"spent":  t.money(month.Expense),
	}), nil
}
