package handlers

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/state"
)

const (
	historyLimit = 10
	exportLimit  = 50
	aiLogLimit   = 3

	noteRunes     = 100
	exportRunes   = 40
	aiResultRunes = 300
)

type reportFunc func(h *BotHandler, ctx context.Context, t *turn) (string, error)

var reports = map[string]reportFunc{
	"rep_balance":    reportBalance,
	"rep_month":      reportMonth,
	"rep_categories": reportCategories,
	"rep_weekly":     reportWeekly,
	"rep_records":    reportRecords,
	"rep_history":    reportHistory,
	"rep_export":     reportExport,
	"rep_ai_history": reportAIHistory,
}

func init() {
	register(state.StateReportsRoot, promptReportsRoot, handleReportsRoot)
}

func promptReportsRoot(h *BotHandler, _ context.Context, t *turn) (screen, error) {
	return screen{text: h.text(t, "reports_menu", nil), keyboard: h.keyboard(t, "reports", navRow)}, nil
}

// handleReportsRoot answers one report per message and stays in the menu.
func handleReportsRoot(h *BotHandler, ctx context.Context, t *turn) (state.DialogState, error) {
	key, _ := h.catalog.Match(t.text)
	report, ok := reports[key]
	if !ok {
		return h.retry(ctx, t, "pick_from_menu")
	}
	text, err := report(h, ctx, t)
	if err != nil {
		return state.StateIdle, err
	}
	h.sendMessageWithKeyboard(ctx, t, text, h.keyboard(t, "reports", navRow))
	t.prompted = true
	return state.StateReportsRoot, nil
}

func reportBalance(h *BotHandler, ctx context.Context, t *turn) (string, error) {
	totals, err := h.financeService.Balance(ctx, t.userID, models.AllTime())
	if err != nil {
		return "", err
	}
	return h.text(t, "report_balance", i18n.Args{
		"income":  t.money(totals.Income),
		"expense": t.money(totals.Expense),
		"balance": t.money(totals.Balance),
	}), nil
}

func reportMonth(h *BotHandler, ctx context.Context, t *turn) (string, error) {
	rollup, err := h.financeService.MonthlyRollup(ctx, t.userID)
	if err != nil {
		return "", err
	}
	return h.text(t, "report_month", i18n.Args{
		"income":       t.money(rollup.Current.Income),
		"expense":      t.money(rollup.Current.Expense),
		"balance":      t.money(rollup.Current.Balance),
		"prev_income":  t.money(rollup.Previous.Income),
		"prev_expense": t.money(rollup.Previous.Expense),
		"prev_balance": t.money(rollup.Previous.Balance),
		"diff":         t.money(rollup.Current.Expense - rollup.Previous.Expense),
	}), nil
}

// share is the whole percent of part in total.
func share(part, total int64) int64 {
	if total == 0 {
		return 0
	}
	return decimal.NewFromInt(part).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(total), 0).
		IntPart()
}

func reportCategories(h *BotHandler, ctx context.Context, t *turn) (string, error) {
	now := h.financeService.Now()
	spent, err := h.financeService.SpentByCategory(ctx, t.userID, now.Year(), now.Month())
	if err != nil {
		return "", err
	}
	if len(spent) == 0 {
		return h.text(t, "report_empty", nil), nil
	}

	var total int64
	for _, c := range spent {
		total += c.Total
	}
	var b strings.Builder
	b.WriteString(h.text(t, "report_categories", i18n.Args{"total": t.money(total)}))
	for _, c := range spent {
		b.WriteString("\n")
		b.WriteString(h.text(t, "category_share_line", i18n.Args{
			"category": escape(c.Category),
			"count":    c.Count,
			"total":    t.money(c.Total),
			"percent":  share(c.Total, total),
		}))
	}
	return b.String(), nil
}

func reportWeekly(h *BotHandler, ctx context.Context, t *turn) (string, error) {
	stats, err := h.financeService.WeeklyStats(ctx, t.userID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString(h.text(t, "report_weekly", i18n.Args{
		"income":  t.money(stats.Totals.Income),
		"expense": t.money(stats.Totals.Expense),
		"net":     t.money(stats.Totals.Balance),
		"avg":     t.money(stats.AvgDayExpense),
		"count":   stats.Transactions,
	}))
	for _, c := range stats.TopExpenses {
		b.WriteString("\n")
		b.WriteString(h.text(t, "category_line", i18n.Args{
			"category": escape(c.Category),
			"count":    c.Count,
			"total":    t.money(c.Total),
		}))
	}
	return b.String(), nil
}

func reportRecords(h *BotHandler, ctx context.Context, t *turn) (string, error) {
	r, err := h.financeService.Records(ctx, t.userID)
	if err != nil {
		return "", err
	}
	if r.Total == 0 {
		return h.text(t, "report_empty", nil), nil
	}
	none := h.text(t, "none", nil)
	biggest := func(b models.Biggest) string {
		if !b.Found {
			return none
		}
		return h.text(t, "record_amount", i18n.Args{"amount": t.money(b.Amount), "note": escape(b.Note)})
	}
	day := none
	if r.ActiveDay.Found {
		day = h.text(t, "record_day", i18n.Args{"date": r.ActiveDay.Date, "count": r.ActiveDay.Count})
	}
	return h.text(t, "report_records", i18n.Args{
		"income":  biggest(r.BiggestIncome),
		"expense": biggest(r.BiggestExpense),
		"day":     day,
		"total":   r.Total,
	}), nil
}

func (h *BotHandler) historyLine(t *turn, txn models.Transaction) string {
	sign := "➕"
	if txn.Kind == models.KindExpense {
		sign = "➖"
	}
	return h.text(t, "history_line", i18n.Args{
		"sign":     sign,
		"date":     txn.OccurredAt.Format("02.01.2006"),
		"amount":   t.money(txn.Amount),
		"category": escape(truncate(txn.Category, noteRunes)),
		"note":     escape(truncate(txn.Note, noteRunes)),
	})
}

func reportHistory(h *BotHandler, ctx context.Context, t *turn) (string, error) {
	txns, err := h.financeService.ListTransactions(ctx, t.userID, historyLimit, 0)
	if err != nil {
		return "", err
	}
	if len(txns) == 0 {
		return h.text(t, "report_empty", nil), nil
	}
	lines := make([]string, 0, len(txns))
	for _, txn := range txns {
		lines = append(lines, h.historyLine(t, txn))
	}
	text, _ := fitLines(h.text(t, "report_history", i18n.Args{"count": len(txns)}), lines, "\n")
	return text, nil
}

// reportExport lists the latest transactions as semicolon separated rows.
func reportExport(h *BotHandler, ctx context.Context, t *turn) (string, error) {
	txns, err := h.financeService.ListTransactions(ctx, t.userID, exportLimit, 0)
	if err != nil {
		return "", err
	}
	if len(txns) == 0 {
		return h.text(t, "report_empty", nil), nil
	}

	// the header keeps the full count so the row budget below is never exceeded
	budget := maxMessageUnits - utf16Len(h.text(t, "report_export", i18n.Args{
		"count": len(txns),
		"rows":  "<pre></pre>",
	}))

	var b strings.Builder
	b.WriteString(escape("date;type;amount;category;note\n"))
	used, rows := utf16Len(b.String()), 0
	for _, txn := range txns {
		line := escape(strings.Join([]string{
			txn.OccurredAt.Format("2006-01-02 15:04"),
			txn.Kind,
			decimal.NewFromInt(txn.Amount).String(),
			strings.ReplaceAll(truncate(txn.Category, exportRunes), ";", ","),
			strings.ReplaceAll(truncate(txn.Note, exportRunes), ";", ","),
		}, ";") + "\n")
		if used+utf16Len(line) > budget {
			break
		}
		b.WriteString(line)
		used += utf16Len(line)
		rows++
	}

	if err := h.financeService.SaveExport(ctx, t.userID, "text", rows); err != nil {
		t.log(h.log).WithError(err).Warn("failed to record export")
	}
	return h.text(t, "report_export", i18n.Args{
		"count": rows,
		"rows":  "<pre>" + b.String() + "</pre>",
	}), nil
}

func reportAIHistory(h *BotHandler, ctx context.Context, t *turn) (string, error) {
	records, err := h.financeService.ListAnalyses(ctx, t.userID, aiLogLimit)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return h.text(t, "report_empty", nil), nil
	}
	lines := make([]string, 0, len(records))
	for _, r := range records {
		lines = append(lines, h.text(t, "ai_history_line", i18n.Args{
			"date":   r.CreatedAt.Format("02.01.2006 15:04"),
			"title":  h.text(t, "ai_title_"+r.AnalysisType, nil),
			"result": escape(truncate(r.Result, aiResultRunes)),
		}))
	}
	text, _ := fitLines(h.text(t, "report_ai_history", nil), lines, "\n\n")
	return text, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
