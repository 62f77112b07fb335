package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/client"
	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/client/db/sqlite"
	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/parser"
	"github.com/Lina3386/moliya-bot/internal/services"
	"github.com/Lina3386/moliya-bot/internal/state"
)

const adminID = 1

var (
	tashkent = time.FixedZone("UZT", 5*60*60)
	today    = time.Date(2025, time.May, 1, 12, 0, 0, 0, tashkent)
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type recordingSender struct {
	mu   sync.Mutex
	sent []chat.Message
}

func (r *recordingSender) Send(_ context.Context, msg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) to(chatID int64) []chat.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []chat.Message
	for _, m := range r.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

type fixture struct {
	t       *testing.T
	handler *BotHandler
	finance *services.FinanceService
	catalog *i18n.Catalog
	states  *state.StateManager
	sender  *recordingSender
	store   db.Client
}

// newFixture wires a handler over a fresh ledger; the advice endpoint always fails.
func newFixture(t *testing.T, sender chat.Sender) *fixture {
	t.Helper()
	log := quietLogger()

	store, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), nil)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	finance := services.NewFinanceService(store, tashkent, log)
	finance.SetClock(func() time.Time { return today })

	catalog, err := i18n.Load()
	if err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}

	advice := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(advice.Close)

	recorder, _ := sender.(*recordingSender)
	if sender == nil {
		recorder = &recordingSender{}
		sender = recorder
	}

	states := state.NewStateManager()
	scheduler := services.NewScheduler(finance, catalog, services.NewBroadcaster(sender, finance, log), tashkent, log)
	h := NewBotHandler(
		sender,
		finance,
		catalog,
		states,
		client.NewAdviceClient(advice.URL, "key", "advice.local", log),
		scheduler,
		adminID,
		log,
	)
	return &fixture{
		t:       t,
		handler: h,
		finance: finance,
		catalog: catalog,
		states:  states,
		sender:  recorder,
		store:   store,
	}
}

func (f *fixture) say(userID int64, text string) {
	f.handler.HandleUpdate(context.Background(), chat.Update{
		ChatID:  userID,
		UserID:  userID,
		Text:    text,
		Profile: models.Profile{FirstName: "Ali"},
	})
}

func (f *fixture) last(userID int64) chat.Message {
	f.t.Helper()
	sent := f.sender.to(userID)
	if len(sent) == 0 {
		f.t.Fatalf("nothing sent to %d", userID)
	}
	return sent[len(sent)-1]
}

// msg is a uz message; every test user keeps the default language.
func (f *fixture) msg(key string, args i18n.Args) string {
	return f.catalog.Text("uz", key, args)
}

func (f *fixture) onboard(userID int64, patch models.SettingsPatch) {
	f.t.Helper()
	ctx := context.Background()
	if _, err := f.finance.EnsureUser(ctx, userID, models.Profile{FirstName: "Ali"}); err != nil {
		f.t.Fatalf("EnsureUser(%d): %v", userID, err)
	}
	p := models.SettingsPatch{"onboarding_done": true}
	for k, v := range patch {
		p[k] = v
	}
	if err := f.finance.UpdateSettings(ctx, userID, p); err != nil {
		f.t.Fatalf("UpdateSettings(%d): %v", userID, err)
	}
}

func (f *fixture) wantState(userID int64, want state.DialogState) {
	f.t.Helper()
	if got := f.states.GetState(userID); got != want {
		f.t.Fatalf("state = %d, want %d", got, want)
	}
}

func TestOnboarding_SkipEverything(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.say(10, "/start")
	f.wantState(10, state.StateOnbCurrency)
	if sent := f.sender.to(10); sent[0].Text != f.msg("welcome", nil) {
		t.Fatalf("first reply = %q", sent[0].Text)
	}

	f.say(10, "💵 Dollar")
	f.wantState(10, state.StateOnbIncome)
	f.say(10, "⏭ skip")
	f.wantState(10, state.StateOnbGoal)
	f.say(10, "⏭ skip")
	f.wantState(10, state.StateIdle)

	settings, err := f.finance.GetSettings(ctx, 10)
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if settings.Currency != "USD" || !settings.OnboardingDone {
		t.Fatalf("settings = %+v", settings)
	}
	if n, _ := f.finance.CountTransactions(ctx, 10); n != 0 {
		t.Fatalf("transactions = %d, want 0", n)
	}
	if got := f.last(10); got.Text != f.msg("onb_done", nil) || got.Keyboard == nil {
		t.Fatalf("last reply = %+v", got)
	}
}

func TestOnboarding_IncomeBecomesBudgetAndGoalContinues(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.say(11, "/start")
	f.say(11, "🇺🇿 So'm")
	f.say(11, "100 000")
	f.wantState(11, state.StateOnbGoal)

	budget, err := f.finance.LatestBudget(ctx, 11)
	if err != nil || budget == nil || budget.Amount != 100_000 {
		t.Fatalf("LatestBudget = %+v, %v", budget, err)
	}

	f.say(11, "Car")
	f.wantState(11, state.StateGoalAmount)
	if name := f.states.GetTempData(11, "name"); name != "Car" {
		t.Fatalf("draft goal name = %q", name)
	}
	settings, _ := f.finance.GetSettings(ctx, 11)
	if !settings.OnboardingDone {
		t.Fatal("onboarding must be finished before the goal flow")
	}
}

func TestStart_OnboardedUserGetsMenu(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(12, nil)

	f.handler.HandleUpdate(context.Background(), chat.Update{
		UserID:  12,
		Text:    "/start@moliya_bot",
		Profile: models.Profile{FirstName: "<Ali>"},
	})
	f.wantState(12, state.StateIdle)

	got := f.last(12)
	if got.Text != f.msg("welcome_back", i18n.Args{"name": "&lt;Ali&gt;"}) {
		t.Fatalf("reply = %q", got.Text)
	}
	if got.ParseMode != chat.ParseModeHTML {
		t.Fatalf("parse mode = %q", got.ParseMode)
	}
}

func TestIncomeFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(20, models.SettingsPatch{"currency": "UZS"})

	f.say(20, "💰 Income/Expense")
	f.wantState(20, state.StateTxnKind)
	f.say(20, "Income")
	f.wantState(20, state.StateIncCategory)
	f.say(20, "💵 Maosh")
	f.wantState(20, state.StateIncAmount)
	f.say(20, "1 000 000")
	f.wantState(20, state.StateIncNote)
	f.say(20, "October salary")
	f.wantState(20, state.StateIdle)

	txns, err := f.finance.ListTransactions(ctx, 20, 10, 0)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("transactions = %+v", txns)
	}
	got := txns[0]
	if got.Kind != models.KindIncome || got.Amount != 1_000_000 || got.Category != "Maosh" || got.Note != "October salary" {
		t.Fatalf("transaction = %+v", got)
	}

	total, err := f.finance.Balance(ctx, 20, models.AllTime())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if total != (models.Totals{Income: 1_000_000, Expense: 0, Balance: 1_000_000}) {
		t.Fatalf("balance = %+v", total)
	}
}

func TestExpenseFlow_DefaultNoteAndBudgetWarning(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(21, nil)
	if _, err := f.finance.CreateBudget(ctx, 21, "", 100_000); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	for _, text := range []string{"💰 Kirim/Chiqim", "Chiqim", "🍔 Food", "150 000", "⏭ Skip"} {
		f.say(21, text)
	}

	txns, _ := f.finance.ListTransactions(ctx, 21, 10, 0)
	if len(txns) != 1 || txns[0].Category != "Oziq-ovqat" || txns[0].Note != f.msg("default_note_expense", nil) {
		t.Fatalf("transactions = %+v", txns)
	}
	if !strings.Contains(f.last(21).Text, "⚠️") {
		t.Fatalf("expected budget warning in %q", f.last(21).Text)
	}
}

func TestAmount_RejectionKeepsState(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(30, nil)

	f.states.SetState(30, state.StateExpAmount)
	f.states.SetTempData(30, "category", "Transport")
	f.say(30, "abc")

	f.wantState(30, state.StateExpAmount)
	if got := f.last(30).Text; !strings.HasPrefix(got, f.msg("invalid_amount", nil)) {
		t.Fatalf("reply = %q", got)
	}
	if f.states.GetTempData(30, "category") != "Transport" {
		t.Fatal("retry must keep scratch data")
	}

	f.say(30, "-5")
	f.wantState(30, state.StateExpAmount)
	if got := f.last(30).Text; !strings.HasPrefix(got, f.msg("amount_not_positive", nil)) {
		t.Fatalf("reply = %q", got)
	}
}

func TestGoalDeadline_PastIsRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(40, nil)

	f.states.SetState(40, state.StateGoalDeadline)
	f.states.SetTempData(40, "name", "Car")
	f.states.SetTempData(40, "target", "10000000")
	f.say(40, "2020-01-01")

	f.wantState(40, state.StateGoalDeadline)
	if got := f.last(40).Text; !strings.HasPrefix(got, f.msg("deadline_past", nil)) {
		t.Fatalf("reply = %q", got)
	}
	goals, err := f.finance.ListGoals(context.Background(), 40, false)
	if err != nil || len(goals) != 0 {
		t.Fatalf("goals = %+v, %v", goals, err)
	}
}

func TestGoalFlow_CreateAndComplete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(41, nil)

	for _, text := range []string{"🎯 Goals", "➕ New goal", "Car", "10 000 000", "2026-05-01", "✅ Confirm"} {
		f.say(41, text)
	}
	f.wantState(41, state.StateIdle)

	goals, err := f.finance.ListGoals(ctx, 41, true)
	if err != nil || len(goals) != 1 {
		t.Fatalf("goals = %+v, %v", goals, err)
	}
	if g := goals[0]; g.Name != "Car" || g.TargetAmount != 10_000_000 || g.Deadline != "2026-05-01" {
		t.Fatalf("goal = %+v", g)
	}

	for _, text := range []string{"🎯 Goals", "💰 Top up goal", "car", "10 000 000"} {
		f.say(41, text)
	}
	f.wantState(41, state.StateIdle)

	goals, _ = f.finance.ListGoals(ctx, 41, false)
	if goals[0].Status != models.GoalCompleted || goals[0].CurrentAmount != 10_000_000 {
		t.Fatalf("goal after top up = %+v", goals[0])
	}
	if active, _ := f.finance.ListGoals(ctx, 41, true); len(active) != 0 {
		t.Fatalf("active goals = %+v", active)
	}
}

func TestTopUp_WithoutGoalsStaysInMenu(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(42, nil)

	f.say(42, "🎯 Maqsadlar")
	f.say(42, "💰 Maqsadni to'ldirish")

	f.wantState(42, state.StateGoalMenu)
	if got := f.last(42).Text; !strings.HasPrefix(got, f.msg("goals_none_active", nil)) {
		t.Fatalf("reply = %q", got)
	}
}

func TestBudgetFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(45, nil)

	f.say(45, "📋 Budget")
	f.wantState(45, state.StateBudgetIncome)
	if got := f.last(45).Text; !strings.HasPrefix(got, f.msg("budget_none", nil)) {
		t.Fatalf("budget view = %q", got)
	}

	f.say(45, "5 000 000")
	f.wantState(45, state.StateBudgetConfirm)
	plan := f.last(45).Text
	for _, want := range []string{
		parser.FormatAmount(2_500_000, "UZS"),
		parser.FormatAmount(1_500_000, "UZS"),
		parser.FormatAmount(1_000_000, "UZS"),
	} {
		if !strings.Contains(plan, want) {
			t.Errorf("plan %q lacks %q", plan, want)
		}
	}

	f.say(45, "✅ Tasdiqlash")
	f.wantState(45, state.StateIdle)
	budget, err := f.finance.LatestBudget(ctx, 45)
	if err != nil || budget == nil || budget.Amount != 5_000_000 {
		t.Fatalf("LatestBudget = %+v, %v", budget, err)
	}
}

func TestReports(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(46, nil)
	if _, err := f.finance.AddTransaction(ctx, 46, models.KindIncome, 1_000_000, "Maosh", "May"); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}
	if _, err := f.finance.AddTransaction(ctx, 46, models.KindExpense, 200_000, "Kiyim", "a; b"); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	f.say(46, "📊 Reports")
	f.wantState(46, state.StateReportsRoot)

	f.say(46, "💰 Balance")
	want := f.msg("report_balance", i18n.Args{
		"income":  parser.FormatAmount(1_000_000, "UZS"),
		"expense": parser.FormatAmount(200_000, "UZS"),
		"balance": parser.FormatAmount(800_000, "UZS"),
	})
	if got := f.last(46).Text; got != want {
		t.Fatalf("balance report = %q", got)
	}
	f.wantState(46, state.StateReportsRoot)

	f.say(46, "📤 Export")
	export := f.last(46).Text
	if !strings.Contains(export, "<pre>date;type;amount;category;note") || !strings.Contains(export, "expense;200000;Kiyim;a, b") {
		t.Fatalf("export = %q", export)
	}
	var exports int
	if err := f.store.DB().QueryRow(`SELECT COUNT(*) FROM export_history WHERE user_id = ?`, 46).Scan(&exports); err != nil || exports != 1 {
		t.Fatalf("export_history rows = %d, %v", exports, err)
	}

	f.say(46, "🗒 AI analyses")
	if got := f.last(46).Text; got != f.msg("report_empty", nil) {
		t.Fatalf("AI history = %q", got)
	}
	f.wantState(46, state.StateReportsRoot)
}

func TestAdvice_FallbackOnServerError(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(50, nil)
	if _, err := f.finance.AddTransaction(ctx, 50, models.KindExpense, 40_000, "Transport", "taxi"); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	f.say(50, "💡 AI Financial Advice")

	f.wantState(50, state.StateAIRoot)
	got := f.last(50)
	if !strings.Contains(got.Text, f.msg("ai_fallback", nil)) {
		t.Fatalf("reply = %q", got.Text)
	}
	if got.ParseMode != chat.ParseModePlain {
		t.Fatalf("advice must be sent plain, got %q", got.ParseMode)
	}
	analyses, err := f.finance.ListAnalyses(ctx, 50, 5)
	if err != nil || len(analyses) != 1 {
		t.Fatalf("analyses = %+v, %v", analyses, err)
	}
}

func TestNavigation(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(60, nil)

	f.states.SetState(60, state.StateExpAmount)
	f.states.SetTempData(60, "category", "Transport")

	f.say(60, "⬅️ Back")
	f.wantState(60, state.StateExpCategory)
	if got := f.last(60).Text; got != f.msg("exp_category", nil) {
		t.Fatalf("back reply = %q", got)
	}

	f.say(60, "⬅️ Orqaga")
	f.wantState(60, state.StateTxnKind)
	f.say(60, "⬅️ Orqaga")
	f.wantState(60, state.StateIdle)

	for i := 0; i < 2; i++ {
		f.say(60, "🏠 Main menu")
		f.wantState(60, state.StateIdle)
		if got := f.last(60).Text; got != f.msg("main_menu", nil) {
			t.Fatalf("main menu reply = %q", got)
		}
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(61, nil)

	f.say(61, "/cancel")
	if got := f.last(61).Text; got != f.msg("nothing_to_cancel", nil) {
		t.Fatalf("idle cancel = %q", got)
	}

	f.states.SetState(61, state.StateGoalAmount)
	f.states.SetTempData(61, "name", "Car")
	f.say(61, "❌ Отмена")
	f.wantState(61, state.StateIdle)
	if got := f.last(61).Text; got != f.msg("cancelled", nil) {
		t.Fatalf("cancel = %q", got)
	}
	if f.states.GetTempData(61, "name") != "" {
		t.Fatal("cancel must drop scratch data")
	}
}

func TestCommand_LeavingFlowDropsScratch(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(62, nil)

	f.say(62, "💰 Income/Expense")
	f.say(62, "Income")
	f.say(62, "💵 Salary")
	if f.states.GetTempData(62, "category") != "Maosh" {
		t.Fatalf("category = %q", f.states.GetTempData(62, "category"))
	}

	f.say(62, "/ai_byudjet")
	f.wantState(62, state.StateAIRoot)
	if f.states.GetTempData(62, "category") != "" {
		t.Fatal("income scratch leaked into the AI flow")
	}
}

func TestUnknownStateResetsToIdle(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(63, nil)

	f.states.SetState(63, state.DialogState(999))
	f.say(63, "hello")

	f.wantState(63, state.StateIdle)
	if got := f.last(63).Text; !strings.HasPrefix(got, f.msg("pick_from_menu", nil)) {
		t.Fatalf("reply = %q", got)
	}
}

func TestPush_NonAdminIsRefused(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(70, nil)
	f.states.SetState(70, state.StateExpAmount)

	f.say(70, "/push")

	f.wantState(70, state.StateExpAmount)
	if got := f.last(70).Text; got != f.msg("permission_denied", nil) {
		t.Fatalf("reply = %q", got)
	}
}

func TestPush_AdminBroadcast(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(adminID, nil)
	f.onboard(2, models.SettingsPatch{"notifications": false})
	f.onboard(3, nil)

	f.say(adminID, "/push")
	f.wantState(adminID, state.StatePushTopic)
	f.say(adminID, "🌙 Daily reminder")
	f.wantState(adminID, state.StatePushConfirm)

	topic := f.catalog.Button("uz", "push_daily")
	if got := f.last(adminID).Text; got != f.msg("push_confirm", i18n.Args{"topic": topic, "count": 2}) {
		t.Fatalf("confirm = %q", got)
	}

	f.say(adminID, "✅ Confirm")
	f.wantState(adminID, state.StateIdle)

	if got := f.last(adminID).Text; got != f.msg("push_done", i18n.Args{"successes": 2, "failures": 0}) {
		t.Fatalf("done = %q", got)
	}
	if n := len(f.sender.to(2)); n != 0 {
		t.Fatalf("opted-out user got %d messages", n)
	}
	if n := len(f.sender.to(3)); n != 1 {
		t.Fatalf("opted-in user got %d messages", n)
	}
}

func TestSettings_ToggleAndLanguage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(80, nil)

	f.say(80, "⚙️ Settings")
	f.say(80, "🔔 Reminders")
	f.wantState(80, state.StateSettingsRoot)
	settings, _ := f.finance.GetSettings(ctx, 80)
	if settings.Notifications {
		t.Fatal("notifications should be off after toggle")
	}

	f.say(80, "🌐 Language")
	f.wantState(80, state.StateSettingsLanguage)
	f.say(80, "🇬🇧 English")
	f.wantState(80, state.StateSettingsRoot)

	settings, _ = f.finance.GetSettings(ctx, 80)
	if settings.Language != "en" {
		t.Fatalf("language = %q", settings.Language)
	}
	// the confirmation and the re-rendered menu already use the new language
	sent := f.sender.to(80)
	if got := sent[len(sent)-2].Text; got != f.catalog.Text("en", "settings_saved", nil) {
		t.Fatalf("confirmation = %q", got)
	}
	kb := f.last(80).Keyboard
	if nav := kb[len(kb)-1]; nav[0] != "⬅️ Back" {
		t.Fatalf("nav row = %v", nav)
	}
}

func TestDeleteConfirmation_UserLanguageOnly(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(90, nil)
	if _, err := f.finance.AddTransaction(ctx, 90, models.KindIncome, 500_000, "Maosh", "May"); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	f.say(90, "⚙️ Sozlamalar")
	f.say(90, "🗑 Ma'lumotlarni o'chirish")
	f.wantState(90, state.StateSettingsDeleteConfirm)

	// the English label does not confirm for a uz user
	f.say(90, "Yes, delete")
	f.wantState(90, state.StateIdle)
	if got := f.last(90).Text; got != f.msg("delete_cancelled", nil) {
		t.Fatalf("reply = %q", got)
	}
	if n, _ := f.finance.CountTransactions(ctx, 90); n != 1 {
		t.Fatalf("transactions = %d, want 1", n)
	}

	f.say(90, "⚙️ Sozlamalar")
	f.say(90, "🗑 Ma'lumotlarni o'chirish")
	f.say(90, "Ha, o'chirish")
	f.wantState(90, state.StateIdle)

	got := f.last(90)
	if got.Text != f.msg("data_deleted", nil) || !got.RemoveKeyboard {
		t.Fatalf("reply = %+v", got)
	}
	if n, _ := f.finance.CountTransactions(ctx, 90); n != 0 {
		t.Fatalf("transactions = %d, want 0", n)
	}
}

func TestStoreFailure_SoftError(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(95, nil)
	f.states.SetState(95, state.StateIncAmount)

	f.store.Close()
	f.say(95, "1000")

	f.wantState(95, state.StateIdle)
	if got := f.last(95).Text; got != f.msg("soft_error", nil) {
		t.Fatalf("reply = %q", got)
	}
}

func TestDispatcher_KeepsPerUserOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(100, nil)
	d := NewDispatcher(f.handler, quietLogger())

	for _, text := range []string{"💰 Income/Expense", "Expense", "🚕 Transport", "25 000", "lunch"} {
		d.Dispatch(context.Background(), chat.Update{UserID: 100, ChatID: 100, Text: text})
	}
	d.Close()

	txns, err := f.finance.ListTransactions(context.Background(), 100, 10, 0)
	if err != nil || len(txns) != 1 {
		t.Fatalf("transactions = %+v, %v", txns, err)
	}
	if txns[0].Amount != 25_000 || txns[0].Note != "lunch" {
		t.Fatalf("transaction = %+v", txns[0])
	}

	d.Dispatch(context.Background(), chat.Update{UserID: 100, Text: "/help"})
	if n := len(f.sender.to(100)); n != 5 {
		t.Fatalf("closed dispatcher still handled an update, sent = %d", n)
	}
}

// panickySender panics on its first message.
type panickySender struct {
	recordingSender
	once sync.Once
}

func (p *panickySender) Send(ctx context.Context, msg chat.Message) error {
	p.once.Do(func() { panic("telegram exploded") })
	return p.recordingSender.Send(ctx, msg)
}

func TestDispatcher_RecoversFromPanic(t *testing.T) {
	sender := &panickySender{}
	f := newFixture(t, sender)
	f.onboard(101, nil)
	d := NewDispatcher(f.handler, quietLogger())

	d.Dispatch(context.Background(), chat.Update{UserID: 101, Text: "/help"})
	d.Dispatch(context.Background(), chat.Update{UserID: 101, Text: "/help"})
	d.Close()

	sent := sender.to(101)
	if len(sent) != 2 {
		t.Fatalf("sent = %+v", sent)
	}
	if sent[0].Text != f.msg("soft_error", nil) || sent[1].Text != f.msg("help", nil) {
		t.Fatalf("sent = %q, %q", sent[0].Text, sent[1].Text)
	}
	f.wantState(101, state.StateIdle)
}

func TestInterleavedUsersKeepTheirOwnFlows(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(501, nil)
	f.onboard(502, nil)

	steps := [][2]string{
		{"💰 Income/Expense", "💰 Income/Expense"},
		{"Expense", "Income"},
		{"🚕 Transport", "💵 Salary"},
		{"25 000", "1 000 000"},
	}
	for _, s := range steps {
		f.say(501, s[0])
		f.say(502, s[1])
	}

	f.wantState(501, state.StateExpNote)
	f.wantState(502, state.StateIncNote)
	if got := f.states.GetTempData(501, "category"); got != "Transport" {
		t.Fatalf("501 category = %q", got)
	}
	if got := f.states.GetTempData(502, "amount"); got != "1000000" {
		t.Fatalf("502 amount = %q", got)
	}

	f.say(502, "salary")
	f.say(501, "lunch")

	want := map[int64]models.Transaction{
		501: {Kind: models.KindExpense, Amount: 25_000, Category: "Transport", Note: "lunch"},
		502: {Kind: models.KindIncome, Amount: 1_000_000, Category: "Maosh", Note: "salary"},
	}
	for userID, w := range want {
		txns, err := f.finance.ListTransactions(ctx, userID, 10, 0)
		if err != nil || len(txns) != 1 {
			t.Fatalf("user %d transactions = %+v, %v", userID, txns, err)
		}
		got := txns[0]
		if got.Kind != w.Kind || got.Amount != w.Amount || got.Category != w.Category || got.Note != w.Note {
			t.Errorf("user %d transaction = %+v", userID, got)
		}
	}
}

func TestGoalMenu_ListsCompletedGoals(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(43, nil)

	g, err := f.finance.CreateGoal(ctx, 43, "Phone", 1_000_000, "2026-01-01")
	if err != nil {
		t.Fatalf("CreateGoal: %v", err)
	}
	if _, err := f.finance.IncrementGoal(ctx, g.ID, 43, 1_000_000); err != nil {
		t.Fatalf("IncrementGoal: %v", err)
	}

	f.say(43, "🎯 Goals")
	got := f.last(43).Text
	if !strings.Contains(got, services.GlyphDone+" <b>Phone</b>") {
		t.Fatalf("goals view = %q", got)
	}

	// completed goals cannot be topped up
	f.say(43, "💰 Top up goal")
	f.wantState(43, state.StateGoalMenu)
}

func TestExport_FitsMessageLimit(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.onboard(47, nil)
	note := strings.Repeat("n", 43)
	for i := 0; i < exportLimit; i++ {
		if _, err := f.finance.AddTransaction(ctx, 47, models.KindExpense, 12_345, "Oziq-ovqat", note); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}

	f.say(47, "📊 Reports")
	f.say(47, "📤 Export")

	got := f.last(47).Text
	if n := utf16Len(got); n > maxMessageUnits {
		t.Fatalf("export is %d units long", n)
	}
	rows := strings.Count(got, ";expense;")
	if rows == 0 || rows > exportLimit {
		t.Fatalf("export rows = %d", rows)
	}

	var recorded int
	if err := f.store.DB().QueryRow(`SELECT row_count FROM export_history WHERE user_id = ?`, 47).Scan(&recorded); err != nil {
		t.Fatalf("export_history: %v", err)
	}
	if recorded != rows {
		t.Errorf("recorded %d rows, sent %d", recorded, rows)
	}
}

func TestHistory_LongNoteIsCut(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(48, nil)
	if _, err := f.finance.AddTransaction(context.Background(), 48, models.KindExpense, 5_000, "Transport", strings.Repeat("x", 4000)); err != nil {
		t.Fatalf("AddTransaction: %v", err)
	}

	f.say(48, "📊 Reports")
	f.say(48, "🧾 History")

	got := f.last(48).Text
	if n := utf16Len(got); n > maxMessageUnits {
		t.Fatalf("history is %d units long", n)
	}
	if !strings.Contains(got, strings.Repeat("x", noteRunes)+"…") {
		t.Fatalf("note was not cut: %q", got[:200])
	}
}

type fixedAdvisor string

func (a fixedAdvisor) Advice(context.Context, string, string) string {
	return string(a)
}

func TestAdvice_LongAnswerIsClipped(t *testing.T) {
	f := newFixture(t, nil)
	f.onboard(51, nil)
	f.handler.advisor = fixedAdvisor(strings.Repeat("🙂", 3000))

	f.say(51, "💡 AI Financial Advice")

	got := f.last(51).Text
	if n := utf16Len(got); n > maxMessageUnits {
		t.Fatalf("advice is %d units long", n)
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("clipped advice should end with an ellipsis")
	}
}

func TestClip(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"salom", 10, "salom"},
		{"salom", 5, "salom"},
		{"salom", 4, "sal…"},
		// the emoji takes two units
		{"a🙂b", 3, "a…"},
		{"a🙂b", 4, "a🙂b"},
	}
	for _, tt := range tests {
		if got := clip(tt.in, tt.limit); got != tt.want {
			t.Errorf("clip(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestFitLines(t *testing.T) {
	line := strings.Repeat("y", 1000)
	text, n := fitLines("head", []string{line, line, line, line, line}, "\n")
	if n != 4 {
		t.Fatalf("fitted %d lines, want 4", n)
	}
	if utf16Len(text) > maxMessageUnits {
		t.Fatalf("text is %d units long", utf16Len(text))
	}
}
