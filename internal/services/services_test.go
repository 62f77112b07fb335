package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/client/db/sqlite"
	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
)

var tashkent = time.FixedZone("UZT", 5*60*60)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// newFinance opens a fresh ledger with the clock frozen at now.
func newFinance(t *testing.T, now time.Time) *FinanceService {
	t.Helper()
	client, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), nil)
	if err != nil {
		t.Fatalf("failed to open ledger: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	s := NewFinanceService(client, tashkent, quietLogger())
	s.SetClock(func() time.Time { return now })
	return s
}

func onboard(t *testing.T, s *FinanceService, userID int64, name string, patch models.SettingsPatch) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.EnsureUser(ctx, userID, models.Profile{FirstName: name}); err != nil {
		t.Fatalf("EnsureUser(%d): %v", userID, err)
	}
	p := models.SettingsPatch{"onboarding_done": true}
	for k, v := range patch {
		p[k] = v
	}
	if err := s.UpdateSettings(ctx, userID, p); err != nil {
		t.Fatalf("UpdateSettings(%d): %v", userID, err)
	}
}

type recordingSender struct {
	mu     sync.Mutex
	sent   []chat.Message
	failTo map[int64]bool
}

func (r *recordingSender) Send(_ context.Context, msg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failTo[msg.ChatID] {
		return errors.New("bot was blocked by the user")
	}
	r.sent = append(r.sent, msg)
	return nil
}

func newScheduler(t *testing.T, s *FinanceService, sender chat.Sender) *Scheduler {
	t.Helper()
	catalog, err := i18n.Load()
	if err != nil {
		t.Fatalf("i18n.Load: %v", err)
	}
	log := quietLogger()
	return NewScheduler(s, catalog, NewBroadcaster(sender, s, log), tashkent, log)
}

func TestFire_OnlyOptedInUsers(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, tashkent)
	s := newFinance(t, now)
	onboard(t, s, 1, "Ali", nil)
	onboard(t, s, 2, "Vali", models.SettingsPatch{"notifications": false})
	// registered but never onboarded
	if _, err := s.EnsureUser(ctx, 3, models.Profile{}); err != nil {
		t.Fatal(err)
	}

	sender := &recordingSender{}
	sched := newScheduler(t, s, sender)

	recipients, err := sched.Recipients(ctx, TriggerDaily)
	if err != nil || len(recipients) != 1 || recipients[0] != 1 {
		t.Fatalf("Recipients = %v, %v", recipients, err)
	}

	sum, err := sched.Fire(ctx, TriggerDaily)
	if err != nil {
		t.Fatalf("Fire: %v", err)
	}
	if sum.Successes != 1 || sum.Failures != 0 || sum.BatchID == "" {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sender.sent) != 1 || sender.sent[0].ChatID != 1 {
		t.Fatalf("sent = %+v", sender.sent)
	}
	if !strings.Contains(sender.sent[0].Text, "Ali") || sender.sent[0].ParseMode != chat.ParseModeHTML {
		t.Errorf("daily message = %+v", sender.sent[0])
	}

	n, err := s.CountPushes(ctx, sum.BatchID, pushSent)
	if err != nil || n != 1 {
		t.Errorf("recorded pushes = %d, %v", n, err)
	}
}

func TestBroadcast_FailuresDoNotStopTheBatch(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, tashkent)
	s := newFinance(t, now)
	for _, id := range []int64{1, 2, 3, 4} {
		onboard(t, s, id, "U", nil)
	}

	sender := &recordingSender{failTo: map[int64]bool{2: true}}
	b := NewBroadcaster(sender, s, quietLogger())

	build := func(_ context.Context, userID int64) (chat.Message, error) {
		if userID == 3 {
			return chat.Message{}, errors.New("no data")
		}
		return chat.Message{Text: "hi"}, nil
	}
	sum := b.Broadcast(ctx, "test", []int64{1, 2, 3, 4}, build)

	if sum.Successes != 2 || sum.Failures != 2 {
		t.Fatalf("summary = %+v", sum)
	}
	if len(sender.sent) != 2 || sender.sent[0].ChatID != 1 || sender.sent[1].ChatID != 4 {
		t.Errorf("sent = %+v", sender.sent)
	}
	sent, _ := s.CountPushes(ctx, sum.BatchID, pushSent)
	failed, _ := s.CountPushes(ctx, sum.BatchID, pushFailed)
	if sent != 2 || failed != 2 {
		t.Errorf("journal sent=%d failed=%d", sent, failed)
	}
}

func TestBroadcast_EmptyRecipients(t *testing.T) {
	s := newFinance(t, time.Date(2025, 3, 10, 20, 0, 0, 0, tashkent))
	sender := &recordingSender{}
	sum := NewBroadcaster(sender, s, quietLogger()).Broadcast(context.Background(), "test", nil, nil)
	if sum.Successes != 0 || sum.Failures != 0 || len(sender.sent) != 0 {
		t.Errorf("summary = %+v, sent = %d", sum, len(sender.sent))
	}
}

func TestFire_MonthlyGoalMessage(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, tashkent)
	s := newFinance(t, now)
	onboard(t, s, 1, "<Ali>", models.SettingsPatch{"language": "en"})
	onboard(t, s, 2, "Vali", nil)

	goal, err := s.CreateGoal(ctx, 1, "Car", 1_000_000, "2025-05-30")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.IncrementGoal(ctx, goal.ID, 1, 600_000); err != nil {
		t.Fatal(err)
	}

	sender := &recordingSender{}
	sum, err := newScheduler(t, s, sender).Fire(ctx, TriggerMonthlyGoal)
	if err != nil || sum.Successes != 2 {
		t.Fatalf("Fire = %+v, %v", sum, err)
	}

	byChat := map[int64]string{}
	for _, m := range sender.sent {
		byChat[m.ChatID] = m.Text
	}
	if !strings.Contains(byChat[1], "&lt;Ali&gt;") {
		t.Errorf("name not escaped: %q", byChat[1])
	}
	if !strings.Contains(byChat[1], "🔄 Car: 60%") {
		t.Errorf("goal line missing: %q", byChat[1])
	}
	if !strings.Contains(byChat[2], "Vali") || strings.Contains(byChat[2], "%") {
		t.Errorf("empty goals message = %q", byChat[2])
	}
}

func TestFire_UnknownTrigger(t *testing.T) {
	s := newFinance(t, time.Date(2025, 3, 10, 20, 0, 0, 0, tashkent))
	if _, err := newScheduler(t, s, &recordingSender{}).Fire(context.Background(), Trigger("hourly")); err == nil {
		t.Error("expected error for unknown trigger")
	}
}

func TestParseTrigger(t *testing.T) {
	for _, name := range []string{"daily", " Weekly ", "monthly_goal", "monthly_feedback"} {
		if _, ok := ParseTrigger(name); !ok {
			t.Errorf("ParseTrigger(%q) failed", name)
		}
	}
	if _, ok := ParseTrigger("yearly"); ok {
		t.Error("ParseTrigger(yearly) succeeded")
	}
	for _, name := range Triggers {
		if _, ok := triggers[name]; !ok {
			t.Errorf("trigger %s has no schedule", name)
		}
	}
}

func TestIsLastDayOfMonth(t *testing.T) {
	tests := []struct {
		day  time.Time
		want bool
	}{
		{time.Date(2025, 2, 28, 21, 0, 0, 0, tashkent), true},
		{time.Date(2024, 2, 28, 21, 0, 0, 0, tashkent), false},
		{time.Date(2024, 2, 29, 21, 0, 0, 0, tashkent), true},
		{time.Date(2025, 4, 30, 21, 0, 0, 0, tashkent), true},
		{time.Date(2025, 3, 30, 21, 0, 0, 0, tashkent), false},
		{time.Date(2025, 12, 31, 21, 0, 0, 0, tashkent), true},
	}
	for _, tt := range tests {
		if got := isLastDayOfMonth(tt.day); got != tt.want {
			t.Errorf("isLastDayOfMonth(%s) = %v, want %v", tt.day.Format("2006-01-02"), got, tt.want)
		}
	}
}

func TestRecommendBudget(t *testing.T) {
	plan := RecommendBudget(5_000_000)
	if plan.Needs != 2_500_000 || plan.Wants != 1_500_000 || plan.Savings != 1_000_000 {
		t.Errorf("50/30/20 = %d/%d/%d", plan.Needs, plan.Wants, plan.Savings)
	}
	if len(plan.Categories) != 7 {
		t.Fatalf("got %d categories", len(plan.Categories))
	}

	var total int64
	for _, c := range plan.Categories {
		total += c.Amount
	}
	if total != plan.Income {
		t.Errorf("categories add up to %d, want %d", total, plan.Income)
	}
	if plan.Categories[0].Key != "housing" || plan.Categories[0].Amount != 1_250_000 {
		t.Errorf("first category = %+v", plan.Categories[0])
	}
}

func TestMonitorGoal(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, tashkent)
	tests := []struct {
		name      string
		goal      models.Goal
		percent   int64
		glyph     string
		remaining int64
		daysLeft  int
		known     bool
		monthly   int64
	}{
		{
			name:      "started",
			goal:      models.Goal{TargetAmount: 1_000, CurrentAmount: 100, Deadline: "2025-04-24"},
			percent:   10,
			glyph:     GlyphInProgress,
			remaining: 900,
			daysLeft:  45,
			known:     true,
			monthly:   450,
		},
		{
			name:      "halfway",
			goal:      models.Goal{TargetAmount: 1_000, CurrentAmount: 500, Deadline: "2025-03-11"},
			percent:   50,
			glyph:     GlyphHalfway,
			remaining: 500,
			daysLeft:  1,
			known:     true,
			monthly:   500,
		},
		{
			name:     "overshoot",
			goal:     models.Goal{TargetAmount: 1_000, CurrentAmount: 1_200, Deadline: "2025-06-01"},
			percent:  120,
			glyph:    GlyphDone,
			daysLeft: 83,
			known:    true,
		},
		{
			name:      "unreadable deadline",
			goal:      models.Goal{TargetAmount: 3, CurrentAmount: 1, Deadline: "soon"},
			percent:   33,
			glyph:     GlyphInProgress,
			remaining: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := MonitorGoal(tt.goal, now)
			if p.Percent != tt.percent || p.Glyph != tt.glyph || p.Remaining != tt.remaining {
				t.Errorf("progress = %d%% %s remaining %d", p.Percent, p.Glyph, p.Remaining)
			}
			if p.DeadlineKnown != tt.known || p.DaysLeft != tt.daysLeft || p.MonthlyNeed != tt.monthly {
				t.Errorf("deadline known=%v days=%d monthly=%d", p.DeadlineKnown, p.DaysLeft, p.MonthlyNeed)
			}
		})
	}
}

func TestMonthlyNeed(t *testing.T) {
	tests := []struct {
		remaining int64
		days      int
		want      int64
	}{
		{remaining: 0, days: 100, want: 0},
		{remaining: 100, days: 0, want: 100},
		{remaining: 100, days: 30, want: 100},
		{remaining: 100, days: 31, want: 50},
		{remaining: 1_000, days: 90, want: 334},
	}
	for _, tt := range tests {
		if got := MonthlyNeed(tt.remaining, tt.days); got != tt.want {
			t.Errorf("MonthlyNeed(%d, %d) = %d, want %d", tt.remaining, tt.days, got, tt.want)
		}
	}
}

func TestReports(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, tashkent)
	s := newFinance(t, now)
	onboard(t, s, 1, "Ali", nil)

	add := func(at time.Time, kind string, amount int64, category, note string) {
		t.Helper()
		s.SetClock(func() time.Time { return at })
		if _, err := s.AddTransaction(ctx, 1, kind, amount, category, note); err != nil {
			t.Fatalf("AddTransaction: %v", err)
		}
	}
	add(now.AddDate(0, -1, 0), models.KindIncome, 4_000_000, "Maosh", "fevral")
	add(now.AddDate(0, -1, 0), models.KindExpense, 1_000_000, "Uy-joy", "ijara")
	add(now.AddDate(0, 0, -2), models.KindIncome, 5_000_000, "Maosh", "mart")
	add(now.AddDate(0, 0, -1), models.KindExpense, 210_000, "Oziq-ovqat", "")
	add(now, models.KindExpense, 70_000, "Transport", "")
	add(now, models.KindExpense, 30_000, "Oziq-ovqat", "non")
	s.SetClock(func() time.Time { return now })

	rollup, err := s.MonthlyRollup(ctx, 1)
	if err != nil {
		t.Fatalf("MonthlyRollup: %v", err)
	}
	if rollup.Current.Income != 5_000_000 || rollup.Current.Expense != 310_000 {
		t.Errorf("current month = %+v", rollup.Current)
	}
	if rollup.Previous.Income != 4_000_000 || rollup.Previous.Balance != 3_000_000 {
		t.Errorf("previous month = %+v", rollup.Previous)
	}

	stats, err := s.WeeklyStats(ctx, 1)
	if err != nil {
		t.Fatalf("WeeklyStats: %v", err)
	}
	if stats.Transactions != 4 || stats.Totals.Expense != 310_000 || stats.AvgDayExpense != 44_286 {
		t.Errorf("weekly stats = %+v", stats)
	}
	if len(stats.TopExpenses) != 2 || stats.TopExpenses[0].Category != "Oziq-ovqat" || stats.TopExpenses[0].Total != 240_000 {
		t.Errorf("top expenses = %+v", stats.TopExpenses)
	}

	records, err := s.Records(ctx, 1)
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if records.Total != 6 || records.BiggestIncome.Amount != 5_000_000 || records.BiggestExpense.Note != "ijara" {
		t.Errorf("records = %+v", records)
	}

	if _, err := s.CreateBudget(ctx, 1, "", 4_500_000); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateGoal(ctx, 1, "Uy", 100_000_000, "2027-01-01"); err != nil {
		t.Fatal(err)
	}
	snap, err := s.Snapshot(ctx, 1)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Budget != 4_500_000 || len(snap.Goals) != 1 || snap.AllTime.Balance != 7_690_000 || len(snap.Categories) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}
