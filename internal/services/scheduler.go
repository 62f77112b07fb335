package services

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/chat"
	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/parser"
	"github.com/Lina3386/moliya-bot/internal/repository"
)

type Trigger string

const (
	TriggerDaily           Trigger = "daily"
	TriggerWeekly          Trigger = "weekly"
	TriggerMonthlyGoal     Trigger = "monthly_goal"
	TriggerMonthlyFeedback Trigger = "monthly_feedback"
)

// Triggers in menu order.
var Triggers = []Trigger{TriggerDaily, TriggerWeekly, TriggerMonthlyGoal, TriggerMonthlyFeedback}

type trigger struct {
	spec  string
	topic string
	build func(s *Scheduler) BuildFunc
	// guard skips a scheduled run, e.g. the feedback cron fires on days 28-31
	guard func(now time.Time) bool
}

var triggers = map[Trigger]trigger{
	TriggerDaily: {
		spec:  "0 20 * * *",
		topic: repository.TopicNotifications,
		build: (*Scheduler).dailyMessage,
	},
	TriggerWeekly: {
		spec:  "0 19 * * 0",
		topic: repository.TopicAutoReports,
		build: (*Scheduler).weeklyMessage,
	},
	TriggerMonthlyGoal: {
		spec:  "0 10 1 * *",
		topic: repository.TopicNotifications,
		build: (*Scheduler).monthlyGoalMessage,
	},
	TriggerMonthlyFeedback: {
		spec:  "0 21 28-31 * *",
		topic: repository.TopicAutoReports,
		build: (*Scheduler).monthlyFeedbackMessage,
		guard: isLastDayOfMonth,
	},
}

func isLastDayOfMonth(now time.Time) bool {
	return now.AddDate(0, 0, 1).Month() != now.Month()
}

// ParseTrigger accepts a trigger name as used in /push.
func ParseTrigger(name string) (Trigger, bool) {
	t := Trigger(strings.ToLower(strings.TrimSpace(name)))
	_, ok := triggers[t]
	return t, ok
}

// Scheduler fans out the periodic pushes.
type Scheduler struct {
	cron        *cron.Cron
	finance     *FinanceService
	catalog     *i18n.Catalog
	broadcaster *Broadcaster
	log         *logrus.Logger
}

func NewScheduler(finance *FinanceService, catalog *i18n.Catalog, broadcaster *Broadcaster, loc *time.Location, log *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log))),
		),
		finance:     finance,
		catalog:     catalog,
		broadcaster: broadcaster,
		log:         log,
	}
}

// Start registers every trigger and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, name := range Triggers {
		t := triggers[name]
		_, err := s.cron.AddFunc(t.spec, func() {
			if t.guard != nil && !t.guard(s.finance.Now()) {
				return
			}
			if _, err := s.Fire(ctx, name); err != nil {
				s.log.WithError(err).WithField("trigger", name).Error("scheduled push failed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule %s: %w", name, err)
		}
	}
	s.cron.Start()
	s.log.Info("⏰ scheduler started")
	return nil
}

// Stop waits for running jobs.
func (s *Scheduler) Stop() error {
	<-s.cron.Stop().Done()
	s.log.Info("⏹️ scheduler stopped")
	return nil
}

// Recipients lists the users the trigger would reach right now.
func (s *Scheduler) Recipients(ctx context.Context, name Trigger) ([]int64, error) {
	t, ok := triggers[name]
	if !ok {
		return nil, fmt.Errorf("unknown trigger %q", name)
	}
	return s.finance.EnumerateOptedIn(ctx, t.topic)
}

// Fire runs one trigger immediately, bypassing its calendar guard.
func (s *Scheduler) Fire(ctx context.Context, name Trigger) (Summary, error) {
	t, ok := triggers[name]
	if !ok {
		return Summary{}, fmt.Errorf("unknown trigger %q", name)
	}
	recipients, err := s.finance.EnumerateOptedIn(ctx, t.topic)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to enumerate %s recipients: %w", t.topic, err)
	}
	s.log.WithFields(logrus.Fields{"trigger": name, "recipients": len(recipients)}).Info("⏰ trigger fired")
	return s.broadcaster.Broadcast(ctx, string(name), recipients, t.build(s)), nil
}

type recipient struct {
	lang     string
	currency string
	name     string
}

func (s *Scheduler) recipient(ctx context.Context, userID int64) (recipient, error) {
	settings, err := s.finance.GetSettings(ctx, userID)
	if err != nil {
		return recipient{}, err
	}
	r := recipient{lang: s.catalog.Lang(settings.Language), currency: settings.Currency}
	user, err := s.finance.GetUser(ctx, userID)
	if err != nil {
		return recipient{}, err
	}
	if user != nil {
		r.name = html.EscapeString(user.FirstName)
	}
	if r.name == "" {
		r.name = s.catalog.Text(r.lang, "friend", nil)
	}
	return r, nil
}

func (r recipient) money(n int64) string {
	return parser.FormatAmount(n, r.currency)
}

func (s *Scheduler) dailyMessage() BuildFunc {
	return func(ctx context.Context, userID int64) (chat.Message, error) {
		r, err := s.recipient(ctx, userID)
		if err != nil {
			return chat.Message{}, err
		}
		today, err := s.finance.Balance(ctx, userID, models.LastDays(1))
		if err != nil {
			return chat.Message{}, err
		}
		return chat.Message{
			ChatID:    userID,
			ParseMode: chat.ParseModeHTML,
			Text: s.catalog.Text(r.lang, "push_daily", i18n.Args{
				"name":    r.name,
				"income":  r.money(today.Income),
				"expense": r.money(today.Expense),
			}),
		}, nil
	}
}

func (s *Scheduler) weeklyMessage() BuildFunc {
	return func(ctx context.Context, userID int64) (chat.Message, error) {
		r, err := s.recipient(ctx, userID)
		if err != nil {
			return chat.Message{}, err
		}
		stats, err := s.finance.WeeklyStats(ctx, userID)
		if err != nil {
			return chat.Message{}, err
		}

		top := s.catalog.Text(r.lang, "none", nil)
		if len(stats.TopExpenses) > 0 {
			top = html.EscapeString(stats.TopExpenses[0].Category)
		}
		return chat.Message{
			ChatID:    userID,
			ParseMode: chat.ParseModeHTML,
			Text: s.catalog.Text(r.lang, "push_weekly", i18n.Args{
				"name":    r.name,
				"income":  r.money(stats.Totals.Income),
				"expense": r.money(stats.Totals.Expense),
				"net":     r.money(stats.Totals.Balance),
				"top":     top,
				"count":   stats.Transactions,
			}),
		}, nil
	}
}

func (s *Scheduler) monthlyGoalMessage() BuildFunc {
	return func(ctx context.Context, userID int64) (chat.Message, error) {
		r, err := s.recipient(ctx, userID)
		if err != nil {
			return chat.Message{}, err
		}
		goals, err := s.finance.ListGoals(ctx, userID, true)
		if err != nil {
			return chat.Message{}, err
		}
		if len(goals) == 0 {
			return chat.Message{
				ChatID:    userID,
				ParseMode: chat.ParseModeHTML,
				Text:      s.catalog.Text(r.lang, "push_monthly_goal_empty", i18n.Args{"name": r.name}),
			}, nil
		}

		var b strings.Builder
		b.WriteString(s.catalog.Text(r.lang, "push_monthly_goal", i18n.Args{"name": r.name}))
		for _, p := range MonitorGoals(goals, s.finance.Now()) {
			b.WriteString("\n")
			b.WriteString(s.catalog.Text(r.lang, "push_monthly_goal_line", i18n.Args{
				"glyph":   p.Glyph,
				"goal":    html.EscapeString(p.Goal.Name),
				"percent": p.Percent,
				"monthly": r.money(p.MonthlyNeed),
			}))
		}
		return chat.Message{ChatID: userID, ParseMode: chat.ParseModeHTML, Text: b.String()}, nil
	}
}

func (s *Scheduler) monthlyFeedbackMessage() BuildFunc {
	return func(ctx context.Context, userID int64) (chat.Message, error) {
		r, err := s.recipient(ctx, userID)
		if err != nil {
			return chat.Message{}, err
		}
		rollup, err := s.finance.MonthlyRollup(ctx, userID)
		if err != nil {
			return chat.Message{}, err
		}

		verdict := "feedback_positive"
		if rollup.Current.Balance < 0 {
			verdict = "feedback_negative"
		}
		text := s.catalog.Text(r.lang, "push_monthly_feedback", i18n.Args{
			"name":    r.name,
			"income":  r.money(rollup.Current.Income),
			"expense": r.money(rollup.Current.Expense),
			"net":     r.money(rollup.Current.Balance),
			"verdict": s.catalog.Text(r.lang, verdict, nil),
		})
		return chat.Message{ChatID: userID, ParseMode: chat.ParseModeHTML, Text: text}, nil
	}
}
