package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/models"
	"github.com/Lina3386/moliya-bot/internal/repository"
)

// FinanceService is the ledger store facade used by the dialog and the scheduler.
type FinanceService struct {
	client   db.Client
	users    *repository.UserRepository
	settings *repository.SettingsRepository
	txns     *repository.TransactionRepository
	goals    *repository.GoalRepository
	budgets  *repository.BudgetRepository
	history  *repository.HistoryRepository
	log      *logrus.Logger
	now      func() time.Time
}

func NewFinanceService(client db.Client, loc *time.Location, log *logrus.Logger) *FinanceService {
	return &FinanceService{
		client:   client,
		users:    repository.NewUserRepository(client, loc),
		settings: repository.NewSettingsRepository(client, loc),
		txns:     repository.NewTransactionRepository(client, loc),
		goals:    repository.NewGoalRepository(client, loc),
		budgets:  repository.NewBudgetRepository(client, loc),
		history:  repository.NewHistoryRepository(client, loc),
		log:      log,
		now:      func() time.Time { return time.Now().In(loc) },
	}
}

// SetClock replaces the wall clock; used by tests and by nothing else.
func (s *FinanceService) SetClock(now func() time.Time) {
	s.now = now
}

func (s *FinanceService) Now() time.Time {
	return s.now()
}

func (s *FinanceService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// EnsureUser регистрирует пользователя при первом контакте
func (s *FinanceService) EnsureUser(ctx context.Context, userID int64, profile models.Profile) (bool, error) {
	created, err := s.users.EnsureUser(ctx, userID, profile, s.now())
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to ensure user")
		return false, err
	}
	if created {
		s.log.WithFields(logrus.Fields{"user_id": userID, "username": profile.Username}).Info("👤 user created")
	}
	return created, nil
}

func (s *FinanceService) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.users.GetUser(ctx, userID)
}

func (s *FinanceService) GetSettings(ctx context.Context, userID int64) (models.Settings, error) {
	return s.settings.GetSettings(ctx, userID)
}

func (s *FinanceService) UpdateSettings(ctx context.Context, userID int64, patch models.SettingsPatch) error {
	if err := s.settings.UpdateSettings(ctx, userID, patch, s.now()); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to update settings")
		return err
	}
	return nil
}

func (s *FinanceService) EnumerateOptedIn(ctx context.Context, topic string) ([]int64, error) {
	return s.settings.EnumerateOptedIn(ctx, topic)
}

func (s *FinanceService) Counts(ctx context.Context) (repository.UserCounts, error) {
	return s.users.Counts(ctx)
}

// AddTransaction appends an income or expense dated now.
func (s *FinanceService) AddTransaction(ctx context.Context, userID int64, kind string, amount int64, category, note string) (*models.Transaction, error) {
	txn, err := s.txns.AddTransaction(ctx, models.Transaction{
		UserID:     userID,
		Kind:       kind,
		Amount:     amount,
		Category:   category,
		Note:       note,
		OccurredAt: s.now(),
	})
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "kind": kind}).Error("failed to add transaction")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "kind": kind, "amount": amount, "category": category}).Info("💾 transaction added")
	return txn, nil
}

func (s *FinanceService) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]models.Transaction, error) {
	return s.txns.ListTransactions(ctx, userID, limit, offset)
}

func (s *FinanceService) CountTransactions(ctx context.Context, userID int64) (int64, error) {
	return s.txns.Count(ctx, userID)
}

// Balance returns income, expense and their difference over the window.
func (s *FinanceService) Balance(ctx context.Context, userID int64, w models.Window) (models.Totals, error) {
	return s.txns.Totals(ctx, userID, w, s.now())
}

func (s *FinanceService) CategoryBreakdown(ctx context.Context, userID int64, kind string, w models.Window) ([]models.CategoryTotal, error) {
	return s.txns.CategoryBreakdown(ctx, userID, kind, w, s.now())
}

func (s *FinanceService) Biggest(ctx context.Context, userID int64, kind string) (models.Biggest, error) {
	return s.txns.Biggest(ctx, userID, kind)
}

func (s *FinanceService) MostActiveDay(ctx context.Context, userID int64) (models.ActiveDay, error) {
	return s.txns.MostActiveDay(ctx, userID)
}

func (s *FinanceService) CreateGoal(ctx context.Context, userID int64, name string, target int64, deadline string) (*models.Goal, error) {
	goal, err := s.goals.CreateGoal(ctx, userID, name, target, deadline, s.now())
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to create goal")
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "goal_id": goal.ID, "target": target}).Info("🎯 goal created")
	return goal, nil
}

func (s *FinanceService) ListGoals(ctx context.Context, userID int64, activeOnly bool) ([]models.Goal, error) {
	return s.goals.ListGoals(ctx, userID, activeOnly)
}

// IncrementGoal returns nil goal when it does not belong to the user.
func (s *FinanceService) IncrementGoal(ctx context.Context, goalID, userID, delta int64) (*models.Goal, error) {
	goal, err := s.goals.IncrementGoal(ctx, goalID, userID, delta, s.now())
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "goal_id": goalID}).Error("failed to increment goal")
		return nil, err
	}
	if goal != nil && goal.Status == models.GoalCompleted {
		s.log.WithFields(logrus.Fields{"user_id": userID, "goal_id": goalID}).Info("🎉 goal reached")
	}
	return goal, nil
}

func (s *FinanceService) CreateBudget(ctx context.Context, userID int64, category string, amount int64) (*models.Budget, error) {
	budget, err := s.budgets.CreateBudget(ctx, userID, category, amount, models.PeriodMonthly, s.now())
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to create budget")
		return nil, err
	}
	return budget, nil
}

func (s *FinanceService) ListBudgets(ctx context.Context, userID int64, year int, month time.Month) ([]models.Budget, error) {
	return s.budgets.ListBudgets(ctx, userID, year, month)
}

func (s *FinanceService) LatestBudget(ctx context.Context, userID int64) (*models.Budget, error) {
	return s.budgets.LatestBudget(ctx, userID)
}

// SpentByCategory is the expense breakdown of one calendar month.
func (s *FinanceService) SpentByCategory(ctx context.Context, userID int64, year int, month time.Month) ([]models.CategoryTotal, error) {
	return s.txns.CategoryBreakdown(ctx, userID, models.KindExpense, models.MonthOf(year, month), s.now())
}

// EraseUserData deletes everything about the user in one transaction.
func (s *FinanceService) EraseUserData(ctx context.Context, userID int64) error {
	if err := s.users.EraseUserData(ctx, userID); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("failed to erase user data")
		return err
	}
	s.log.WithField("user_id", userID).Warn("🗑 user data erased")
	return nil
}

func (s *FinanceService) SaveAnalysis(ctx context.Context, userID int64, analysisType, result string) error {
	return s.history.SaveAnalysis(ctx, userID, analysisType, result, s.now())
}

func (s *FinanceService) ListAnalyses(ctx context.Context, userID int64, limit int) ([]models.AnalysisRecord, error) {
	return s.history.ListAnalyses(ctx, userID, limit)
}

func (s *FinanceService) SaveExport(ctx context.Context, userID int64, format string, rowCount int) error {
	return s.history.SaveExport(ctx, userID, format, rowCount, s.now())
}

func (s *FinanceService) SavePush(ctx context.Context, rec models.PushRecord) error {
	return s.history.SavePush(ctx, rec, s.now())
}

func (s *FinanceService) CountPushes(ctx context.Context, batchID, status string) (int64, error) {
	return s.history.CountPushes(ctx, batchID, status)
}
