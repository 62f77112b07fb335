package models

import "time"

const (
	KindIncome  = "income"
	KindExpense = "expense"

	GoalActive    = "active"
	GoalCompleted = "completed"

	PeriodMonthly = "monthly"

	LangUz = "uz"
	LangRu = "ru"
	LangEn = "en"

	DefaultLanguage = LangUz
	DefaultCurrency = "UZS"
)

// User - пользователь, ключ = telegram id
type User struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

// Profile is what the chat transport knows about a sender.
type Profile struct {
	Username     string
	FirstName    string
	LastName     string
	LanguageCode string
}

// Settings - настройки пользователя (1:1 с User).
// Persisted is false when the row is missing and the defaults are returned.
type Settings struct {
	UserID         int64
	Language       string
	Currency       string
	Notifications  bool
	AutoReports    bool
	DailyReminder  bool
	WeeklyReport   bool
	MonthlyReport  bool
	OnboardingDone bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Persisted      bool
}

func DefaultSettings(userID int64) Settings {
	return Settings{
		UserID:        userID,
		Language:      DefaultLanguage,
		Currency:      DefaultCurrency,
		Notifications: true,
		DailyReminder: true,
		WeeklyReport:  true,
		MonthlyReport: true,
	}
}

// SettingsPatch is a partial update; nil fields are left untouched.
type SettingsPatch map[string]any

// Transaction - доход или расход
type Transaction struct {
	ID         int64
	UserID     int64
	Kind       string
	Amount     int64
	Category   string
	Note       string
	OccurredAt time.Time
}

// Goal - цель накопления. Deadline is kept as the YYYY-MM-DD text it was entered with.
type Goal struct {
	ID            int64
	UserID        int64
	Name          string
	TargetAmount  int64
	CurrentAmount int64
	Deadline      string
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Budget - месячный бюджет. Category is empty for the overall income budget.
type Budget struct {
	ID        int64
	UserID    int64
	Category  string
	Amount    int64
	Spent     int64
	Period    string
	CreatedAt time.Time
}

type Totals struct {
	Income  int64 `json:"income"`
	Expense int64 `json:"expense"`
	Balance int64 `json:"balance"`
}

type CategoryTotal struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
	Total    int64  `json:"total"`
}

// Biggest is a tombstone when Found is false.
type Biggest struct {
	Found  bool
	Amount int64
	Note   string
}

// ActiveDay is a tombstone when Found is false.
type ActiveDay struct {
	Found bool
	Date  string
	Count int64
}

type AnalysisRecord struct {
	ID           int64
	UserID       int64
	AnalysisType string
	Result       string
	CreatedAt    time.Time
}

type PushRecord struct {
	BatchID string
	UserID  int64
	Topic   string
	Status  string
	Error   string
}
