package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/models"
)

type UserRepository struct {
	client db.Client
	loc    *time.Location
}

func NewUserRepository(client db.Client, loc *time.Location) *UserRepository {
	return &UserRepository{client: client, loc: loc}
}

// EnsureUser inserts the user and default settings when absent. Idempotent.
func (r *UserRepository) EnsureUser(ctx context.Context, userID int64, profile models.Profile, now time.Time) (bool, error) {
	created := false
	err := r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		exists, err := userExists(tx, userID)
		if err != nil {
			return err
		}
		ts := formatTS(now, r.loc)
		if exists {
			_, err = tx.ExecContext(ctx,
				`UPDATE users SET username = ?, first_name = ?, last_name = ? WHERE user_id = ?`,
				profile.Username, profile.FirstName, profile.LastName, userID)
			return err
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (user_id, username, first_name, last_name, created_at) VALUES (?, ?, ?, ?, ?)`,
			userID, profile.Username, profile.FirstName, profile.LastName, ts)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}

		def := models.DefaultSettings(userID)
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_settings
			 (user_id, language, currency, notifications, auto_reports, daily_reminder, weekly_report, monthly_report, onboarding_done, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			userID, def.Language, def.Currency, boolToInt(def.Notifications), boolToInt(def.AutoReports),
			boolToInt(def.DailyReminder), boolToInt(def.WeeklyReport), boolToInt(def.MonthlyReport),
			boolToInt(def.OnboardingDone), ts, ts)
		if err != nil {
			return fmt.Errorf("failed to create settings: %w", err)
		}
		created = true
		return nil
	})
	return created, err
}

// GetUser returns nil without error when the user does not exist.
func (r *UserRepository) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	user := &models.User{}
	var username, firstName, lastName sql.NullString
	var createdAt string
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT user_id, username, first_name, last_name, created_at FROM users WHERE user_id = ?`, userID,
	).Scan(&user.UserID, &username, &firstName, &lastName, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, r.client.Classify(err)
	}
	user.Username = username.String
	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.CreatedAt = parseTS(createdAt, r.loc)
	return user, nil
}

type UserCounts struct {
	Users       int64 `json:"users"`
	Onboarded   int64 `json:"onboarded"`
	Notified    int64 `json:"notifications"`
	AutoReports int64 `json:"auto_reports"`
}

func (r *UserRepository) Counts(ctx context.Context) (UserCounts, error) {
	var c UserCounts
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM users),
			COALESCE(SUM(onboarding_done), 0),
			COALESCE(SUM(CASE WHEN onboarding_done = 1 AND notifications = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN onboarding_done = 1 AND auto_reports = 1 THEN 1 ELSE 0 END), 0)
		 FROM user_settings`,
	).Scan(&c.Users, &c.Onboarded, &c.Notified, &c.AutoReports)
	if err != nil {
		return UserCounts{}, r.client.Classify(err)
	}
	return c, nil
}

var eraseOrder = []string{
	`DELETE FROM transactions WHERE user_id = ?`,
	`DELETE FROM goals WHERE user_id = ?`,
	`DELETE FROM budgets WHERE user_id = ?`,
	`DELETE FROM ai_analysis_history WHERE user_id = ?`,
	`DELETE FROM export_history WHERE user_id = ?`,
	`DELETE FROM push_notifications WHERE user_id = ?`,
	`DELETE FROM user_settings WHERE user_id = ?`,
	`DELETE FROM users WHERE user_id = ?`,
}

// EraseUserData removes every row of the user in one transaction.
func (r *UserRepository) EraseUserData(ctx context.Context, userID int64) error {
	return r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		for _, q := range eraseOrder {
			if _, err := tx.ExecContext(ctx, q, userID); err != nil {
				return fmt.Errorf("failed to erase user data: %w", err)
			}
		}
		return nil
	})
}
