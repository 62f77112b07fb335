package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/models"
)

const (
	TopicNotifications = "notifications"
	TopicAutoReports   = "auto_reports"
)

var settingsFlags = map[string]bool{
	"notifications":   true,
	"auto_reports":    true,
	"daily_reminder":  true,
	"weekly_report":   true,
	"monthly_report":  true,
	"onboarding_done": true,
}

type SettingsRepository struct {
	client db.Client
	loc    *time.Location
}

func NewSettingsRepository(client db.Client, loc *time.Location) *SettingsRepository {
	return &SettingsRepository{client: client, loc: loc}
}

// GetSettings returns defaults (Persisted=false) when the row is missing. It never inserts.
func (r *SettingsRepository) GetSettings(ctx context.Context, userID int64) (models.Settings, error) {
	s := models.Settings{UserID: userID}
	var createdAt, updatedAt string
	err := r.client.DB().QueryRowContext(ctx,
		`SELECT language, currency, notifications, auto_reports, daily_reminder, weekly_report, monthly_report,
		        onboarding_done, created_at, updated_at
		 FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&s.Language, &s.Currency, &s.Notifications, &s.AutoReports, &s.DailyReminder, &s.WeeklyReport,
		&s.MonthlyReport, &s.OnboardingDone, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultSettings(userID), nil
	}
	if err != nil {
		return models.DefaultSettings(userID), r.client.Classify(err)
	}
	if !models.IsLanguage(s.Language) {
		s.Language = models.DefaultLanguage
	}
	s.CreatedAt = parseTS(createdAt, r.loc)
	s.UpdatedAt = parseTS(updatedAt, r.loc)
	s.Persisted = true
	return s, nil
}

// UpdateSettings applies a partial update. Unknown keys are rejected and
// onboarding_done never goes back to false.
func (r *SettingsRepository) UpdateSettings(ctx context.Context, userID int64, patch models.SettingsPatch, now time.Time) error {
	if len(patch) == 0 {
		return nil
	}

	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sets []string
	var args []any
	for _, key := range keys {
		value := patch[key]
		switch {
		case key == "language":
			lang, ok := value.(string)
			if !ok || !models.IsLanguage(lang) {
				return fmt.Errorf("%w: %s=%v", ErrInvalidSetting, key, value)
			}
			sets = append(sets, "language = ?")
			args = append(args, lang)
		case key == "currency":
			code, ok := value.(string)
			if _, known := models.LookupCurrency(code); !ok || !known {
				return fmt.Errorf("%w: %s=%v", ErrInvalidSetting, key, value)
			}
			sets = append(sets, "currency = ?")
			args = append(args, code)
		case settingsFlags[key]:
			flag, ok := value.(bool)
			if !ok {
				return fmt.Errorf("%w: %s=%v", ErrInvalidSetting, key, value)
			}
			if key == "onboarding_done" {
				sets = append(sets, "onboarding_done = MAX(onboarding_done, ?)")
			} else {
				sets = append(sets, key+" = ?")
			}
			args = append(args, boolToInt(flag))
		default:
			return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
	}

	ts := formatTS(now, r.loc)
	sets = append(sets, "updated_at = ?")
	args = append(args, ts, userID)

	return r.client.WriteTx(ctx, func(tx *sql.Tx) error {
		exists, err := userExists(tx, userID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrUnknownUser
		}
		_, err = tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO user_settings (user_id, created_at, updated_at) VALUES (?, ?, ?)`,
			userID, ts, ts)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE user_settings SET `+strings.Join(sets, ", ")+` WHERE user_id = ?`, args...)
		return err
	})
}

// EnumerateOptedIn lists onboarded users that enabled the topic flag.
func (r *SettingsRepository) EnumerateOptedIn(ctx context.Context, topic string) ([]int64, error) {
	var column string
	switch topic {
	case TopicNotifications:
		column = "notifications"
	case TopicAutoReports:
		column = "auto_reports"
	default:
		return nil, fmt.Errorf("%w: topic %q", ErrUnknownSetting, topic)
	}

	rows, err := r.client.DB().QueryContext(ctx,
		`SELECT user_id FROM user_settings WHERE onboarding_done = 1 AND `+column+` = 1 ORDER BY user_id`)
	if err != nil {
		return nil, r.client.Classify(err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, r.client.Classify(err)
		}
		ids = append(ids, id)
	}
	return ids, r.client.Classify(rows.Err())
}
