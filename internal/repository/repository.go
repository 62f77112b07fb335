package repository

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrUnknownUser    = errors.New("unknown user")
	ErrInvalidAmount  = errors.New("amount must be positive")
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
)

// timestamps are stored as local wall-clock text so range filters compare lexically
const timestampLayout = "2006-01-02 15:04:05"

func formatTS(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(timestampLayout)
}

func parseTS(s string, loc *time.Location) time.Time {
	t, err := time.ParseInLocation(timestampLayout, s, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func userExists(tx *sql.Tx, userID int64) (bool, error) {
	var one int
	err := tx.QueryRow(`SELECT 1 FROM users WHERE user_id = ?`, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
