package parser

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/Lina3386/moliya-bot/internal/models"
)

const (
	MaxAmount = 999_999_999
	MinAmount = 1

	MaxNameLength = 50

	DeadlineLayout = "2006-01-02"
)

var (
	ErrAmountEmpty       = errors.New("amount is empty")
	ErrAmountNotNumber   = errors.New("amount is not a number")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrAmountTooLarge    = errors.New("amount is too large")

	ErrDeadlineFormat    = errors.New("deadline must be YYYY-MM-DD")
	ErrDeadlineNotFuture = errors.New("deadline must be in the future")

	ErrNameEmpty   = errors.New("name is empty")
	ErrNameTooLong = errors.New("name is too long")
)

// longest first so "so'm" goes before the bare apostrophe
var currencyMarks = []string{
	"so'm", "so‘m", "so’m", "so`m", "сўм",
	"uzs", "usd", "eur", "rub", "kzt", "try", "cny",
	"руб", "сум", "som", "sum",
	"$", "€", "₽", "₸", "₺", "¥",
}

var separators = strings.NewReplacer(
	" ", "",
	"\u00a0", "",
	"\u202f", "",
	"\t", "",
	",", "",
	".", "",
	"'", "",
	"’", "",
	"‘", "",
	"`", "",
)

// ParseAmount turns user input like "1 000 000 so'm" into a positive integer.
func ParseAmount(s string) (int64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, mark := range currencyMarks {
		s = strings.ReplaceAll(s, mark, "")
	}
	s = separators.Replace(s)

	if s == "" {
		return 0, ErrAmountEmpty
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return 0, ErrAmountNotNumber
		}
	}

	digits := strings.TrimLeft(s, "0")
	if digits == "" {
		return 0, ErrAmountNotPositive
	}
	if len(digits) > len(strconv.Itoa(MaxAmount)) {
		return 0, ErrAmountTooLarge
	}

	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ErrAmountNotNumber
	}
	if n < MinAmount {
		return 0, ErrAmountNotPositive
	}
	if n > MaxAmount {
		return 0, ErrAmountTooLarge
	}
	return n, nil
}

// ParseDeadline accepts strictly YYYY-MM-DD dates after today.
func ParseDeadline(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) != len(DeadlineLayout) {
		return time.Time{}, ErrDeadlineFormat
	}
	d, err := time.ParseInLocation(DeadlineLayout, s, now.Location())
	if err != nil {
		return time.Time{}, ErrDeadlineFormat
	}
	if !d.After(Today(now)) {
		return time.Time{}, ErrDeadlineNotFuture
	}
	return d, nil
}

func Today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// DaysUntil counts whole calendar days from today to the deadline text.
// ok is false when the stored deadline does not parse.
func DaysUntil(deadline string, now time.Time) (days int, ok bool) {
	d, err := time.ParseInLocation(DeadlineLayout, strings.TrimSpace(deadline), now.Location())
	if err != nil {
		return 0, false
	}
	return calendarDays(Today(now), d), true
}

// calendarDays counts midnights between two dates; DST shifts do not matter.
func calendarDays(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameEmpty
	}
	if len([]rune(name)) > MaxNameLength {
		return "", ErrNameTooLong
	}
	return name, nil
}

// FormatAmount groups digits by three with spaces and attaches the currency symbol.
func FormatAmount(n int64, currency string) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	grouped := groupDigits(strconv.FormatInt(n, 10))

	c, ok := models.LookupCurrency(currency)
	if !ok {
		if currency == "" {
			return sign + grouped
		}
		return sign + grouped + " " + currency
	}
	if c.Prefix {
		return sign + c.Symbol + grouped
	}
	return sign + grouped + " " + c.Symbol
}

func groupDigits(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	head := len(s) % 3
	if head > 0 {
		b.WriteString(s[:head])
	}
	for i := head; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
