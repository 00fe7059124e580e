// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: русская плюрализация, форматирование сумм, работа с датами наград.
package common

import (
	"fmt"
	"time"
)

// pluralForm выбирает форму слова по правилам русского языка.
//   - n%10==1 И n%100!=11 → one (1, 21, 101)
//   - n%10 в [2,3,4] И n%100 НЕ в [12,13,14] → few (2, 3, 22)
//   - остальные → many (0, 5-20, 25, 100)
func pluralForm(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastDigit := n % 10
	lastTwoDigits := n % 100

	if lastDigit == 1 && lastTwoDigits != 11 {
		return one
	}
	if lastDigit >= 2 && lastDigit <= 4 && (lastTwoDigits < 12 || lastTwoDigits > 14) {
		return few
	}
	return many
}

// PluralizeCoins возвращает правильную форму слова «монета» для числа n.
//
// Примеры:
//
//	PluralizeCoins(1)  → "монета"
//	PluralizeCoins(3)  → "монеты"
//	PluralizeCoins(25) → "монет"
//	PluralizeCoins(11) → "монет"
func PluralizeCoins(n int64) string {
	return pluralForm(n, "монета", "монеты", "монет")
}

// PluralizeHours возвращает правильную форму слова «час».
func PluralizeHours(n int64) string {
	return pluralForm(n, "час", "часа", "часов")
}

// FormatBalance форматирует сумму в читабельную строку.
// Пример: FormatBalance(25) → "25 монет"
func FormatBalance(balance int64) string {
	return fmt.Sprintf("%s %s", FormatNumber(balance), PluralizeCoins(balance))
}

// RewardDate возвращает календарный день награды: полночь по UTC.
// Все проверки «одна награда в день» считают день только так.
func RewardDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate форматирует день награды как 2006-01-02.
func FormatDate(t time.Time) string {
	return RewardDate(t).Format("2006-01-02")
}

// FormatDateTime форматирует время в формат "02.01.2006 15:04" (UTC).
func FormatDateTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04")
}

// FormatAge показывает возраст аккаунта в часах: "10 часов".
func FormatAge(age time.Duration) string {
	hours := int64(age / time.Hour)
	return fmt.Sprintf("%d %s", hours, PluralizeHours(hours))
}

// Границы постраничного вывода журналов
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page приводит limit/offset к допустимым значениям.
func Page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
