// Package common: pluralize.go содержит форматирование знаковых сумм и больших чисел.
// Основная логика плюрализации реализована в helpers.go.
package common

import "fmt"

// FormatCoinsAmount создаёт строку вида "+25 монет" или "-12 монет".
// Знак «+» или «-» добавляется автоматически.
//
// Примеры:
//
//	FormatCoinsAmount(25)  → "+25 монет"
//	FormatCoinsAmount(-12) → "-12 монет"
//	FormatCoinsAmount(1)   → "+1 монета"
func FormatCoinsAmount(amount int64) string {
	if amount >= 0 {
		return fmt.Sprintf("+%s %s", FormatNumber(amount), PluralizeCoins(amount))
	}
	return fmt.Sprintf("-%s %s", FormatNumber(-amount), PluralizeCoins(amount))
}

// FormatNumber форматирует число с разделителями тысяч (пробелами).
// Пример: FormatNumber(999975) → "999 975"
func FormatNumber(n int64) string {
	if n < 0 {
		return "-" + FormatNumber(-n)
	}
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("%s %03d", FormatNumber(n/1000), n%1000)
}
