// Package validation содержит функции валидации входных данных.
package validation

import (
	"strings"
	"unicode"
)

// IsValidEmail проверяет, что адрес содержит '@' с непустыми частями
// по обе стороны.
func IsValidEmail(email string) bool {
	local, domain, ok := strings.Cut(email, "@")
	return ok && local != "" && domain != ""
}

// minPhoneDigits — минимальное число цифр в телефонном номере.
const minPhoneDigits = 5

// IsValidPhone проверяет телефонный номер: необязательный ведущий '+',
// далее только цифры, пробелы и дефисы, не меньше minPhoneDigits цифр.
func IsValidPhone(phone string) bool {
	rest := strings.TrimPrefix(phone, "+")
	digits := 0
	for _, ch := range rest {
		switch {
		case unicode.IsDigit(ch):
			digits++
		case ch == ' ' || ch == '-':
		default:
			return false
		}
	}
	return digits >= minPhoneDigits
}
