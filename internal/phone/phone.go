// Package phone приводит филиппинские номера телефонов к набору
// эквивалентных текстовых представлений. Никакой проверки по номерному
// плану здесь нет — только синтаксическая перезапись префиксов.
package phone

import "strings"

// CountryCode — телефонный код страны (Филиппины).
const CountryCode = "63"

// Variants возвращает четыре канонических представления одного номера:
// исходную строку без изменений, локальную форму с ведущим нулём,
// международную форму с "+" и международную без "+".
// Для нераспознанной формы возвращается только исходная строка.
// Используется исключительно для поиска по справочнику профилей: хранилище
// OTP намеренно ключуется сырой строкой клиента.
func Variants(raw string) []string {
	nsn, ok := NationalNumber(raw)
	if !ok {
		return []string{raw}
	}

	return []string{
		raw,
		"0" + nsn,
		"+" + CountryCode + nsn,
		CountryCode + nsn,
	}
}

// NationalNumber извлекает десятизначный национальный номер из любой из
// принимаемых форм. Второе значение false, если форма не распознана.
func NationalNumber(raw string) (string, bool) {
	s := strings.TrimSpace(raw)

	switch {
	case strings.HasPrefix(s, "+"+CountryCode):
		s = strings.TrimPrefix(s, "+"+CountryCode)
	case strings.HasPrefix(s, CountryCode) && len(s) == len(CountryCode)+10:
		s = strings.TrimPrefix(s, CountryCode)
	case strings.HasPrefix(s, "0") && len(s) == 11:
		s = strings.TrimPrefix(s, "0")
	}

	if len(s) != 10 || !allDigits(s) || s[0] != '9' {
		return "", false
	}

	return s, true
}

// Digits оставляет в строке только цифры.
func Digits(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
