// Package common содержит общие утилиты, используемые во всём проекте.
// Сюда входят: работа с днями в часовом поясе приложения и мелкие проверки строк.
package common

import (
	"strings"
	"time"
	"unicode/utf8"
)

// DateKey возвращает дату в часовом поясе loc в формате 2006-01-02.
// Используется как часть ключа идемпотентности для ежедневных бонусов.
func DateKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// StartOfDay возвращает полночь дня t в часовом поясе loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// ValidText сообщает, можно ли сохранить строку в текстовую колонку PostgreSQL:
// корректный UTF-8 без NUL-байтов.
func ValidText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}

// CleanString обрезает пробелы и проверяет длину в символах (не байтах).
// Возвращает false, если строка длиннее max или не проходит ValidText.
//
// Примеры:
//
//	CleanString("  snake ", 16) → "snake", true
//	CleanString("очень длинная строка", 5) → "очень длинная строка", false
func CleanString(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	return s, ValidText(s) && utf8.RuneCountInString(s) <= max
}
