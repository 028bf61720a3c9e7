// Package ledger, intent.go: граница валидации.
// Сырые данные запроса превращаются в Intent только через NewIntent,
// и Service.Apply принимает только такой, уже проверенный Intent.
package ledger

import (
	"fmt"

	"serotonyl.ru/retro-wallet/internal/common"
)

// Ограничения на поля намерения.
const (
	MaxDelta        = 1_000_000_000 // Модуль любой дельты
	MaxPlayerIDLen  = 128
	MaxKeyLen       = 192 // idempotency_key и run_id
	MaxReasonLen    = 255
	MaxSourceLen    = 64
	MaxReferenceLen = 255
)

// IntentParams: сырые параметры транзакции от обработчика.
type IntentParams struct {
	PlayerID        string
	CoinDelta       int64
	ExperienceDelta int64
	TicketDelta     int64
	PlaysDelta      int64
	// Category можно не указывать, если CoinDelta != 0: тогда earn/spend по знаку.
	Category       Category
	IdempotencyKey string
	RunID          string
	Reason         string
	SourceGame     string
	Reference      string
}

// Intent: проверенное намерение транзакции. Создаётся только через NewIntent.
type Intent struct {
	p     IntentParams
	valid bool
}

// ValidationError: намерение отклонено до любого обращения к хранилищу.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap позволяет проверять errors.Is(err, common.ErrInvalidIntent).
func (e *ValidationError) Unwrap() error {
	return common.ErrInvalidIntent
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NewIntent проверяет и нормализует параметры транзакции.
//
// Правила:
//   - player_id не пустой
//   - |дельта| <= 10^9 для каждой из четырёх дельт
//   - хотя бы одна дельта не ноль
//   - earn только с положительными монетами, spend только с отрицательными
//   - строки в корректном UTF-8 и без NUL-байтов
func NewIntent(p IntentParams) (Intent, error) {
	var err error

	if p.PlayerID, err = cleanField("player_id", p.PlayerID, MaxPlayerIDLen); err != nil {
		return Intent{}, err
	}
	if p.PlayerID == "" {
		return Intent{}, invalid("player_id", "обязателен")
	}

	deltas := []struct {
		name  string
		value int64
	}{
		{"coin_delta", p.CoinDelta},
		{"experience_delta", p.ExperienceDelta},
		{"ticket_delta", p.TicketDelta},
		{"plays_delta", p.PlaysDelta},
	}
	allZero := true
	for _, d := range deltas {
		if d.value > MaxDelta || d.value < -MaxDelta {
			return Intent{}, invalid(d.name, fmt.Sprintf("модуль больше %d", MaxDelta))
		}
		if d.value != 0 {
			allZero = false
		}
	}
	if allZero {
		return Intent{}, invalid("deltas", "все дельты равны нулю")
	}

	// Категория: явная или по знаку монет
	if p.Category == "" {
		switch {
		case p.CoinDelta > 0:
			p.Category = CategoryEarn
		case p.CoinDelta < 0:
			p.Category = CategorySpend
		default:
			return Intent{}, invalid("category", "обязательна, если coin_delta = 0")
		}
	}
	if !p.Category.Valid() {
		return Intent{}, invalid("category", fmt.Sprintf("неизвестная категория %q", p.Category))
	}
	if p.Category == CategoryEarn && p.CoinDelta <= 0 {
		return Intent{}, invalid("coin_delta", "earn требует положительной суммы")
	}
	if p.Category == CategorySpend && p.CoinDelta >= 0 {
		return Intent{}, invalid("coin_delta", "spend требует отрицательной суммы")
	}

	if p.IdempotencyKey, err = cleanField("idempotency_key", p.IdempotencyKey, MaxKeyLen); err != nil {
		return Intent{}, err
	}
	if p.RunID, err = cleanField("run_id", p.RunID, MaxKeyLen); err != nil {
		return Intent{}, err
	}
	if p.Reason, err = cleanField("reason", p.Reason, MaxReasonLen); err != nil {
		return Intent{}, err
	}
	if p.SourceGame, err = cleanField("source_game", p.SourceGame, MaxSourceLen); err != nil {
		return Intent{}, err
	}
	if p.Reference, err = cleanField("reference", p.Reference, MaxReferenceLen); err != nil {
		return Intent{}, err
	}

	return Intent{p: p, valid: true}, nil
}

// cleanField обрезает пробелы и отклоняет строку, которую не примет PostgreSQL
// (битый UTF-8, NUL), или строку длиннее max символов.
func cleanField(field, s string, max int) (string, error) {
	if !common.ValidText(s) {
		return "", invalid(field, "недопустимые символы")
	}
	s, ok := common.CleanString(s, max)
	if !ok {
		return "", invalid(field, fmt.Sprintf("длиннее %d символов", max))
	}
	return s, nil
}

// PlayerID возвращает игрока транзакции.
func (i Intent) PlayerID() string { return i.p.PlayerID }

// Category возвращает категорию транзакции.
func (i Intent) Category() Category { return i.p.Category }

// CoinDelta возвращает изменение монет.
func (i Intent) CoinDelta() int64 { return i.p.CoinDelta }

// IdempotencyKey возвращает ключ идемпотентности (может быть пустым).
func (i Intent) IdempotencyKey() string { return i.p.IdempotencyKey }

// RunID возвращает идентификатор игровой сессии (может быть пустым).
func (i Intent) RunID() string { return i.p.RunID }

// Params возвращает копию нормализованных параметров.
func (i Intent) Params() IntentParams { return i.p }

// apply считает балансы после транзакции. Счёт не меняется.
// Если хоть один счётчик уходит в минус: ErrInsufficientBalance целиком.
func (i Intent) apply(acc Account) (Account, error) {
	next := acc
	next.Coins += i.p.CoinDelta
	next.Experience += i.p.ExperienceDelta
	next.Tickets += i.p.TicketDelta
	next.GamesPlayed += i.p.PlaysDelta

	switch {
	case next.Coins < 0:
		return acc, fmt.Errorf("%w: монеты: нужно %d, есть %d",
			common.ErrInsufficientBalance, -i.p.CoinDelta, acc.Coins)
	case next.Experience < 0:
		return acc, fmt.Errorf("%w: опыт: нужно %d, есть %d",
			common.ErrInsufficientBalance, -i.p.ExperienceDelta, acc.Experience)
	case next.Tickets < 0:
		return acc, fmt.Errorf("%w: билеты: нужно %d, есть %d",
			common.ErrInsufficientBalance, -i.p.TicketDelta, acc.Tickets)
	case next.GamesPlayed < 0:
		return acc, fmt.Errorf("%w: игры: нужно %d, есть %d",
			common.ErrInsufficientBalance, -i.p.PlaysDelta, acc.GamesPlayed)
	}
	return next, nil
}
