// Package admin реализует админские операции над кошельками: корректировки и сверку.
// Доступ по ключу администратора (Argon2id-хеш в ADMIN_KEY_HASH) с защитой от brute-force.
// models.go описывает запросы и попытки входа.
package admin

import (
	"time"

	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// SourceAdmin: source_game админских записей.
const SourceAdmin = "admin"

// KeyHeader: заголовок с админским ключом.
const KeyHeader = "X-Admin-Key"

// LoginAttempt: попытка входа (для защиты от brute-force).
type LoginAttempt struct {
	ID          int64
	ClientIP    string
	AttemptTime time.Time
	Success     bool
}

// CorrectionRequest: корректирующая транзакция.
// Ошибки не исправляются правкой записей: только новой записью с обратным знаком.
type CorrectionRequest struct {
	PlayerID        string          `json:"player_id" binding:"required"`
	CoinDelta       int64           `json:"coin_delta"`
	ExperienceDelta int64           `json:"experience_delta"`
	TicketDelta     int64           `json:"ticket_delta"`
	PlaysDelta      int64           `json:"plays_delta"`
	Category        ledger.Category `json:"category"`
	Reason          string          `json:"reason"`
	IdempotencyKey  string          `json:"idempotency_key"`
	Reference       string          `json:"reference"`
}

// ReconcileResult: результат сверки одного игрока.
type ReconcileResult struct {
	ledger.Drift
	Consistent bool `json:"consistent"`
}
