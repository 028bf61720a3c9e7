// Package spin реализует колесо удачи: спин стоит билет и даёт случайный приз в монетах.
// models.go описывает таблицу призов.
package spin

import "serotonyl.ru/retro-wallet/internal/features/ledger"

// SourceSpin: source_game записей спина.
const SourceSpin = "lucky_spin"

// RunPrefix: spin_id пишется в run_id леджера с этим префиксом.
const RunPrefix = "spin:"

// Prize: сектор колеса.
type Prize struct {
	ID     string `json:"id"`
	Coins  int64  `json:"coins"`
	Weight int64  `json:"-"` // Вес (вероятность выпадения)
}

// DefaultPrizes: сектора колеса с весами.
// Веса определяют вероятность: чем больше вес, тем чаще выпадает.
var DefaultPrizes = []Prize{
	{ID: "empty", Coins: 0, Weight: 30},     // 30%: пусто
	{ID: "coins_10", Coins: 10, Weight: 25}, // 25%
	{ID: "coins_25", Coins: 25, Weight: 20}, // 20%
	{ID: "coins_50", Coins: 50, Weight: 12}, // 12%
	{ID: "coins_100", Coins: 100, Weight: 8},
	{ID: "coins_250", Coins: 250, Weight: 4},
	{ID: "jackpot", Coins: 1000, Weight: 1}, // 1%: джекпот
}

// SpinRequest: запрос спина. SpinID выдаёт клиент, повтор с тем же SpinID безопасен.
type SpinRequest struct {
	SpinID string `json:"spin_id" binding:"required"`
}

// SpinResult: результат спина.
type SpinResult struct {
	*ledger.Result
	Prize Prize `json:"prize"`
}
