// Package rewards управляет ежедневным бонусом и стриками (сериями дней подряд).
// models.go описывает таблицу наград и результат получения бонуса.
package rewards

import (
	"time"

	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// SourceDaily: source_game записей ежедневного бонуса. По нему же считается стрик.
const SourceDaily = "daily_bonus"

// StreakRewards: надбавка за стрик по дням.
// Индекс массива = день стрика - 1. С 7-го дня и далее: 70 монет.
var StreakRewards = []int64{10, 20, 30, 40, 50, 60, 70}

// MaxStreakLookback: сколько дней назад смотрим, считая стрик.
// Дальше надбавка всё равно не растёт.
const MaxStreakLookback = 7

// StreakBonus возвращает надбавку за day-й день стрика (day >= 1).
// День 1 → 10, День 2 → 20, ..., День 7+ → 70
func StreakBonus(day int) int64 {
	if day < 1 {
		return 0
	}
	if day > len(StreakRewards) {
		return StreakRewards[len(StreakRewards)-1]
	}
	return StreakRewards[day-1]
}

// DailyResult: результат получения ежедневного бонуса.
type DailyResult struct {
	*ledger.Result
	Day         int       `json:"streak_day"`
	Coins       int64     `json:"coins"`
	Tickets     int64     `json:"tickets"`
	NextClaimAt time.Time `json:"next_claim_at"`
}
