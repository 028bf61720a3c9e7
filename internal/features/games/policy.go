package games

import "serotonyl.ru/retro-wallet/internal/config"

// RewardPolicy переводит очки в монеты и опыт.
// Формула линейная и целиком задаётся конфигом:
//
//	монеты = очки / PointsPerCoin × множитель игры, не больше MaxCoinsPerRun
//	опыт   = очки / PointsPerExp  × множитель игры, не больше MaxExpPerRun
type RewardPolicy struct {
	PointsPerCoin  int64
	PointsPerExp   int64
	MaxCoinsPerRun int64
	MaxExpPerRun   int64
	MaxScore       int64
}

// PolicyFromConfig собирает политику наград из конфигурации.
func PolicyFromConfig(cfg *config.Config) RewardPolicy {
	return RewardPolicy{
		PointsPerCoin:  cfg.GamePointsPerCoin,
		PointsPerExp:   cfg.GamePointsPerExp,
		MaxCoinsPerRun: cfg.GameMaxCoinsPerRun,
		MaxExpPerRun:   cfg.GameMaxExpPerRun,
		MaxScore:       cfg.GameMaxScore,
	}
}

// Reward считает награду за score очков в игре g.
// Очки должны быть уже проверены: 0 <= score <= MaxScore.
func (p RewardPolicy) Reward(g Game, score int64) (coins, experience int64) {
	coins = capped(score/p.PointsPerCoin*g.Multiplier/100, p.MaxCoinsPerRun)
	experience = capped(score/p.PointsPerExp*g.Multiplier/100, p.MaxExpPerRun)
	return coins, experience
}

func capped(v, limit int64) int64 {
	if limit > 0 && v > limit {
		return limit
	}
	return v
}
