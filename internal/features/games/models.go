// Package games принимает результаты сыгранных ретро-игр и начисляет за них награды.
// models.go описывает каталог игр и структуры запросов/ответов.
package games

import "serotonyl.ru/retro-wallet/internal/features/ledger"

// RunPrefix: run_id сессии пишется в леджер с этим префиксом.
const RunPrefix = "game:"

// Game: игра из каталога хаба.
type Game struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	// Multiplier: множитель награды в процентах (100 = x1).
	// Сложные игры дают больше за те же очки.
	Multiplier int64 `json:"multiplier"`
}

// DefaultCatalog: игры, доступные в хабе.
var DefaultCatalog = []Game{
	{ID: "snake", Title: "Snake", Multiplier: 100},
	{ID: "tetris", Title: "Tetris", Multiplier: 100},
	{ID: "pong", Title: "Pong", Multiplier: 80},
	{ID: "breakout", Title: "Breakout", Multiplier: 110},
	{ID: "pacman", Title: "Pac-Man", Multiplier: 120},
	{ID: "asteroids", Title: "Asteroids", Multiplier: 130},
	{ID: "space_invaders", Title: "Space Invaders", Multiplier: 130},
	{ID: "frogger", Title: "Frogger", Multiplier: 150},
}

// ScoreRequest: результат сессии от клиента.
type ScoreRequest struct {
	Game  string `json:"game" binding:"required"`
	Score int64  `json:"score"`
	// RunID: идентификатор сессии, выданный клиентом до начала игры.
	// Повторная отправка того же run_id не начислит награду второй раз.
	RunID string `json:"run_id" binding:"required"`
}

// ScoreResult: что получил игрок за сессию.
type ScoreResult struct {
	*ledger.Result
	Game             string `json:"game"`
	Score            int64  `json:"score"`
	CoinsEarned      int64  `json:"coins_earned"`
	ExperienceEarned int64  `json:"experience_earned"`
}
