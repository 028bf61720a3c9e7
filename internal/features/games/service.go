// Package games, service.go: приём очков и начисление наград через леджер.
package games

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// Ledger: то, что нужно играм от движка леджера.
type Ledger interface {
	Apply(ctx context.Context, in ledger.Intent) (*ledger.Result, error)
}

// Service обрабатывает результаты игр.
type Service struct {
	ledger  Ledger
	policy  RewardPolicy
	catalog []Game
	games   map[string]Game
}

// NewService создаёт сервис игр с заданным каталогом.
func NewService(l Ledger, policy RewardPolicy, catalog []Game) *Service {
	games := make(map[string]Game, len(catalog))
	for _, g := range catalog {
		games[g.ID] = g
	}
	return &Service{ledger: l, policy: policy, catalog: catalog, games: games}
}

// Catalog возвращает список игр.
func (s *Service) Catalog() []Game {
	return s.catalog
}

// SubmitScore начисляет награду за одну сыгранную сессию.
//
// Одна сессия = одна запись леджера категории game с plays_delta = 1.
// run_id делает повторную отправку безопасной: второй раз придёт duplicate.
// В леджер он пишется с префиксом RunPrefix, чтобы не пересекаться со спинами.
func (s *Service) SubmitScore(ctx context.Context, playerID string, req ScoreRequest) (*ScoreResult, error) {
	g, ok := s.games[req.Game]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownGame, req.Game)
	}
	if req.Score < 0 || req.Score > s.policy.MaxScore {
		return nil, fmt.Errorf("%w: %d вне диапазона 0..%d", common.ErrInvalidScore, req.Score, s.policy.MaxScore)
	}

	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		return nil, fmt.Errorf("%w: run_id обязателен", common.ErrInvalidIntent)
	}

	coins, exp := s.policy.Reward(g, req.Score)

	in, err := ledger.NewIntent(ledger.IntentParams{
		PlayerID:        playerID,
		CoinDelta:       coins,
		ExperienceDelta: exp,
		PlaysDelta:      1,
		Category:        ledger.CategoryGame,
		RunID:           RunPrefix + runID,
		SourceGame:      g.ID,
		Reason:          fmt.Sprintf("%s: %d очков", g.Title, req.Score),
	})
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.Apply(ctx, in)
	if err != nil {
		return nil, err
	}

	out := &ScoreResult{
		Result:           res,
		Game:             g.ID,
		Score:            req.Score,
		CoinsEarned:      coins,
		ExperienceEarned: exp,
	}
	// Для повтора показываем то, что реально начислили в первый раз
	if res.Duplicate() {
		out.CoinsEarned, out.ExperienceEarned = 0, 0
		if res.Entry != nil {
			out.CoinsEarned = res.Entry.CoinDelta
			out.ExperienceEarned = res.Entry.ExperienceDelta
		}
	}

	log.WithFields(log.Fields{
		"player_id": playerID,
		"game":      g.ID,
		"score":     req.Score,
		"coins":     out.CoinsEarned,
		"duplicate": res.Duplicate(),
	}).Info("Результат игры принят")

	return out, nil
}
