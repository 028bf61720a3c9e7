// Package rewards, service.go: ежедневный бонус через леджер.
// Один бонус в календарный день (в часовом поясе приложения) гарантирует
// ключ идемпотентности daily:<player>:<дата>, а не проверка в коде.
package rewards

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/config"
	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// Ledger: то, что нужно наградам от леджера.
type Ledger interface {
	Apply(ctx context.Context, in ledger.Intent) (*ledger.Result, error)
	History(ctx context.Context, playerID string, f ledger.HistoryFilter) ([]*ledger.Entry, error)
}

// Options: настройки ежедневного бонуса.
type Options struct {
	Coins    int64 // Базовые монеты, к ним добавляется StreakBonus
	Tickets  int64
	Location *time.Location
	Enabled  bool
}

// OptionsFromConfig собирает Options из конфигурации.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Coins:    cfg.DailyRewardCoins,
		Tickets:  cfg.DailyRewardTickets,
		Location: cfg.Location(),
		Enabled:  cfg.FeatureDailyEnabled,
	}
}

// Service выдаёт ежедневные бонусы.
type Service struct {
	ledger Ledger
	opts   Options
	now    func() time.Time
}

// NewService создаёт сервис наград.
func NewService(l Ledger, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{ledger: l, opts: opts, now: time.Now}
}

// DailyKey: ключ идемпотентности бонуса игрока за день t.
func DailyKey(playerID string, t time.Time, loc *time.Location) string {
	return "daily:" + playerID + ":" + common.DateKey(t, loc)
}

// ClaimDaily выдаёт бонус за сегодня.
//
// Алгоритм:
//  1. Считаем стрик по записям daily_bonus за прошлые дни
//  2. Бонус = базовые монеты + StreakBonus(день), плюс билеты
//  3. Применяем с ключом daily:<player>:<сегодня>; второй раз за день будет duplicate
func (s *Service) ClaimDaily(ctx context.Context, playerID string) (*DailyResult, error) {
	if !s.opts.Enabled {
		return nil, common.ErrDailyDisabled
	}

	now := s.now()
	today := common.StartOfDay(now, s.opts.Location)

	day, err := s.streakDay(ctx, playerID, today)
	if err != nil {
		return nil, err
	}
	coins := s.opts.Coins + StreakBonus(day)

	in, err := ledger.NewIntent(ledger.IntentParams{
		PlayerID:       playerID,
		CoinDelta:      coins,
		TicketDelta:    s.opts.Tickets,
		Category:       ledger.CategoryReward,
		IdempotencyKey: DailyKey(playerID, now, s.opts.Location),
		SourceGame:     SourceDaily,
		Reason:         fmt.Sprintf("Ежедневный бонус, день %d", day),
	})
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.Apply(ctx, in)
	if err != nil {
		return nil, err
	}

	out := &DailyResult{
		Result:      res,
		Day:         day,
		Coins:       coins,
		Tickets:     s.opts.Tickets,
		NextClaimAt: today.AddDate(0, 0, 1),
	}
	if res.Duplicate() && res.Entry != nil {
		out.Coins = res.Entry.CoinDelta
		out.Tickets = res.Entry.TicketDelta
	}

	log.WithFields(log.Fields{
		"player_id": playerID,
		"day":       day,
		"coins":     out.Coins,
		"duplicate": res.Duplicate(),
	}).Debug("Ежедневный бонус")

	return out, nil
}

// streakDay возвращает номер дня стрика для сегодняшнего бонуса:
// 1 + число дней подряд до сегодня, за которые бонус был получен.
func (s *Service) streakDay(ctx context.Context, playerID string, today time.Time) (int, error) {
	entries, err := s.ledger.History(ctx, playerID, ledger.HistoryFilter{
		Category:   ledger.CategoryReward,
		SourceGame: SourceDaily,
		Since:      today.AddDate(0, 0, -MaxStreakLookback),
		Until:      today,
		Limit:      MaxStreakLookback,
	})
	if err != nil {
		return 0, err
	}

	claimed := make(map[string]bool, len(entries))
	for _, e := range entries {
		claimed[common.DateKey(e.CreatedAt, s.opts.Location)] = true
	}

	day := 1
	for d := today.AddDate(0, 0, -1); day <= MaxStreakLookback; d = d.AddDate(0, 0, -1) {
		if !claimed[common.DateKey(d, s.opts.Location)] {
			break
		}
		day++
	}
	return day, nil
}
