// Package spin, service.go: спин как одна запись леджера.
// Билет списывается и приз начисляется в одной транзакции:
// без билета приза нет, повтор spin_id отдаёт тот же приз без второго списания.
package spin

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// Ledger: то, что нужно спину от леджера.
type Ledger interface {
	Apply(ctx context.Context, in ledger.Intent) (*ledger.Result, error)
}

// Service крутит колесо.
type Service struct {
	ledger     Ledger
	wheel      *Wheel
	rnd        Roller
	ticketCost int64
	enabled    bool
}

// NewService создаёт сервис спина.
func NewService(l Ledger, wheel *Wheel, rnd Roller, ticketCost int64, enabled bool) *Service {
	return &Service{ledger: l, wheel: wheel, rnd: rnd, ticketCost: ticketCost, enabled: enabled}
}

// Prizes возвращает сектора колеса.
func (s *Service) Prizes() []Prize {
	return s.wheel.Prizes()
}

// Spin списывает билет и начисляет приз.
func (s *Service) Spin(ctx context.Context, playerID string, req SpinRequest) (*SpinResult, error) {
	if !s.enabled {
		return nil, common.ErrSpinDisabled
	}
	spinID := strings.TrimSpace(req.SpinID)
	if spinID == "" {
		return nil, fmt.Errorf("%w: spin_id обязателен", common.ErrInvalidIntent)
	}

	prize, err := s.wheel.Roll(s.rnd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrStorage, err)
	}

	in, err := ledger.NewIntent(ledger.IntentParams{
		PlayerID:    playerID,
		CoinDelta:   prize.Coins,
		TicketDelta: -s.ticketCost,
		Category:    ledger.CategoryReward,
		RunID:       RunPrefix + spinID,
		SourceGame:  SourceSpin,
		Reference:   prize.ID,
		Reason:      fmt.Sprintf("Колесо удачи: %d монет", prize.Coins),
	})
	if err != nil {
		return nil, err
	}

	res, err := s.ledger.Apply(ctx, in)
	if err != nil {
		return nil, err
	}

	// Повтор: показываем приз первого спина, а не только что выпавший
	if res.Duplicate() && res.Entry != nil {
		prize = Prize{ID: res.Entry.Reference, Coins: res.Entry.CoinDelta}
	}

	log.WithFields(log.Fields{
		"player_id": playerID,
		"spin_id":   req.SpinID,
		"prize":     prize.Coins,
		"duplicate": res.Duplicate(),
	}).Info("Спин колеса")

	return &SpinResult{Result: res, Prize: prize}, nil
}
