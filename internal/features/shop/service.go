// Package shop, service.go: покупка товара одной записью леджера.
package shop

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// Ledger: то, что нужно магазину от леджера.
type Ledger interface {
	Apply(ctx context.Context, in ledger.Intent) (*ledger.Result, error)
}

// Service управляет покупками.
type Service struct {
	ledger  Ledger
	catalog []Item
	items   map[string]Item
	enabled bool
}

// NewService создаёт сервис магазина.
func NewService(l Ledger, catalog []Item, enabled bool) *Service {
	items := make(map[string]Item, len(catalog))
	for _, it := range catalog {
		items[it.ID] = it
	}
	return &Service{ledger: l, catalog: catalog, items: items, enabled: enabled}
}

// Items возвращает каталог.
func (s *Service) Items() []Item {
	return s.catalog
}

// Purchase списывает монеты и выдаёт эффекты товара атомарно.
// Не хватает монет: ErrInsufficientBalance, ничего не изменилось.
func (s *Service) Purchase(ctx context.Context, playerID string, req PurchaseRequest) (*PurchaseResult, error) {
	if !s.enabled {
		return nil, common.ErrShopDisabled
	}

	item, ok := s.items[req.ItemID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownItem, req.ItemID)
	}
	qty := req.Quantity
	if qty == 0 {
		qty = MinQuantity
	}
	if qty < MinQuantity || qty > MaxQuantity {
		return nil, fmt.Errorf("%w: %d, допустимо %d..%d", common.ErrInvalidQuantity, qty, MinQuantity, MaxQuantity)
	}

	total := item.Cost * qty
	in, err := ledger.NewIntent(ledger.IntentParams{
		PlayerID:        playerID,
		CoinDelta:       -total,
		TicketDelta:     item.Tickets * qty,
		ExperienceDelta: item.Experience * qty,
		Category:        ledger.CategorySpend,
		IdempotencyKey:  req.IdempotencyKey,
		SourceGame:      "shop",
		Reference:       item.ID,
		Reason:          fmt.Sprintf("Покупка: %s x%d", item.Title, qty),
	})
	if err != nil {
		return nil, err
	}
	if in.IdempotencyKey() == "" {
		return nil, fmt.Errorf("%w: idempotency_key обязателен", common.ErrInvalidIntent)
	}

	res, err := s.ledger.Apply(ctx, in)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"player_id": playerID,
		"item":      item.ID,
		"quantity":  qty,
		"total":     total,
		"duplicate": res.Duplicate(),
	}).Info("Покупка в магазине")

	return &PurchaseResult{Result: res, Item: item, Quantity: qty, Total: total}, nil
}
