// Package shop реализует магазин хаба: товары покупаются за монеты.
// models.go описывает каталог и структуры покупки.
package shop

import "serotonyl.ru/retro-wallet/internal/features/ledger"

// Ограничения покупки.
const (
	MinQuantity = 1
	MaxQuantity = 10
)

// Item: товар каталога. Эффекты начисляются за единицу товара.
type Item struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Cost        int64  `json:"cost"` // Цена в монетах за штуку
	Tickets     int64  `json:"tickets,omitempty"`
	Experience  int64  `json:"experience,omitempty"`
	Description string `json:"description"`
}

// DefaultCatalog: товары магазина.
var DefaultCatalog = []Item{
	{ID: "ticket", Title: "Билет", Cost: 100, Tickets: 1, Description: "Один спин колеса удачи"},
	{ID: "ticket_pack", Title: "Пачка билетов", Cost: 450, Tickets: 5, Description: "Пять спинов со скидкой"},
	{ID: "exp_boost", Title: "Буст опыта", Cost: 300, Experience: 500, Description: "+500 опыта сразу"},
	{ID: "arcade_bundle", Title: "Аркадный набор", Cost: 1000, Tickets: 8, Experience: 1000, Description: "Билеты и опыт для новичков"},
}

// PurchaseRequest: запрос покупки от клиента.
type PurchaseRequest struct {
	ItemID   string `json:"item_id" binding:"required"`
	Quantity int64  `json:"quantity"`
	// IdempotencyKey обязателен: клиент создаёт его до первой попытки
	// и повторяет с ним же при таймауте.
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
}

// PurchaseResult: результат покупки.
type PurchaseResult struct {
	*ledger.Result
	Item     Item  `json:"item"`
	Quantity int64 `json:"quantity"`
	Total    int64 `json:"total"`
}
