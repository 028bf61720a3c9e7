// Package ledger ведёт леджер кошелька игрока: монеты, опыт, билеты и сыгранные игры.
// models.go описывает счета, записи леджера и результаты применения транзакций.
//
// Главный инвариант: балансы счёта всегда равны сумме дельт всех его записей.
// Счёт меняет только Service.Apply, записи никогда не обновляются и не удаляются,
// исправления делаются новой записью с обратным знаком.
package ledger

import "time"

// Category: смысловая метка записи леджера (закрытый набор).
type Category string

const (
	CategoryEarn   Category = "earn"   // Начисление монет
	CategorySpend  Category = "spend"  // Списание монет (магазин)
	CategoryGame   Category = "game"   // Результат сыгранной игры
	CategoryReward Category = "reward" // Бонусы, спин, корректировки
)

// Valid проверяет, что категория из закрытого набора.
func (c Category) Valid() bool {
	switch c {
	case CategoryEarn, CategorySpend, CategoryGame, CategoryReward:
		return true
	}
	return false
}

// Ограничения уровня.
const (
	ExpPerLevel = 1000
	MaxLevel    = 999
)

// Level вычисляет уровень по опыту: min(999, опыт/1000 + 1).
// Уровень нигде не хранится как самостоятельная правда: в БД это generated column.
func Level(experience int64) int {
	if experience < 0 {
		return 1
	}
	lvl := experience/ExpPerLevel + 1
	if lvl > MaxLevel {
		return MaxLevel
	}
	return int(lvl)
}

// Account: счёт игрока. Ровно одна запись на player_id.
type Account struct {
	PlayerID    string    `json:"player_id"`
	Coins       int64     `json:"coins"`
	Experience  int64     `json:"experience"`
	Tickets     int64     `json:"tickets"`
	GamesPlayed int64     `json:"games_played"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Level: производный уровень счёта.
func (a *Account) Level() int {
	return Level(a.Experience)
}

// Snapshot возвращает проекцию счёта для отображения.
func (a *Account) Snapshot() Snapshot {
	return Snapshot{
		PlayerID:    a.PlayerID,
		Coins:       a.Coins,
		Experience:  a.Experience,
		Level:       a.Level(),
		Tickets:     a.Tickets,
		GamesPlayed: a.GamesPlayed,
	}
}

// Entry: одна неизменяемая запись леджера.
type Entry struct {
	ID              string    `json:"entry_id"`
	Seq             int64     `json:"seq"` // Порядок коммита; курсор для истории
	PlayerID        string    `json:"player_id"`
	Category        Category  `json:"category"`
	CoinDelta       int64     `json:"coin_delta"`
	ExperienceDelta int64     `json:"experience_delta"`
	TicketDelta     int64     `json:"ticket_delta"`
	PlaysDelta      int64     `json:"plays_delta"`
	BalanceAfter    int64     `json:"balance_after"`             // Монеты сразу после этой записи
	IdempotencyKey  string    `json:"idempotency_key,omitempty"` // Глобально уникален, если задан
	RunID           string    `json:"run_id,omitempty"`          // Уникален в пределах игрока, если задан
	Reason          string    `json:"reason,omitempty"`
	SourceGame      string    `json:"source_game,omitempty"`
	Reference       string    `json:"reference,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Snapshot: текущее состояние кошелька для отображения.
type Snapshot struct {
	PlayerID    string `json:"player_id"`
	Coins       int64  `json:"coins"`
	Experience  int64  `json:"experience"`
	Level       int    `json:"level"`
	Tickets     int64  `json:"tickets"`
	GamesPlayed int64  `json:"games_played"`
}

// Outcome: чем закончился Apply.
type Outcome string

const (
	// OutcomeApplied: транзакция применена и закоммичена
	OutcomeApplied Outcome = "applied"
	// OutcomeDuplicate: ключ/run уже был использован, повтор ничего не изменил
	OutcomeDuplicate Outcome = "duplicate"
)

// Result: успешный результат Apply (applied или duplicate).
// Бизнес-отказы и инфраструктурные сбои возвращаются ошибкой, а не Result.
type Result struct {
	Outcome Outcome `json:"status"`
	// Entry: запись, созданная этим вызовом, или исходная запись для duplicate.
	// Для duplicate может быть nil, если исходную запись найти не удалось.
	Entry *Entry `json:"entry,omitempty"`
	// Balances есть только у applied. У duplicate он nil и в JSON не попадает:
	// балансы после исходной записи не хранятся, кроме монет в Entry.BalanceAfter.
	*Balances
}

// Balances: балансы сразу после записи.
type Balances struct {
	BalanceAfter     int64 `json:"balance_after"`
	ExperienceAfter  int64 `json:"experience_after"`
	TicketsAfter     int64 `json:"tickets_after"`
	GamesPlayedAfter int64 `json:"games_played_after"`
	LevelAfter       int   `json:"level_after"`
}

// Duplicate сообщает, что это повтор уже применённой транзакции.
func (r *Result) Duplicate() bool {
	return r.Outcome == OutcomeDuplicate
}

// HistoryFilter: фильтры для истории записей.
type HistoryFilter struct {
	Category   Category  // Пусто: все категории
	SourceGame string    // Пусто: все игры
	Since      time.Time // Включительно; нулевое значение: без ограничения
	Until      time.Time // Не включительно; нулевое значение: без ограничения
	BeforeSeq  int64     // Курсор страницы: записи с seq строго меньше; 0 значит с самого начала
	Limit      int
}

// Totals: свёртка дельт всех записей игрока.
type Totals struct {
	Coins       int64 `json:"coins"`
	Experience  int64 `json:"experience"`
	Tickets     int64 `json:"tickets"`
	GamesPlayed int64 `json:"games_played"`
	Entries     int64 `json:"entries"`
}

// Drift: расхождение между счётом и свёрткой его записей.
type Drift struct {
	Account Account `json:"account"`
	Ledger  Totals  `json:"ledger"`
}

// Consistent: счёт совпадает со свёрткой записей.
func (d Drift) Consistent() bool {
	return d.Account.Coins == d.Ledger.Coins &&
		d.Account.Experience == d.Ledger.Experience &&
		d.Account.Tickets == d.Ledger.Tickets &&
		d.Account.GamesPlayed == d.Ledger.GamesPlayed
}
