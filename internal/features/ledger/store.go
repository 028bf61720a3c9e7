// Package ledger, store.go описывает контракт хранилища, на котором работает Service.
// Боевая реализация Repository (PostgreSQL), в тестах ledgertest.Store.
package ledger

import "context"

// Store: хранилище счетов, записей и индекса ключей идемпотентности.
type Store interface {
	// InTx выполняет fn в одной транзакции БД.
	// Если fn вернула ошибку: всё, что сделано через Tx, откатывается.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// GetAccount читает счёт без блокировок. Нет счёта: (nil, nil).
	GetAccount(ctx context.Context, playerID string) (*Account, error)
	// ListEntries возвращает записи игрока, новые сверху.
	ListEntries(ctx context.Context, playerID string, f HistoryFilter) ([]*Entry, error)
	// EntryByIdempotencyKey ищет запись по ключу. Нет: common.ErrEntryNotFound.
	EntryByIdempotencyKey(ctx context.Context, key string) (*Entry, error)
	// EntryByRun ищет запись по (player_id, run_id). Нет: common.ErrEntryNotFound.
	EntryByRun(ctx context.Context, playerID, runID string) (*Entry, error)
	// Totals сворачивает дельты всех записей игрока.
	Totals(ctx context.Context, playerID string) (Totals, error)
	// Drifts возвращает счета, которые не совпадают со свёрткой своих записей.
	Drifts(ctx context.Context, limit int) ([]Drift, error)
}

// Tx: операции внутри транзакции Apply.
type Tx interface {
	// ClaimIdempotencyKey занимает глобальный ключ. false: ключ уже занят.
	ClaimIdempotencyKey(ctx context.Context, key, playerID, entryID string) (bool, error)
	// ClaimRun занимает (player_id, run_id). false: run уже занят.
	ClaimRun(ctx context.Context, playerID, runID, entryID string) (bool, error)
	// LockAccount создаёт счёт, если его нет, и блокирует строку до конца транзакции.
	LockAccount(ctx context.Context, playerID string) (*Account, error)
	// SaveAccount записывает новые балансы заблокированного счёта.
	SaveAccount(ctx context.Context, acc *Account) error
	// InsertEntry добавляет запись леджера.
	InsertEntry(ctx context.Context, e *Entry) error
}
