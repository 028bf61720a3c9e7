// Package ledger, repository.go выполняет все операции с таблицами accounts,
// ledger_entries, idempotency_keys и run_claims.
// Все изменения счетов идут через InTx: одна транзакция БД на один Apply.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/db/postgres"
)

// Repository: хранилище леджера в PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository создаёт новый репозиторий леджера.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

// storageErr заворачивает ошибку БД.
// Конфликты сериализации помечаются ErrConflict, чтобы Apply мог повторить транзакцию.
func storageErr(op string, err error) error {
	if postgres.IsTransient(err) {
		return fmt.Errorf("%w: %w: %s: %w", common.ErrStorage, ErrConflict, op, err)
	}
	return fmt.Errorf("%w: %s: %w", common.ErrStorage, op, err)
}

// InTx начинает транзакцию, выполняет fn и коммитит.
// Любая ошибка fn откатывает всё.
func (r *Repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return storageErr("начало транзакции", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return storageErr("коммит", err)
	}
	return nil
}

// pgTx: операции внутри открытой транзакции.
type pgTx struct {
	tx pgx.Tx
}

// ClaimIdempotencyKey вставляет ключ; если он уже есть: ничего не делает.
// Конкурентная вставка того же ключа ждёт коммита или отката первой транзакции.
func (t *pgTx) ClaimIdempotencyKey(ctx context.Context, key, playerID, entryID string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO idempotency_keys (key, player_id, entry_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO NOTHING
	`, key, playerID, entryID)
	if err != nil {
		return false, storageErr("занятие ключа идемпотентности", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClaimRun: то же самое для (player_id, run_id).
func (t *pgTx) ClaimRun(ctx context.Context, playerID, runID, entryID string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		INSERT INTO run_claims (player_id, run_id, entry_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (player_id, run_id) DO NOTHING
	`, playerID, runID, entryID)
	if err != nil {
		return false, storageErr("занятие run_id", err)
	}
	return tag.RowsAffected() == 1, nil
}

// LockAccount создаёт пустой счёт при первом обращении и блокирует строку FOR UPDATE.
func (t *pgTx) LockAccount(ctx context.Context, playerID string) (*Account, error) {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO accounts (player_id)
		VALUES ($1)
		ON CONFLICT (player_id) DO NOTHING
	`, playerID)
	if err != nil {
		return nil, storageErr("создание счёта", err)
	}

	var a Account
	err = t.tx.QueryRow(ctx, `
		SELECT player_id, coins, experience, tickets, games_played, created_at, updated_at
		FROM accounts
		WHERE player_id = $1
		FOR UPDATE
	`, playerID).Scan(&a.PlayerID, &a.Coins, &a.Experience, &a.Tickets, &a.GamesPlayed, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, storageErr("блокировка счёта", err)
	}
	return &a, nil
}

// SaveAccount записывает новые балансы. Уровень пересчитывает сама БД (generated column).
func (t *pgTx) SaveAccount(ctx context.Context, acc *Account) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE accounts
		SET coins = $2, experience = $3, tickets = $4, games_played = $5, updated_at = $6
		WHERE player_id = $1
	`, acc.PlayerID, acc.Coins, acc.Experience, acc.Tickets, acc.GamesPlayed, acc.UpdatedAt)
	if err != nil {
		// CHECK (coins >= 0) и т.п.: последняя линия обороны
		if postgres.IsCheckViolation(err) {
			return fmt.Errorf("%w: %w", common.ErrInsufficientBalance, err)
		}
		return storageErr("обновление счёта", err)
	}
	return nil
}

// InsertEntry добавляет запись леджера и заполняет e.Seq.
func (t *pgTx) InsertEntry(ctx context.Context, e *Entry) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (
			entry_id, player_id, category, coin_delta, experience_delta, ticket_delta, plays_delta,
			balance_after, idempotency_key, run_id, reason, source_game, reference, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12, $13, $14)
		RETURNING seq
	`, e.ID, e.PlayerID, string(e.Category), e.CoinDelta, e.ExperienceDelta, e.TicketDelta, e.PlaysDelta,
		e.BalanceAfter, e.IdempotencyKey, e.RunID, e.Reason, e.SourceGame, e.Reference, e.CreatedAt,
	).Scan(&e.Seq)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %w", common.ErrAlreadyClaimed, err)
		}
		return storageErr("запись в леджер", err)
	}
	return nil
}

// GetAccount читает счёт без блокировки. Нет счёта: (nil, nil).
func (r *Repository) GetAccount(ctx context.Context, playerID string) (*Account, error) {
	var a Account
	err := r.db.QueryRow(ctx, `
		SELECT player_id, coins, experience, tickets, games_played, created_at, updated_at
		FROM accounts
		WHERE player_id = $1
	`, playerID).Scan(&a.PlayerID, &a.Coins, &a.Experience, &a.Tickets, &a.GamesPlayed, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("чтение счёта", err)
	}
	return &a, nil
}

const entryColumns = `
	entry_id::text, seq, player_id, category, coin_delta, experience_delta, ticket_delta, plays_delta,
	balance_after, COALESCE(idempotency_key, ''), COALESCE(run_id, ''), reason, source_game, reference, created_at
`

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e   Entry
		cat string
	)
	err := row.Scan(
		&e.ID, &e.Seq, &e.PlayerID, &cat, &e.CoinDelta, &e.ExperienceDelta, &e.TicketDelta, &e.PlaysDelta,
		&e.BalanceAfter, &e.IdempotencyKey, &e.RunID, &e.Reason, &e.SourceGame, &e.Reference, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Category = Category(cat)
	return &e, nil
}

// ListEntries возвращает записи игрока по фильтру, новые сверху (по seq).
func (r *Repository) ListEntries(ctx context.Context, playerID string, f HistoryFilter) ([]*Entry, error) {
	var (
		where = []string{"player_id = $1"}
		args  = []any{playerID}
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.Category != "" {
		add("category = $%d", string(f.Category))
	}
	if f.SourceGame != "" {
		add("source_game = $%d", f.SourceGame)
	}
	if !f.Since.IsZero() {
		add("created_at >= $%d", f.Since)
	}
	if !f.Until.IsZero() {
		add("created_at < $%d", f.Until)
	}
	if f.BeforeSeq > 0 {
		add("seq < $%d", f.BeforeSeq)
	}
	args = append(args, f.Limit)

	query := fmt.Sprintf(`
		SELECT %s
		FROM ledger_entries
		WHERE %s
		ORDER BY seq DESC
		LIMIT $%d
	`, entryColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, storageErr("чтение истории", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, f.Limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("разбор записи", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("чтение истории", err)
	}
	return entries, nil
}

// EntryByIdempotencyKey ищет запись по глобальному ключу.
func (r *Repository) EntryByIdempotencyKey(ctx context.Context, key string) (*Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT `+entryColumns+` FROM ledger_entries WHERE idempotency_key = $1`, key)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrEntryNotFound
	}
	if err != nil {
		return nil, storageErr("поиск записи по ключу", err)
	}
	return e, nil
}

// EntryByRun ищет запись по (player_id, run_id).
func (r *Repository) EntryByRun(ctx context.Context, playerID, runID string) (*Entry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE player_id = $1 AND run_id = $2`, playerID, runID)
	e, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrEntryNotFound
	}
	if err != nil {
		return nil, storageErr("поиск записи по run_id", err)
	}
	return e, nil
}

// Totals сворачивает дельты всех записей игрока.
func (r *Repository) Totals(ctx context.Context, playerID string) (Totals, error) {
	var t Totals
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(coin_delta), 0)::BIGINT,
			COALESCE(SUM(experience_delta), 0)::BIGINT,
			COALESCE(SUM(ticket_delta), 0)::BIGINT,
			COALESCE(SUM(plays_delta), 0)::BIGINT,
			COUNT(*)
		FROM ledger_entries
		WHERE player_id = $1
	`, playerID).Scan(&t.Coins, &t.Experience, &t.Tickets, &t.GamesPlayed, &t.Entries)
	if err != nil {
		return Totals{}, storageErr("свёртка леджера", err)
	}
	return t, nil
}

// Drifts находит счета, которые не сходятся со своими записями.
func (r *Repository) Drifts(ctx context.Context, limit int) ([]Drift, error) {
	rows, err := r.db.Query(ctx, `
		SELECT
			a.player_id, a.coins, a.experience, a.tickets, a.games_played, a.created_at, a.updated_at,
			COALESCE(t.coins, 0), COALESCE(t.experience, 0), COALESCE(t.tickets, 0),
			COALESCE(t.games, 0), COALESCE(t.entries, 0)
		FROM accounts a
		LEFT JOIN (
			SELECT player_id,
				SUM(coin_delta)::BIGINT AS coins,
				SUM(experience_delta)::BIGINT AS experience,
				SUM(ticket_delta)::BIGINT AS tickets,
				SUM(plays_delta)::BIGINT AS games,
				COUNT(*) AS entries
			FROM ledger_entries
			GROUP BY player_id
		) t ON t.player_id = a.player_id
		WHERE a.coins <> COALESCE(t.coins, 0)
		   OR a.experience <> COALESCE(t.experience, 0)
		   OR a.tickets <> COALESCE(t.tickets, 0)
		   OR a.games_played <> COALESCE(t.games, 0)
		ORDER BY a.player_id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storageErr("сверка счетов", err)
	}
	defer rows.Close()

	var drifts []Drift
	for rows.Next() {
		var d Drift
		err := rows.Scan(
			&d.Account.PlayerID, &d.Account.Coins, &d.Account.Experience, &d.Account.Tickets,
			&d.Account.GamesPlayed, &d.Account.CreatedAt, &d.Account.UpdatedAt,
			&d.Ledger.Coins, &d.Ledger.Experience, &d.Ledger.Tickets, &d.Ledger.GamesPlayed, &d.Ledger.Entries,
		)
		if err != nil {
			return nil, storageErr("разбор сверки", err)
		}
		drifts = append(drifts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("сверка счетов", err)
	}
	return drifts, nil
}
