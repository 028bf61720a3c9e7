// Package ledgertest содержит хранилище леджера в памяти для тестов.
// Повторяет семантику PostgreSQL-репозитория: транзакции сериализуются,
// изменения внутри InTx видны только после коммита, ошибка fn откатывает всё.
package ledgertest

import (
	"context"
	"sort"
	"sync"
	"time"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// Имена операций для FailNext и Calls.
const (
	OpBegin       = "begin"
	OpClaimKey    = "claim_key"
	OpClaimRun    = "claim_run"
	OpLockAccount = "lock_account"
	OpSaveAccount = "save_account"
	OpInsertEntry = "insert_entry"
	OpCommit      = "commit"
	OpGetAccount  = "get_account"
	OpListEntries = "list_entries"
	OpEntryByKey  = "entry_by_key"
	OpEntryByRun  = "entry_by_run"
	OpTotals      = "totals"
	OpDrifts      = "drifts"
)

type runKey struct {
	playerID string
	runID    string
}

// Store: ledger.Store в памяти.
type Store struct {
	// txMu сериализует транзакции, как FOR UPDATE на одном счёте
	txMu sync.Mutex
	mu   sync.Mutex

	accounts map[string]ledger.Account
	entries  []*ledger.Entry
	keys     map[string]string
	runs     map[runKey]string
	seq      int64

	failures map[string][]error
	calls    map[string]int
}

var _ ledger.Store = (*Store)(nil)

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		accounts: make(map[string]ledger.Account),
		keys:     make(map[string]string),
		runs:     make(map[runKey]string),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

// FailNext заставляет следующий вызов op вернуть err. Можно ставить в очередь.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], err)
}

// Calls: сколько раз вызывалась операция.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls: сколько всего было обращений к хранилищу.
func (s *Store) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// SetAccount кладёт счёт напрямую, в обход леджера (для тестов сверки).
func (s *Store) SetAccount(acc ledger.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.PlayerID] = acc
}

// Entries возвращает все записи игрока в порядке коммита.
func (s *Store) Entries(playerID string) []*ledger.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*ledger.Entry
	for _, e := range s.entries {
		if e.PlayerID == playerID {
			c := *e
			out = append(out, &c)
		}
	}
	return out
}

// hit учитывает вызов и отдаёт запланированную ошибку. Вызывать под s.mu.
func (s *Store) hit(op string) error {
	s.calls[op]++
	if q := s.failures[op]; len(q) > 0 {
		s.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func (s *Store) check(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hit(op)
}

// InTx выполняет fn над копией состояния и применяет её только при успехе.
func (s *Store) InTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.check(OpBegin); err != nil {
		return err
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := &memTx{
		s:        s,
		accounts: make(map[string]ledger.Account),
		keys:     make(map[string]string),
		runs:     make(map[runKey]string),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := s.check(OpCommit); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, acc := range tx.accounts {
		s.accounts[id] = acc
	}
	for k, v := range tx.keys {
		s.keys[k] = v
	}
	for k, v := range tx.runs {
		s.runs[k] = v
	}
	for _, e := range tx.entries {
		s.seq++
		e.Seq = s.seq
		c := *e
		s.entries = append(s.entries, &c)
	}
	return nil
}

// memTx копит изменения до коммита.
type memTx struct {
	s        *Store
	accounts map[string]ledger.Account
	keys     map[string]string
	runs     map[runKey]string
	entries  []*ledger.Entry
}

func (t *memTx) ClaimIdempotencyKey(_ context.Context, key, _, entryID string) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.hit(OpClaimKey); err != nil {
		return false, err
	}
	if _, ok := t.s.keys[key]; ok {
		return false, nil
	}
	if _, ok := t.keys[key]; ok {
		return false, nil
	}
	t.keys[key] = entryID
	return true, nil
}

func (t *memTx) ClaimRun(_ context.Context, playerID, runID, entryID string) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.hit(OpClaimRun); err != nil {
		return false, err
	}
	k := runKey{playerID: playerID, runID: runID}
	if _, ok := t.s.runs[k]; ok {
		return false, nil
	}
	if _, ok := t.runs[k]; ok {
		return false, nil
	}
	t.runs[k] = entryID
	return true, nil
}

func (t *memTx) LockAccount(_ context.Context, playerID string) (*ledger.Account, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.hit(OpLockAccount); err != nil {
		return nil, err
	}
	if acc, ok := t.accounts[playerID]; ok {
		return &acc, nil
	}
	acc, ok := t.s.accounts[playerID]
	if !ok {
		now := time.Now().UTC()
		acc = ledger.Account{PlayerID: playerID, CreatedAt: now, UpdatedAt: now}
	}
	t.accounts[playerID] = acc
	return &acc, nil
}

func (t *memTx) SaveAccount(_ context.Context, acc *ledger.Account) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.hit(OpSaveAccount); err != nil {
		return err
	}
	// Тот же CHECK, что в БД
	if acc.Coins < 0 || acc.Experience < 0 || acc.Tickets < 0 || acc.GamesPlayed < 0 {
		return common.ErrInsufficientBalance
	}
	t.accounts[acc.PlayerID] = *acc
	return nil
}

func (t *memTx) InsertEntry(_ context.Context, e *ledger.Entry) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if err := t.s.hit(OpInsertEntry); err != nil {
		return err
	}
	t.entries = append(t.entries, e)
	return nil
}

// GetAccount читает закоммиченный счёт.
func (s *Store) GetAccount(_ context.Context, playerID string) (*ledger.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpGetAccount); err != nil {
		return nil, err
	}
	acc, ok := s.accounts[playerID]
	if !ok {
		return nil, nil
	}
	return &acc, nil
}

// ListEntries фильтрует записи так же, как SQL-запрос репозитория.
func (s *Store) ListEntries(_ context.Context, playerID string, f ledger.HistoryFilter) ([]*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpListEntries); err != nil {
		return nil, err
	}

	out := []*ledger.Entry{}
	for i := len(s.entries) - 1; i >= 0 && len(out) < f.Limit; i-- {
		e := s.entries[i]
		switch {
		case e.PlayerID != playerID:
			continue
		case f.Category != "" && e.Category != f.Category:
			continue
		case f.SourceGame != "" && e.SourceGame != f.SourceGame:
			continue
		case !f.Since.IsZero() && e.CreatedAt.Before(f.Since):
			continue
		case !f.Until.IsZero() && !e.CreatedAt.Before(f.Until):
			continue
		case f.BeforeSeq > 0 && e.Seq >= f.BeforeSeq:
			continue
		}
		c := *e
		out = append(out, &c)
	}
	return out, nil
}

func (s *Store) findEntry(id string) (*ledger.Entry, error) {
	for _, e := range s.entries {
		if e.ID == id {
			c := *e
			return &c, nil
		}
	}
	return nil, common.ErrEntryNotFound
}

// EntryByIdempotencyKey ищет запись по ключу.
func (s *Store) EntryByIdempotencyKey(_ context.Context, key string) (*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpEntryByKey); err != nil {
		return nil, err
	}
	id, ok := s.keys[key]
	if !ok {
		return nil, common.ErrEntryNotFound
	}
	return s.findEntry(id)
}

// EntryByRun ищет запись по (player_id, run_id).
func (s *Store) EntryByRun(_ context.Context, playerID, runID string) (*ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpEntryByRun); err != nil {
		return nil, err
	}
	id, ok := s.runs[runKey{playerID: playerID, runID: runID}]
	if !ok {
		return nil, common.ErrEntryNotFound
	}
	return s.findEntry(id)
}

func (s *Store) totals(playerID string) ledger.Totals {
	var t ledger.Totals
	for _, e := range s.entries {
		if e.PlayerID != playerID {
			continue
		}
		t.Coins += e.CoinDelta
		t.Experience += e.ExperienceDelta
		t.Tickets += e.TicketDelta
		t.GamesPlayed += e.PlaysDelta
		t.Entries++
	}
	return t
}

// Totals сворачивает записи игрока.
func (s *Store) Totals(_ context.Context, playerID string) (ledger.Totals, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpTotals); err != nil {
		return ledger.Totals{}, err
	}
	return s.totals(playerID), nil
}

// Drifts возвращает счета, разошедшиеся с записями, по player_id.
func (s *Store) Drifts(_ context.Context, limit int) ([]ledger.Drift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit(OpDrifts); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(s.accounts))
	for id := range s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []ledger.Drift
	for _, id := range ids {
		d := ledger.Drift{Account: s.accounts[id], Ledger: s.totals(id)}
		if d.Consistent() {
			continue
		}
		out = append(out, d)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
