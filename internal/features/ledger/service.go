// Package ledger, service.go: движок леджера и проекции для чтения.
// Apply: единственный путь, которым меняются счета.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/config"
)

// ErrConflict: конфликт сериализации или deadlock; транзакцию можно повторить целиком.
// Хранилище оборачивает такие ошибки и в common.ErrStorage, и в ErrConflict.
var ErrConflict = errors.New("конфликт транзакции")

// errDuplicate: внутренний сигнал отката, когда ключ уже занят.
var errDuplicate = errors.New("duplicate")

// Options: настройки движка.
type Options struct {
	ApplyTimeout        time.Duration // Таймаут Apply вместе с повторами
	MaxAttempts         int           // Попыток при ErrConflict
	RetryDelay          time.Duration // Первая пауза между попытками, дальше x2
	HistoryDefaultLimit int
	HistoryMaxLimit     int
	DriftScanLimit      int // Сколько расхождений максимум отдаёт ReconcileAll
	// Now задаёт часы для created_at записей, по умолчанию time.Now в UTC.
	Now func() time.Time
}

// OptionsFromConfig собирает Options из конфигурации.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ApplyTimeout:        cfg.LedgerApplyTimeout,
		MaxAttempts:         cfg.LedgerMaxAttempts,
		RetryDelay:          cfg.LedgerRetryDelay,
		HistoryDefaultLimit: cfg.HistoryDefaultLimit,
		HistoryMaxLimit:     cfg.HistoryMaxLimit,
		DriftScanLimit:      100,
	}
}

// Service: движок леджера.
// Никакого кэша балансов в памяти: вся согласованность держится на транзакциях БД.
type Service struct {
	store Store
	opts  Options
	now   func() time.Time
	newID func() string
}

// NewService создаёт движок леджера.
func NewService(store Store, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.HistoryDefaultLimit <= 0 {
		opts.HistoryDefaultLimit = 20
	}
	if opts.HistoryMaxLimit < opts.HistoryDefaultLimit {
		opts.HistoryMaxLimit = opts.HistoryDefaultLimit
	}
	if opts.DriftScanLimit <= 0 {
		opts.DriftScanLimit = 100
	}
	now := opts.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store: store,
		opts:  opts,
		now:   now,
		newID: uuid.NewString,
	}
}

// Apply атомарно применяет транзакцию.
//
// Алгоритм (одна транзакция БД):
//  1. Есть idempotency_key: занимаем его; занят → duplicate
//  2. Есть run_id: занимаем (player_id, run_id); занят → duplicate
//  3. Создаём счёт, если его нет, и блокируем строку (FOR UPDATE)
//  4. Считаем новые балансы; что-то ушло в минус → ErrInsufficientBalance, откат
//  5. Записываем балансы (уровень считается в БД)
//  6. Вставляем запись леджера с balance_after
//  7. Коммит
//
// Ошибки:
//   - *ValidationError (common.ErrInvalidIntent): Intent не из NewIntent
//   - common.ErrInsufficientBalance: бизнес-отказ, ничего не изменилось
//   - common.ErrStorage: сбой инфраструктуры, повторять с тем же ключом
func (s *Service) Apply(ctx context.Context, in Intent) (*Result, error) {
	if !in.valid {
		return nil, invalid("intent", "не прошёл проверку NewIntent")
	}

	if s.opts.ApplyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ApplyTimeout)
		defer cancel()
	}

	fields := log.Fields{
		"player_id": in.p.PlayerID,
		"category":  in.p.Category,
		"coins":     in.p.CoinDelta,
	}

	delay := s.opts.RetryDelay
	for attempt := 1; ; attempt++ {
		res, err := s.applyOnce(ctx, in)
		if err == nil {
			if res.Duplicate() {
				log.WithFields(fields).Info("Повтор транзакции, ничего не меняем")
			} else {
				log.WithFields(fields).WithField("balance_after", res.BalanceAfter).Debug("Транзакция применена")
			}
			return res, nil
		}

		if !errors.Is(err, ErrConflict) || attempt >= s.opts.MaxAttempts {
			if errors.Is(err, common.ErrStorage) {
				log.WithFields(fields).WithError(err).Error("Ошибка хранилища при применении транзакции")
			}
			return nil, err
		}

		log.WithFields(fields).WithField("attempt", attempt).Warn("Конфликт транзакции, повторяем")
		if err := sleepWithContext(ctx, delay); err != nil {
			return nil, fmt.Errorf("%w: ожидание повтора: %w", common.ErrStorage, err)
		}
		delay *= 2
	}
}

func (s *Service) applyOnce(ctx context.Context, in Intent) (*Result, error) {
	p := in.p
	entry := &Entry{
		ID:              s.newID(),
		PlayerID:        p.PlayerID,
		Category:        p.Category,
		CoinDelta:       p.CoinDelta,
		ExperienceDelta: p.ExperienceDelta,
		TicketDelta:     p.TicketDelta,
		PlaysDelta:      p.PlaysDelta,
		IdempotencyKey:  p.IdempotencyKey,
		RunID:           p.RunID,
		Reason:          p.Reason,
		SourceGame:      p.SourceGame,
		Reference:       p.Reference,
		CreatedAt:       s.now(),
	}

	var after Account
	err := s.store.InTx(ctx, func(tx Tx) error {
		// Шаг 1: глобальный ключ идемпотентности
		if p.IdempotencyKey != "" {
			claimed, err := tx.ClaimIdempotencyKey(ctx, p.IdempotencyKey, p.PlayerID, entry.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return errDuplicate
			}
		}

		// Шаг 2: игровая сессия / спин
		if p.RunID != "" {
			claimed, err := tx.ClaimRun(ctx, p.PlayerID, p.RunID, entry.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return errDuplicate
			}
		}

		// Шаг 3: счёт (создаём при первом обращении) под блокировкой
		acc, err := tx.LockAccount(ctx, p.PlayerID)
		if err != nil {
			return err
		}

		// Шаг 4: новые балансы; ушли в минус, значит отказ целиком
		next, err := in.apply(*acc)
		if err != nil {
			return err
		}
		next.UpdatedAt = entry.CreatedAt

		// Шаг 5
		if err := tx.SaveAccount(ctx, &next); err != nil {
			return err
		}

		// Шаг 6
		entry.BalanceAfter = next.Coins
		if err := tx.InsertEntry(ctx, entry); err != nil {
			return err
		}

		after = next
		return nil
	})

	switch {
	case err == nil:
		return &Result{
			Outcome: OutcomeApplied,
			Entry:   entry,
			Balances: &Balances{
				BalanceAfter:     after.Coins,
				ExperienceAfter:  after.Experience,
				TicketsAfter:     after.Tickets,
				GamesPlayedAfter: after.GamesPlayed,
				LevelAfter:       after.Level(),
			},
		}, nil
	case errors.Is(err, errDuplicate), errors.Is(err, common.ErrAlreadyClaimed):
		return s.duplicateResult(ctx, in), nil
	default:
		return nil, err
	}
}

// duplicateResult находит исходную запись, чтобы вернуть её клиенту.
// Балансов у повтора нет, монеты после исходной записи лежат в Entry.BalanceAfter.
// Если запись найти не удалось: отдаём просто подтверждение.
func (s *Service) duplicateResult(ctx context.Context, in Intent) *Result {
	res := &Result{Outcome: OutcomeDuplicate}

	var orig *Entry
	err := common.ErrEntryNotFound
	if in.p.IdempotencyKey != "" {
		orig, err = s.store.EntryByIdempotencyKey(ctx, in.p.IdempotencyKey)
	}
	// Ключ свободен, а занят run: ищем по run
	if errors.Is(err, common.ErrEntryNotFound) && in.p.RunID != "" {
		orig, err = s.store.EntryByRun(ctx, in.p.PlayerID, in.p.RunID)
	}
	if err != nil {
		if !errors.Is(err, common.ErrEntryNotFound) {
			log.WithError(err).WithField("player_id", in.p.PlayerID).Warn("Не удалось прочитать исходную запись")
		}
		return res
	}

	// Чужой ключ идемпотентности: не раскрываем чужую запись
	if orig.PlayerID != in.p.PlayerID {
		return res
	}

	res.Entry = orig
	return res
}

// Snapshot: текущее состояние кошелька. Ничего не создаёт:
// для неизвестного игрока возвращает нули и уровень 1.
func (s *Service) Snapshot(ctx context.Context, playerID string) (Snapshot, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return Snapshot{}, invalid("player_id", "обязателен")
	}

	acc, err := s.store.GetAccount(ctx, playerID)
	if err != nil {
		return Snapshot{}, err
	}
	if acc == nil {
		acc = &Account{PlayerID: playerID}
	}
	return acc.Snapshot(), nil
}

// History: записи игрока, новые сверху, не больше HistoryMaxLimit.
func (s *Service) History(ctx context.Context, playerID string, f HistoryFilter) ([]*Entry, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return nil, invalid("player_id", "обязателен")
	}
	if f.Category != "" && !f.Category.Valid() {
		return nil, invalid("category", fmt.Sprintf("неизвестная категория %q", f.Category))
	}
	if !f.Since.IsZero() && !f.Until.IsZero() && !f.Since.Before(f.Until) {
		return nil, invalid("since", "должно быть раньше until")
	}
	if f.BeforeSeq < 0 {
		return nil, invalid("before", "должен быть >= 0")
	}

	f.Limit = s.historyLimit(f.Limit)

	entries, err := s.store.ListEntries(ctx, playerID, f)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return entries, nil
}

// historyLimit приводит запрошенный размер страницы к [1, HistoryMaxLimit].
func (s *Service) historyLimit(n int) int {
	switch {
	case n <= 0:
		return s.opts.HistoryDefaultLimit
	case n > s.opts.HistoryMaxLimit:
		return s.opts.HistoryMaxLimit
	}
	return n
}

// Reconcile сравнивает счёт игрока со свёрткой его записей.
func (s *Service) Reconcile(ctx context.Context, playerID string) (Drift, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		return Drift{}, invalid("player_id", "обязателен")
	}

	acc, err := s.store.GetAccount(ctx, playerID)
	if err != nil {
		return Drift{}, err
	}
	if acc == nil {
		acc = &Account{PlayerID: playerID}
	}
	totals, err := s.store.Totals(ctx, playerID)
	if err != nil {
		return Drift{}, err
	}
	return Drift{Account: *acc, Ledger: totals}, nil
}

// ReconcileAll ищет счета, которые разошлись со своими записями.
// Каждое расхождение логируется как ошибка. Вызывается кроном.
func (s *Service) ReconcileAll(ctx context.Context) ([]Drift, error) {
	drifts, err := s.store.Drifts(ctx, s.opts.DriftScanLimit)
	if err != nil {
		return nil, fmt.Errorf("ошибка сверки леджера: %w", err)
	}

	for _, d := range drifts {
		log.WithFields(log.Fields{
			"player_id":      d.Account.PlayerID,
			"coins":          d.Account.Coins,
			"ledger_coins":   d.Ledger.Coins,
			"experience":     d.Account.Experience,
			"ledger_exp":     d.Ledger.Experience,
			"tickets":        d.Account.Tickets,
			"ledger_tickets": d.Ledger.Tickets,
			"games":          d.Account.GamesPlayed,
			"ledger_games":   d.Ledger.GamesPlayed,
		}).Error("Счёт разошёлся с леджером")
	}
	return drifts, nil
}

// IsRetryable: ошибку можно повторить с тем же ключом идемпотентности.
func IsRetryable(err error) bool {
	return errors.Is(err, common.ErrStorage) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, context.DeadlineExceeded)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
