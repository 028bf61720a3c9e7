// Package admin, service.go: аутентификация по ключу, корректировки и сверка.
package admin

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/config"
	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// AttemptStore: журнал попыток входа.
type AttemptStore interface {
	LogAttempt(ctx context.Context, clientIP string, success bool) error
	RecentFailures(ctx context.Context, clientIP string, since time.Time) (int, error)
}

// Ledger: то, что нужно админке от леджера.
type Ledger interface {
	Apply(ctx context.Context, in ledger.Intent) (*ledger.Result, error)
	Reconcile(ctx context.Context, playerID string) (ledger.Drift, error)
}

// Options: настройки админки.
type Options struct {
	KeyHash       string // Пустой: админка выключена
	MaxAttempts   int
	LockoutWindow time.Duration
}

// OptionsFromConfig собирает Options из конфигурации.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		KeyHash:       cfg.AdminKeyHash,
		MaxAttempts:   cfg.AdminMaxAttempts,
		LockoutWindow: cfg.AdminLockoutWindow,
	}
}

// Service: админские операции.
type Service struct {
	attempts AttemptStore
	ledger   Ledger
	opts     Options
	now      func() time.Time
}

// NewService создаёт сервис админки.
func NewService(attempts AttemptStore, l Ledger, opts Options) *Service {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.LockoutWindow <= 0 {
		opts.LockoutWindow = time.Hour
	}
	return &Service{attempts: attempts, ledger: l, opts: opts, now: time.Now}
}

// Enabled: задан ли хеш админского ключа.
func (s *Service) Enabled() bool {
	return s.opts.KeyHash != ""
}

// Authenticate проверяет админский ключ.
// После MaxAttempts неудач с одного IP за LockoutWindow вход блокируется,
// даже с правильным ключом.
func (s *Service) Authenticate(ctx context.Context, clientIP, key string) error {
	if !s.Enabled() {
		return common.ErrAdminDisabled
	}

	// Блокировка приблизительная: счётчик читается до записи попытки, поэтому
	// параллельные запросы с одного IP могут проскочить лимит на несколько штук.
	failures, err := s.attempts.RecentFailures(ctx, clientIP, s.now().Add(-s.opts.LockoutWindow))
	if err != nil {
		return err
	}
	if failures >= s.opts.MaxAttempts {
		log.WithField("client_ip", clientIP).Warn("Вход в админку заблокирован")
		return common.ErrTooManyAttempts
	}

	match := key != "" && VerifyKey(key, s.opts.KeyHash)

	if err := s.attempts.LogAttempt(ctx, clientIP, match); err != nil {
		log.WithError(err).Error("Не удалось записать попытку входа")
	}

	if !match {
		log.WithFields(log.Fields{
			"client_ip": clientIP,
			"failures":  failures + 1,
		}).Warn("Неверный ключ администратора")
		return common.ErrWrongAdminKey
	}
	return nil
}

// Correct проводит корректирующую транзакцию. Категория любая,
// причина и ключ идемпотентности обязательны.
func (s *Service) Correct(ctx context.Context, req CorrectionRequest) (*ledger.Result, error) {
	in, err := ledger.NewIntent(ledger.IntentParams{
		PlayerID:        req.PlayerID,
		CoinDelta:       req.CoinDelta,
		ExperienceDelta: req.ExperienceDelta,
		TicketDelta:     req.TicketDelta,
		PlaysDelta:      req.PlaysDelta,
		Category:        req.Category,
		IdempotencyKey:  req.IdempotencyKey,
		Reason:          req.Reason,
		SourceGame:      SourceAdmin,
		Reference:       req.Reference,
	})
	if err != nil {
		return nil, err
	}
	if in.IdempotencyKey() == "" {
		return nil, fmt.Errorf("%w: idempotency_key обязателен", common.ErrInvalidIntent)
	}
	if in.Params().Reason == "" {
		return nil, fmt.Errorf("%w: reason обязательна", common.ErrInvalidIntent)
	}

	res, err := s.ledger.Apply(ctx, in)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"player_id": in.PlayerID(),
		"category":  in.Category(),
		"coins":     in.CoinDelta(),
		"key":       in.IdempotencyKey(),
		"duplicate": res.Duplicate(),
	}).Warn("Корректировка кошелька администратором")

	return res, nil
}

// Reconcile сверяет счёт игрока со свёрткой его записей.
func (s *Service) Reconcile(ctx context.Context, playerID string) (*ReconcileResult, error) {
	drift, err := s.ledger.Reconcile(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &ReconcileResult{Drift: drift, Consistent: drift.Consistent()}, nil
}
