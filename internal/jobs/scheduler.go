// Package jobs управляет фоновыми задачами (cron).
// scheduler.go настраивает ночную сверку счетов с леджером.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/features/ledger"
)

// Reconciler: сверка всех счетов.
type Reconciler interface {
	ReconcileAll(ctx context.Context) ([]ledger.Drift, error)
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron       *cron.Cron
	reconciler Reconciler
	schedule   string
	timeout    time.Duration
}

// NewScheduler создаёт планировщик задач в часовом поясе приложения.
func NewScheduler(reconciler Reconciler, schedule string, loc *time.Location) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(loc)),
		reconciler: reconciler,
		schedule:   schedule,
		timeout:    10 * time.Minute,
	}
}

// Start запускает все фоновые задачи.
func (s *Scheduler) Start(ctx context.Context) error {
	if _, err := s.cron.AddFunc(s.schedule, func() { s.RunReconcile(ctx) }); err != nil {
		return fmt.Errorf("некорректное расписание сверки %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.Infof("Планировщик задач запущен (сверка: %s, %s)", s.schedule, s.cron.Location())
	return nil
}

// RunReconcile сверяет счета с леджером один раз.
// Возвращает число найденных расхождений, -1 при ошибке.
func (s *Scheduler) RunReconcile(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log.Info("[CRON] Сверка счетов с леджером")
	started := time.Now()

	drifts, err := s.reconciler.ReconcileAll(ctx)
	if err != nil {
		log.WithError(err).Error("[CRON] Ошибка сверки")
		return -1
	}

	entry := log.WithFields(log.Fields{
		"drifts":   len(drifts),
		"duration": time.Since(started).String(),
	})
	if len(drifts) > 0 {
		entry.Error("[CRON] Найдены расхождения счетов с леджером")
	} else {
		entry.Info("[CRON] Сверка завершена, расхождений нет")
	}
	return len(drifts)
}

// Stop останавливает планировщик и ждёт завершения запущенных задач.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Планировщик задач остановлен")
}
