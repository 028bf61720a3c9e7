// Package app инициализирует все компоненты приложения.
// app.go собирает приложение: создаёт БД-пул, репозитории, сервисы, обработчики
// и собирает всё в HTTP-сервер и планировщик.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/api"
	"serotonyl.ru/retro-wallet/internal/config"
	"serotonyl.ru/retro-wallet/internal/db/postgres"
	"serotonyl.ru/retro-wallet/internal/features/admin"
	"serotonyl.ru/retro-wallet/internal/features/games"
	"serotonyl.ru/retro-wallet/internal/features/ledger"
	"serotonyl.ru/retro-wallet/internal/features/rewards"
	"serotonyl.ru/retro-wallet/internal/features/shop"
	"serotonyl.ru/retro-wallet/internal/features/spin"
	"serotonyl.ru/retro-wallet/internal/jobs"
)

// App содержит все компоненты приложения.
type App struct {
	Server    *api.Server
	Scheduler *jobs.Scheduler
	DB        *pgxpool.Pool
}

// New создаёт и инициализирует приложение.
// Порядок инициализации важен: компоненты зависят друг от друга.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// === 1. База данных ===
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к БД: %w", err)
	}

	if cfg.DBAutoMigrate {
		if err := postgres.Migrate(ctx, pool, postgres.Migrations); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ошибка миграций: %w", err)
		}
	} else {
		log.Info("DB_AUTO_MIGRATE=false, миграции пропущены")
	}

	// === 2. Репозитории ===
	ledgerRepo := ledger.NewRepository(pool)
	adminRepo := admin.NewRepository(pool)

	// === 3. Сервисы ===
	ledgerService := ledger.NewService(ledgerRepo, ledger.OptionsFromConfig(cfg))
	gamesService := games.NewService(ledgerService, games.PolicyFromConfig(cfg), games.DefaultCatalog)
	rewardsService := rewards.NewService(ledgerService, rewards.OptionsFromConfig(cfg))
	shopService := shop.NewService(ledgerService, shop.DefaultCatalog, cfg.FeatureShopEnabled)

	wheel, err := spin.NewWheel(spin.DefaultPrizes)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка настройки колеса: %w", err)
	}
	spinService := spin.NewService(ledgerService, wheel, spin.CryptoRoller{}, cfg.SpinTicketCost, cfg.FeatureSpinEnabled)

	adminService := admin.NewService(adminRepo, ledgerService, admin.OptionsFromConfig(cfg))
	if !adminService.Enabled() {
		log.Warn("ADMIN_KEY_HASH не задан, админка отключена")
	}

	// === 4. Обработчики и HTTP-сервер ===
	server := api.NewServer(cfg, pool, []api.Routes{
		ledger.NewHandler(ledgerService),
		games.NewHandler(gamesService),
		rewards.NewHandler(rewardsService),
		shop.NewHandler(shopService),
		spin.NewHandler(spinService),
	}, admin.NewHandler(adminService))

	// === 5. Планировщик задач ===
	scheduler := jobs.NewScheduler(ledgerService, cfg.ReconcileSchedule, cfg.Location())

	return &App{
		Server:    server,
		Scheduler: scheduler,
		DB:        pool,
	}, nil
}

// Close освобождает ресурсы приложения.
func (a *App) Close() {
	a.DB.Close()
	log.Info("Подключение к PostgreSQL закрыто")
}
