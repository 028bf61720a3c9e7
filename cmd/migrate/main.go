// Package main отдельно прогоняет миграции (для деплоя с DB_AUTO_MIGRATE=false).
// Запуск: go run ./cmd/migrate
package main

import (
	"context"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/retro-wallet/internal/config"
	"serotonyl.ru/retro-wallet/internal/db/postgres"
)

func main() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Не удалось загрузить конфигурацию")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("Ошибка подключения к БД")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, postgres.Migrations); err != nil {
		log.WithError(err).Error("Ошибка миграций")
		pool.Close()
		os.Exit(1)
	}
	log.Info("Миграции применены")
}
