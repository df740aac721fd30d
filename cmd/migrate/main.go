package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/bazaar-api/internal/config"
	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("❌ Ошибка конфигурации: %v", err)
	}
	logger.Init(cfg.Log.Level, cfg.Log.Format, cfg.IsProduction())

	conn, err := db.Open(cfg.Database)
	if err != nil {
		logrus.Fatalf("❌ Ошибка при инициализации базы данных: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	names, err := db.Migrations()
	if err != nil {
		logrus.Fatalf("❌ Ошибка чтения миграций: %v", err)
	}
	if err := db.Apply(ctx, conn); err != nil {
		logrus.Fatalf("❌ Ошибка миграций: %v", err)
	}
	logrus.WithField("count", len(names)).Info("✅ Миграции применены")
}
