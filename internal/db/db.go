package db

import (
	"context"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/bazaar-api/internal/config"
)

// Open открывает пул соединений с базой данных через драйвер pgx
func Open(cfg config.DatabaseConfig) (*sqlx.DB, error) {
	logrus.WithFields(logrus.Fields{"host": cfg.Host, "database": cfg.Name}).Info("Подключение к базе данных")

	conn, err := sqlx.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при открытии базы данных: %w", err)
	}

	// Настраиваем пул соединений
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(30 * time.Minute)

	// Создаем контекст с таймаутом для подключения
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка при проверке соединения: %w", err)
	}

	logrus.Info("✅ Успешное подключение к базе данных")
	return conn, nil
}

// GetContext возвращает контекст с таймаутом для запросов к базе данных
func GetContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}
