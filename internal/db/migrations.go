package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Execer минимальный интерфейс для применения миграций
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Migrations возвращает имена встроенных миграций в порядке применения
func Migrations() ([]string, error) {
	names, err := fs.Glob(migrationFiles, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply применяет все миграции по порядку. Миграции идемпотентны.
func Apply(ctx context.Context, db Execer) error {
	names, err := Migrations()
	if err != nil {
		return fmt.Errorf("список миграций: %w", err)
	}

	for _, name := range names {
		body, err := migrationFiles.ReadFile(name)
		if err != nil {
			return fmt.Errorf("чтение %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("применение %s: %w", name, err)
		}
		logrus.WithField("migration", name).Debug("Миграция применена")
	}

	return nil
}
