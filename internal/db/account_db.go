package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/models"
)

const (
	accountColumns = "id, email, password_hash, created_at, last_sign_in_at"
	sessionColumns = "id, account_id, refresh_token_hash, expires_at, created_at, revoked_at"
)

// AccountRepository доступ к учётным записям и сессиям
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository создает новый репозиторий учётных записей
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateAccount создаёт учётную запись; email хранится в нижнем регистре
func (r *AccountRepository) CreateAccount(ctx context.Context, email, passwordHash string) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account, `
		INSERT INTO accounts (email, password_hash)
		VALUES ($1, $2)
		RETURNING `+accountColumns, normalizeEmail(email), passwordHash)
	if err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Wrap(apperr.KindConflict, "пользователь с таким email уже существует", err)
		}
		return nil, apperr.FromDB(err, "не удалось создать учётную запись")
	}
	return &account, nil
}

// GetAccountByEmail ищет учётную запись по email
func (r *AccountRepository) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account,
		"SELECT "+accountColumns+" FROM accounts WHERE email = $1", normalizeEmail(email))
	if err != nil {
		return nil, apperr.FromDB(err, "учётная запись не найдена")
	}
	return &account, nil
}

// GetAccountByID ищет учётную запись по ID
func (r *AccountRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	err := r.db.GetContext(ctx, &account, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id)
	if err != nil {
		return nil, apperr.FromDB(err, "учётная запись не найдена")
	}
	return &account, nil
}

// TouchSignIn обновляет время последнего входа
func (r *AccountRepository) TouchSignIn(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, "UPDATE accounts SET last_sign_in_at = now() WHERE id = $1", id)
	return apperr.FromDB(err, "не удалось обновить время входа")
}

// CreateSession сохраняет новую сессию обновления
func (r *AccountRepository) CreateSession(ctx context.Context, accountID uuid.UUID, tokenHash string, expiresAt time.Time) (*models.AuthSession, error) {
	var session models.AuthSession
	err := r.db.GetContext(ctx, &session, `
		INSERT INTO auth_sessions (account_id, refresh_token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+sessionColumns, accountID, tokenHash, expiresAt)
	if err != nil {
		return nil, apperr.FromDB(err, "не удалось создать сессию")
	}
	return &session, nil
}

// GetSessionByHash ищет сессию по хешу refresh-токена
func (r *AccountRepository) GetSessionByHash(ctx context.Context, tokenHash string) (*models.AuthSession, error) {
	var session models.AuthSession
	err := r.db.GetContext(ctx, &session,
		"SELECT "+sessionColumns+" FROM auth_sessions WHERE refresh_token_hash = $1", tokenHash)
	if err != nil {
		return nil, apperr.FromDB(err, "сессия не найдена")
	}
	return &session, nil
}

// RevokeSession отзывает сессию; повторный отзыв не ошибка
func (r *AccountRepository) RevokeSession(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE auth_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL", id)
	return apperr.FromDB(err, "не удалось завершить сессию")
}

// RotateSession атомарно отзывает старую сессию и создаёт новую.
// Если старая сессия уже отозвана, возвращается unauthorized.
func (r *AccountRepository) RotateSession(ctx context.Context, oldID, accountID uuid.UUID, newHash string, expiresAt time.Time) (*models.AuthSession, error) {
	// Начинаем транзакцию
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.FromDB(err, "ошибка при начале транзакции")
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE auth_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL", oldID)
	if err != nil {
		return nil, apperr.FromDB(err, "не удалось отозвать сессию")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Unauthorized("сессия уже завершена")
	}

	var session models.AuthSession
	err = tx.GetContext(ctx, &session, `
		INSERT INTO auth_sessions (account_id, refresh_token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING `+sessionColumns, accountID, newHash, expiresAt)
	if err != nil {
		return nil, apperr.FromDB(err, "не удалось создать сессию")
	}

	// Фиксируем транзакцию
	if err := tx.Commit(); err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("ошибка фиксации транзакции для сессии %s", oldID))
	}
	return &session, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
