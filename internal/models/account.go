package models

import (
	"time"

	"github.com/google/uuid"
)

// Account учётная запись для входа по email и паролю
type Account struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	LastSignInAt *time.Time `db:"last_sign_in_at" json:"last_sign_in_at,omitempty"`
}

// AuthSession сессия обновления токена; сам refresh-токен не хранится, только его хеш
type AuthSession struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	AccountID        uuid.UUID  `db:"account_id" json:"account_id"`
	RefreshTokenHash string     `db:"refresh_token_hash" json:"-"`
	ExpiresAt        time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	RevokedAt        *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
}

// Active сообщает, можно ли использовать сессию
func (s *AuthSession) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}

// User минимальная информация о пользователе для API
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}
