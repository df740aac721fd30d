package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/models"
)

const profileColumns = `id, username, full_name, avatar_url, location, bio, member_since,
	response_rate, response_time, verified, updated_at`

// ProfileRepository доступ к таблице profiles
type ProfileRepository struct {
	db *sqlx.DB
}

// NewProfileRepository создает новый репозиторий профилей
func NewProfileRepository(db *sqlx.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// Get возвращает профиль по ID пользователя
func (r *ProfileRepository) Get(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, "SELECT "+profileColumns+" FROM profiles WHERE id = $1", id); err != nil {
		return nil, apperr.FromDB(err, "профиль не найден")
	}
	return &profile, nil
}

// Create создаёт профиль при регистрации
func (r *ProfileRepository) Create(ctx context.Context, in models.ProfileInput) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, `
		INSERT INTO profiles (id, username, full_name, member_since, verified)
		VALUES ($1, $2, $3, now(), false)
		RETURNING `+profileColumns, in.ID, in.Username, in.FullName)
	if err != nil {
		return nil, apperr.FromDB(err, "не удалось создать профиль")
	}
	return &profile, nil
}

// Update обновляет переданные поля профиля
func (r *ProfileRepository) Update(ctx context.Context, id uuid.UUID, p models.ProfilePatch) (*models.Profile, error) {
	if p.IsEmpty() {
		return r.Get(ctx, id)
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Username != nil {
		set("username", *p.Username)
	}
	if p.FullName != nil {
		set("full_name", *p.FullName)
	}
	if p.Location != nil {
		set("location", nullString(p.Location))
	}
	if p.Bio != nil {
		set("bio", nullString(p.Bio))
	}
	if p.ResponseRate != nil {
		set("response_rate", *p.ResponseRate)
	}
	if p.ResponseTime != nil {
		set("response_time", nullString(p.ResponseTime))
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE profiles SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), profileColumns)

	var profile models.Profile
	if err := r.db.GetContext(ctx, &profile, query, args...); err != nil {
		return nil, apperr.FromDB(err, "не удалось обновить профиль")
	}
	return &profile, nil
}

// SetAvatar сохраняет URL аватара
func (r *ProfileRepository) SetAvatar(ctx context.Context, id uuid.UUID, url string) (*models.Profile, error) {
	var profile models.Profile
	err := r.db.GetContext(ctx, &profile, `
		UPDATE profiles SET avatar_url = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+profileColumns, url, id)
	if err != nil {
		return nil, apperr.FromDB(err, "не удалось сохранить аватар")
	}
	return &profile, nil
}
