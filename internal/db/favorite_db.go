package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/models"
)

const favoriteColumns = "id, user_id, listing_id, created_at"

// FavoriteRepository доступ к таблице favorites
type FavoriteRepository struct {
	db *sqlx.DB
}

// NewFavoriteRepository создает новый репозиторий избранного
func NewFavoriteRepository(db *sqlx.DB) *FavoriteRepository {
	return &FavoriteRepository{db: db}
}

// Add добавляет объявление в избранное. Повторное добавление не ошибка:
// при нарушении уникальности возвращается уже существующая запись и created=false.
func (r *FavoriteRepository) Add(ctx context.Context, userID, listingID uuid.UUID) (*models.Favorite, bool, error) {
	var fav models.Favorite
	err := r.db.GetContext(ctx, &fav, `
		INSERT INTO favorites (user_id, listing_id)
		VALUES ($1, $2)
		RETURNING `+favoriteColumns, userID, listingID)
	if err == nil {
		return &fav, true, nil
	}

	if !apperr.IsUniqueViolation(err) {
		return nil, false, apperr.FromDB(err, "не удалось добавить в избранное")
	}

	existing, err := r.Get(ctx, userID, listingID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Get возвращает запись избранного для пары пользователь/объявление
func (r *FavoriteRepository) Get(ctx context.Context, userID, listingID uuid.UUID) (*models.Favorite, error) {
	var fav models.Favorite
	err := r.db.GetContext(ctx, &fav,
		"SELECT "+favoriteColumns+" FROM favorites WHERE user_id = $1 AND listing_id = $2",
		userID, listingID)
	if err != nil {
		return nil, apperr.FromDB(err, "запись избранного не найдена")
	}
	return &fav, nil
}

// Remove удаляет объявление из избранного; отсутствие записи не ошибка
func (r *FavoriteRepository) Remove(ctx context.Context, userID, listingID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM favorites WHERE user_id = $1 AND listing_id = $2", userID, listingID)
	return apperr.FromDB(err, "не удалось удалить из избранного")
}

// Check проверяет, находится ли объявление в избранном
func (r *FavoriteRepository) Check(ctx context.Context, userID, listingID uuid.UUID) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND listing_id = $2)",
		userID, listingID)
	if err != nil {
		return false, apperr.FromDB(err, "не удалось проверить избранное")
	}
	return exists, nil
}

// ListListings возвращает избранные объявления пользователя, последние добавленные первыми
func (r *FavoriteRepository) ListListings(ctx context.Context, userID uuid.UUID) ([]models.Listing, error) {
	listings := []models.Listing{}
	query := "SELECT " + listingColumns("l.") + `
		FROM favorites f
		JOIN listings l ON l.id = f.listing_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC`
	if err := r.db.SelectContext(ctx, &listings, query, userID); err != nil {
		return nil, apperr.FromDB(err, "не удалось получить избранное")
	}
	return listings, nil
}
