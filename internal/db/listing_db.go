package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/models"
)

// Значения пагинации по умолчанию
const (
	DefaultListingLimit = 20
	MaxListingLimit     = 100
)

var listingColumnNames = []string{
	"id", "user_id", "title", "description", "price", "category", "location", "images",
	"contact_phone", "contact_email", "is_featured", "created_at", "updated_at",
}

// listingColumns возвращает список колонок объявления, опционально с префиксом таблицы
func listingColumns(prefix string) string {
	cols := make([]string, len(listingColumnNames))
	for i, name := range listingColumnNames {
		cols[i] = prefix + name
	}
	return strings.Join(cols, ", ")
}

// ListingRepository доступ к таблице listings
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository создает новый репозиторий объявлений
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// EscapeLike экранирует спецсимволы LIKE, чтобы поисковая строка совпадала буквально
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ClampLimit приводит limit и offset к допустимым значениям
func ClampLimit(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListingLimit
	}
	if limit > MaxListingLimit {
		limit = MaxListingLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// List возвращает объявления по фильтру, новые первыми
func (r *ListingRepository) List(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	var conds []string
	var args []any

	if f.Category != "" {
		args = append(args, f.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}

	// Поиск по названию или описанию без учёта регистра
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+EscapeLike(search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf(`(title ILIKE $%d ESCAPE '\' OR description ILIKE $%d ESCAPE '\')`, n, n))
	}

	if f.Featured != nil {
		args = append(args, *f.Featured)
		conds = append(conds, fmt.Sprintf("is_featured = $%d", len(args)))
	}

	query := "SELECT " + listingColumns("") + " FROM listings"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	limit, offset := ClampLimit(f.Limit, f.Offset)
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	listings := []models.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, apperr.FromDB(err, "не удалось получить объявления")
	}
	return listings, nil
}

// GetByID возвращает объявление по ID
func (r *ListingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	query := "SELECT " + listingColumns("") + " FROM listings WHERE id = $1"
	if err := r.db.GetContext(ctx, &listing, query, id); err != nil {
		return nil, apperr.FromDB(err, "объявление не найдено")
	}
	return &listing, nil
}

// GetByUser возвращает объявления пользователя, новые первыми
func (r *ListingRepository) GetByUser(ctx context.Context, userID uuid.UUID) ([]models.Listing, error) {
	listings := []models.Listing{}
	query := "SELECT " + listingColumns("") + " FROM listings WHERE user_id = $1 ORDER BY created_at DESC"
	if err := r.db.SelectContext(ctx, &listings, query, userID); err != nil {
		return nil, apperr.FromDB(err, "не удалось получить объявления пользователя")
	}
	return listings, nil
}

// Create вставляет объявление и возвращает сохранённую строку
func (r *ListingRepository) Create(ctx context.Context, in models.ListingInput) (*models.Listing, error) {
	query := `
		INSERT INTO listings (user_id, title, description, price, category, location, images,
			contact_phone, contact_email, is_featured)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + listingColumns("")

	var listing models.Listing
	err := r.db.GetContext(ctx, &listing, query,
		in.UserID, in.Title, in.Description, in.Price, in.Category, in.Location,
		stringArray(in.Images), nullString(in.ContactPhone), in.ContactEmail, in.IsFeatured)
	if err != nil {
		return nil, apperr.FromDB(err, "не удалось создать объявление")
	}
	return &listing, nil
}

// Update обновляет только переданные поля и возвращает сохранённую строку
func (r *ListingRepository) Update(ctx context.Context, id uuid.UUID, p models.ListingPatch) (*models.Listing, error) {
	if p.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if p.Title != nil {
		set("title", *p.Title)
	}
	if p.Description != nil {
		set("description", *p.Description)
	}
	if p.Price != nil {
		set("price", *p.Price)
	}
	if p.Category != nil {
		set("category", *p.Category)
	}
	if p.Location != nil {
		set("location", *p.Location)
	}
	if p.Images != nil {
		set("images", stringArray(*p.Images))
	}
	// Пустой телефон очищает поле
	if p.ContactPhone != nil {
		set("contact_phone", nullString(p.ContactPhone))
	}
	if p.ContactEmail != nil {
		set("contact_email", *p.ContactEmail)
	}
	if p.IsFeatured != nil {
		set("is_featured", *p.IsFeatured)
	}
	sets = append(sets, "updated_at = now()")

	args = append(args, id)
	query := fmt.Sprintf("UPDATE listings SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), listingColumns(""))

	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, args...); err != nil {
		return nil, apperr.FromDB(err, "не удалось обновить объявление")
	}
	return &listing, nil
}

// AppendImages добавляет URL изображений в конец списка, сохраняя порядок
func (r *ListingRepository) AppendImages(ctx context.Context, id uuid.UUID, urls []string) (*models.Listing, error) {
	query := `
		UPDATE listings SET images = images || $1::text[], updated_at = now()
		WHERE id = $2
		RETURNING ` + listingColumns("")

	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, stringArray(urls), id); err != nil {
		return nil, apperr.FromDB(err, "не удалось сохранить изображения")
	}
	return &listing, nil
}

// Delete удаляет объявление
func (r *ListingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM listings WHERE id = $1", id)
	if err != nil {
		return apperr.FromDB(err, "не удалось удалить объявление")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("объявление не найдено")
	}
	return nil
}

func stringArray(values []string) pq.StringArray {
	if values == nil {
		return pq.StringArray{}
	}
	return pq.StringArray(values)
}

func nullString(s *string) any {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return *s
}
