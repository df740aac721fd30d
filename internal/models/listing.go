package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// MaxListingImages ограничение на количество изображений в объявлении.
// Проверяется только на уровне запросов API, не в базе данных.
const MaxListingImages = 10

// Listing представляет объявление в системе
type Listing struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	UserID       uuid.UUID      `db:"user_id" json:"user_id"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description" json:"description"`
	Price        float64        `db:"price" json:"price"`
	Category     string         `db:"category" json:"category"`
	Location     string         `db:"location" json:"location"`
	Images       pq.StringArray `db:"images" json:"images"`
	ContactPhone *string        `db:"contact_phone" json:"contact_phone,omitempty"`
	ContactEmail string         `db:"contact_email" json:"contact_email"`
	IsFeatured   bool           `db:"is_featured" json:"is_featured"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// ListingInput поля для создания объявления
type ListingInput struct {
	UserID       uuid.UUID
	Title        string
	Description  string
	Price        float64
	Category     string
	Location     string
	Images       []string
	ContactPhone *string
	ContactEmail string
	IsFeatured   bool
}

// ListingPatch частичное обновление объявления; nil означает «не менять»
type ListingPatch struct {
	Title        *string
	Description  *string
	Price        *float64
	Category     *string
	Location     *string
	Images       *[]string
	ContactPhone *string
	ContactEmail *string
	IsFeatured   *bool
}

// IsEmpty сообщает, что обновлять нечего
func (p ListingPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil && p.Category == nil &&
		p.Location == nil && p.Images == nil && p.ContactPhone == nil && p.ContactEmail == nil &&
		p.IsFeatured == nil
}

// ListingFilter параметры выборки списка объявлений
type ListingFilter struct {
	Category string
	Search   string
	Featured *bool
	Limit    int
	Offset   int
}
