package models

import (
	"time"

	"github.com/google/uuid"
)

// Favorite представляет запись избранного объявления
type Favorite struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	ListingID uuid.UUID `db:"listing_id" json:"listing_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
