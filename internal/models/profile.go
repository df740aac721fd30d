package models

import (
	"time"

	"github.com/google/uuid"
)

// Profile публичный профиль пользователя; ID совпадает с ID аккаунта
type Profile struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	FullName     string    `db:"full_name" json:"full_name"`
	AvatarURL    *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Location     *string   `db:"location" json:"location,omitempty"`
	Bio          *string   `db:"bio" json:"bio,omitempty"`
	MemberSince  time.Time `db:"member_since" json:"member_since"`
	ResponseRate *float64  `db:"response_rate" json:"response_rate,omitempty"`
	ResponseTime *string   `db:"response_time" json:"response_time,omitempty"`
	Verified     bool      `db:"verified" json:"verified"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// ProfileInput поля профиля, создаваемого при регистрации
type ProfileInput struct {
	ID       uuid.UUID
	Username string
	FullName string
}

// ProfilePatch частичное обновление профиля
type ProfilePatch struct {
	Username     *string
	FullName     *string
	Location     *string
	Bio          *string
	ResponseRate *float64
	ResponseTime *string
}

// IsEmpty сообщает, что обновлять нечего
func (p ProfilePatch) IsEmpty() bool {
	return p.Username == nil && p.FullName == nil && p.Location == nil && p.Bio == nil &&
		p.ResponseRate == nil && p.ResponseTime == nil
}
