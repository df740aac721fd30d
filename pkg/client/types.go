package client

import (
	"io"
	"time"

	"github.com/google/uuid"
)

// Listing объявление
type Listing struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Price        float64   `json:"price"`
	Category     string    `json:"category"`
	Location     string    `json:"location"`
	Images       []string  `json:"images"`
	ContactPhone *string   `json:"contact_phone,omitempty"`
	ContactEmail string    `json:"contact_email"`
	IsFeatured   bool      `json:"is_featured"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ListingFilter параметры публичного списка объявлений
type ListingFilter struct {
	Category string
	Search   string
	Featured *bool
	Limit    int
	Offset   int
}

// ListingPage страница списка объявлений
type ListingPage struct {
	Listings []Listing `json:"listings"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
}

// CreateListingInput поля нового объявления
type CreateListingInput struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Price        float64  `json:"price"`
	Category     string   `json:"category"`
	Location     string   `json:"location"`
	Images       []string `json:"images,omitempty"`
	ContactPhone *string  `json:"contact_phone,omitempty"`
	ContactEmail string   `json:"contact_email"`
	IsFeatured   bool     `json:"is_featured"`
}

// UpdateListingInput частичное обновление; nil-поля не меняются
type UpdateListingInput struct {
	Title        *string  `json:"title,omitempty"`
	Description  *string  `json:"description,omitempty"`
	Price        *float64 `json:"price,omitempty"`
	Category     *string  `json:"category,omitempty"`
	Location     *string  `json:"location,omitempty"`
	Images       []string `json:"images,omitempty"`
	ContactPhone *string  `json:"contact_phone,omitempty"`
	ContactEmail *string  `json:"contact_email,omitempty"`
	IsFeatured   *bool    `json:"is_featured,omitempty"`
}

// UploadFile файл для загрузки
type UploadFile struct {
	Name    string
	Content io.Reader
}

// Favorite запись избранного
type Favorite struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ListingID uuid.UUID `json:"listing_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message личное сообщение
type Message struct {
	ID         uuid.UUID  `json:"id"`
	SenderID   uuid.UUID  `json:"sender_id"`
	ReceiverID uuid.UUID  `json:"receiver_id"`
	ListingID  *uuid.UUID `json:"listing_id,omitempty"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	Read       bool       `json:"read"`
}

// SendMessageInput новое сообщение
type SendMessageInput struct {
	ReceiverID uuid.UUID  `json:"receiver_id"`
	ListingID  *uuid.UUID `json:"listing_id,omitempty"`
	Content    string     `json:"content"`
}

// Conversation сводка переписки с собеседником
type Conversation struct {
	ID              uuid.UUID  `json:"id"`
	OtherUserID     uuid.UUID  `json:"other_user_id"`
	OtherUserName   string     `json:"other_user_name"`
	OtherUserAvatar *string    `json:"other_user_avatar,omitempty"`
	LastMessage     string     `json:"last_message"`
	LastMessageDate time.Time  `json:"last_message_date"`
	UnreadCount     int        `json:"unread_count"`
	ListingID       *uuid.UUID `json:"listing_id,omitempty"`
	ListingTitle    *string    `json:"listing_title,omitempty"`
}

// Profile публичный профиль
type Profile struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	FullName     string    `json:"full_name"`
	AvatarURL    *string   `json:"avatar_url,omitempty"`
	Location     *string   `json:"location,omitempty"`
	Bio          *string   `json:"bio,omitempty"`
	MemberSince  time.Time `json:"member_since"`
	ResponseRate *float64  `json:"response_rate,omitempty"`
	ResponseTime *string   `json:"response_time,omitempty"`
	Verified     bool      `json:"verified"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpdateProfileInput частичное обновление профиля
type UpdateProfileInput struct {
	Username     *string  `json:"username,omitempty"`
	FullName     *string  `json:"full_name,omitempty"`
	Location     *string  `json:"location,omitempty"`
	Bio          *string  `json:"bio,omitempty"`
	ResponseRate *float64 `json:"response_rate,omitempty"`
	ResponseTime *string  `json:"response_time,omitempty"`
}

// User аутентифицированный пользователь
type User struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session пара токенов
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired сообщает, истёк ли access-токен с учётом запаса leeway
func (s *Session) Expired(now time.Time, leeway time.Duration) bool {
	return !now.Add(leeway).Before(s.ExpiresAt)
}

// SignUpInput поля регистрации
type SignUpInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
	FullName string `json:"full_name"`
}

// ProfileError причина, по которой профиль не создан при регистрации
type ProfileError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

// SignUpResult результат регистрации. Учётная запись создана даже при ProfileError != nil.
type SignUpResult struct {
	Session      Session
	Profile      *Profile
	ProfileError *ProfileError
}

type authResponse struct {
	User         User          `json:"user"`
	Session      Session       `json:"session"`
	Profile      *Profile      `json:"profile"`
	ProfileError *ProfileError `json:"profile_error,omitempty"`
}
