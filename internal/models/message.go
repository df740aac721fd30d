package models

import (
	"time"

	"github.com/google/uuid"
)

// Message представляет личное сообщение между пользователями
type Message struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	SenderID   uuid.UUID  `db:"sender_id" json:"sender_id"`
	ReceiverID uuid.UUID  `db:"receiver_id" json:"receiver_id"`
	ListingID  *uuid.UUID `db:"listing_id" json:"listing_id,omitempty"`
	Content    string     `db:"content" json:"content"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	Read       bool       `db:"read" json:"read"`
}

// MessageInput поля нового сообщения
type MessageInput struct {
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	ListingID  *uuid.UUID
	Content    string
}

// ConversationSummary сводка по переписке с одним собеседником.
// Считается хранимой функцией get_user_conversations.
type ConversationSummary struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	OtherUserID     uuid.UUID  `db:"other_user_id" json:"other_user_id"`
	OtherUserName   string     `db:"other_user_name" json:"other_user_name"`
	OtherUserAvatar *string    `db:"other_user_avatar" json:"other_user_avatar,omitempty"`
	LastMessage     string     `db:"last_message" json:"last_message"`
	LastMessageDate time.Time  `db:"last_message_date" json:"last_message_date"`
	UnreadCount     int        `db:"unread_count" json:"unread_count"`
	ListingID       *uuid.UUID `db:"listing_id" json:"listing_id,omitempty"`
	ListingTitle    *string    `db:"listing_title" json:"listing_title,omitempty"`
}
