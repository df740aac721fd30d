package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/models"
)

const messageColumns = "id, sender_id, receiver_id, listing_id, content, created_at, read"

// MessageRepository доступ к таблице messages и сводкам переписок
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository создает новый репозиторий сообщений
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Thread возвращает переписку двух пользователей по возрастанию времени.
// Только чтение: флаги прочтения не меняются.
func (r *MessageRepository) Thread(ctx context.Context, userID, peerID uuid.UUID) ([]models.Message, error) {
	messages := []models.Message{}
	query := "SELECT " + messageColumns + `
		FROM messages
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &messages, query, userID, peerID); err != nil {
		return nil, apperr.FromDB(err, "не удалось получить сообщения")
	}
	return messages, nil
}

// MarkThreadRead отмечает прочитанными сообщения от peerID к userID.
// Флаг меняется только с false на true.
func (r *MessageRepository) MarkThreadRead(ctx context.Context, userID, peerID uuid.UUID) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages SET read = true
		WHERE receiver_id = $1 AND sender_id = $2 AND read = false`, userID, peerID)
	if err != nil {
		return 0, apperr.FromDB(err, "не удалось отметить сообщения прочитанными")
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Send сохраняет сообщение и возвращает сохранённую строку
func (r *MessageRepository) Send(ctx context.Context, in models.MessageInput) (*models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `
		INSERT INTO messages (sender_id, receiver_id, listing_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING `+messageColumns, in.SenderID, in.ReceiverID, in.ListingID, in.Content)
	if err != nil {
		return nil, apperr.FromDB(err, "не удалось отправить сообщение")
	}
	return &msg, nil
}

// Conversations возвращает сводки переписок из хранимой функции.
// Результат не кешируется.
func (r *MessageRepository) Conversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	summaries := []models.ConversationSummary{}
	err := r.db.SelectContext(ctx, &summaries, `
		SELECT id, other_user_id, other_user_name, other_user_avatar, last_message,
			last_message_date, unread_count, listing_id, listing_title
		FROM get_user_conversations($1)`, userID)
	if err != nil {
		return nil, apperr.FromDB(err, "не удалось получить список диалогов")
	}
	return summaries, nil
}

// UnreadCount возвращает количество непрочитанных сообщений пользователя
func (r *MessageRepository) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND read = false", userID)
	if err != nil {
		return 0, apperr.FromDB(err, "не удалось получить количество непрочитанных")
	}
	return count, nil
}
