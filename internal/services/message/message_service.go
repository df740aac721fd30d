package message

import (
	"context"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/middleware"
	"github.com/rajivgeraev/bazaar-api/internal/models"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

// Store операции над сообщениями
type Store interface {
	Thread(ctx context.Context, userID, peerID uuid.UUID) ([]models.Message, error)
	MarkThreadRead(ctx context.Context, userID, peerID uuid.UUID) (int64, error)
	Send(ctx context.Context, in models.MessageInput) (*models.Message, error)
	Conversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error)
	UnreadCount(ctx context.Context, userID uuid.UUID) (int, error)
}

var _ Store = (*db.MessageRepository)(nil)

// SendMessageRequest тело запроса отправки сообщения
type SendMessageRequest struct {
	ReceiverID string  `json:"receiver_id" validate:"required,uuid"`
	ListingID  *string `json:"listing_id" validate:"omitempty,uuid"`
	Content    string  `json:"content" validate:"notblank,max=4000"`
}

// MessageService представляет сервис личных сообщений
type MessageService struct {
	store      Store
	jwtService *utils.JWTService
}

// NewMessageService создает новый экземпляр MessageService
func NewMessageService(store Store, jwtService *utils.JWTService) *MessageService {
	return &MessageService{
		store:      store,
		jwtService: jwtService,
	}
}

// ViewThread отмечает входящие сообщения прочитанными и возвращает переписку.
// Ошибка отметки не прерывает чтение.
func (s *MessageService) ViewThread(ctx context.Context, userID, peerID uuid.UUID) ([]models.Message, error) {
	if _, err := s.store.MarkThreadRead(ctx, userID, peerID); err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"peer_id": peerID,
		}).WithError(err).Warn("⚠️ Не удалось отметить сообщения прочитанными")
	}
	return s.store.Thread(ctx, userID, peerID)
}

// Send проверяет и сохраняет сообщение
func (s *MessageService) Send(ctx context.Context, senderID uuid.UUID, req SendMessageRequest) (*models.Message, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	receiverID := uuid.MustParse(req.ReceiverID)
	if receiverID == senderID {
		return nil, apperr.Validation("Нельзя отправить сообщение самому себе")
	}

	in := models.MessageInput{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    req.Content,
	}
	if req.ListingID != nil {
		listingID := uuid.MustParse(*req.ListingID)
		in.ListingID = &listingID
	}
	return s.store.Send(ctx, in)
}

// GetConversations возвращает сводки переписок пользователя
func (s *MessageService) GetConversations(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	conversations, err := s.store.Conversations(ctx, userID)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(fiber.Map{"conversations": conversations})
}

// GetUnreadCount возвращает количество непрочитанных сообщений
func (s *MessageService) GetUnreadCount(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	count, err := s.store.UnreadCount(ctx, userID)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// GetThread возвращает переписку с собеседником; ?peek=true не отмечает прочтение
func (s *MessageService) GetThread(c fiber.Ctx) error {
	userID, peerID, err := userAndPeer(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	peek := false
	if raw := c.Query("peek"); raw != "" {
		if peek, err = strconv.ParseBool(raw); err != nil {
			return utils.SendError(c, apperr.Validation("peek must be true or false"))
		}
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	var messages []models.Message
	if peek {
		messages, err = s.store.Thread(ctx, userID, peerID)
	} else {
		messages, err = s.ViewThread(ctx, userID, peerID)
	}
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// MarkRead отмечает входящие сообщения собеседника прочитанными
func (s *MessageService) MarkRead(c fiber.Ctx) error {
	userID, peerID, err := userAndPeer(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	updated, err := s.store.MarkThreadRead(ctx, userID, peerID)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(fiber.Map{"updated": updated})
}

// SendMessage отправляет новое сообщение
func (s *MessageService) SendMessage(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	var req SendMessageRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	msg, err := s.Send(ctx, userID, req)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(msg)
}

func userAndPeer(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	peerID, err := uuid.Parse(c.Params("peerId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.Validation("Неверный формат ID собеседника")
	}
	return userID, peerID, nil
}
