package message

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/models"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

type memoryStore struct {
	messages []models.Message
	markErr  error
	clock    time.Time
}

func (m *memoryStore) Thread(ctx context.Context, userID, peerID uuid.UUID) ([]models.Message, error) {
	out := []models.Message{}
	for _, msg := range m.messages {
		if (msg.SenderID == userID && msg.ReceiverID == peerID) || (msg.SenderID == peerID && msg.ReceiverID == userID) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memoryStore) MarkThreadRead(ctx context.Context, userID, peerID uuid.UUID) (int64, error) {
	if m.markErr != nil {
		return 0, m.markErr
	}
	var n int64
	for i, msg := range m.messages {
		if msg.ReceiverID == userID && msg.SenderID == peerID && !msg.Read {
			m.messages[i].Read = true
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) Send(ctx context.Context, in models.MessageInput) (*models.Message, error) {
	m.clock = m.clock.Add(time.Second)
	msg := models.Message{
		ID: uuid.New(), SenderID: in.SenderID, ReceiverID: in.ReceiverID,
		ListingID: in.ListingID, Content: in.Content, CreatedAt: m.clock,
	}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *memoryStore) Conversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	return []models.ConversationSummary{}, nil
}

func (m *memoryStore) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count := 0
	for _, msg := range m.messages {
		if msg.ReceiverID == userID && !msg.Read {
			count++
		}
	}
	return count, nil
}

type MessageServiceTestSuite struct {
	suite.Suite
	app   *fiber.App
	store *memoryStore
	jwt   *utils.JWTService
	alice uuid.UUID
	bob   uuid.UUID
}

func (s *MessageServiceTestSuite) SetupTest() {
	s.jwt = utils.NewJWTService("secret", time.Hour)
	s.store = &memoryStore{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.alice = uuid.New()
	s.bob = uuid.New()
	s.app = fiber.New()
	NewMessageService(s.store, s.jwt).SetupRoutes(s.app)
}

func (s *MessageServiceTestSuite) call(as uuid.UUID, method, path string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	token, _, err := s.jwt.GenerateToken(as, "user@example.com")
	s.Require().NoError(err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.app.Test(req)
	s.Require().NoError(err)
	var out map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		s.Require().NoError(json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

func (s *MessageServiceTestSuite) send(from, to uuid.UUID, content string) {
	status, out := s.call(from, http.MethodPost, "/api/messages", map[string]any{
		"receiver_id": to.String(),
		"content":     content,
	})
	s.Require().Equal(fiber.StatusCreated, status, out)
}

func (s *MessageServiceTestSuite) unread(as uuid.UUID) float64 {
	_, out := s.call(as, http.MethodGet, "/api/messages/unread-count", nil)
	return out["count"].(float64)
}

func (s *MessageServiceTestSuite) TestViewThreadMarksIncomingRead() {
	s.send(s.alice, s.bob, "Is the bike still available?")
	s.send(s.bob, s.alice, "Yes")
	s.send(s.alice, s.bob, "Great")

	s.Equal(2.0, s.unread(s.bob))

	_, out := s.call(s.bob, http.MethodGet, "/api/messages/with/"+s.alice.String()+"?peek=true", nil)
	s.Len(out["messages"], 3)
	s.Equal(2.0, s.unread(s.bob))

	_, out = s.call(s.bob, http.MethodGet, "/api/messages/with/"+s.alice.String(), nil)
	messages := out["messages"].([]any)
	s.Require().Len(messages, 3)
	s.Equal("Is the bike still available?", messages[0].(map[string]any)["content"])
	s.Equal(0.0, s.unread(s.bob))

	// Сообщение Боба для Алисы остаётся непрочитанным
	s.Equal(1.0, s.unread(s.alice))
}

func (s *MessageServiceTestSuite) TestMarkReadFailureStillReturnsThread() {
	s.send(s.alice, s.bob, "Hello there")
	s.store.markErr = apperr.Wrap(apperr.KindNetwork, "db down", errors.New("timeout"))

	status, out := s.call(s.bob, http.MethodGet, "/api/messages/with/"+s.alice.String(), nil)
	s.Equal(fiber.StatusOK, status)
	s.Len(out["messages"], 1)

	status, out = s.call(s.bob, http.MethodPost, "/api/messages/with/"+s.alice.String()+"/read", nil)
	s.Equal(fiber.StatusBadGateway, status)
	s.Equal("network", out["kind"])
}

func (s *MessageServiceTestSuite) TestExplicitMarkRead() {
	s.send(s.alice, s.bob, "One")
	s.send(s.alice, s.bob, "Two")

	status, out := s.call(s.bob, http.MethodPost, "/api/messages/with/"+s.alice.String()+"/read", nil)
	s.Equal(fiber.StatusOK, status)
	s.Equal(2.0, out["updated"])

	_, out = s.call(s.bob, http.MethodPost, "/api/messages/with/"+s.alice.String()+"/read", nil)
	s.Equal(0.0, out["updated"])
}

func (s *MessageServiceTestSuite) TestSendValidation() {
	status, out := s.call(s.alice, http.MethodPost, "/api/messages", map[string]any{
		"receiver_id": s.alice.String(),
		"content":     "note to self",
	})
	s.Equal(fiber.StatusBadRequest, status)
	s.Equal("validation", out["kind"])

	status, _ = s.call(s.alice, http.MethodPost, "/api/messages", map[string]any{
		"receiver_id": s.bob.String(),
		"content":     "   ",
	})
	s.Equal(fiber.StatusBadRequest, status)

	listingID := uuid.New()
	status, out = s.call(s.alice, http.MethodPost, "/api/messages", map[string]any{
		"receiver_id": s.bob.String(),
		"listing_id":  listingID.String(),
		"content":     "  About your listing  ",
	})
	s.Equal(fiber.StatusCreated, status)
	s.Equal("About your listing", out["content"])
	s.Equal(listingID.String(), out["listing_id"])
	s.Equal(false, out["read"])

	// Длина проверяется после обрезки пробелов
	status, out = s.call(s.alice, http.MethodPost, "/api/messages", map[string]any{
		"receiver_id": s.bob.String(),
		"content":     "   " + strings.Repeat("x", 4000) + "   ",
	})
	s.Require().Equal(fiber.StatusCreated, status, out)
	s.Len(out["content"], 4000)
}

func (s *MessageServiceTestSuite) TestBadPeerID() {
	status, _ := s.call(s.alice, http.MethodGet, "/api/messages/with/not-a-uuid", nil)
	s.Equal(fiber.StatusBadRequest, status)

	status, out := s.call(s.alice, http.MethodGet, "/api/messages/conversations", nil)
	s.Equal(fiber.StatusOK, status)
	s.Empty(out["conversations"])
}

func TestMessageServiceTestSuite(t *testing.T) {
	suite.Run(t, new(MessageServiceTestSuite))
}
