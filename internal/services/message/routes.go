package message

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bazaar-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API сообщений
func (s *MessageService) SetupRoutes(app *fiber.App) {
	api := app.Group("/api/messages")

	// Защищенные маршруты (требуют авторизации)
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/conversations", s.GetConversations)
	api.Get("/unread-count", s.GetUnreadCount)
	api.Get("/with/:peerId", s.GetThread)
	api.Post("/with/:peerId/read", s.MarkRead)
	api.Post("/", s.SendMessage)
}
