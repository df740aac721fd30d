package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

const userIDKey = "userID"

// AuthMiddleware создаёт middleware для проверки JWT
func AuthMiddleware(jwtService *utils.JWTService) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return utils.SendError(c, apperr.Unauthorized("Missing authorization header"))
		}

		// Проверяем Bearer токен
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return utils.SendError(c, apperr.Unauthorized("Invalid authorization header format"))
		}

		userID, err := jwtService.ExtractUserID(parts[1])
		if err != nil {
			return utils.SendError(c, apperr.Unauthorized("Invalid or expired token"))
		}

		// Проверяем, что userID является валидным UUID
		if _, err := uuid.Parse(userID); err != nil {
			return utils.SendError(c, apperr.Unauthorized("Invalid user ID"))
		}

		// Добавляем userID в контекст
		c.Locals(userIDKey, userID)

		return c.Next()
	}
}

// UserID возвращает ID авторизованного пользователя
func UserID(c fiber.Ctx) (uuid.UUID, error) {
	raw, _ := c.Locals(userIDKey).(string)
	if raw == "" {
		return uuid.Nil, apperr.Unauthorized("Пользователь не авторизован")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Unauthorized("Неверный формат ID пользователя")
	}
	return id, nil
}
