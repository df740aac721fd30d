package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/middleware"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

// SignUpHandler регистрирует пользователя
func (s *AuthService) SignUpHandler(c fiber.Ctx) error {
	var req SignUpRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	result, err := s.SignUp(ctx, req)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// SignInHandler выполняет вход по email и паролю
func (s *AuthService) SignInHandler(c fiber.Ctx) error {
	var req SignInRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	result, err := s.SignIn(ctx, req)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(result)
}

// RefreshHandler обновляет пару токенов
func (s *AuthService) RefreshHandler(c fiber.Ctx) error {
	var req RefreshRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	result, err := s.Refresh(ctx, req)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(result)
}

// SignOutHandler завершает сессию
func (s *AuthService) SignOutHandler(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	var req RefreshRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.SignOut(ctx, userID, req); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SessionHandler возвращает текущего пользователя
func (s *AuthService) SessionHandler(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(fiber.Map{"user": user})
}
