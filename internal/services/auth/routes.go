package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bazaar-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(app *fiber.App) {
	// Отдельный, более строгий лимит для входа и регистрации
	api := app.Group("/api/auth", s.limiter.Middleware())

	api.Post("/signup", s.SignUpHandler)
	api.Post("/signin", s.SignInHandler)
	api.Post("/refresh", s.RefreshHandler)

	// Защищенные маршруты
	auth := middleware.AuthMiddleware(s.jwtService)
	api.Post("/signout", auth, s.SignOutHandler)
	api.Get("/session", auth, s.SessionHandler)
}
