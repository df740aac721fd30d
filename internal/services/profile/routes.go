package profile

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bazaar-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API профилей
func (s *ProfileService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	api := app.Group("/api/profiles")

	// /me регистрируется до /:id
	api.Get("/me", auth, s.GetMyProfile)
	api.Put("/me", auth, s.UpdateMyProfile)
	api.Post("/me/avatar", auth, s.UploadMyAvatar)

	api.Get("/:id", s.GetProfile)
}
