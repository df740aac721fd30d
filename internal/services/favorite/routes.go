package favorite

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bazaar-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API избранного
func (s *FavoriteService) SetupRoutes(app *fiber.App) {
	// Группа для API избранного
	api := app.Group("/api/favorites")

	// Все маршруты требуют авторизации
	api.Use(middleware.AuthMiddleware(s.jwtService))

	api.Get("/", s.GetFavorites)
	api.Post("/", s.AddToFavorites)
	api.Delete("/:listingId", s.RemoveFromFavorites)
	api.Get("/:listingId/check", s.CheckFavorite)
}
