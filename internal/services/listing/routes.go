package listing

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/bazaar-api/internal/middleware"
)

// SetupRoutes настраивает маршруты для API объявлений
func (s *ListingService) SetupRoutes(app *fiber.App) {
	auth := middleware.AuthMiddleware(s.jwtService)

	// Группа для API объявлений
	api := app.Group("/api/listings")

	// Публичные маршруты
	api.Get("/", s.GetListings)

	// Маршрут для получения списка своих объявлений (до /:id)
	api.Get("/my", auth, s.GetMyListings)

	api.Get("/:id", s.GetListing)

	// Защищенные маршруты
	api.Post("/", auth, s.CreateListing)
	api.Put("/:id", auth, s.UpdateListing)
	api.Delete("/:id", auth, s.DeleteListing)
	api.Post("/:id/images", auth, s.AttachListingImages)

	// Объявления пользователя
	app.Get("/api/users/:id/listings", s.GetUserListings)

	// Загрузка изображений до создания объявления
	app.Post("/api/uploads/listing-images", auth, s.UploadListingImages)
}
