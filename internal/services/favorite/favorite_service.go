package favorite

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/middleware"
	"github.com/rajivgeraev/bazaar-api/internal/models"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

// Store операции над избранным
type Store interface {
	Add(ctx context.Context, userID, listingID uuid.UUID) (*models.Favorite, bool, error)
	Remove(ctx context.Context, userID, listingID uuid.UUID) error
	Check(ctx context.Context, userID, listingID uuid.UUID) (bool, error)
	ListListings(ctx context.Context, userID uuid.UUID) ([]models.Listing, error)
}

var _ Store = (*db.FavoriteRepository)(nil)

// AddFavoriteRequest тело запроса добавления в избранное
type AddFavoriteRequest struct {
	ListingID string `json:"listing_id" validate:"required,uuid"`
}

// FavoriteService представляет сервис для работы с избранными объявлениями
type FavoriteService struct {
	store      Store
	jwtService *utils.JWTService
}

// NewFavoriteService создает новый экземпляр FavoriteService
func NewFavoriteService(store Store, jwtService *utils.JWTService) *FavoriteService {
	return &FavoriteService{
		store:      store,
		jwtService: jwtService,
	}
}

// AddToFavorites добавляет объявление в избранное.
// 201 для новой записи, 200 если объявление уже было в избранном.
func (s *FavoriteService) AddToFavorites(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	var req AddFavoriteRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.SendError(c, err)
	}
	listingID := uuid.MustParse(req.ListingID)

	ctx, cancel := db.GetContext()
	defer cancel()

	fav, created, err := s.store.Add(ctx, userID, listingID)
	if err != nil {
		return utils.SendError(c, err)
	}

	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{
		"favorite": fav,
		"created":  created,
	})
}

// RemoveFromFavorites удаляет объявление из избранного
func (s *FavoriteService) RemoveFromFavorites(c fiber.Ctx) error {
	userID, listingID, err := userAndListing(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.store.Remove(ctx, userID, listingID); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetFavorites возвращает избранные объявления пользователя
func (s *FavoriteService) GetFavorites(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	listings, err := s.store.ListListings(ctx, userID)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(fiber.Map{"listings": listings})
}

// CheckFavorite проверяет, добавлено ли объявление в избранное
func (s *FavoriteService) CheckFavorite(c fiber.Ctx) error {
	userID, listingID, err := userAndListing(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	exists, err := s.store.Check(ctx, userID, listingID)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(fiber.Map{"is_favorite": exists})
}

func userAndListing(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	listingID, err := uuid.Parse(c.Params("listingId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.Validation("Неверный формат ID объявления")
	}
	return userID, listingID, nil
}
