package listing

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/middleware"
	"github.com/rajivgeraev/bazaar-api/internal/models"
	"github.com/rajivgeraev/bazaar-api/internal/storage"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

// uploadTimeout загрузка файлов дольше обычного запроса к базе
const uploadTimeout = 2 * time.Minute

// GetListings возвращает публичный список объявлений
func (s *ListingService) GetListings(c fiber.Ctx) error {
	filter := models.ListingFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit", "20"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset", "0"))

	if featured := c.Query("featured"); featured != "" {
		value, err := strconv.ParseBool(featured)
		if err != nil {
			return utils.SendError(c, apperr.Validation("featured must be true or false"))
		}
		filter.Featured = &value
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	listings, err := s.List(ctx, filter)
	if err != nil {
		return utils.SendError(c, err)
	}

	limit, offset := db.ClampLimit(filter.Limit, filter.Offset)
	return c.JSON(fiber.Map{
		"listings": listings,
		"limit":    limit,
		"offset":   offset,
	})
}

// GetListing возвращает объявление по ID
func (s *ListingService) GetListing(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.SendError(c, apperr.Validation("Неверный формат ID объявления"))
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	listing, err := s.Get(ctx, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(listing)
}

// GetUserListings возвращает объявления пользователя
func (s *ListingService) GetUserListings(c fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.SendError(c, apperr.Validation("Неверный формат ID пользователя"))
	}
	return s.sendUserListings(c, userID)
}

// GetMyListings возвращает объявления текущего пользователя
func (s *ListingService) GetMyListings(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	return s.sendUserListings(c, userID)
}

func (s *ListingService) sendUserListings(c fiber.Ctx, userID uuid.UUID) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	listings, err := s.UserListings(ctx, userID)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(fiber.Map{"listings": listings})
}

// CreateListing обрабатывает создание нового объявления
func (s *ListingService) CreateListing(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	var req CreateListingRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	listing, err := s.Create(ctx, userID, req)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(listing)
}

// UpdateListing обновляет объявление
func (s *ListingService) UpdateListing(c fiber.Ctx) error {
	userID, id, err := s.ownerAndID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	var req UpdateListingRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	listing, err := s.Update(ctx, userID, id, req)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(listing)
}

// DeleteListing удаляет объявление
func (s *ListingService) DeleteListing(c fiber.Ctx) error {
	userID, id, err := s.ownerAndID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.Delete(ctx, userID, id); err != nil {
		return utils.SendError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// UploadListingImages загружает изображения и возвращает их URL без привязки к объявлению
func (s *ListingService) UploadListingImages(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	files, err := formFiles(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	urls, err := s.UploadImages(ctx, userID, files)
	if err != nil {
		return sendUploadError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"urls": urls})
}

// AttachListingImages загружает изображения и добавляет их в объявление
func (s *ListingService) AttachListingImages(c fiber.Ctx) error {
	userID, id, err := s.ownerAndID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	files, err := formFiles(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	listing, err := s.AttachImages(ctx, userID, id, files)
	if err != nil {
		return sendUploadError(c, err)
	}
	return c.JSON(listing)
}

func (s *ListingService) ownerAndID(c fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, err := middleware.UserID(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, apperr.Validation("Неверный формат ID объявления")
	}
	return userID, id, nil
}

func formFiles(c fiber.Ctx) ([]storage.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Ожидается multipart/form-data с полем images", err)
	}
	return storage.FromMultipart(form.File["images"]), nil
}

// sendUploadError добавляет к ответу URL файлов, оставшихся в хранилище
func sendUploadError(c fiber.Ctx, err error) error {
	var partial *storage.PartialUploadError
	if errors.As(err, &partial) {
		return utils.SendError(c, err, fiber.Map{"orphaned_urls": partial.Uploaded})
	}
	return utils.SendError(c, err)
}
