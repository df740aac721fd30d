package profile

import (
	"context"
	"errors"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/config"
	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/metrics"
	"github.com/rajivgeraev/bazaar-api/internal/middleware"
	"github.com/rajivgeraev/bazaar-api/internal/models"
	"github.com/rajivgeraev/bazaar-api/internal/storage"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

const uploadTimeout = time.Minute

// Store операции над профилями
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	Update(ctx context.Context, id uuid.UUID, p models.ProfilePatch) (*models.Profile, error)
	SetAvatar(ctx context.Context, id uuid.UUID, url string) (*models.Profile, error)
}

var _ Store = (*db.ProfileRepository)(nil)

// UpdateProfileRequest частичное обновление профиля
type UpdateProfileRequest struct {
	Username     *string  `json:"username" validate:"omitempty,username"`
	FullName     *string  `json:"full_name" validate:"omitempty,notblank,min=2,max=100"`
	Location     *string  `json:"location" validate:"omitempty,max=120"`
	Bio          *string  `json:"bio" validate:"omitempty,max=1000"`
	ResponseRate *float64 `json:"response_rate" validate:"omitempty,gte=0,lte=100"`
	ResponseTime *string  `json:"response_time" validate:"omitempty,max=64"`
}

// normalize обрезает пробелы до проверки длин
func (r *UpdateProfileRequest) normalize() {
	r.Username = trimmed(r.Username)
	r.FullName = trimmed(r.FullName)
	r.Location = trimmed(r.Location)
	r.Bio = trimmed(r.Bio)
	r.ResponseTime = trimmed(r.ResponseTime)
}

// ProfileService представляет сервис профилей
type ProfileService struct {
	cfg        *config.Config
	store      Store
	files      storage.ObjectStore
	jwtService *utils.JWTService
}

// NewProfileService создает новый экземпляр ProfileService
func NewProfileService(cfg *config.Config, store Store, files storage.ObjectStore, jwtService *utils.JWTService) *ProfileService {
	return &ProfileService{
		cfg:        cfg,
		store:      store,
		files:      files,
		jwtService: jwtService,
	}
}

// Update проверяет запрос и обновляет профиль
func (s *ProfileService) Update(ctx context.Context, id uuid.UUID, req UpdateProfileRequest) (*models.Profile, error) {
	req.normalize()
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	return s.store.Update(ctx, id, models.ProfilePatch{
		Username:     req.Username,
		FullName:     req.FullName,
		Location:     req.Location,
		Bio:          req.Bio,
		ResponseRate: req.ResponseRate,
		ResponseTime: req.ResponseTime,
	})
}

// UploadAvatar загружает аватар поверх прежнего и сохраняет URL в профиле.
// Если сохранить URL не удалось, объект остаётся в хранилище.
func (s *ProfileService) UploadAvatar(ctx context.Context, id uuid.UUID, f storage.File) (*models.Profile, error) {
	if err := storage.ValidateImage(f, s.cfg.Storage.MaxUploadSize); err != nil {
		return nil, err
	}

	bucket := s.cfg.Storage.AvatarBucket
	url, err := storage.UploadOne(ctx, s.files, bucket, storage.AvatarPath(id, f.Name), f)
	if err != nil {
		return nil, err
	}

	profile, err := s.store.SetAvatar(ctx, id, url)
	if err != nil {
		metrics.RecordOrphaned(bucket, 1)
		logrus.WithFields(logrus.Fields{
			"user_id": id,
			"url":     url,
		}).WithError(err).Warn("⚠️ Аватар загружен, но не сохранён в профиле")
		return nil, &storage.PartialUploadError{Bucket: bucket, Uploaded: []string{url}, FailedIndex: 1, Err: err}
	}
	return profile, nil
}

// GetProfile возвращает публичный профиль
func (s *ProfileService) GetProfile(c fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return utils.SendError(c, apperr.Validation("Неверный формат ID пользователя"))
	}
	return s.sendProfile(c, id)
}

// GetMyProfile возвращает профиль текущего пользователя
func (s *ProfileService) GetMyProfile(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}
	return s.sendProfile(c, userID)
}

func (s *ProfileService) sendProfile(c fiber.Ctx, id uuid.UUID) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	profile, err := s.store.Get(ctx, id)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(profile)
}

// UpdateMyProfile обновляет профиль текущего пользователя
func (s *ProfileService) UpdateMyProfile(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	var req UpdateProfileRequest
	if err := utils.BindBody(c, &req); err != nil {
		return utils.SendError(c, err)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	profile, err := s.Update(ctx, userID, req)
	if err != nil {
		return utils.SendError(c, err)
	}
	return c.JSON(profile)
}

// UploadMyAvatar принимает файл из поля avatar
func (s *ProfileService) UploadMyAvatar(c fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return utils.SendError(c, err)
	}

	header, err := c.FormFile("avatar")
	if err != nil {
		return utils.SendError(c, apperr.Wrap(apperr.KindValidation, "Ожидается файл в поле avatar", err))
	}
	files := storage.FromMultipart([]*multipart.FileHeader{header})

	ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
	defer cancel()

	profile, err := s.UploadAvatar(ctx, userID, files[0])
	if err != nil {
		var partial *storage.PartialUploadError
		if errors.As(err, &partial) {
			return utils.SendError(c, err, fiber.Map{"orphaned_urls": partial.Uploaded})
		}
		return utils.SendError(c, err)
	}
	return c.JSON(profile)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
