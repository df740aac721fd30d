package listing

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/config"
	"github.com/rajivgeraev/bazaar-api/internal/db"
	"github.com/rajivgeraev/bazaar-api/internal/metrics"
	"github.com/rajivgeraev/bazaar-api/internal/models"
	"github.com/rajivgeraev/bazaar-api/internal/storage"
	"github.com/rajivgeraev/bazaar-api/internal/utils"
)

// Store операции над объявлениями, которые нужны сервису
type Store interface {
	List(ctx context.Context, f models.ListingFilter) ([]models.Listing, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	GetByUser(ctx context.Context, userID uuid.UUID) ([]models.Listing, error)
	Create(ctx context.Context, in models.ListingInput) (*models.Listing, error)
	Update(ctx context.Context, id uuid.UUID, p models.ListingPatch) (*models.Listing, error)
	AppendImages(ctx context.Context, id uuid.UUID, urls []string) (*models.Listing, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

var _ Store = (*db.ListingRepository)(nil)

// Price цена из запроса: принимает и число, и строку ("100")
type Price float64

func (p *Price) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		return nil
	}
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = strings.TrimSpace(unquoted)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return apperr.Validation("price must be a number")
	}
	*p = Price(value)
	return nil
}

// CreateListingRequest тело запроса создания объявления
type CreateListingRequest struct {
	Title        string   `json:"title" validate:"notblank,min=5,max=120"`
	Description  string   `json:"description" validate:"notblank,min=20,max=5000"`
	Price        Price    `json:"price" validate:"gt=0"`
	Category     string   `json:"category" validate:"notblank,max=64"`
	Location     string   `json:"location" validate:"notblank,min=2,max=120"`
	Images       []string `json:"images" validate:"omitempty,max=10,dive,url"`
	ContactPhone *string  `json:"contact_phone" validate:"omitempty,max=32"`
	ContactEmail string   `json:"contact_email" validate:"required,email"`
	IsFeatured   bool     `json:"is_featured"`
}

// normalize обрезает пробелы до проверки длин
func (r *CreateListingRequest) normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Description = strings.TrimSpace(r.Description)
	r.Category = strings.TrimSpace(r.Category)
	r.Location = strings.TrimSpace(r.Location)
	r.ContactPhone = trimmed(r.ContactPhone)
	r.ContactEmail = strings.TrimSpace(r.ContactEmail)
}

// UpdateListingRequest частичное обновление; отсутствующие поля не меняются
type UpdateListingRequest struct {
	Title        *string  `json:"title" validate:"omitempty,min=5,max=120"`
	Description  *string  `json:"description" validate:"omitempty,min=20,max=5000"`
	Price        *Price   `json:"price" validate:"omitempty,gt=0"`
	Category     *string  `json:"category" validate:"omitempty,notblank,max=64"`
	Location     *string  `json:"location" validate:"omitempty,min=2,max=120"`
	Images       []string `json:"images" validate:"omitempty,max=10,dive,url"`
	ContactPhone *string  `json:"contact_phone" validate:"omitempty,max=32"`
	ContactEmail *string  `json:"contact_email" validate:"omitempty,email"`
	IsFeatured   *bool    `json:"is_featured"`
}

func (r *UpdateListingRequest) normalize() {
	r.Title = trimmed(r.Title)
	r.Description = trimmed(r.Description)
	r.Category = trimmed(r.Category)
	r.Location = trimmed(r.Location)
	r.ContactPhone = trimmed(r.ContactPhone)
	r.ContactEmail = trimmed(r.ContactEmail)
}

// ListingService представляет сервис для работы с объявлениями
type ListingService struct {
	cfg        *config.Config
	store      Store
	files      storage.ObjectStore
	jwtService *utils.JWTService
	now        func() time.Time
}

// NewListingService создает новый экземпляр ListingService
func NewListingService(cfg *config.Config, store Store, files storage.ObjectStore, jwtService *utils.JWTService) *ListingService {
	return &ListingService{
		cfg:        cfg,
		store:      store,
		files:      files,
		jwtService: jwtService,
		now:        time.Now,
	}
}

// List возвращает объявления по фильтру
func (s *ListingService) List(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	return s.store.List(ctx, f)
}

// Get возвращает объявление по ID
func (s *ListingService) Get(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	return s.store.GetByID(ctx, id)
}

// UserListings возвращает объявления пользователя
func (s *ListingService) UserListings(ctx context.Context, userID uuid.UUID) ([]models.Listing, error) {
	return s.store.GetByUser(ctx, userID)
}

// Create проверяет запрос и создаёт объявление
func (s *ListingService) Create(ctx context.Context, ownerID uuid.UUID, req CreateListingRequest) (*models.Listing, error) {
	req.normalize()
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	return s.store.Create(ctx, models.ListingInput{
		UserID:       ownerID,
		Title:        req.Title,
		Description:  req.Description,
		Price:        float64(req.Price),
		Category:     req.Category,
		Location:     req.Location,
		Images:       req.Images,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		IsFeatured:   req.IsFeatured,
	})
}

// Update обновляет объявление владельца
func (s *ListingService) Update(ctx context.Context, ownerID, id uuid.UUID, req UpdateListingRequest) (*models.Listing, error) {
	req.normalize()
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return nil, err
	}

	patch := models.ListingPatch{
		Title:        req.Title,
		Description:  req.Description,
		Category:     req.Category,
		Location:     req.Location,
		ContactPhone: req.ContactPhone,
		ContactEmail: req.ContactEmail,
		IsFeatured:   req.IsFeatured,
	}
	if req.Price != nil {
		price := float64(*req.Price)
		patch.Price = &price
	}
	if req.Images != nil {
		images := req.Images
		patch.Images = &images
	}

	return s.store.Update(ctx, id, patch)
}

// Delete удаляет объявление владельца
func (s *ListingService) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if _, err := s.owned(ctx, ownerID, id); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// UploadImages загружает файлы в бакет объявлений и возвращает их URL.
// Ничего не сохраняет в базе.
func (s *ListingService) UploadImages(ctx context.Context, ownerID uuid.UUID, files []storage.File) ([]string, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("добавьте хотя бы одно изображение")
	}
	if len(files) > models.MaxListingImages {
		return nil, apperr.Validation("можно загрузить не более 10 изображений")
	}
	for _, f := range files {
		if err := storage.ValidateImage(f, s.cfg.Storage.MaxUploadSize); err != nil {
			return nil, err
		}
	}

	at := s.now()
	return storage.UploadAll(ctx, s.files, s.cfg.Storage.ListingBucket, files, func(i int, f storage.File) string {
		return storage.ListingImagePath(ownerID, at, i, f.Name)
	})
}

// AttachImages загружает файлы и дописывает их URL в объявление.
// Шаги не атомарны: при ошибке сохранения загруженные файлы остаются в хранилище.
func (s *ListingService) AttachImages(ctx context.Context, ownerID, id uuid.UUID, files []storage.File) (*models.Listing, error) {
	listing, err := s.owned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if len(listing.Images)+len(files) > models.MaxListingImages {
		return nil, apperr.Validation("у объявления может быть не более 10 изображений")
	}

	urls, err := s.UploadImages(ctx, ownerID, files)
	if err != nil {
		return nil, err
	}

	updated, err := s.store.AppendImages(ctx, id, urls)
	if err != nil {
		bucket := s.cfg.Storage.ListingBucket
		metrics.RecordOrphaned(bucket, len(urls))
		logrus.WithFields(logrus.Fields{
			"listing_id": id,
			"orphaned":   urls,
		}).WithError(err).Warn("⚠️ Изображения загружены, но не сохранены в объявлении")
		return nil, &storage.PartialUploadError{Bucket: bucket, Uploaded: urls, FailedIndex: len(urls), Err: err}
	}
	return updated, nil
}

// owned возвращает объявление, если оно принадлежит пользователю
func (s *ListingService) owned(ctx context.Context, ownerID, id uuid.UUID) (*models.Listing, error) {
	listing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if listing.UserID != ownerID {
		return nil, apperr.Forbidden("Вы не можете изменять это объявление")
	}
	return listing, nil
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
