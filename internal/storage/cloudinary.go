package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/rajivgeraev/bazaar-api/internal/config"
)

// CloudinaryStore хранит файлы в Cloudinary; бакет становится папкой внутри корневой папки
type CloudinaryStore struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStore создает новый экземпляр CloudinaryStore
func NewCloudinaryStore(cfg config.CloudinaryConfig) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &CloudinaryStore{cld: cld, folder: cfg.Folder}, nil
}

// PublicID переводит путь хранилища в public_id Cloudinary (без расширения)
func (s *CloudinaryStore) PublicID(bucket, objectPath string) string {
	id := strings.TrimSuffix(objectPath, path.Ext(objectPath))
	return path.Join(s.folder, bucket, id)
}

// Upload загружает файл с перезаписью и возвращает защищённый URL
func (s *CloudinaryStore) Upload(ctx context.Context, bucket, objectPath string, body io.Reader, contentType string) (string, error) {
	resp, err := s.cld.Upload.Upload(ctx, body, uploader.UploadParams{
		PublicID:       s.PublicID(bucket, objectPath),
		Overwrite:      api.Bool(true),
		UniqueFilename: api.Bool(false),
		Invalidate:     api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("ошибка загрузки в Cloudinary: %w", err)
	}
	if resp.Error.Message != "" {
		return "", errors.New(resp.Error.Message)
	}
	return resp.SecureURL, nil
}
