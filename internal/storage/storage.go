// Package storage хранит изображения объявлений и аватары в объектном хранилище.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rajivgeraev/bazaar-api/internal/apperr"
	"github.com/rajivgeraev/bazaar-api/internal/config"
	"github.com/rajivgeraev/bazaar-api/internal/metrics"
)

// ObjectStore загружает объекты и возвращает их публичный URL
type ObjectStore interface {
	Upload(ctx context.Context, bucket, path string, body io.Reader, contentType string) (string, error)
}

// File файл, полученный из запроса
type File struct {
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// FromMultipart переводит файлы multipart-формы в File
func FromMultipart(headers []*multipart.FileHeader) []File {
	files := make([]File, 0, len(headers))
	for _, h := range headers {
		files = append(files, File{
			Name:        h.Filename,
			ContentType: h.Header.Get("Content-Type"),
			Size:        h.Size,
			Open: func() (io.ReadCloser, error) {
				return h.Open()
			},
		})
	}
	return files
}

// AllowedImageTypes допустимые расширения изображений
var AllowedImageTypes = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "webp": true, "gif": true,
}

// New создаёт хранилище по конфигурации
func New(cfg *config.Config) (ObjectStore, error) {
	switch cfg.Storage.Backend {
	case config.StorageCloudinary:
		return NewCloudinaryStore(cfg.Cloudinary)
	case config.StorageS3:
		return NewS3Store(cfg.AWS)
	case config.StorageMemory:
		logrus.Warn("⚠️ Используется хранилище в памяти, файлы не сохраняются между запусками")
		return NewMemoryStore("http://localhost:" + cfg.Server.Port + "/uploads"), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// Extension возвращает расширение файла в нижнем регистре без точки
func Extension(filename string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return "jpg"
	}
	return ext
}

// ListingImagePath путь изображения объявления: {ownerId}/{unixMillis}_{index}.{ext}.
// Индекс различает файлы одной загрузки, пришедшие в одну миллисекунду.
func ListingImagePath(ownerID uuid.UUID, at time.Time, index int, filename string) string {
	return fmt.Sprintf("%s/%d_%d.%s", ownerID, at.UnixMilli(), index, Extension(filename))
}

// AvatarPath путь аватара: {ownerId}/avatar.{ext}; загрузка перезаписывает прежний файл
func AvatarPath(ownerID uuid.UUID, filename string) string {
	return fmt.Sprintf("%s/avatar.%s", ownerID, Extension(filename))
}

// ValidateImage проверяет тип и размер изображения до обращения к хранилищу
func ValidateImage(f File, maxSize int64) error {
	if !AllowedImageTypes[Extension(f.Name)] {
		return apperr.Validation(fmt.Sprintf("тип файла %s не поддерживается", Extension(f.Name)))
	}
	if maxSize > 0 && f.Size > maxSize {
		return apperr.Validation(fmt.Sprintf("файл %s превышает допустимый размер %d байт", f.Name, maxSize))
	}
	return nil
}

// PartialUploadError часть файлов загружена, затем произошла ошибка.
// Загруженные объекты остаются в хранилище без ссылок на них.
type PartialUploadError struct {
	Bucket      string
	Uploaded    []string
	FailedIndex int
	Err         error
}

func (e *PartialUploadError) Error() string {
	return fmt.Sprintf("загружено %d файлов, ошибка на файле %d: %v", len(e.Uploaded), e.FailedIndex, e.Err)
}

func (e *PartialUploadError) Unwrap() error { return e.Err }

// UploadAll загружает файлы по очереди. Откат не выполняется: при ошибке после
// успешных загрузок возвращается PartialUploadError со списком осиротевших URL.
func UploadAll(ctx context.Context, store ObjectStore, bucket string, files []File, path func(i int, f File) string) ([]string, error) {
	urls := make([]string, 0, len(files))

	for i, f := range files {
		url, err := uploadOne(ctx, store, bucket, path(i, f), f)
		metrics.RecordUpload(bucket, err == nil)
		if err != nil {
			if len(urls) == 0 {
				return nil, err
			}
			metrics.RecordOrphaned(bucket, len(urls))
			logrus.WithFields(logrus.Fields{
				"bucket":   bucket,
				"orphaned": urls,
				"failed":   f.Name,
			}).Warn("⚠️ Частичная загрузка: загруженные файлы остались в хранилище")
			return nil, &PartialUploadError{Bucket: bucket, Uploaded: urls, FailedIndex: i, Err: err}
		}
		urls = append(urls, url)
	}

	return urls, nil
}

// UploadOne загружает один файл
func UploadOne(ctx context.Context, store ObjectStore, bucket, path string, f File) (string, error) {
	url, err := uploadOne(ctx, store, bucket, path, f)
	metrics.RecordUpload(bucket, err == nil)
	return url, err
}

func uploadOne(ctx context.Context, store ObjectStore, bucket, path string, f File) (string, error) {
	body, err := f.Open()
	if err != nil {
		return "", apperr.Wrap(apperr.KindValidation, "не удалось прочитать файл "+f.Name, err)
	}
	defer body.Close()

	url, err := store.Upload(ctx, bucket, path, body, f.ContentType)
	if err != nil {
		if apperr.KindOf(err) != apperr.KindUnknown {
			return "", err
		}
		return "", apperr.Wrap(apperr.KindNetwork, "ошибка загрузки файла "+f.Name, err)
	}
	return url, nil
}
