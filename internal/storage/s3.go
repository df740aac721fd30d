package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"

	"github.com/rajivgeraev/bazaar-api/internal/config"
)

// S3Store хранит файлы в S3; бакет хранилища совпадает с бакетом S3
type S3Store struct {
	client        s3iface.S3API
	region        string
	endpoint      string
	cloudFrontURL string
}

// NewS3Store создаёт клиент S3 по статическим ключам
func NewS3Store(cfg config.AWSConfig) (*S3Store, error) {
	awsCfg := &aws.Config{
		Region: aws.String(cfg.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		),
	}
	// Совместимые с S3 хранилища (MinIO и т.п.)
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return NewS3StoreWithClient(s3.New(sess), cfg), nil
}

// NewS3StoreWithClient создаёт хранилище поверх готового клиента
func NewS3StoreWithClient(client s3iface.S3API, cfg config.AWSConfig) *S3Store {
	return &S3Store{
		client:        client,
		region:        cfg.Region,
		endpoint:      strings.TrimRight(cfg.Endpoint, "/"),
		cloudFrontURL: strings.TrimRight(cfg.CloudFrontURL, "/"),
	}
}

// Upload загружает объект с публичным доступом на чтение
func (s *S3Store) Upload(ctx context.Context, bucket, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	_, err = s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
		ACL:           aws.String(s3.ObjectCannedACLPublicRead),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to S3: %w", err)
	}

	return s.URL(bucket, key), nil
}

// URL публичный адрес объекта: CloudFront, свой endpoint или стандартный адрес S3
func (s *S3Store) URL(bucket, key string) string {
	switch {
	case s.cloudFrontURL != "":
		return fmt.Sprintf("%s/%s/%s", s.cloudFrontURL, bucket, key)
	case s.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", s.endpoint, bucket, key)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", bucket, s.region, key)
	}
}
