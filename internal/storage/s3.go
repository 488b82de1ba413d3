// Package storage はオブジェクトストレージへの画像アップロードを提供する。
package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/hitoshi/marketman/internal/model"
)

// Uploader は画像アップロードのインターフェース。
type Uploader interface {
	// Upload は画像をアップロードし、公開URLを返す。
	Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error)
}

// allowedImageTypes はアップロードを許可するContent-Typeの一覧。
var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
}

// ValidateImage は画像のContent-Typeとサイズを検証する。
func ValidateImage(contentType string, size, maxSize int64) error {
	if !allowedImageTypes[contentType] {
		return model.NewInvalidImageTypeError()
	}
	if size > maxSize {
		return model.NewImageTooLargeError(maxSize)
	}
	return nil
}

// S3Config はS3クライアントの設定。
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Endpoint        string // S3互換サービス用。空の場合はAWS標準エンドポイント
	MaxSize         int64
}

// S3Uploader はAWS S3を使用した画像アップローダー。
type S3Uploader struct {
	client  *s3.Client
	bucket  string
	region  string
	maxSize int64
	now     func() time.Time
}

// NewS3Uploader はS3Uploaderを生成する。
func NewS3Uploader(ctx context.Context, cfg S3Config) (*S3Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Uploader{
		client:  client,
		bucket:  cfg.Bucket,
		region:  cfg.Region,
		maxSize: cfg.MaxSize,
		now:     time.Now,
	}, nil
}

// Upload は画像をS3にアップロードし、公開URLを返す。
// キーは "uploads/<unixミリ秒>-<ファイル名>" 形式で衝突を回避する。
func (u *S3Uploader) Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error) {
	if err := ValidateImage(contentType, size, u.maxSize); err != nil {
		return "", err
	}

	key := fmt.Sprintf("uploads/%d-%s", u.now().UnixMilli(), filename)

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(u.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return "", fmt.Errorf("画像のアップロードに失敗しました: %w", err)
	}

	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.region, key), nil
}

// compile-time interface check
var _ Uploader = (*S3Uploader)(nil)
