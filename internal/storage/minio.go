package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aihub/knowledge-go/internal/config"
	"github.com/aihub/knowledge-go/internal/logger"
)

// ObjectStorage 文档原始内容的对象存储。
// 对象按内容哈希寻址，相同内容的文件只存一份
type ObjectStorage interface {
	Put(ctx context.Context, data []byte, fileName string) (objectKey, fileHash string, err error)
	Get(ctx context.Context, objectKey string) ([]byte, error)
	Remove(ctx context.Context, objectKey string) error
	Ready() bool
}

// MinioStorage 基于MinIO的对象存储实现
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage 创建MinIO存储并确保bucket存在
func NewMinioStorage(cfg config.ObjectStorageConfig) (*MinioStorage, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is not configured")
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	bucket := cfg.Bucket
	if bucket == "" {
		bucket = "knowledge-documents"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	logger.Info("object storage ready")
	return &MinioStorage{client: client, bucket: bucket}, nil
}

// Put 写入对象，返回内容哈希寻址的object key与文件哈希
func (s *MinioStorage) Put(ctx context.Context, data []byte, fileName string) (string, string, error) {
	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])
	objectKey := fmt.Sprintf("%s/%s/%s", fileHash[:2], fileHash, fileName)

	_, err := s.client.PutObject(ctx, s.bucket, objectKey,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return "", "", fmt.Errorf("failed to store object: %w", err)
	}
	return objectKey, fileHash, nil
}

// Get 读取对象内容
func (s *MinioStorage) Get(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

// Remove 删除对象
func (s *MinioStorage) Remove(ctx context.Context, objectKey string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectKey, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

func (s *MinioStorage) Ready() bool {
	if s.client == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err == nil
}

// NoopStorage 未配置对象存储时的占位实现，原文只存数据库外不落盘
type NoopStorage struct{}

func (NoopStorage) Put(ctx context.Context, data []byte, fileName string) (string, string, error) {
	sum := sha256.Sum256(data)
	return "", hex.EncodeToString(sum[:]), nil
}

func (NoopStorage) Get(ctx context.Context, objectKey string) ([]byte, error) {
	return nil, fmt.Errorf("object storage not configured")
}

func (NoopStorage) Remove(ctx context.Context, objectKey string) error { return nil }

func (NoopStorage) Ready() bool { return false }
