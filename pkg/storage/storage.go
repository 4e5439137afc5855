package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/feichai0017/tender-processor/config"
	"github.com/feichai0017/tender-processor/pkg/logger"
	"github.com/feichai0017/tender-processor/pkg/storage/memory"
	"github.com/feichai0017/tender-processor/pkg/storage/minio"
	"github.com/feichai0017/tender-processor/pkg/storage/s3"
)

// StorageType 定义存储类型
type StorageType string

const (
	StorageTypeMemory StorageType = "memory"
	StorageTypeS3     StorageType = "s3"
	StorageTypeMinio  StorageType = "minio"
)

// ErrNotFound is returned by Get for unknown keys.
var ErrNotFound = memory.ErrNotFound

// Storage 接口定义
type Storage interface {
	// Store 存储文件
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get 获取文件
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除文件
	Delete(ctx context.Context, key string) error
	// CleanupBefore 清理过期文件
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewStorage 创建存储实例的工厂方法
func NewStorage(storageType StorageType, cfg *config.Config, log logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeMemory, "":
		return memory.New(), nil
	case StorageTypeS3:
		return s3.NewS3Storage(&cfg.S3, log)
	case StorageTypeMinio:
		return minio.NewMinioStorage(&cfg.Minio, log)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}

// ReadAll fetches a whole object.
func ReadAll(ctx context.Context, s Storage, key string) ([]byte, error) {
	rc, err := s.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// IsNotFound reports whether err means the object does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
