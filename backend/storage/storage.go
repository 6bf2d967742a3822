package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cleanstreet/backend/config"

	"github.com/apex/log"
	"github.com/google/uuid"
)

// Object is a stored photo.
type Object struct {
	Key string
	URL string
}

type Storage interface {
	Save(ctx context.Context, ext, contentType string, data []byte) (*Object, error)
	// Tag attaches metadata to a stored object. Backends without metadata ignore it.
	Tag(ctx context.Context, key string, tags map[string]string) error
	Delete(ctx context.Context, key string) error
}

// New returns the storage backend selected by cfg.StorageBackend.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.StorageBackend {
	case "s3":
		if cfg.S3Bucket == "" || cfg.S3Region == "" {
			return nil, errors.New("s3 storage requires S3_BUCKET and AWS_REGION")
		}
		return NewS3Storage(ctx, cfg.S3Region, cfg.S3Bucket, cfg.S3PublicURL)
	case "", "local":
		return NewLocalStorage(cfg.UploadDir)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

// LocalStorage keeps photos under dir/complaints and serves them from /uploads.
type LocalStorage struct {
	dir string
}

func NewLocalStorage(dir string) (*LocalStorage, error) {
	if err := os.MkdirAll(filepath.Join(dir, "complaints"), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	log.Infof("Storing photos on local disk under %s", dir)
	return &LocalStorage{dir: dir}, nil
}

func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Save(ctx context.Context, ext, contentType string, data []byte) (*Object, error) {
	key := path.Join("complaints", "complaint-"+uuid.NewString()+strings.ToLower(ext))
	if err := os.WriteFile(filepath.Join(s.dir, filepath.FromSlash(key)), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write photo: %w", err)
	}
	return &Object{Key: key, URL: "/uploads/" + key}, nil
}

func (s *LocalStorage) Tag(ctx context.Context, key string, tags map[string]string) error {
	return nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	clean := path.Clean("/" + key)[1:]
	if clean == "" || clean != key {
		return fmt.Errorf("invalid storage key %q", key)
	}
	err := os.Remove(filepath.Join(s.dir, filepath.FromSlash(clean)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete photo %s: %w", key, err)
	}
	return nil
}
