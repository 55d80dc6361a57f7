package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"forgeboard/utils"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Storage persists attachment files under slash-separated keys.
type Storage interface {
	SaveFile(ctx context.Context, key string, data []byte, contentType string) (string, error)
	// DeleteFile removes a single key. A missing key is not an error.
	DeleteFile(ctx context.Context, key string) error
	// DeletePrefix removes every file whose key starts with prefix + "/".
	DeletePrefix(ctx context.Context, prefix string) error
}

// LocalStorage implements Storage on local disk; files are served under /uploads/.
type LocalStorage struct {
	UploadDir string
}

func (ls *LocalStorage) SaveFile(_ context.Context, key string, data []byte, _ string) (string, error) {
	fullPath, err := ls.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", err
	}
	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		return "", err
	}
	return "/uploads/" + key, nil
}

func (ls *LocalStorage) DeleteFile(_ context.Context, key string) error {
	fullPath, err := ls.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (ls *LocalStorage) DeletePrefix(_ context.Context, prefix string) error {
	dir, err := ls.resolve(prefix)
	if err != nil {
		return err
	}
	return os.RemoveAll(dir)
}

func (ls *LocalStorage) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(ls.UploadDir, filepath.FromSlash(clean)), nil
}

// S3Storage implements Storage for S3-compatible object storage.
type S3Storage struct {
	Client     *minio.Client
	BucketName string
	PublicURL  string
}

func NewS3Storage(endpoint, accessKey, secretKey, bucket, region, publicURL string, useSSL bool) (*S3Storage, error) {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")

	var creds *credentials.Credentials
	if accessKey == "" || secretKey == "" {
		// IAM role credentials when keys are not provided
		creds = credentials.NewIAM("")
	} else {
		creds = credentials.NewStaticV4(accessKey, secretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, err
	}

	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}

	if publicURL == "" {
		protocol := "http"
		if useSSL {
			protocol = "https"
		}
		publicURL = fmt.Sprintf("%s://%s.%s", protocol, bucket, endpoint)
	}

	return &S3Storage{
		Client:     client,
		BucketName: bucket,
		PublicURL:  strings.TrimSuffix(publicURL, "/"),
	}, nil
}

func (s3 *S3Storage) SaveFile(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s3.Client.PutObject(ctx, s3.BucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s", s3.PublicURL, key), nil
}

func (s3 *S3Storage) DeleteFile(ctx context.Context, key string) error {
	return s3.Client.RemoveObject(ctx, s3.BucketName, key, minio.RemoveObjectOptions{})
}

func (s3 *S3Storage) DeletePrefix(ctx context.Context, prefix string) error {
	objects := s3.Client.ListObjects(ctx, s3.BucketName, minio.ListObjectsOptions{
		Prefix:    prefix + "/",
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return obj.Err
		}
		if err := s3.Client.RemoveObject(ctx, s3.BucketName, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return err
		}
	}
	return nil
}

// Attachments files processed uploads per client so they can be dropped with the session.
type Attachments struct {
	storage Storage
	logger  *slog.Logger
}

func NewAttachments(storage Storage, logger *slog.Logger) *Attachments {
	return &Attachments{storage: storage, logger: logger}
}

func (a *Attachments) Storage() Storage { return a.storage }

// clientPrefix keeps raw session ids out of public URLs.
func clientPrefix(clientID string) string {
	return utils.HashIP(clientID)
}

// keys names both renditions. Identical uploads from one client share keys.
func keys(clientID string, p *Processed) (hero, thumb string) {
	prefix := clientPrefix(clientID)
	base := p.Hash[:16]
	return fmt.Sprintf("%s/%s.%s", prefix, base, p.Hero.Ext), fmt.Sprintf("%s/%s_thumb.%s", prefix, base, p.Thumbnail.Ext)
}

// Save stores both renditions and returns their public URLs.
func (a *Attachments) Save(ctx context.Context, clientID string, p *Processed) (imageURL, thumbnailURL string, err error) {
	heroKey, thumbKey := keys(clientID, p)

	imageURL, err = a.storage.SaveFile(ctx, heroKey, p.Hero.Data, p.Hero.ContentType)
	if err != nil {
		return "", "", fmt.Errorf("could not store image: %w", err)
	}
	thumbnailURL, err = a.storage.SaveFile(ctx, thumbKey, p.Thumbnail.Data, p.Thumbnail.ContentType)
	if err != nil {
		// The card falls back to the hero image.
		a.logger.Error("Failed to store thumbnail", "error", err)
		return imageURL, "", nil
	}
	return imageURL, thumbnailURL, nil
}

// Discard deletes the files Save wrote for p, for uploads whose idea was never created.
func (a *Attachments) Discard(ctx context.Context, clientID string, p *Processed) {
	heroKey, thumbKey := keys(clientID, p)
	for _, key := range []string{heroKey, thumbKey} {
		if err := a.storage.DeleteFile(ctx, key); err != nil {
			a.logger.Error("Failed to discard attachment", "error", err)
		}
	}
}

// Purge deletes every attachment of a client.
func (a *Attachments) Purge(ctx context.Context, clientID string) {
	if err := a.storage.DeletePrefix(ctx, clientPrefix(clientID)); err != nil {
		a.logger.Error("Failed to purge attachments", "error", err)
	}
}
