package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var avatarExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var (
	errAvatarRejectedSize = errors.New("avatar too large")
	errAvatarRejectedType = errors.New("avatar type not allowed")
)

// AvatarStore saves uploaded avatars under <root>/avatars.
type AvatarStore struct {
	root    string
	maxSize int64
}

func NewAvatarStore(root string, maxSize int64) *AvatarStore {
	return &AvatarStore{root: root, maxSize: maxSize}
}

// Save writes the upload and returns its path relative to root.
func (s *AvatarStore) Save(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	if fh.Size > s.maxSize {
		return "", errAvatarRejectedSize
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !avatarExtensions[ext] {
		return "", errAvatarRejectedType
	}

	rel := path.Join("avatars", uuid.NewString()+ext)
	dst := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create avatar dir: %w", err)
	}
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", fmt.Errorf("save avatar: %w", err)
	}
	return rel, nil
}

// Remove deletes a previously saved avatar. Missing files are ignored.
func (s *AvatarStore) Remove(rel string) error {
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
