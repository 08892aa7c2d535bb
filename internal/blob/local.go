// Package blob provides the file storage collaborator behind batch ingestion.
// The local implementation keeps one folder per site under a root directory.
package blob

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/helpdeck/helpdeck/internal/domain"
)

type LocalStore struct {
	root string
}

func NewLocalStore(root string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, domain.StorageError("failed to create blob root", err)
	}

	return &LocalStore{root: root}, nil
}

func (s *LocalStore) siteDir(siteID string) (string, error) {
	if siteID == "" || strings.ContainsAny(siteID, `/\`) || siteID == "." || siteID == ".." {
		return "", domain.ValidationError("invalid site id")
	}

	return filepath.Join(s.root, siteID), nil
}

// List returns the site's stored objects. A site without a folder simply has
// no blobs yet; that is not an error.
func (s *LocalStore) List(ctx context.Context, siteID string) ([]domain.BlobInfo, error) {
	dir, err := s.siteDir(siteID)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, domain.StorageError("failed to read blob folder", err)
	}

	var blobs []domain.BlobInfo
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		blobs = append(blobs, domain.BlobInfo{
			Path:       entry.Name(),
			Name:       entry.Name(),
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	return blobs, nil
}

func (s *LocalStore) Download(ctx context.Context, siteID, path string) ([]byte, error) {
	dir, err := s.siteDir(siteID)
	if err != nil {
		return nil, err
	}

	// Object paths are flat names inside the site folder; anything that
	// resolves outside it is rejected.
	clean := filepath.Clean(path)
	if clean != filepath.Base(clean) || strings.HasPrefix(clean, ".") {
		return nil, domain.ValidationError("invalid blob path")
	}

	data, err := os.ReadFile(filepath.Join(dir, clean))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NotFoundError("blob not found")
		}
		return nil, domain.StorageError("failed to read blob", err)
	}

	return data, nil
}
