// Package fsblob implements the blob store on the local filesystem.
package fsblob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/salesmind/ragcore/internal/core/domain"
	"github.com/salesmind/ragcore/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

// Store archives original files under <root>/<tenant>/<key>.
type Store struct {
	root string
}

// NewStore creates a filesystem blob store rooted at dir.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".ragcore", "blobs")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// Put stores data under the tenant's key.
func (s *Store) Put(_ context.Context, tenantID, key string, data []byte) error {
	path, err := s.blobPath(tenantID, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating tenant directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing blob: %w", err)
	}
	return nil
}

// Get retrieves data stored under the tenant's key.
func (s *Store) Get(_ context.Context, tenantID, key string) ([]byte, error) {
	path, err := s.blobPath(tenantID, key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("reading blob: %w", err)
	}
	return data, nil
}

// Delete removes the blob. Deleting a missing blob is a no-op.
func (s *Store) Delete(_ context.Context, tenantID, key string) error {
	path, err := s.blobPath(tenantID, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

// blobPath validates the identifiers and builds the file path. Path
// separators and traversal sequences in either id are rejected so one
// tenant can never address another tenant's directory.
func (s *Store) blobPath(tenantID, key string) (string, error) {
	if err := validComponent(tenantID); err != nil {
		return "", fmt.Errorf("tenant id: %w", err)
	}
	if err := validComponent(key); err != nil {
		return "", fmt.Errorf("key: %w", err)
	}
	return filepath.Join(s.root, tenantID, key), nil
}

func validComponent(id string) error {
	if id == "" {
		return fmt.Errorf("%w: must not be empty", domain.ErrValidation)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: %q contains path separators", domain.ErrValidation, id)
	}
	return nil
}
