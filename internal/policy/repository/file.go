package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ewaste-tracker/backend/internal/policy/domain"
)

// FileRepository reads a Rego policy from disk.
type FileRepository struct {
	path string
}

// NewFileRepository returns a repository for the policy at path. An empty path
// means no override is configured.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: strings.TrimSpace(path)}
}

// Get reads the policy file. It returns nil, nil when no path is configured;
// a configured but unreadable or empty file is an error.
func (r *FileRepository) Get(ctx context.Context) (*domain.Policy, error) {
	if r.path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("read lifecycle policy: %w", err)
	}
	if strings.TrimSpace(string(raw)) == "" {
		return nil, fmt.Errorf("lifecycle policy %s is empty", r.path)
	}
	return &domain.Policy{
		Name:     filepath.Base(r.path),
		Rules:    string(raw),
		LoadedAt: time.Now().UTC(),
	}, nil
}
