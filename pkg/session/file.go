package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/matzehuels/yamlviz/pkg/errors"
)

// Store reads and writes document text by workspace-relative path.
type Store interface {
	Load(ctx context.Context, path string) ([]byte, error)
	Save(ctx context.Context, path string, data []byte) error
}

// FileStore keeps documents as files below a workspace directory. Paths
// are validated with errors.ValidatePath, so a client can never reach
// outside the workspace.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates a store rooted at baseDir, which must exist.
// An empty baseDir selects the working directory.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working dir: %w", err)
		}
		baseDir = wd
	}
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "workspace %s", baseDir)
	}
	if !info.IsDir() {
		return nil, errors.New(errors.ErrCodeInvalidPath, "workspace %s is not a directory", baseDir)
	}
	return &FileStore{baseDir: abs}, nil
}

// Resolve returns the absolute file name of a workspace-relative path.
func (s *FileStore) Resolve(path string) (string, error) {
	if err := errors.ValidatePath(path); err != nil {
		return "", err
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(path)), nil
}

func (s *FileStore) Load(ctx context.Context, path string) ([]byte, error) {
	name, err := s.Resolve(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "document %s", path)
		}
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

// Save replaces the file atomically, keeping its permissions.
func (s *FileStore) Save(ctx context.Context, path string, data []byte) error {
	name, err := s.Resolve(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	mode := os.FileMode(0o644)
	if info, err := os.Stat(name); err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(name), ".yamlviz-*")
	if err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// Path returns the workspace directory.
func (s *FileStore) Path() string {
	return s.baseDir
}

var _ Store = (*FileStore)(nil)
