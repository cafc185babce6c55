package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const (
	defaultDirPerm  = 0o700
	defaultFilePerm = 0o600
)

// Local stores objects as files under a root directory. Writes go through a
// temp file + rename so a crashed invocation never leaves a partial object.
type Local struct {
	root string
}

func NewLocal(root string) (*Local, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blobstore: root directory is required")
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, defaultDirPerm); err != nil {
		return nil, fmt.Errorf("blobstore: ensure root %s: %w", root, err)
	}
	return &Local{root: root}, nil
}

func (l *Local) Get(_ context.Context, path string) ([]byte, error) {
	full, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("blobstore: read %s: %w", path, err)
	}
	return content, nil
}

func (l *Local) Put(_ context.Context, path string, content []byte, _ string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	return writeAtomic(full, content)
}

func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	if _, err := l.resolve(prefix); err != nil {
		return nil, err
	}
	var paths []string
	err := filepath.WalkDir(l.root, func(full string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(l.root, full)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			paths = append(paths, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("blobstore: list %s: %w", prefix, err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (l *Local) Delete(_ context.Context, path string) error {
	full, err := l.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("blobstore: delete %s: %w", path, err)
	}
	return nil
}

func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	full, err := l.resolve(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("blobstore: stat %s: %w", path, err)
	}
	return true, nil
}

// resolve maps an object path to a filesystem path under root, rejecting
// anything that would escape it.
func (l *Local) resolve(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("blobstore: empty object path")
	}
	full := filepath.Join(l.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(l.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("blobstore: object path escapes root: %s", path)
	}
	return full, nil
}

func writeAtomic(full string, content []byte) error {
	parentDir := filepath.Dir(full)
	if err := os.MkdirAll(parentDir, defaultDirPerm); err != nil {
		return fmt.Errorf("blobstore: ensure dir %s: %w", parentDir, err)
	}
	tmp, err := os.CreateTemp(parentDir, filepath.Base(full)+".tmp.*")
	if err != nil {
		return fmt.Errorf("blobstore: create temp for %s: %w", full, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	defer cleanup()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("blobstore: write temp for %s: %w", full, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("blobstore: sync temp for %s: %w", full, err)
	}
	if err := tmp.Chmod(defaultFilePerm); err != nil {
		return fmt.Errorf("blobstore: chmod temp for %s: %w", full, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("blobstore: close temp for %s: %w", full, err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		return fmt.Errorf("blobstore: rename temp for %s: %w", full, err)
	}
	return nil
}
