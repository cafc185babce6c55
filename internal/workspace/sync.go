// Package workspace mirrors a session's files between a local ephemeral
// directory and the session's prefix in the object store. The remote copy is
// the source of truth; the local directory is a disposable cache rebuilt per
// invocation.
package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/elliot35/nanobot-serverless-deploy/internal/blobstore"
	"github.com/elliot35/nanobot-serverless-deploy/internal/storepaths"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Synchronizer moves whole files in both directions. No diffing, no
// checksums: every sync touches every file, which is acceptable for the
// small workspaces of short-lived invocations.
type Synchronizer struct {
	store  blobstore.Store
	logger *slog.Logger
}

func NewSynchronizer(store blobstore.Store, logger *slog.Logger) (*Synchronizer, error) {
	if store == nil {
		return nil, fmt.Errorf("workspace: blob store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synchronizer{store: store, logger: logger}, nil
}

// PullToLocal downloads every remote object under the session's file prefix
// into localDir, creating intermediate directories. A session with no remote
// files is a no-op.
func (s *Synchronizer) PullToLocal(ctx context.Context, localDir, sessionKey string) error {
	prefix := storepaths.FilesPrefix(sessionKey)
	paths, err := s.store.List(ctx, prefix)
	if err != nil {
		return fmt.Errorf("workspace: list %s: %w", prefix, err)
	}
	for _, remotePath := range paths {
		relative := strings.TrimPrefix(remotePath, prefix)
		if relative == "" {
			continue
		}
		content, err := s.store.Get(ctx, remotePath)
		if err != nil {
			return fmt.Errorf("workspace: pull %s: %w", remotePath, err)
		}
		localPath := filepath.Join(localDir, filepath.FromSlash(relative))
		if err := os.MkdirAll(filepath.Dir(localPath), dirPerm); err != nil {
			return fmt.Errorf("workspace: ensure dir for %s: %w", localPath, err)
		}
		if err := os.WriteFile(localPath, content, filePerm); err != nil {
			return fmt.Errorf("workspace: write %s: %w", localPath, err)
		}
	}
	s.logger.Debug("workspace_pulled", "session_key", sessionKey, "files", len(paths))
	return nil
}

// PushToRemote walks localDir and uploads every regular file under the
// session's file prefix, overwriting existing objects. Remote objects absent
// locally are left in place: the sync is additive, never destructive.
func (s *Synchronizer) PushToRemote(ctx context.Context, localDir, sessionKey string) error {
	if _, err := os.Stat(localDir); os.IsNotExist(err) {
		return nil
	}
	prefix := storepaths.FilesPrefix(sessionKey)
	pushed := 0
	err := filepath.WalkDir(localDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		remotePath := prefix + filepath.ToSlash(relative)
		if err := s.store.Put(ctx, remotePath, content, ""); err != nil {
			return err
		}
		pushed++
		return nil
	})
	if err != nil {
		return fmt.Errorf("workspace: push %s: %w", sessionKey, err)
	}
	s.logger.Debug("workspace_pushed", "session_key", sessionKey, "files", pushed)
	return nil
}
