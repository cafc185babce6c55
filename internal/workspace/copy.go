package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree copies every regular file under srcDir to the same relative path
// under dstDir. A missing srcDir is a no-op. Returns the number of files
// copied.
func CopyTree(srcDir, dstDir string) (int, error) {
	if _, err := os.Stat(srcDir); os.IsNotExist(err) {
		return 0, nil
	}
	copied := 0
	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		relative, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		if err := copyFile(path, filepath.Join(dstDir, relative)); err != nil {
			return err
		}
		copied++
		return nil
	})
	if err != nil {
		return copied, fmt.Errorf("workspace: copy tree %s -> %s: %w", srcDir, dstDir, err)
	}
	return copied, nil
}

// CountFiles returns the number of regular files under dir, zero when the
// directory does not exist.
func CountFiles(dir string) (int, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}
	count := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Type().IsRegular() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("workspace: count files %s: %w", dir, err)
	}
	return count, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), dirPerm); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
