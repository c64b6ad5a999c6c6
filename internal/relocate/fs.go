package relocate

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"
)

// FileSystem is the set of file operations a Relocator needs.
type FileSystem interface {
	MkdirAll(dir string) error
	// Rename moves src to dst and fails with fs.ErrExist when dst exists.
	Rename(src, dst string) error
	// Copy copies src to a new file dst, preserving the modification time.
	// It fails with fs.ErrExist when dst exists and removes partial output.
	Copy(src, dst string) error
	Remove(path string) error
	// WriteTemp writes content to a new temporary file in dir.
	WriteTemp(dir string, content []byte) (string, error)
}

// OS implements FileSystem on the local disk.
type OS struct{}

// MkdirAll creates dir and its parents.
func (OS) MkdirAll(dir string) error {
	return os.MkdirAll(dir, 0755)
}

// Rename performs a no-replace rename.
func (OS) Rename(src, dst string) error {
	return renameNoReplace(src, dst)
}

// Remove deletes path.
func (OS) Remove(path string) error {
	return os.Remove(path)
}

// Copy copies src into the new file dst.
func (OS) Copy(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(dst)
		}
	}()

	if _, err = io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to copy data: %w", err)
	}
	if err = out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dst, time.Now(), info.ModTime())
}

// WriteTemp writes content to a hidden temporary file in dir.
func (OS) WriteTemp(dir string, content []byte) (name string, err error) {
	f, err := os.CreateTemp(dir, ".xmlsort-*.tmp")
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(f.Name())
		}
	}()

	if _, err = f.Write(content); err != nil {
		_ = f.Close()
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	return f.Name(), nil
}

// checkedRename refuses to rename onto an existing path. It is used where
// the platform has no atomic no-replace rename; a concurrent writer can
// still slip in between the check and the rename.
func checkedRename(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}
