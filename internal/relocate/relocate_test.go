package relocate

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// fakeFS records calls and injects errors.
type fakeFS struct {
	OS
	renameErr error
	copyErr   error
	removeErr error

	renames int
	copies  int
	removes int
}

func (f *fakeFS) Rename(src, dst string) error {
	f.renames++
	if f.renameErr != nil {
		return f.renameErr
	}
	return f.OS.Rename(src, dst)
}

func (f *fakeFS) Copy(src, dst string) error {
	f.copies++
	if f.copyErr != nil {
		return f.copyErr
	}
	return f.OS.Copy(src, dst)
}

func (f *fakeFS) Remove(path string) error {
	f.removes++
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.OS.Remove(path)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func TestRelocate_Move(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "FE1.xml")
	dst := filepath.Join(dir, "out", "nested", "FE1.xml")
	writeFile(t, src, "<a/>")

	res, err := New(nil).Relocate(src, dst)
	if err != nil {
		t.Fatalf("Relocate failed: %v", err)
	}
	if res.Method != Moved || res.SourceRetained {
		t.Errorf("Unexpected result: %+v", res)
	}
	if readFile(t, dst) != "<a/>" {
		t.Error("Destination content mismatch")
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Error("Source should be gone")
	}
}

func TestRelocate_NeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.xml")
	dst := filepath.Join(dir, "b.xml")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	_, err := New(nil).Relocate(src, dst)
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("Expected ErrFailed, got %v", err)
	}
	if !errors.Is(err, fs.ErrExist) {
		t.Errorf("Expected cause fs.ErrExist, got %v", err)
	}
	var relErr *Error
	if !errors.As(err, &relErr) || relErr.Op != "rename" {
		t.Errorf("Expected rename *Error, got %#v", err)
	}
	if readFile(t, dst) != "old" || readFile(t, src) != "new" {
		t.Error("Files must be untouched")
	}
}

func TestRelocate_LockedSourceCopiesOnce(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "FE1.xml")
	dst := filepath.Join(dir, "out", "FE1.xml")
	writeFile(t, src, "<a/>")
	mtime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if err := os.Chtimes(src, mtime, mtime); err != nil {
		t.Fatal(err)
	}

	fake := &fakeFS{renameErr: &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrPermission}}
	res, err := New(fake).Relocate(src, dst)
	if err != nil {
		t.Fatalf("Relocate failed: %v", err)
	}
	if res.Method != Copied || res.SourceRetained {
		t.Errorf("Unexpected result: %+v", res)
	}
	if fake.copies != 1 || fake.removes != 1 {
		t.Errorf("Expected one copy and one delete, got %d and %d", fake.copies, fake.removes)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("stat dst: %v", err)
	}
	if !info.ModTime().Equal(mtime) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), mtime)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Error("Source should be deleted after copy")
	}
}

func TestRelocate_DeleteFailureRetainsSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "FE1.xml")
	dst := filepath.Join(dir, "out", "FE1.xml")
	writeFile(t, src, "<a/>")

	fake := &fakeFS{
		renameErr: fs.ErrPermission,
		removeErr: fs.ErrPermission,
	}
	res, err := New(fake).Relocate(src, dst)
	if err != nil {
		t.Fatalf("Relocate failed: %v", err)
	}
	if !res.SourceRetained || res.Warning == "" {
		t.Errorf("Expected retained source with warning, got %+v", res)
	}
	if readFile(t, src) != "<a/>" || readFile(t, dst) != "<a/>" {
		t.Error("Expected the document in both places")
	}
}

func TestRelocate_CopyFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "FE1.xml")
	dst := filepath.Join(dir, "out", "FE1.xml")
	writeFile(t, src, "<a/>")

	fake := &fakeFS{renameErr: fs.ErrPermission, copyErr: errors.New("disk full")}
	_, err := New(fake).Relocate(src, dst)
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("Expected ErrFailed, got %v", err)
	}
	if fake.removes != 0 {
		t.Error("Source must not be deleted when the copy failed")
	}
	if _, err := os.Stat(dst); !errors.Is(err, os.ErrNotExist) {
		t.Error("No destination artifact expected")
	}
}

func TestRelocate_OtherRenameErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeFS{}
	_, err := New(fake).Relocate(filepath.Join(dir, "missing.xml"), filepath.Join(dir, "out.xml"))
	if !errors.Is(err, ErrFailed) || !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Expected ErrFailed wrapping ErrNotExist, got %v", err)
	}
	if fake.copies != 0 {
		t.Error("Missing source must not trigger a copy")
	}
}

func TestOSCopy_Exclusive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	writeFile(t, src, "new")
	writeFile(t, dst, "old")

	if err := (OS{}).Copy(src, dst); !errors.Is(err, fs.ErrExist) {
		t.Fatalf("Expected fs.ErrExist, got %v", err)
	}
	if readFile(t, dst) != "old" {
		t.Error("Existing destination must survive a refused copy")
	}
}

func TestMaterialize(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out", "FE1.xml")

	res, err := New(nil).Materialize([]byte("<a/>"), dst)
	if err != nil {
		t.Fatalf("Materialize failed: %v", err)
	}
	if res.Method != Moved {
		t.Errorf("Method = %v", res.Method)
	}
	if readFile(t, dst) != "<a/>" {
		t.Error("Content mismatch")
	}
	entries, _ := os.ReadDir(filepath.Dir(dst))
	if len(entries) != 1 {
		t.Errorf("Expected only the destination file, got %d entries", len(entries))
	}
}

func TestMaterialize_ExistingDestination(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "FE1.xml")
	writeFile(t, dst, "old")

	if _, err := New(nil).Materialize([]byte("new"), dst); !errors.Is(err, ErrFailed) {
		t.Fatalf("Expected ErrFailed, got %v", err)
	}
	if readFile(t, dst) != "old" {
		t.Error("Existing destination must not change")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("Temporary file left behind: %d entries", len(entries))
	}
}

func TestIsBlocked(t *testing.T) {
	if !IsBlocked(&os.PathError{Op: "rename", Path: "x", Err: fs.ErrPermission}) {
		t.Error("Permission errors are blocked")
	}
	if IsBlocked(fs.ErrNotExist) {
		t.Error("Missing file is not blocked")
	}
	if IsBlocked(nil) {
		t.Error("nil is not blocked")
	}
}
