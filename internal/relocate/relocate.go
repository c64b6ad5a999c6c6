// Package relocate moves files without ever replacing an existing
// destination. When the source is locked by another program, or lives on a
// different device, it falls back to an exclusive copy followed by a delete.
package relocate

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
)

// ErrFailed is wrapped by every relocation error.
var ErrFailed = errors.New("relocation failed")

// Method tells how a document reached its destination.
type Method int

const (
	// Moved means an atomic rename succeeded.
	Moved Method = iota
	// Copied means the bytes were copied because rename was not possible.
	Copied
)

func (m Method) String() string {
	if m == Copied {
		return "copied"
	}
	return "moved"
}

// Result describes a successful relocation.
type Result struct {
	Method Method
	// SourceRetained is true when the copy succeeded but the source could not
	// be deleted. The document exists in both places.
	SourceRetained bool
	// Warning explains SourceRetained.
	Warning string
}

// Error reports a failed relocation. No destination file is left behind.
type Error struct {
	Op  string
	Src string
	Dst string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
}

// Unwrap exposes both ErrFailed and the underlying cause.
func (e *Error) Unwrap() []error {
	return []error{ErrFailed, e.Err}
}

// Relocator moves files through a FileSystem.
type Relocator struct {
	fs FileSystem
}

// New creates a relocator. A nil fs uses the operating system.
func New(fs FileSystem) *Relocator {
	if fs == nil {
		fs = OS{}
	}
	return &Relocator{fs: fs}
}

// Relocate moves src to dst. dst must not exist; its parent directories are
// created as needed.
func (r *Relocator) Relocate(src, dst string) (Result, error) {
	if err := r.fs.MkdirAll(filepath.Dir(dst)); err != nil {
		return Result{}, &Error{Op: "mkdir", Src: src, Dst: dst, Err: err}
	}

	err := r.fs.Rename(src, dst)
	if err == nil {
		return Result{Method: Moved}, nil
	}
	if !IsBlocked(err) && !IsCrossDevice(err) {
		return Result{}, &Error{Op: "rename", Src: src, Dst: dst, Err: err}
	}

	slog.Debug("Rename not possible, copying instead", "source", src, "destination", dst, "error", err)
	if err := r.fs.Copy(src, dst); err != nil {
		return Result{}, &Error{Op: "copy", Src: src, Dst: dst, Err: err}
	}

	if err := r.fs.Remove(src); err != nil {
		return Result{
			Method:         Copied,
			SourceRetained: true,
			Warning:        fmt.Sprintf("copied to %s but the source could not be deleted: %v", dst, err),
		}, nil
	}
	return Result{Method: Copied}, nil
}

// Materialize writes content to dst through a temporary file in the same
// directory, so that dst only ever appears complete.
func (r *Relocator) Materialize(content []byte, dst string) (Result, error) {
	dir := filepath.Dir(dst)
	if err := r.fs.MkdirAll(dir); err != nil {
		return Result{}, &Error{Op: "mkdir", Src: "<memory>", Dst: dst, Err: err}
	}

	tmp, err := r.fs.WriteTemp(dir, content)
	if err != nil {
		return Result{}, &Error{Op: "write", Src: "<memory>", Dst: dst, Err: err}
	}

	res, err := r.Relocate(tmp, dst)
	if err != nil {
		_ = r.fs.Remove(tmp)
		return Result{}, err
	}
	if res.SourceRetained {
		slog.Warn("Temporary file left behind", "path", tmp)
		res.SourceRetained = false
		res.Warning = ""
	}
	return res, nil
}
