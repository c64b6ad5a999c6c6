//go:build windows

package relocate

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/windows"
)

// IsBlocked reports whether err means another program holds the file or
// access is denied, so that a copy may still succeed.
func IsBlocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}

// IsCrossDevice reports whether a rename failed because src and dst are on
// different volumes.
func IsCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
