//go:build unix

package relocate

import (
	"errors"
	"io/fs"

	"golang.org/x/sys/unix"
)

// IsBlocked reports whether err means another program holds the file or
// access is denied, so that a copy may still succeed.
func IsBlocked(err error) bool {
	return errors.Is(err, fs.ErrPermission) ||
		errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY)
}

// IsCrossDevice reports whether a rename failed because src and dst are on
// different filesystems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
