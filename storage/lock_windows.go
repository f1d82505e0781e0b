//go:build windows

package storage

import (
	"os"

	"golang.org/x/sys/windows"
)

// lockOffsetHigh places the locked byte far past any record so that
// readers on other handles are not blocked.
const lockOffsetHigh = 0x7FFF_FFFF

// lockFile takes an exclusive lock on a single byte without blocking.
func lockFile(f *os.File) error {
	ol := windows.Overlapped{OffsetHigh: lockOffsetHigh}
	err := windows.LockFileEx(windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK|windows.LOCKFILE_FAIL_IMMEDIATELY,
		0, 1, 0, &ol)
	if err == windows.ERROR_LOCK_VIOLATION {
		return ErrLocked
	}
	return err
}

func unlockFile(f *os.File) error {
	ol := windows.Overlapped{OffsetHigh: lockOffsetHigh}
	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, &ol)
}
