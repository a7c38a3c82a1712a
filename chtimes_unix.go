//go:build unix

package pageseal

import (
	"time"

	"golang.org/x/sys/unix"
)

// chtimes sets access and modification times on path from Unix second
// timestamps, using golang.org/x/sys/unix rather than os.Chtimes so the
// Facade's utimes operation mirrors the raw syscall a VFS shim expects
// (os.Chtimes exists but the pack's host-database adapters reach for the
// unix package directly when wiring POSIX-shaped calls).
func chtimes(path string, atimeSec, mtimeSec int64) error {
	atime := unix.NsecToTimespec(time.Unix(atimeSec, 0).UnixNano())
	mtime := unix.NsecToTimespec(time.Unix(mtimeSec, 0).UnixNano())
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, []unix.Timespec{atime, mtime}, 0)
}
