//go:build unix

package process

import (
	"errors"

	"golang.org/x/sys/unix"
)

func isCharDevice(path string) bool {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false
	}
	return uint32(st.Mode)&unix.S_IFMT == unix.S_IFCHR
}

// Alive reports whether pid still names a process. A process owned by
// another user is alive even though it cannot be signalled.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
