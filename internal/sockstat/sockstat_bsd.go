//go:build darwin || freebsd || netbsd || openbsd

package sockstat

import "golang.org/x/sys/unix"

func queuedUnread(fd uintptr) (int, error) {
	return unix.IoctlGetInt(int(fd), unix.FIONREAD)
}
