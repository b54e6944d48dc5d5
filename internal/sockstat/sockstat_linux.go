package sockstat

import "golang.org/x/sys/unix"

func queuedUnread(fd uintptr) (int, error) {
	// Linux names FIONREAD TIOCINQ for sockets.
	return unix.IoctlGetInt(int(fd), unix.TIOCINQ)
}
