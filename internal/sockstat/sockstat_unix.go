//go:build linux || darwin || freebsd || netbsd || openbsd

package sockstat

import "golang.org/x/sys/unix"

func setRecvBuffer(fd uintptr, size int) error {
	return unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, size)
}
