//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package sockstat

func queuedUnread(uintptr) (int, error) {
	return 0, ErrUnsupported
}

func setRecvBuffer(uintptr, int) error {
	return ErrUnsupported
}
