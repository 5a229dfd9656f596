package walk

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func deviceNumbers(stt *syscall.Stat_t) (major, minor uint32) {
	rdev := uint64(stt.Rdev)
	return unix.Major(rdev), unix.Minor(rdev)
}
