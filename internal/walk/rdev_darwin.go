package walk

import (
	"syscall"

	"golang.org/x/sys/unix"
)

func deviceNumbers(stt *syscall.Stat_t) (major, minor uint32) {
	rdev := uint64(stt.Rdev)
	return uint32(unix.Major(rdev)), uint32(unix.Minor(rdev))
}
