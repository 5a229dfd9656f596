//go:build linux || darwin

package walk

import (
	"os"
	"syscall"
)

// deviceOf extracts the device number backing info, for the -x / one
// filesystem constraint (spec.md §4.7).
func deviceOf(info os.FileInfo) uint64 {
	stt, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return 0
	}
	return uint64(stt.Dev)
}
