//go:build linux || darwin

package walk

import (
	"fmt"
	"os"
	"syscall"

	"github.com/go-rsync/rsync/internal/filelist"
)

// BuildEntry converts one walked filesystem entry into the filelist.Entry
// the sender puts on the wire, resolving symlink targets and device
// major/minor numbers from the raw Stat_t the same way the teacher's
// receiver-side uid/gid code reaches into st.Sys() (see generatoruid.go).
func BuildEntry(absPath, relPath string, info os.FileInfo) (filelist.Entry, error) {
	stt, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return filelist.Entry{}, fmt.Errorf("walk: %s: no syscall.Stat_t", absPath)
	}

	e := filelist.Entry{
		Path:  relPath,
		Mtime: info.ModTime().Unix(),
		Uid:   stt.Uid,
		Gid:   stt.Gid,
		Mode:  uint32(info.Mode().Perm()),
	}

	switch {
	case info.Mode()&os.ModeSymlink != 0:
		e.Kind = filelist.Symlink
		target, err := os.Readlink(absPath)
		if err != nil {
			return filelist.Entry{}, err
		}
		e.LinkTarget = target
	case info.IsDir():
		e.Kind = filelist.Directory
	case info.Mode()&os.ModeDevice != 0:
		e.Kind = filelist.Device
		e.DevMajor, e.DevMinor = deviceNumbers(stt)
	case info.Mode()&os.ModeNamedPipe != 0:
		e.Kind = filelist.Fifo
	case info.Mode()&os.ModeSocket != 0:
		e.Kind = filelist.Socket
	default:
		e.Kind = filelist.Regular
		e.Size = info.Size()
	}

	if stt.Nlink > 1 && e.Kind == filelist.Regular {
		e.HardlinkGroup = uint32(stt.Ino)
		e.HasHardlinkGroup = true
	}

	return e, nil
}
