//go:build linux || darwin

package receiver

import (
	"os"
	"os/user"
	"strconv"
	"syscall"

	"github.com/go-rsync/rsync/internal/filelist"
)

var amRoot = os.Getuid() == 0

var inGroup = func() map[uint32]bool {
	m := make(map[uint32]bool)
	u, err := user.Current()
	if err != nil {
		return m
	}
	gids, err := u.GroupIds()
	if err != nil {
		return m
	}
	for _, gidString := range gids {
		gid64, err := strconv.ParseInt(gidString, 0, 64)
		if err != nil {
			return m
		}
		m[uint32(gid64)] = true
	}
	return m
}()

// setOwnership applies entry's uid/gid to local when PreserveUid/
// PreserveGid call for it and the caller is actually permitted to make the
// change (root for uid, root or group membership for gid) — the same
// guard the teacher's own setUid used, generalized from its single
// *File/rt.Opts coupling to the Entry/Opts pair every caller in this
// package now carries.
func setOwnership(local string, entry filelist.Entry, st os.FileInfo, opts Opts) (os.FileInfo, error) {
	stt, ok := st.Sys().(*syscall.Stat_t)
	if !ok {
		return st, nil
	}

	changeUid := opts.PreserveUid &&
		amRoot &&
		stt.Uid != entry.Uid

	changeGid := opts.PreserveGid &&
		(amRoot || inGroup[entry.Gid]) &&
		stt.Gid != entry.Gid

	if !changeUid && !changeGid {
		return st, nil
	}

	uid := stt.Uid
	if changeUid {
		uid = entry.Uid
	}
	gid := stt.Gid
	if changeGid {
		gid = entry.Gid
	}
	if err := os.Lchown(local, int(uid), int(gid)); err != nil {
		return nil, err
	}
	return os.Lstat(local)
}
