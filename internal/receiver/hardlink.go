package receiver

import "os"

// hardlinkTarget reports the destination path already written for entry's
// hardlink group, if this is not the first member seen (spec.md §4.5 step
// 9: "after the first file of a group is written, subsequent members are
// created as hard links to the first rather than being transferred").
func (rt *Transfer) hardlinkTarget(group uint32) (string, bool) {
	if !rt.shouldTrackHardlinks() {
		return "", false
	}
	path, ok := rt.hardlinks[group]
	return path, ok
}

func (rt *Transfer) shouldTrackHardlinks() bool {
	return rt.Opts.PreserveHardLinks
}

// registerHardlink records dest as the first-seen member of group.
func (rt *Transfer) registerHardlink(group uint32, dest string) {
	if !rt.shouldTrackHardlinks() {
		return
	}
	if rt.hardlinks == nil {
		rt.hardlinks = make(map[uint32]string)
	}
	if _, ok := rt.hardlinks[group]; !ok {
		rt.hardlinks[group] = dest
	}
}

// linkToFirst hard-links dest to the group's already-written first member,
// replacing any existing entry at dest.
func linkToFirst(first, dest string) error {
	os.Remove(dest)
	return os.Link(first, dest)
}
