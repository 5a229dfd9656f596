package receiver

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-rsync/rsync/internal/filelist"
)

// basis describes the file an incoming regular file's delta will be
// applied against, and whether the transfer can be skipped outright.
type basis struct {
	path string // "" means an empty (zero-length) basis
	skip bool   // size+mtime already match; no signature exchange needed
}

// selectBasis walks the candidate chain: the destination file itself, a
// partial file, then the first matching --link-dest, --copy-dest and
// --compare-dest directory (checked in that order), and only then a fuzzy
// basis by filename similarity. It returns skip=true when the destination
// already matches the incoming entry by (size, mtime) and checksum mode is
// off.
func (rt *Transfer) selectBasis(dest string, entry filelist.Entry) basis {
	if fi, err := os.Lstat(dest); err == nil && fi.Mode().IsRegular() {
		if !rt.Opts.ChecksumMode && fi.Size() == entry.Size && fi.ModTime().Unix() == entry.Mtime {
			return basis{path: dest, skip: true}
		}
		return basis{path: dest}
	}

	if partial := rt.partialPath(entry.Path); partial != "" {
		if fi, err := os.Stat(partial); err == nil && fi.Mode().IsRegular() {
			return basis{path: partial}
		}
	}

	for _, dir := range rt.Opts.LinkDest {
		if candidate := filepath.Join(dir, entry.Path); fileExists(candidate) {
			return basis{path: candidate}
		}
	}
	for _, dir := range rt.Opts.CopyDest {
		if candidate := filepath.Join(dir, entry.Path); fileExists(candidate) {
			return basis{path: candidate}
		}
	}
	for _, dir := range rt.Opts.CompareDest {
		if candidate := filepath.Join(dir, entry.Path); fileExists(candidate) {
			return basis{path: candidate}
		}
	}

	if rt.Opts.Fuzzy {
		if candidate := rt.fuzzyBasis(dest, entry); candidate != "" {
			return basis{path: candidate}
		}
	}

	return basis{}
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// partialPath returns the .partial location for relPath: inside
// --partial-dir when set, otherwise "<dest>.partial" (spec.md §4.5's
// partial-resume scenario).
func (rt *Transfer) partialPath(relPath string) string {
	if rt.Opts.PartialDir != "" {
		return filepath.Join(rt.Dest, filepath.Dir(relPath), rt.Opts.PartialDir, filepath.Base(relPath))
	}
	return filepath.Join(rt.Dest, relPath+".partial")
}

// fuzzyBasis picks the closest-named regular file in dest's directory, by
// longest common prefix, when no exact-name basis exists (spec.md's Fuzzy
// basis glossary entry). Ties favor the lexicographically first candidate
// for determinism.
func (rt *Transfer) fuzzyBasis(dest string, entry filelist.Entry) string {
	dir := filepath.Dir(dest)
	want := filepath.Base(dest)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var names []string
	for _, de := range dirEntries {
		if de.Type().IsRegular() && de.Name() != want {
			names = append(names, de.Name())
		}
	}
	sort.Strings(names)

	best := ""
	bestScore := -1
	for _, name := range names {
		score := commonPrefixLen(name, want)
		if score > bestScore {
			bestScore = score
			best = name
		}
	}
	if best == "" {
		return ""
	}
	return filepath.Join(dir, best)
}

func commonPrefixLen(a, b string) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}

// isTopDir reports whether rel names a path directly under root (no
// intervening separator other than root's own), mirroring the teacher's
// do.go helper of the same name used while walking the destination for
// deletion candidates.
func isTopDir(root, path string) bool {
	rel := strings.TrimPrefix(path, root)
	rel = strings.TrimPrefix(rel, string(filepath.Separator))
	return rel != "" && !strings.Contains(rel, string(filepath.Separator))
}
