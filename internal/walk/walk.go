// Package walk implements the recursive directory walker that bridges the
// filesystem to the opaque filter predicate (spec.md §4.7): it calls
// Matcher.Include for every path encountered and honors its descend
// decision, symlink-safety policy, and the one-filesystem constraint.
package walk

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Decision is what the Matcher returns for one candidate path.
type Decision struct {
	Include bool
	Descend bool // only meaningful when the candidate is a directory
}

// Matcher is the opaque, externally-supplied filter predicate (spec.md
// §4.7): "The core treats the filter as opaque; its only contract is
// deterministic per-path decisions and per-directory stability across a
// session."
type Matcher interface {
	Include(relPath string, isDir bool) Decision
}

// Options tunes the walk beyond the Matcher's decisions.
type Options struct {
	// OneFileSystem stops descending into directories on a different device
	// than the root (rsync's -x).
	OneFileSystem bool
	// FollowSymlinkedDirs treats a symlink to a directory as a directory to
	// descend into, rather than recording it as a symlink entry.
	FollowSymlinkedDirs bool
}

// Visitor receives each entry the walk decides to include, in depth-first,
// stable order (spec.md §3: "File list... Order is the walk order of the
// source (depth-first, stable)").
type Visitor func(relPath string, d fs.DirEntry, info os.FileInfo) error

// Walk recursively enumerates root, calling visit for every included entry.
// Root itself is visited first as ".".
func Walk(root string, matcher Matcher, opts Options, visit Visitor) error {
	rootInfo, err := os.Lstat(root)
	if err != nil {
		return err
	}
	var rootDev uint64
	if opts.OneFileSystem {
		rootDev = deviceOf(rootInfo)
	}
	return walkDir(root, ".", rootInfo, matcher, opts, rootDev, visit)
}

func walkDir(absPath, relPath string, info os.FileInfo, matcher Matcher, opts Options, rootDev uint64, visit Visitor) error {
	isDir := info.IsDir()
	decision := matcher.Include(relPath, isDir)
	if !decision.Include {
		if isDir && !decision.Descend {
			return nil
		}
		if !isDir {
			return nil
		}
	} else {
		de := fs.FileInfoToDirEntry(info)
		if err := visit(relPath, de, info); err != nil {
			return err
		}
	}

	if !isDir || (!decision.Include && !decision.Descend) {
		return nil
	}
	if isDir && decision.Include && !decision.Descend {
		return nil
	}

	entries, err := os.ReadDir(absPath)
	if err != nil {
		return err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, de := range entries {
		childAbs := filepath.Join(absPath, de.Name())
		childRel := de.Name()
		if relPath != "." {
			childRel = relPath + "/" + de.Name()
		}

		childInfo, err := os.Lstat(childAbs)
		if err != nil {
			return err
		}

		if childInfo.Mode()&os.ModeSymlink != 0 && opts.FollowSymlinkedDirs {
			if target, err := os.Stat(childAbs); err == nil && target.IsDir() {
				childInfo = target
			}
		}

		if childInfo.IsDir() && opts.OneFileSystem && deviceOf(childInfo) != rootDev {
			continue
		}

		if err := walkDir(childAbs, childRel, childInfo, matcher, opts, rootDev, visit); err != nil {
			return err
		}
	}
	return nil
}
