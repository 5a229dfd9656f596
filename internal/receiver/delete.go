package receiver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-rsync/rsync/internal/filelist"
)

// deleteFiles removes destination entries absent from the incoming file
// list (spec.md §4.5 "Deletion policy"), honoring MaxDelete and Backup. It
// is idempotent across delete-before/during/after calls: a path already
// removed by an earlier pass is simply absent on the second walk.
func (rt *Transfer) deleteFiles(entries []filelist.Entry) error {
	known := make(map[string]bool, len(entries))
	for _, e := range entries {
		known[e.Path] = true
	}

	var toDelete []string
	err := filepath.Walk(rt.Dest, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		rel := strings.TrimPrefix(path, rt.Dest)
		rel = strings.TrimPrefix(rel, string(filepath.Separator))
		if rel == "" {
			return nil
		}
		if known[rel] {
			return nil
		}
		toDelete = append(toDelete, rel)
		if info.IsDir() {
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Deepest paths first so a directory's children are gone before the
	// directory itself is removed.
	sort.Slice(toDelete, func(i, j int) bool {
		return strings.Count(toDelete[i], string(filepath.Separator)) > strings.Count(toDelete[j], string(filepath.Separator))
	})

	if rt.Opts.MaxDelete > 0 && len(toDelete) > rt.Opts.MaxDelete {
		return fmt.Errorf("receiver: delete count %d exceeds max-delete %d", len(toDelete), rt.Opts.MaxDelete)
	}

	for _, rel := range toDelete {
		full := filepath.Join(rt.Dest, rel)
		if rt.Opts.DryRun {
			rt.logger().Printf("would delete %s", rel)
			continue
		}
		if rt.Opts.Backup {
			if err := rt.backupPath(rel, full); err != nil {
				return err
			}
		} else if err := os.RemoveAll(full); err != nil {
			return err
		}
		if rt.Stats != nil {
			rt.Stats.IncFilesDeleted()
		}
		if isTopDir(rt.Dest, full) {
			rt.logger().Printf("deleting %s", rel)
		}
	}
	return nil
}

// backupPath moves full aside into BackupDir (or alongside itself, with
// BackupSuffix) before a deletion or overwrite removes the original
// (spec.md §4.5 "Backup").
func (rt *Transfer) backupPath(rel, full string) error {
	var backupTarget string
	if rt.Opts.BackupDir != "" {
		backupTarget = filepath.Join(rt.Opts.BackupDir, rel+rt.Opts.BackupSuffix)
	} else {
		backupTarget = full + rt.Opts.BackupSuffix
	}
	if err := os.MkdirAll(filepath.Dir(backupTarget), 0o777); err != nil {
		return err
	}
	return os.Rename(full, backupTarget)
}
