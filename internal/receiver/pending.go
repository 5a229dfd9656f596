package receiver

import (
	"github.com/google/renameio/v2"
)

// pendingFile is the staged temp file an incoming regular file is written
// to before being atomically swapped into place, the same renameio type
// generatorsymlink.go already depends on for symlink creation.
type pendingFile = renameio.PendingFile

// newPendingFile stages a temp file for local, honoring --temp-dir when
// set (spec.md §4.5 step 4: "open a temp file ... in the destination
// directory or in temp-dir when configured").
func newPendingFile(local string, tempDir string) (*pendingFile, error) {
	if tempDir != "" {
		return renameio.NewPendingFile(local, renameio.WithTempDir(tempDir))
	}
	return renameio.NewPendingFile(local)
}
