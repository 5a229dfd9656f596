package walk

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/go-rsync/rsync/internal/filelist"
)

type allMatcher struct{}

func (allMatcher) Include(relPath string, isDir bool) Decision {
	return Decision{Include: true, Descend: true}
}

type excludeMatcher struct{ skip string }

func (m excludeMatcher) Include(relPath string, isDir bool) Decision {
	if relPath == m.skip {
		return Decision{Include: false, Descend: false}
	}
	return Decision{Include: true, Descend: true}
}

func mustWriteTree(t *testing.T, root string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "sub", "b.txt"), []byte("bb"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink("a.txt", filepath.Join(root, "link")); err != nil {
		t.Fatal(err)
	}
}

func TestWalkVisitsDepthFirstStableOrder(t *testing.T) {
	root := t.TempDir()
	mustWriteTree(t, root)

	var got []string
	err := Walk(root, allMatcher{}, Options{}, func(relPath string, d fs.DirEntry, info os.FileInfo) error {
		got = append(got, relPath)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{".", "a.txt", "link", "sub", "sub/b.txt"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWalkExcludedDirectoryNotDescended(t *testing.T) {
	root := t.TempDir()
	mustWriteTree(t, root)

	var got []string
	err := Walk(root, excludeMatcher{skip: "sub"}, Options{}, func(relPath string, d fs.DirEntry, info os.FileInfo) error {
		got = append(got, relPath)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(got)
	for _, p := range got {
		if p == "sub/b.txt" {
			t.Errorf("excluded directory was descended into: %v", got)
		}
	}
}

func TestBuildEntryRegularFile(t *testing.T) {
	root := t.TempDir()
	mustWriteTree(t, root)

	info, err := os.Lstat(filepath.Join(root, "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	e, err := BuildEntry(filepath.Join(root, "a.txt"), "a.txt", info)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != filelist.Regular {
		t.Errorf("Kind = %v, want Regular", e.Kind)
	}
	if e.Size != 1 {
		t.Errorf("Size = %d, want 1", e.Size)
	}
}

func TestBuildEntrySymlink(t *testing.T) {
	root := t.TempDir()
	mustWriteTree(t, root)

	info, err := os.Lstat(filepath.Join(root, "link"))
	if err != nil {
		t.Fatal(err)
	}
	e, err := BuildEntry(filepath.Join(root, "link"), "link", info)
	if err != nil {
		t.Fatal(err)
	}
	if e.Kind != filelist.Symlink {
		t.Errorf("Kind = %v, want Symlink", e.Kind)
	}
	if e.LinkTarget != "a.txt" {
		t.Errorf("LinkTarget = %q, want a.txt", e.LinkTarget)
	}
}
