package maincmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-rsync/rsync/internal/restrict"
	"github.com/go-rsync/rsync/internal/rsyncos"
	"github.com/go-rsync/rsync/rsyncd"
)

// errIsParent is the calling convention a namespace() implementation that
// forks into a child process would return to tell the parent to exit
// immediately. This implementation sandboxes in-process, so it never returns
// errIsParent, but the sentinel stays part of the contract for callers.
var errIsParent = errors.New("namespace: parent should exit")

// namespace restricts filesystem access to the configured modules' paths for
// the remainder of the process. It reuses the same landlock-backed sandbox
// as command-mode connections (internal/restrict) instead of re-executing
// into a fresh mount namespace: one sandboxing mechanism is simpler to audit
// than two and the module paths are already known up front here.
func namespace(osenv *rsyncos.Env, modules []rsyncd.Module, listenAddr string) error {
	var roDirs, rwDirs []string
	for _, mod := range modules {
		if mod.Writable {
			rwDirs = append(rwDirs, mod.Path)
		} else {
			roDirs = append(roDirs, mod.Path)
		}
	}
	if !osenv.Restrict() {
		return nil
	}
	return restrict.MaybeFileSystem(roDirs, rwDirs)
}

// canUnexpectedlyWriteTo reports an error if path (declared read-only by its
// module config) can in fact be written to, catching misconfiguration before
// a client gets to rely on it.
func canUnexpectedlyWriteTo(path string) error {
	f, err := os.CreateTemp(path, ".rsync-writetest-*")
	if err != nil {
		return nil
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return fmt.Errorf("refusing to start: read-only module path %s is unexpectedly writable", path)
}
