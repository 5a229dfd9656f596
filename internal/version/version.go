// Package version reports the running binary's version, the way the
// teacher's daemon/client --version output does: built-in module version
// info when available, falling back to a generic string for `go run`.
package version

import "runtime/debug"

// Read returns a one-line version string suitable for prefixing --help and
// --version output.
func Read() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "gokr-rsync (devel)\n"
	}
	return "gokr-rsync " + info.Main.Version + "\n"
}
