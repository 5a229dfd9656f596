package rsynctest

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

// dummyDevices are cloned from widely-present, harmless character devices so
// the test can verify device metadata (major/minor, mode) survives a
// transfer without needing any special hardware.
var dummyDevices = []struct {
	name         string
	major, minor uint32
}{
	{"null", 1, 3},
	{"zero", 1, 5},
}

// CreateDummyDeviceFiles populates dir with a handful of character device
// nodes. Requires root (mknod).
func CreateDummyDeviceFiles(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	for _, d := range dummyDevices {
		path := filepath.Join(dir, d.name)
		dev := unix.Mkdev(d.major, d.minor)
		if err := unix.Mknod(path, unix.S_IFCHR|0666, int(dev)); err != nil {
			t.Fatalf("mknod %s: %v", path, err)
		}
	}
}

// VerifyDummyDeviceFiles checks that every device created by
// CreateDummyDeviceFiles in wantDir exists in gotDir with matching device
// numbers.
func VerifyDummyDeviceFiles(t *testing.T, wantDir, gotDir string) {
	t.Helper()
	for _, d := range dummyDevices {
		wantFi, err := os.Lstat(filepath.Join(wantDir, d.name))
		if err != nil {
			t.Fatal(err)
		}
		gotFi, err := os.Lstat(filepath.Join(gotDir, d.name))
		if err != nil {
			t.Fatalf("device %s missing at destination: %v", d.name, err)
		}
		wantSt, ok := wantFi.Sys().(*syscall.Stat_t)
		if !ok {
			t.Fatalf("device %s: unsupported stat type", d.name)
		}
		gotSt, ok := gotFi.Sys().(*syscall.Stat_t)
		if !ok {
			t.Fatalf("device %s: unsupported stat type", d.name)
		}
		if wantSt.Rdev != gotSt.Rdev {
			t.Errorf("device %s: rdev mismatch: got %d, want %d", d.name, gotSt.Rdev, wantSt.Rdev)
		}
	}
}
