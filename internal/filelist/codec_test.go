package filelist

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeBijection(t *testing.T) {
	entries := []Entry{
		{Path: "/tmp/file1.txt", Uid: 1000, Gid: 1000},
		{Path: "/tmp/file2.txt", Uid: 1000, Gid: 1000},
		{Path: "/tmp/sub/file3.txt", Uid: 2000, Gid: 1000,
			Xattrs: []Xattr{{Name: "user.foo", Value: []byte("bar")}},
		},
		{Path: "/tmp/sub/file4.txt", Uid: 1000, Gid: 2000,
			HasHardlinkGroup: true, HardlinkGroup: 1000,
			ACL: []byte{1, 2, 3}, DefaultACL: []byte{4, 5},
		},
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			t.Fatal(err)
		}
	}

	dec := NewDecoder(&buf)
	for i, want := range entries {
		got, err := dec.Decode()
		if err != nil {
			t.Fatalf("entry %d: %v", i, err)
		}
		if got.Path != want.Path {
			t.Errorf("entry %d: Path = %q, want %q", i, got.Path, want.Path)
		}
		if got.Uid != want.Uid || got.Gid != want.Gid {
			t.Errorf("entry %d: Uid/Gid = %d/%d, want %d/%d", i, got.Uid, got.Gid, want.Uid, want.Gid)
		}
		if got.HasHardlinkGroup != want.HasHardlinkGroup || got.HardlinkGroup != want.HardlinkGroup {
			t.Errorf("entry %d: hardlink group mismatch: got %+v, want %+v", i, got, want)
		}
		if len(got.Xattrs) != len(want.Xattrs) {
			t.Errorf("entry %d: xattr count = %d, want %d", i, len(got.Xattrs), len(want.Xattrs))
		}
		if !bytes.Equal(got.ACL, want.ACL) || !bytes.Equal(got.DefaultACL, want.DefaultACL) {
			t.Errorf("entry %d: ACL mismatch", i)
		}
	}
}

func TestPathPrefixSharing(t *testing.T) {
	// Golden scenario from spec.md §8 item 4.
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.Encode(Entry{Path: "/tmp/file1.txt", Uid: 1000, Gid: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(Entry{Path: "/tmp/file2.txt", Uid: 1000, Gid: 1000}); err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	// First entry: common=0 (no previous path). Its layout is
	// [common=0][suffixLen=14]["/tmp/file1.txt"][uid marker][...].
	if data[0] != 0 {
		t.Fatalf("first entry common = %d, want 0", data[0])
	}
	firstSuffixLen := int(data[1])
	if firstSuffixLen != len("/tmp/file1.txt") {
		t.Fatalf("first entry suffix length = %d, want %d", firstSuffixLen, len("/tmp/file1.txt"))
	}

	// Decode both entries and check that the second one's path is rebuilt
	// from the prefix it shares with the first and that its uid/gid come
	// back as 1000 again.
	dec := NewDecoder(bytes.NewReader(data))
	if _, err := dec.Decode(); err != nil {
		t.Fatal(err)
	}
	second, err := dec.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if second.Path != "/tmp/file2.txt" {
		t.Fatalf("second path = %q, want /tmp/file2.txt", second.Path)
	}
	if second.Uid != 1000 || second.Gid != 1000 {
		t.Fatalf("second entry should reuse uid/gid table index 0, got uid=%d gid=%d", second.Uid, second.Gid)
	}
}

func TestDecodeRejectsBadIDIndex(t *testing.T) {
	var buf bytes.Buffer
	// common=0, suffixLen=1, suffix="a", uid marker=5 (no entries yet: bad index)
	buf.Write([]byte{0, 1, 'a', 5})
	dec := NewDecoder(&buf)
	_, err := dec.Decode()
	var badID *BadIDError
	if err == nil {
		t.Fatal("expected BadIDError, got nil")
	}
	if !asBadID(err, &badID) {
		t.Fatalf("expected *BadIDError, got %T: %v", err, err)
	}
}

func asBadID(err error, target **BadIDError) bool {
	if e, ok := err.(*BadIDError); ok {
		*target = e
		return true
	}
	return false
}

func TestDecodeRejectsShortInput(t *testing.T) {
	buf := bytes.NewReader([]byte{0, 5, 'a', 'b'}) // claims 5-byte suffix, only 2 present
	dec := NewDecoder(buf)
	_, err := dec.Decode()
	if err != ErrShortInput {
		t.Fatalf("expected ErrShortInput, got %v", err)
	}
}
