package filelist

import (
	"bytes"
	"testing"
)

func TestAttributesRoundtripRegular(t *testing.T) {
	a := Attributes{Kind: Regular, Size: 4096, Mtime: 1700000000, Mode: 0o644}
	var buf bytes.Buffer
	if err := EncodeAttributes(&buf, a); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeAttributes(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Errorf("got %+v, want %+v", got, a)
	}
}

func TestAttributesRoundtripSymlink(t *testing.T) {
	a := Attributes{Kind: Symlink, Mode: 0o777, LinkTarget: "../target.txt"}
	var buf bytes.Buffer
	if err := EncodeAttributes(&buf, a); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeAttributes(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Errorf("got %+v, want %+v", got, a)
	}
}

func TestAttributesRoundtripDevice(t *testing.T) {
	a := Attributes{Kind: Device, Mode: 0o660, DevMajor: 8, DevMinor: 1}
	var buf bytes.Buffer
	if err := EncodeAttributes(&buf, a); err != nil {
		t.Fatal(err)
	}
	got, err := DecodeAttributes(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if got != a {
		t.Errorf("got %+v, want %+v", got, a)
	}
}
