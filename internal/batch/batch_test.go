package batch

import (
	"bytes"
	"strings"
	"testing"
)

func TestEscapeUnescapeRoundtrip(t *testing.T) {
	paths := []string{
		"simple/path.txt",
		"with space/and-dash.txt",
		"weird\x01\x02bytes",
		`back\slash`,
		"",
	}
	for _, p := range paths {
		esc := EscapePath(p)
		got, err := UnescapePath(esc)
		if err != nil {
			t.Fatalf("UnescapePath(%q): %v", esc, err)
		}
		if got != p {
			t.Errorf("roundtrip mismatch: got %q, want %q (escaped: %q)", got, p, esc)
		}
	}
}

func TestWriteReadRoundtrip(t *testing.T) {
	rec := Record{
		Counters: map[string]int64{
			"files_transferred": 3,
			"bytes_transferred": 12345,
		},
		Paths: []string{"a.txt", "dir/b.txt", "dir/c with space.txt"},
	}

	var buf bytes.Buffer
	if err := Write(&buf, rec); err != nil {
		t.Fatal(err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Paths) != len(rec.Paths) {
		t.Fatalf("paths: got %v, want %v", got.Paths, rec.Paths)
	}
	for i, p := range rec.Paths {
		if got.Paths[i] != p {
			t.Errorf("path %d = %q, want %q", i, got.Paths[i], p)
		}
	}
	for k, v := range rec.Counters {
		if got.Counters[k] != v {
			t.Errorf("counter %q = %d, want %d", k, got.Counters[k], v)
		}
	}
}

func TestReadIgnoresCommentsAndBlankLines(t *testing.T) {
	input := "# a comment\n\nfiles_transferred=1\n\na.txt\n# another\nb.txt\n"
	rec, err := Read(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Paths) != 2 || rec.Paths[0] != "a.txt" || rec.Paths[1] != "b.txt" {
		t.Errorf("paths = %v, want [a.txt b.txt]", rec.Paths)
	}
	if rec.Counters["files_transferred"] != 1 {
		t.Errorf("files_transferred = %d, want 1", rec.Counters["files_transferred"])
	}
}

func TestValidateDetectsMismatch(t *testing.T) {
	rec := Record{Counters: map[string]int64{"files_transferred": 5}}
	if err := Validate(rec, map[string]int64{"files_transferred": 5}); err != nil {
		t.Errorf("expected match to validate cleanly: %v", err)
	}
	if err := Validate(rec, map[string]int64{"files_transferred": 4}); err == nil {
		t.Error("expected mismatch to be reported")
	}
}
