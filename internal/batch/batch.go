// Package batch implements the write-batch/read-batch deterministic
// record/replay format (spec.md §4.8): a text log of key=value session
// counters followed by octal-escaped path lines, replayable against any
// matching source tree.
package batch

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Record is one parsed write-batch file: the session counters it recorded,
// plus the ordered list of paths the decision set covers.
type Record struct {
	Counters map[string]int64
	Paths    []string
}

// Write serializes rec in the format spec.md §4.8 describes: comment lines
// are not emitted (they're a read-time convenience only), counters first as
// key=value lines in a stable (sorted) order, then one octal-escaped path
// per line.
func Write(w io.Writer, rec Record) error {
	bw := bufio.NewWriter(w)

	keys := make([]string, 0, len(rec.Counters))
	for k := range rec.Counters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, err := fmt.Fprintf(bw, "%s=%d\n", k, rec.Counters[k]); err != nil {
			return err
		}
	}
	for _, p := range rec.Paths {
		if _, err := fmt.Fprintln(bw, EscapePath(p)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Read parses a write-batch file, skipping blank and comment ('#') lines,
// and validating that every path line decodes cleanly.
func Read(r io.Reader) (Record, error) {
	rec := Record{Counters: make(map[string]int64)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, "="); ok && isCounterLine(k) {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Record{}, fmt.Errorf("batch: malformed counter line %q: %w", line, err)
			}
			rec.Counters[k] = n
			continue
		}
		path, err := UnescapePath(line)
		if err != nil {
			return Record{}, fmt.Errorf("batch: malformed path line %q: %w", line, err)
		}
		rec.Paths = append(rec.Paths, path)
	}
	if err := sc.Err(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// isCounterLine distinguishes a "key=value" counter line from a path that
// happens to contain '=': counter keys are a closed, known set, so any
// other "key=value"-shaped line is treated as a path instead.
func isCounterLine(key string) bool {
	switch key {
	case "files_transferred", "bytes_transferred", "files_total",
		"files_unchanged", "files_deleted", "literal_bytes", "matched_bytes":
		return true
	default:
		return false
	}
}

// Validate checks rec's counters against observed, per spec.md §4.8:
// "counters are validated against the record."
func Validate(rec Record, observed map[string]int64) error {
	for k, want := range rec.Counters {
		got, ok := observed[k]
		if !ok {
			return fmt.Errorf("batch: counter %q not observed during replay", k)
		}
		if got != want {
			return fmt.Errorf("batch: counter %q mismatch: recorded %d, replayed %d", k, want, got)
		}
	}
	return nil
}
