package rsyncstats

import "testing"

type recordedEvent struct {
	kind    string
	path    string
	total   int64
	written int64
}

type recordingObserver struct {
	events []recordedEvent
}

func (r *recordingObserver) Start(path string, total int64) {
	r.events = append(r.events, recordedEvent{kind: "start", path: path, total: total})
}
func (r *recordingObserver) Update(written int64) {
	r.events = append(r.events, recordedEvent{kind: "update", written: written})
}
func (r *recordingObserver) Finish() {
	r.events = append(r.events, recordedEvent{kind: "finish"})
}

func TestProgressEventOrder(t *testing.T) {
	// Golden scenario from spec.md §8 item 5: a single Literal(b"abcd") op
	// emits start(total=4,written=0), update(written=4), finish() in order.
	rec := &recordingObserver{}
	tw := &TrackingWriter{Observer: rec}

	tw.Start("file.txt", 4)
	tw.Wrote(4)
	tw.Finish()

	want := []recordedEvent{
		{kind: "start", path: "file.txt", total: 4},
		{kind: "update", written: 4},
		{kind: "finish"},
	}
	if len(rec.events) != len(want) {
		t.Fatalf("got %d events, want %d: %+v", len(rec.events), len(want), rec.events)
	}
	for i, e := range rec.events {
		if e != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, e, want[i])
		}
	}
}
