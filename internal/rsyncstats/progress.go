package rsyncstats

// Observer receives progress events as the receiver applies a file's delta
// ops (spec.md §8 item 5: start/update/finish in order). Implementations
// that don't care about progress (the common case when --progress is not
// requested) use NopObserver.
type Observer interface {
	Start(path string, total int64)
	Update(written int64)
	Finish()
}

type nopObserver struct{}

func (nopObserver) Start(string, int64) {}
func (nopObserver) Update(int64)        {}
func (nopObserver) Finish()             {}

// NopObserver discards every event.
var NopObserver Observer = nopObserver{}

// TrackingWriter wraps an io.Writer-shaped write loop with progress
// reporting: call Start once, Wrote after each op, Finish at EOF.
type TrackingWriter struct {
	Observer Observer
	written  int64
}

func (t *TrackingWriter) Start(path string, total int64) {
	t.written = 0
	t.Observer.Start(path, total)
}

func (t *TrackingWriter) Wrote(n int64) {
	t.written += n
	t.Observer.Update(t.written)
}

func (t *TrackingWriter) Finish() {
	t.Observer.Finish()
}
