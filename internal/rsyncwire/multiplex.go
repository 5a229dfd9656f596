package rsyncwire

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// MultiplexWriter is a single-channel convenience wrapper the teacher's
// daemon code uses directly (rsyncd.go: "mpx := &rsyncwire.MultiplexWriter{Writer: c.Writer}").
// It writes Data frames for plain Write calls (so it can be installed in
// place of a Conn's Writer transparently) and WriteMsg for explicitly
// tagged messages (errors, warnings, log lines).
type MultiplexWriter struct {
	Writer  io.Writer
	Channel uint16
}

func (m *MultiplexWriter) Write(p []byte) (int, error) {
	if err := WriteFrame(m.Writer, Frame{
		Header:  Header{Channel: m.Channel, Tag: TagData, Msg: MsgData},
		Payload: p,
	}); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteMsg writes a tagged Message frame (e.g. MsgError, MsgInfo) carrying
// payload, distinct from the plain-data stream.
func (m *MultiplexWriter) WriteMsg(msg MsgCode, payload []byte) error {
	return WriteFrame(m.Writer, Frame{
		Header:  Header{Channel: m.Channel, Tag: TagMessage, Msg: msg},
		Payload: payload,
	})
}

// Multiplexer fans multiple logical channels out over one underlying
// stream, round-robin, emitting a KeepAlive on an idle channel once the
// configured interval has elapsed with nothing else to send (spec.md §4.4).
type Multiplexer struct {
	w            io.Writer
	mu           sync.Mutex
	queues       map[uint16][]Frame
	order        []uint16
	keepAlive    time.Duration
	lastActivity time.Time
}

func NewMultiplexer(w io.Writer, keepAlive time.Duration) *Multiplexer {
	return &Multiplexer{
		w:            w,
		queues:       make(map[uint16][]Frame),
		keepAlive:    keepAlive,
		lastActivity: time.Now(),
	}
}

// Enqueue appends a frame to channel's outbound queue.
func (m *Multiplexer) Enqueue(channel uint16, f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.queues[channel]; !ok {
		m.order = append(m.order, channel)
	}
	m.queues[channel] = append(m.queues[channel], f)
}

// Flush drains every ready frame, round-robin across channels in the order
// they were first enqueued. If nothing is ready and the keep-alive interval
// has elapsed, it emits a KeepAlive on the first known channel.
func (m *Multiplexer) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	wrote := false
	for pending := true; pending; {
		pending = false
		for _, ch := range m.order {
			q := m.queues[ch]
			if len(q) == 0 {
				continue
			}
			if err := WriteFrame(m.w, q[0]); err != nil {
				return err
			}
			m.queues[ch] = q[1:]
			wrote = true
			pending = true
		}
	}
	if wrote {
		m.lastActivity = time.Now()
		return nil
	}
	if m.keepAlive > 0 && time.Since(m.lastActivity) >= m.keepAlive && len(m.order) > 0 {
		if err := WriteFrame(m.w, Frame{
			Header: Header{Channel: m.order[0], Tag: TagKeepAlive},
		}); err != nil {
			return err
		}
		m.lastActivity = time.Now()
	}
	return nil
}

// Demultiplexer dispatches inbound frames by channel id. KeepAlive frames
// refresh the per-channel liveness timestamp and are never forwarded to
// consumers (spec.md §4.4).
type Demultiplexer struct {
	r       io.Reader
	timeout time.Duration

	mu       sync.Mutex
	liveness map[uint16]time.Time
}

func NewDemultiplexer(r io.Reader, timeout time.Duration) *Demultiplexer {
	return &Demultiplexer{
		r:        r,
		timeout:  timeout,
		liveness: make(map[uint16]time.Time),
	}
}

// Next reads frames from the underlying stream until it finds one that is
// not a KeepAlive, updating liveness bookkeeping for every channel it sees
// along the way. It returns an error naming the channel if any channel other
// than the one just read has gone silent longer than the configured timeout
// (checked lazily, at read time: this is not a background ticker).
func (d *Demultiplexer) Next() (Frame, error) {
	for {
		f, err := ReadFrame(d.r)
		if err != nil {
			return Frame{}, err
		}
		d.mu.Lock()
		d.liveness[f.Header.Channel] = time.Now()
		if d.timeout > 0 {
			for ch, last := range d.liveness {
				if ch != f.Header.Channel && time.Since(last) > d.timeout {
					d.mu.Unlock()
					return Frame{}, fmt.Errorf("rsyncwire: channel %d timed out after %s", ch, d.timeout)
				}
			}
		}
		d.mu.Unlock()
		if f.Header.Tag == TagKeepAlive {
			continue
		}
		return f, nil
	}
}
