// Package rsyncstats holds per-file and per-session counters and the
// observer sink progress events are delivered to (spec.md §2 item 10). The
// TransferStats shape matches the fields the teacher's
// internal/receiver/do.go report function already reads off the wire
// (Read, Written, Size).
package rsyncstats

import "sync/atomic"

// TransferStats summarizes one session's byte counters, as exchanged in the
// final statistics message.
type TransferStats struct {
	Read    int64 // total bytes read from the network connection
	Written int64 // total bytes written to the network connection
	Size    int64 // total size of files in the transfer

	FilesTotal     int64
	FilesTransferred int64
	FilesUnchanged int64
	FilesDeleted   int64

	LiteralBytes int64 // bytes sent as Literal ops
	MatchedBytes int64 // bytes reconstructed via Copy ops
}

// Counters is a mutable, concurrency-safe accumulator built up over the
// course of a session; Snapshot freezes it into a TransferStats value for
// reporting.
type Counters struct {
	read, written, size                                int64
	filesTotal, filesTransferred, filesUnchanged, filesDeleted int64
	literalBytes, matchedBytes                         int64
}

func (c *Counters) AddRead(n int64)             { atomic.AddInt64(&c.read, n) }
func (c *Counters) AddWritten(n int64)          { atomic.AddInt64(&c.written, n) }
func (c *Counters) AddSize(n int64)             { atomic.AddInt64(&c.size, n) }
func (c *Counters) IncFilesTotal()              { atomic.AddInt64(&c.filesTotal, 1) }
func (c *Counters) IncFilesTransferred()        { atomic.AddInt64(&c.filesTransferred, 1) }
func (c *Counters) IncFilesUnchanged()          { atomic.AddInt64(&c.filesUnchanged, 1) }
func (c *Counters) IncFilesDeleted()            { atomic.AddInt64(&c.filesDeleted, 1) }
func (c *Counters) AddLiteralBytes(n int64)     { atomic.AddInt64(&c.literalBytes, n) }
func (c *Counters) AddMatchedBytes(n int64)     { atomic.AddInt64(&c.matchedBytes, n) }

func (c *Counters) Snapshot() TransferStats {
	return TransferStats{
		Read:             atomic.LoadInt64(&c.read),
		Written:          atomic.LoadInt64(&c.written),
		Size:             atomic.LoadInt64(&c.size),
		FilesTotal:       atomic.LoadInt64(&c.filesTotal),
		FilesTransferred: atomic.LoadInt64(&c.filesTransferred),
		FilesUnchanged:   atomic.LoadInt64(&c.filesUnchanged),
		FilesDeleted:     atomic.LoadInt64(&c.filesDeleted),
		LiteralBytes:     atomic.LoadInt64(&c.literalBytes),
		MatchedBytes:     atomic.LoadInt64(&c.matchedBytes),
	}
}
