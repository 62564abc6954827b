package observability

import (
	"runtime"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
)

// BatchPublisher buffers up to N events and flushes them to a Stream
// either when the buffer fills or on an explicit Flush. It is the one
// producer path that tolerates brief waits: Flush spin-yields rather
// than drop when the stream is momentarily full, per spec.md's
// backpressure contract carving out this single exception.
type BatchPublisher struct {
	stream *Stream
	buf    []kevent.Event
	max    int

	// spinLimit bounds how many Gosched rounds Flush will spend on a
	// single stuck event before giving up and letting Stream.Publish
	// count the drop, so a permanently full ring can't hang a producer.
	spinLimit int
}

// NewBatchPublisher builds a publisher flushing to stream once max
// buffered events accumulate.
func NewBatchPublisher(stream *Stream, max int) *BatchPublisher {
	if max <= 0 {
		max = 64
	}
	return &BatchPublisher{stream: stream, buf: make([]kevent.Event, 0, max), max: max, spinLimit: 256}
}

// Publish buffers ev, flushing automatically once the buffer is full.
func (p *BatchPublisher) Publish(ev kevent.Event) bool {
	p.buf = append(p.buf, ev)
	if len(p.buf) >= p.max {
		p.Flush()
	}
	return true
}

// Flush pushes every buffered event to the stream, spin-yielding on a
// momentarily full ring before falling back to counting a drop.
func (p *BatchPublisher) Flush() {
	for _, ev := range p.buf {
		ok := p.stream.ring.Push(ev)
		for i := 0; !ok && i < p.spinLimit; i++ {
			runtime.Gosched()
			ok = p.stream.ring.Push(ev)
		}
		if ok {
			p.stream.produced.Add(1)
		} else {
			p.stream.dropped.Add(1)
		}
	}
	p.buf = p.buf[:0]
}
