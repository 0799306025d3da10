package client

import (
	"sync"

	"github.com/jabolina/mtl/pkg/mtl/frame"
)

// outbox is the client-side queue pair from §3/§4.9: out_queue (newly
// submitted, ascending sequence) and nacked_queue (returned with
// BUFFER_FULL or INVALID_ORDER, resent with priority). One lock covers
// both, with "work-exists" and "not-full" condition variables, matching
// §5's lock inventory exactly.
type outbox struct {
	mu         sync.Mutex
	workExists *sync.Cond
	notFull    *sync.Cond

	out    []frame.Frame
	nacked []frame.Frame

	maxTotal int
	nextSeq  uint16
	closed   bool
}

func newOutbox(maxTotal int) *outbox {
	o := &outbox{maxTotal: maxTotal}
	o.workExists = sync.NewCond(&o.mu)
	o.notFull = sync.NewCond(&o.mu)
	return o
}

// schedule implements §4.9: stamp Count under the lock, only once the
// slot is actually available, so concurrent submitters cannot reorder
// sequence numbers relative to queue position.
func (o *outbox) schedule(f frame.Frame) {
	o.mu.Lock()
	for !o.closed && len(o.out)+len(o.nacked) >= o.maxTotal {
		o.notFull.Wait()
	}
	if o.closed {
		o.mu.Unlock()
		return
	}
	f.Count = o.nextSeq
	o.nextSeq = frame.NextCount(o.nextSeq)
	f.Flags = frame.OK
	o.out = append(o.out, f)
	o.mu.Unlock()
	o.workExists.Signal()
}

// requeueNacked re-inserts a NACKed frame, preserving its original Count
// (§4.7/§4.8), and wakes the Sender.
func (o *outbox) requeueNacked(f frame.Frame) {
	o.mu.Lock()
	o.nacked = append(o.nacked, f)
	o.mu.Unlock()
	o.workExists.Signal()
}

// next implements the Sender's pop policy from §4.7: nacked_queue has
// absolute priority; otherwise the head of out_queue is only popped if
// its count continues prevCount (or this is the very first send), else
// the Sender must wait — the broker has NACKed messages ahead of it that
// have not yet come back.
func (o *outbox) next(prevCount uint16, haveSent bool) (frame.Frame, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for {
		if len(o.nacked) > 0 {
			f := o.nacked[0]
			o.nacked = o.nacked[1:]
			o.notFull.Signal()
			return f, true
		}
		if len(o.out) > 0 {
			head := o.out[0]
			if !haveSent || head.Count == frame.NextCount(prevCount) {
				o.out = o.out[1:]
				o.notFull.Signal()
				return head, true
			}
		}
		if o.closed {
			return frame.Frame{}, false
		}
		o.workExists.Wait()
	}
}

// close marks the outbox as shutting down and wakes any goroutine
// blocked in next, schedule, or waitDrained, so Service.Stop never
// hangs waiting on a condition that a closed connection will never
// satisfy again.
func (o *outbox) close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.workExists.Broadcast()
	o.notFull.Broadcast()
}

// pending reports the total number of messages still queued, for the
// bounded-buffering test property and for Stop's drain wait.
func (o *outbox) pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.out) + len(o.nacked)
}

// waitDrained blocks until both queues are empty, double-checking
// against a NACK that lands after out_queue first looks empty (§5:
// client Stop waits for both queues to drain, double-checked against
// late-arriving NACKs). A concurrent close unblocks it too, since a
// dead connection will never drain the rest on its own.
func (o *outbox) waitDrained() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for !o.closed && (len(o.out) > 0 || len(o.nacked) > 0) {
		o.notFull.Wait()
	}
}
