package broker

import "github.com/jabolina/mtl/pkg/mtl/frame"

// ring is a fixed-capacity, preallocated pool of frame slots backing a
// single Peer's out_queue. It exists to keep the forwarding hot path
// allocation-free: BUF+2 frame.Frame values are allocated once at Peer
// creation (BUF queued plus two slots of headroom), and the ring only
// ever hands out indices into that backing array. The Handler decodes
// into its own Frame and copies it into an acquired slot; the Scheduler
// copies the head frame out before popping it.
type ring struct {
	slots []frame.Frame
	free  []int
	queue []int
}

func newRing(buf int) *ring {
	capacity := buf + 2
	r := &ring{
		slots: make([]frame.Frame, capacity),
		free:  make([]int, 0, capacity),
		queue: make([]int, 0, buf),
	}
	for i := 0; i < capacity; i++ {
		r.free = append(r.free, i)
	}
	return r
}

// acquire returns a pointer to a free slot for the Handler to copy a
// decoded frame into, and the slot's index. ok is false if the ring has no free slots
// (should not happen given the BUF+2 sizing, since len(queue) <= BUF and
// at most one slot is ever held outside the pool by the caller at a
// time).
func (r *ring) acquire() (idx int, f *frame.Frame, ok bool) {
	n := len(r.free)
	if n == 0 {
		return 0, nil, false
	}
	idx = r.free[n-1]
	r.free = r.free[:n-1]
	return idx, &r.slots[idx], true
}

// release returns an acquired slot to the free pool without ever having
// queued it.
func (r *ring) release(idx int) {
	r.free = append(r.free, idx)
}

// enqueue appends a previously acquired slot to the tail of the FIFO.
func (r *ring) enqueue(idx int) {
	r.queue = append(r.queue, idx)
}

// len reports the number of frames currently queued (not counting any
// slot held outside the pool by an in-progress acquire).
func (r *ring) len() int {
	return len(r.queue)
}

// front returns the slot index and frame at the head of the queue
// without removing it.
func (r *ring) front() (int, *frame.Frame, bool) {
	if len(r.queue) == 0 {
		return 0, nil, false
	}
	idx := r.queue[0]
	return idx, &r.slots[idx], true
}

// pop removes the head of the queue and returns its slot to the free
// pool once the caller is done with the frame contents (the caller must
// have finished reading/copying the frame before the slot is reused).
func (r *ring) pop() {
	if len(r.queue) == 0 {
		return
	}
	idx := r.queue[0]
	r.queue = r.queue[1:]
	r.free = append(r.free, idx)
}
