package broker

import (
	"context"

	"github.com/jabolina/mtl/pkg/mtl/frame"
)

// Scheduler is the single-consumer task described in §4.4: it drains the
// Active-Peer Queue one message per wake, round-robining across peers at
// one-message granularity, and never holds the active-queue lock across
// the forwarding socket write.
type Scheduler struct {
	b *Broker
}

func newScheduler(b *Broker) *Scheduler {
	return &Scheduler{b: b}
}

// run drives the scheduler loop until the Active-Peer Queue is stopped.
// It is meant to be launched as one goroutine in the Broker's errgroup.
//
// Deliberately does not exit merely because ctx is cancelled: §5's
// drain-before-destroy contract requires every Handler to flush its
// pending out_queue before the broker exits, and Handlers can only do
// that while the Scheduler keeps draining the Active-Peer Queue. Run
// stops this loop explicitly, via activeQueue.stop, only once every
// Handler has already finished draining (see acceptLoop).
func (s *Scheduler) run(ctx context.Context) error {
	for {
		if s.b.rateLimiter != nil {
			if err := s.b.rateLimiter.wait(ctx); err != nil {
				// ctx was cancelled mid-pace: stop pacing but keep
				// draining whatever remains, so shutdown never drops a
				// pending forward.
			}
		}

		p, ok := s.b.activeQueue.popFront()
		if !ok {
			return nil
		}

		p.outMu.Lock()
		_, slot, has := p.ring.front()
		if !has {
			// Nothing to do; the peer was pushed speculatively by a
			// racing re-append and has since drained. Drop its active
			// membership and move on.
			p.inActiveQueue = false
			p.outMu.Unlock()
			continue
		}
		msg := *slot
		p.ring.pop()
		p.notFull.Signal()
		stillPending := p.ring.len() > 0
		if !stillPending {
			p.inActiveQueue = false
		}
		p.outMu.Unlock()

		if stillPending {
			s.b.activeQueue.pushBack(p)
		}

		s.b.forward(&msg)
	}
}
