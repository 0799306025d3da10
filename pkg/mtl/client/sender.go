package client

import (
	"context"
	"time"

	"github.com/jabolina/mtl/pkg/mtl/definition"
	"github.com/jabolina/mtl/pkg/mtl/frame"
)

// sender is the single task draining outbound messages in strict
// sequence order, per §4.7 — the entire correctness story for ordering
// on the client side.
type sender struct {
	svc   *Service
	log   definition.Logger
	pacer *pacer

	haveSent  bool
	prevCount uint16
}

func newSender(svc *Service) *sender {
	return &sender{
		svc:   svc,
		log:   svc.log,
		pacer: newPacer(time.Millisecond),
	}
}

func (s *sender) run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		f, ok := s.svc.outbox.next(s.prevCount, s.haveSent)
		if !ok {
			return nil
		}

		var buf [frame.Size]byte
		if err := frame.Encode(&f, buf[:]); err != nil {
			s.log.Errorf("failed encoding frame count=%d: %v", f.Count, err)
			continue
		}

		s.svc.writeMu.Lock()
		n, err := s.svc.conn.Write(buf[:])
		s.svc.writeMu.Unlock()
		if err != nil {
			s.log.Warnf("send failed, connection likely closed: %v", err)
			return err
		}
		if n != frame.Size {
			s.log.Warnf("short write sending count=%d: %d/%d bytes", f.Count, n, frame.Size)
		}

		s.prevCount = f.Count
		s.haveSent = true
		s.pacer.onSend()

		delay := s.pacer.currentDelay()
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// onNack feeds a NACK observation back into the pacer, called by the
// Receiver.
func (s *sender) onNack() {
	s.pacer.onNack()
}
