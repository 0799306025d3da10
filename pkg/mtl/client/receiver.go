package client

import (
	"context"
	"errors"
	"io"

	"github.com/jabolina/mtl/pkg/mtl/definition"
	"github.com/jabolina/mtl/pkg/mtl/frame"
)

// ErrTargetDown is surfaced to the user's error listener when a
// previously submitted message is reflected with TARGET_DOWN: the
// destination named in the message was not a connected peer at forward
// time, and the broker will never retry it on the client's behalf.
var ErrTargetDown = errors.New("client: destination peer not connected")

// receiver is the client-side demultiplexer from §4.8: it loops reading
// one frame at a time and either hands a normal delivery to the user
// callback, or feeds a NACK back into the retry queue / error listener.
type receiver struct {
	svc *Service
	log definition.Logger
}

func newReceiver(svc *Service) *receiver {
	return &receiver{svc: svc, log: svc.log}
}

func (r *receiver) run(ctx context.Context) error {
	buf := make([]byte, frame.Size)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if _, err := io.ReadFull(r.svc.conn, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
				r.log.Warnf("receive failed: %v", err)
			}
			return err
		}

		var f frame.Frame
		if err := frame.Decode(buf, &f); err != nil {
			r.log.Errorf("failed decoding incoming frame: %v", err)
			continue
		}
		r.dispatch(&f)
	}
}

func (r *receiver) dispatch(f *frame.Frame) {
	switch {
	case f.Flags == frame.OK:
		if l := r.svc.listener(); l != nil {
			l(f.SrcAddr, f.Payload())
		}
	case f.Flags&frame.TargetDown != 0:
		r.svc.sender.onNack()
		if el := r.svc.errorListener(); el != nil {
			el(ErrTargetDown, *f)
		}
	case f.Flags&(frame.BufferFull|frame.InvalidOrder) != 0:
		r.svc.sender.onNack()
		r.svc.outbox.requeueNacked(*f)
	default:
		r.log.Warnf("unknown nack flags %s on count=%d", f.Flags, f.Count)
	}
}
