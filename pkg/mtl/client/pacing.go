package client

import (
	"sync"
	"time"
)

const (
	increaseThreshold = 512
	decreaseThreshold = 256
	speedUpFactor      = 0.9
	slowDownFactor     = 1.1
	minDelay           = time.Microsecond
	maxDelay           = time.Second
)

// pacer implements the adaptive pacing loop from §4.7: a signed
// flow_balance counter that speeds up the inter-send delay after a
// sustained run of successful sends and slows it down after NACKs,
// converging toward a delay that keeps the broker's NACK rate near
// zero.
//
// onSend/currentDelay run on the Sender goroutine while onNack runs on
// the Receiver goroutine (§5: one Sender, one Receiver per Service), so
// balance and delay are guarded by mu rather than left to one owning
// goroutine.
type pacer struct {
	mu      sync.Mutex
	balance int
	delay   time.Duration
}

func newPacer(initial time.Duration) *pacer {
	if initial <= 0 {
		initial = time.Millisecond
	}
	return &pacer{delay: clampDelay(initial)}
}

func clampDelay(d time.Duration) time.Duration {
	if d < minDelay {
		return minDelay
	}
	if d > maxDelay {
		return maxDelay
	}
	return d
}

// onSend is called after every successful send.
func (p *pacer) onSend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balance++
	if p.balance >= increaseThreshold {
		p.delay = clampDelay(time.Duration(float64(p.delay) * speedUpFactor))
		p.balance = 0
	}
}

// onNack is called whenever a NACK is received.
func (p *pacer) onNack() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.balance > 0 {
		p.balance = 0
	}
	p.balance--
	if p.balance <= -decreaseThreshold {
		p.delay = clampDelay(time.Duration(float64(p.delay) * slowDownFactor))
		p.balance = 0
	}
}

func (p *pacer) currentDelay() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delay
}
