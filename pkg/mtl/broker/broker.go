// Package broker implements the MTL broker: the receive-validate-queue-
// schedule-forward-NACK pipeline described in §2-§5 of the design.
package broker

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jabolina/mtl/pkg/mtl/definition"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// Config collects the broker's tunables: the per-peer buffer bound
// (§6, BUF=4 by default), and the optional rate limiter and metrics
// sampler parameters. A zero value is usable (unbounded rate, no
// sampling); New replaces a non-positive PerPeerBuffer with the default.
type Config struct {
	PerPeerBuffer int

	RateLimiter *RateLimiterConfig

	MetricsLog      io.Writer
	MetricsInterval time.Duration
}

// DefaultConfig returns the constants from §6.
func DefaultConfig() Config {
	return Config{
		PerPeerBuffer:   4,
		MetricsInterval: time.Second,
	}
}

// Broker owns the listener, the Peer Directory, the Active-Peer Queue,
// the Scheduler, and the optional Rate Limiter and Metrics Sampler.
type Broker struct {
	cfg Config
	log definition.Logger

	directory   *Directory
	activeQueue *activeQueue
	scheduler   *Scheduler
	rateLimiter *RateLimiter
	sampler     *MetricsSampler
	metrics     *Metrics
	registry    *prometheus.Registry

	listener net.Listener
	ready    chan struct{}
}

// Addr returns the bound listener address. It only returns a meaningful
// value after Ready has been closed.
func (b *Broker) Addr() net.Addr {
	return b.listener.Addr()
}

// Ready is closed once Run has successfully bound its listener, useful
// for tests that need the assigned port before dialing in.
func (b *Broker) Ready() <-chan struct{} {
	return b.ready
}

// New builds a Broker. It does not bind a listener; call Run with an
// address to do so.
func New(cfg Config, log definition.Logger) *Broker {
	if cfg.PerPeerBuffer <= 0 {
		cfg.PerPeerBuffer = DefaultConfig().PerPeerBuffer
	}
	if log == nil {
		log = definition.NewLogrusLogger()
	}

	reg := prometheus.NewRegistry()
	b := &Broker{
		cfg:         cfg,
		log:         log,
		directory:   NewDirectory(),
		activeQueue: newActiveQueue(),
		metrics:     NewMetrics(reg),
		registry:    reg,
		ready:       make(chan struct{}),
	}
	b.scheduler = newScheduler(b)
	if cfg.RateLimiter != nil {
		b.rateLimiter = NewRateLimiter(*cfg.RateLimiter)
	}
	if cfg.MetricsLog != nil {
		interval := cfg.MetricsInterval
		if interval <= 0 {
			interval = time.Second
		}
		b.sampler = NewMetricsSampler(cfg.MetricsLog, b.metrics, b.directory, interval)
	}
	return b
}

// Registry exposes the Broker's Prometheus registry, for a caller that
// wants to serve it over HTTP. cmd/mtl-broker does not serve it.
func (b *Broker) Registry() *prometheus.Registry {
	return b.registry
}

// ConnectedPeers returns the current peer count.
func (b *Broker) ConnectedPeers() int {
	return b.directory.Count()
}

// Run binds addr and serves until ctx is cancelled, implementing the
// cooperative shutdown from §5: cancelling ctx closes the listener (so
// Accept() unblocks) and half-closes the read side of every currently
// connected Peer's socket (so each Handler's blocking read ends rather
// than waiting for the remote end to hang up first). Each Handler then
// runs its own drain-before-destroy teardown; only once acceptLoop
// reports every Handler has finished does Run stop the Scheduler, so no
// pending out_queue entry is ever dropped mid-shutdown (§8 scenario 6).
func (b *Broker) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	b.listener = ln
	close(b.ready)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return b.scheduler.run(ctx)
	})
	if b.rateLimiter != nil {
		group.Go(func() error {
			return b.rateLimiter.run(gctx)
		})
	}
	if b.sampler != nil {
		group.Go(func() error {
			return b.sampler.run(gctx)
		})
	}
	group.Go(func() error {
		err := b.acceptLoop(ctx, ln)
		// Every Handler has drained and exited by the time acceptLoop
		// returns; only now is it safe to let the Scheduler stop.
		b.activeQueue.stop()
		return err
	})

	// Closing the listener unblocks Accept(); half-closing the read side
	// of every connected Peer unblocks each Handler's blocking read. Both run off
	// the caller's ctx directly, since gctx would never fire here on its
	// own (acceptLoop and the Scheduler are two of the things that must
	// themselves observe this to make progress toward returning).
	go func() {
		<-ctx.Done()
		_ = ln.Close()
		for _, p := range b.directory.Snapshot() {
			p.CloseConn()
		}
	}()

	return group.Wait()
}

// acceptLoop implements the listener half of §5's graceful shutdown:
// ctx cancellation closes ln (done for us by Run), which unblocks
// Accept() with an error; acceptLoop then waits for every already
// accepted connection's Handler to finish its own drain-before-destroy
// teardown before returning.
func (b *Broker) acceptLoop(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	for {
		conn, err := ln.Accept()
		if err != nil {
			wg.Wait()
			return nil
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.handleConn(conn)
		}()
	}
}
