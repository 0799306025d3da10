package broker

import (
	"sync"

	"github.com/jabolina/mtl/pkg/mtl/frame"
)

const directoryBuckets = 256

// Directory maps (addr, port) to the connected Peer, bucketed by
// (addr+port) mod 256 for constant-average lookup, mirroring the
// original C server's hash table (see SPEC_FULL.md). Every live Peer is
// reachable from exactly one bucket; Remove must run before the
// connection socket is closed so a concurrent lookup never observes a
// Peer whose socket is already gone.
type Directory struct {
	mu      sync.RWMutex
	buckets [directoryBuckets][]*Peer
}

func NewDirectory() *Directory {
	return &Directory{}
}

func bucketFor(addr frame.Addr) int {
	sum := uint32(addr.IP[0]) + uint32(addr.IP[1]) + uint32(addr.IP[2]) + uint32(addr.IP[3]) + uint32(addr.Port)
	return int(sum % directoryBuckets)
}

func addrEqual(a, b frame.Addr) bool {
	return a.IP == b.IP && a.Port == b.Port
}

// Put registers a Peer under its address. It is an error to register two
// live Peers under the same address; callers are expected to have
// rejected the second connection before reaching here.
func (d *Directory) Put(p *Peer) {
	b := bucketFor(p.addr)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.buckets[b] = append(d.buckets[b], p)
}

// Get resolves addr to its connected Peer, if any.
func (d *Directory) Get(addr frame.Addr) (*Peer, bool) {
	b := bucketFor(addr)
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.buckets[b] {
		if addrEqual(p.addr, addr) {
			return p, true
		}
	}
	return nil, false
}

// Remove unregisters a Peer. Called once, at Handler exit, after
// draining (§4.2).
func (d *Directory) Remove(p *Peer) {
	b := bucketFor(p.addr)
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.buckets[b]
	for i, q := range list {
		if q == p {
			d.buckets[b] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Snapshot returns every currently registered Peer, for broadcast
// operations like shutdown that must reach every live connection without
// holding the directory lock across each one's own work.
func (d *Directory) Snapshot() []*Peer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*Peer
	for _, b := range d.buckets {
		out = append(out, b...)
	}
	return out
}

// Count returns the number of connected peers, for the Metrics Sampler.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, b := range d.buckets {
		n += len(b)
	}
	return n
}
