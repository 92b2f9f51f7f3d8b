package udp

import (
	"net"
	"sync/atomic"
	"time"
)

// PeerConnectionState is what the server remembers about one client address
type PeerConnectionState struct {
	addr      *net.UDPAddr
	highWater atomic.Uint64 // highest packet id handed to the handler
	lastSeen  atomic.Int64  // unix nanos of the last datagram
	created   time.Time
}

func newPeer(addr *net.UDPAddr) *PeerConnectionState {
	p := &PeerConnectionState{addr: addr, created: time.Now()}
	p.touch()
	return p
}

// touch records activity of the peer
func (p *PeerConnectionState) touch() {
	p.lastSeen.Store(time.Now().UnixNano())
}

// idleFor returns the time since the last datagram
func (p *PeerConnectionState) idleFor() time.Duration {
	return time.Since(time.Unix(0, p.lastSeen.Load()))
}

// admit advances the high-water mark to id. It returns false and the current
// mark if id is not newer than the mark.
func (p *PeerConnectionState) admit(id uint64) (uint64, bool) {
	for {
		hw := p.highWater.Load()
		if id <= hw {
			return hw, false
		}
		if p.highWater.CompareAndSwap(hw, id) {
			return id, true
		}
	}
}

// HighWater returns the highest packet id processed for this peer
func (p *PeerConnectionState) HighWater() uint64 {
	return p.highWater.Load()
}

// windowKey identifies a reassembly window on the server
type windowKey struct {
	peer     string
	packetID uint64
}

// datagram is one encoded fragment waiting for the writer
type datagram struct {
	addr *net.UDPAddr
	data []byte
}
