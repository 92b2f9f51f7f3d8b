package udp

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/lib/expiry"
	"github.com/ValentinKolb/dRPC/lib/sockopt"
	"github.com/ValentinKolb/dRPC/lib/util"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/udp")

// maxDatagram is the receive buffer size, large enough for any UDP payload
const maxDatagram = 64 * 1024

// serverTransport is the datagram server. A single goroutine receives
// fragments, every completed packet is handled in its own goroutine, and all
// replies go through one MPSC queue to a single writer goroutine.
type serverTransport struct {
	handler    transport.HandleFunc
	config     common.ServerConfig
	conn       *net.UDPConn
	dispatcher *transport.Dispatcher
	metrics    *common.TransportMetrics
	chunk      int

	peers     *xsync.MapOf[string, *PeerConnectionState]
	peerIdle  *expiry.Scheduler[string]
	windows   *codec.Reassembler[windowKey]
	windowTTL *expiry.Scheduler[windowKey]
	queue     *util.MPSC[datagram]

	stopCh   chan struct{}
	recvWg   sync.WaitGroup
	handlers sync.WaitGroup
	writeWg  sync.WaitGroup
	started  atomic.Bool
	closed   atomic.Bool
}

// NewUDPServerTransport creates a new datagram server transport
func NewUDPServerTransport() transport.IServerTransport {
	return &serverTransport{
		metrics: common.NewTransportMetrics(common.TransportUDP),
		peers:   xsync.NewMapOf[string, *PeerConnectionState](),
		stopCh:  make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (s *serverTransport) RegisterHandler(handler transport.HandleFunc) {
	s.handler = handler
}

func (s *serverTransport) Start(config common.ServerConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if !s.started.CompareAndSwap(false, true) {
		return fmt.Errorf("server already started")
	}
	s.config = config
	s.chunk = codec.ChunkSize(config.MaxChunkSize)

	aead, err := codec.NewAEAD(config.Cipher, config.Key)
	if err != nil {
		return err
	}
	s.dispatcher = transport.NewDispatcher(s.handler, aead, s.metrics)

	lc := net.ListenConfig{Control: sockopt.Control(config.ReuseAddr)}
	pc, err := lc.ListenPacket(context.Background(), "udp", config.Endpoint())
	if err != nil {
		return fmt.Errorf("failed to create UDP socket: %v", err)
	}
	s.conn = pc.(*net.UDPConn)

	s.peerIdle = expiry.New[string]()
	s.windowTTL = expiry.New[windowKey]()
	s.windows = codec.NewReassembler[windowKey](s.windowTTL, config.WindowTimeout())
	s.windows.OnEvict(func(windowKey) { s.metrics.WindowsEvicted.Inc() })
	s.queue = util.NewMPSC[datagram]()

	s.peerIdle.Start()
	s.windowTTL.Start()

	Logger.Infof("Starting udp server on %s (chunk size %d, window timeout %s, peer idle %s)",
		s.conn.LocalAddr(), s.chunk, config.WindowTimeout(), config.PeerIdle())

	s.writeWg.Add(1)
	go s.writeLoop()
	s.recvWg.Add(1)
	go s.receiveLoop()
	return nil
}

func (s *serverTransport) Listen(config common.ServerConfig) error {
	if err := s.Start(config); err != nil {
		return err
	}
	<-s.stopCh
	s.recvWg.Wait()
	return nil
}

func (s *serverTransport) Close() error {
	if !s.closed.CompareAndSwap(false, true) || !s.started.Load() {
		return nil
	}
	close(s.stopCh)

	// no new packets, then let running handlers queue their replies
	s.recvWg.Wait()
	s.handlers.Wait()

	// drain the queue before the socket goes away
	s.queue.Close()
	s.queue.Wait()
	s.writeWg.Wait()
	err := s.conn.Close()

	s.windowTTL.Stop()
	s.peerIdle.Stop()
	s.windows.Clear()

	Logger.Infof("Stopped udp server")
	return err
}

func (s *serverTransport) Addr() net.Addr {
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

func (s *serverTransport) Metrics() *common.TransportMetrics {
	return s.metrics
}

// Peers returns the number of peers with state on the server
func (s *serverTransport) Peers() int {
	return s.peers.Size()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// receiveLoop reads datagrams until the server is closed
func (s *serverTransport) receiveLoop() {
	defer s.recvWg.Done()

	buf := make([]byte, maxDatagram)
	poll := s.config.PollInterval()

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		if err := s.conn.SetReadDeadline(time.Now().Add(poll)); err != nil {
			Logger.Errorf("Failed to set read deadline: %v", err)
			return
		}

		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			Logger.Warningf("Receive error: %v", err)
			continue
		}

		s.handleDatagram(buf[:n], addr)
	}
}

// handleDatagram feeds one fragment into the reassembly table and handles the
// packet once it is complete
func (s *serverTransport) handleDatagram(data []byte, addr *net.UDPAddr) {
	frag, err := codec.DecodeFragment(data)
	if err != nil {
		s.metrics.FragmentsDropped.Inc()
		Logger.Debugf("Dropping invalid fragment from %s: %v", addr, err)
		return
	}

	key := addr.String()
	peer := s.peer(key, addr)

	raw, complete, err := s.windows.Add(windowKey{peer: key, packetID: frag.PacketID}, frag)
	if err != nil {
		s.metrics.FragmentsDropped.Inc()
		Logger.Debugf("Dropping fragment from %s: %v", addr, err)
		return
	}
	if !complete {
		return
	}

	pkt, err := codec.DecodePacket(raw)
	if err != nil {
		s.metrics.DecodeErrors.Inc()
		id, _ := codec.PacketIDOf(err)
		Logger.Warningf("Invalid packet from %s (packet id %d): %v", addr, id, err)
		s.reply(addr, s.dispatcher.ErrorPacket(id, err))
		return
	}
	s.metrics.PacketsIn.Inc()

	if hw, ok := peer.admit(pkt.PacketID); !ok {
		s.metrics.PacketBehind.Inc()
		Logger.Debugf("Packet %d from %s is behind high-water %d", pkt.PacketID, addr, hw)
		s.reply(addr, s.dispatcher.PacketBehind(pkt, hw))
		return
	}

	s.handlers.Add(1)
	go func() {
		defer s.handlers.Done()
		s.reply(addr, s.dispatcher.Process(pkt))
	}()
}

// peer returns the state of the peer at key, creating it on first contact
func (s *serverTransport) peer(key string, addr *net.UDPAddr) *PeerConnectionState {
	peer, loaded := s.peers.LoadOrCompute(key, func() *PeerConnectionState {
		return newPeer(addr)
	})
	if loaded {
		peer.touch()
		return peer
	}

	Logger.Debugf("New peer %s", key)
	s.peerIdle.Schedule(key, s.config.PeerIdle(), s.evictPeer)
	return peer
}

// evictPeer drops the peer state if the peer was idle for the whole idle
// timeout, otherwise the timer is set to the remaining time
func (s *serverTransport) evictPeer(key string) {
	idle := s.config.PeerIdle()

	var remaining time.Duration
	evicted := false
	s.peers.Compute(key, func(peer *PeerConnectionState, loaded bool) (*PeerConnectionState, bool) {
		if !loaded {
			return nil, true
		}
		if since := peer.idleFor(); since < idle {
			remaining = idle - since
			return peer, false
		}
		evicted = true
		return nil, true
	})

	if evicted {
		s.metrics.PeersEvicted.Inc()
		Logger.Debugf("Evicted idle peer %s", key)
		return
	}
	if remaining > 0 {
		s.peerIdle.Schedule(key, remaining, s.evictPeer)
	}
}

// reply splits p into fragments and queues them for the writer
func (s *serverTransport) reply(addr *net.UDPAddr, p codec.Packet) {
	frags, err := codec.Split(p.PacketID, codec.EncodePacket(p), s.chunk)
	if err != nil {
		Logger.Errorf("Response %d to %s does not fit into a window: %v", p.PacketID, addr, err)
		frags, _ = codec.Split(p.PacketID, codec.EncodePacket(s.dispatcher.ErrorPacket(p.PacketID, err)), s.chunk)
	}

	for _, f := range frags {
		s.queue.Push(datagram{addr: addr, data: codec.EncodeFragment(f)})
	}
	s.metrics.PacketsOut.Inc()
}

// writeLoop is the single consumer of the send queue
func (s *serverTransport) writeLoop() {
	defer s.writeWg.Done()
	timeout := s.config.Timeout()

	for d := range s.queue.Recv() {
		if timeout > 0 {
			s.conn.SetWriteDeadline(time.Now().Add(timeout))
		}
		if _, err := s.conn.WriteToUDP(d.data, d.addr); err != nil {
			Logger.Warningf("Failed to send datagram to %s: %v", d.addr, err)
		}
	}
}
