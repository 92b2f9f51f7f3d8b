package udp

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/lib/expiry"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"net"
	"sync"
	"time"
)

// clientTransport is the datagram client. Requests are split into fragments
// and written to a connected UDP socket; a reader goroutine reassembles the
// replies and hands them to the correlator.
type clientTransport struct {
	config     common.ClientConfig
	conn       *net.UDPConn
	connMu     sync.Mutex // fragments of one packet are written back to back
	correlator *transport.Correlator
	windows    *codec.Reassembler[uint64]
	windowTTL  *expiry.Scheduler[uint64]
	chunk      int
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewUDPClientTransport creates a new datagram client transport
func NewUDPClientTransport() transport.IClientTransport {
	return &clientTransport{
		stopCh: make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if t.correlator != nil {
		return fmt.Errorf("client already connected, create a new client instead")
	}

	aead, err := codec.NewAEAD(config.Cipher, config.Key)
	if err != nil {
		return err
	}

	raddr, err := net.ResolveUDPAddr("udp", config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %v", config.Endpoint, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", config.Endpoint, err)
	}

	t.config = config
	t.conn = conn
	t.chunk = codec.ChunkSize(config.MaxChunkSize)
	t.windowTTL = expiry.New[uint64]()
	t.windows = codec.NewReassembler[uint64](t.windowTTL, common.DefaultWindowTimeoutMillisecond*time.Millisecond)
	t.windowTTL.Start()

	// datagrams are resent whether or not the peer answered before
	t.correlator = transport.NewCorrelator(config, aead, t.send, func() bool { return true })

	Logger.Infof("Connected to %s using udp transport", raddr)

	t.wg.Add(1)
	go t.readResponses()
	return nil
}

func (t *clientTransport) Fetch(msgType common.MessageType, payload []byte, opts transport.FetchOptions) (codec.Message, error) {
	if t.correlator == nil {
		return codec.Message{}, fmt.Errorf("client is not connected")
	}
	return t.correlator.Fetch(msgType, payload, opts)
}

func (t *clientTransport) Metrics() *common.ClientMetrics {
	if t.correlator == nil {
		return nil
	}
	return t.correlator.Metrics()
}

func (t *clientTransport) Close() error {
	if t.correlator == nil {
		return nil
	}
	select {
	case <-t.stopCh:
		return nil
	default:
	}

	close(t.stopCh)
	t.correlator.Close()
	err := t.conn.Close()
	t.wg.Wait()
	t.windowTTL.Stop()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send splits the packet and writes all fragments. Write errors are only
// logged: a lost datagram is recovered by the retry timer like any other loss.
func (t *clientTransport) send(p codec.Packet) error {
	frags, err := codec.Split(p.PacketID, codec.EncodePacket(p), t.chunk)
	if err != nil {
		return err
	}

	t.connMu.Lock()
	defer t.connMu.Unlock()

	if timeout := t.config.Timeout(); timeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	for _, f := range frags {
		if _, err := t.conn.Write(codec.EncodeFragment(f)); err != nil {
			if errors.Is(err, net.ErrClosed) {
				return &common.FatalError{Op: "write", Err: err}
			}
			Logger.Debugf("Failed to send fragment %d/%d of packet %d: %v", f.SequenceID+1, f.Window, p.PacketID, err)
			return nil
		}
	}
	return nil
}

// readResponses reassembles replies until the client is closed
func (t *clientTransport) readResponses() {
	defer t.wg.Done()

	buf := make([]byte, maxDatagram)
	poll := t.config.PollInterval()

	for {
		select {
		case <-t.stopCh:
			return
		default:
		}

		t.conn.SetReadDeadline(time.Now().Add(poll))
		n, err := t.conn.Read(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// e.g. ECONNREFUSED from an ICMP port unreachable; the retry timer handles it
			Logger.Debugf("Receive error: %v", err)
			continue
		}

		frag, err := codec.DecodeFragment(buf[:n])
		if err != nil {
			Logger.Debugf("Dropping invalid fragment: %v", err)
			continue
		}

		raw, complete, err := t.windows.Add(frag.PacketID, frag)
		if err != nil {
			Logger.Debugf("Dropping fragment: %v", err)
			continue
		}
		if !complete {
			continue
		}

		pkt, err := codec.DecodePacket(raw)
		if err != nil {
			if id, ok := codec.PacketIDOf(err); ok {
				t.correlator.Fail(id, err)
			} else {
				Logger.Warningf("Dropping undecodable reply: %v", err)
			}
			continue
		}
		t.correlator.Deliver(pkt)
	}
}
