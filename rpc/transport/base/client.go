package base

import (
	"bufio"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to endpoint
	Connect(endpoint string, timeout time.Duration) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an established connection
	UpgradeConnection(conn net.Conn, config common.ClientConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the stream client independent of the specific
// transport medium (unix, tcp). One connection carries all requests; replies
// are matched by packet id in the correlator.
type clientTransport struct {
	connector  IClientConnector
	config     common.ClientConfig
	conn       net.Conn
	connMu     sync.Mutex // Protects writes to the connection
	correlator *transport.Correlator
	connected  atomic.Bool
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new stream client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IClientTransport {
	return &clientTransport{
		connector: connector,
		stopCh:    make(chan struct{}),
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

	conn, err := t.connector.Connect(config.Endpoint, config.Timeout())
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %v", config.Endpoint, err)
	}

	// Upgrade the connection with protocol-specific settings
	if err := t.connector.UpgradeConnection(conn, config); err != nil {
		conn.Close()
		return fmt.Errorf("failed to upgrade connection to %s: %v", config.Endpoint, err)
	}

	t.config = config
	t.conn = conn
	t.connected.Store(true)
	t.correlator = transport.NewCorrelator(config, aead, t.send, t.connected.Load)

	Logger.Infof("Connected to %s using %s transport", config.Endpoint, t.connector.GetName())

	// Start the response reader
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
	t.connected.Store(false)
	err := t.conn.Close()
	t.wg.Wait()
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// send writes one packet. Write failures break the client.
func (t *clientTransport) send(p codec.Packet) error {
	if !t.connected.Load() {
		return &common.FatalError{Op: "write", Err: net.ErrClosed}
	}

	t.connMu.Lock()
	defer t.connMu.Unlock()

	// Set write timeout
	if timeout := t.config.Timeout(); timeout > 0 {
		t.conn.SetWriteDeadline(time.Now().Add(timeout))
	}

	if err := codec.WritePacket(t.conn, p); err != nil {
		t.connected.Store(false)
		return &common.FatalError{Op: "write", Err: err}
	}
	return nil
}

// readResponses reads replies in a loop and hands them to the correlator
func (t *clientTransport) readResponses() {
	defer t.wg.Done()

	reader := bufio.NewReader(t.conn)
	poll := t.config.PollInterval()

	for {
		// Check if we should stop
		select {
		case <-t.stopCh:
			return
		default:
		}

		t.conn.SetReadDeadline(time.Now().Add(poll))
		if _, err := reader.Peek(1); err != nil {
			if isTimeout(err) {
				continue
			}
			t.fail(err)
			return
		}

		t.conn.SetReadDeadline(time.Time{})
		pkt, err := codec.ReadPacket(reader, common.DefaultMaxMessageSize)
		if err != nil {
			if !codec.IsDecodeError(err) {
				t.fail(err)
				return
			}
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

// fail marks the connection as lost unless the client is closing
func (t *clientTransport) fail(err error) {
	select {
	case <-t.stopCh:
		return
	default:
	}

	t.connected.Store(false)
	if err == io.EOF {
		err = fmt.Errorf("connection closed by server: %w", err)
	}
	t.correlator.Broken(&common.FatalError{Op: "read", Err: err})
}
