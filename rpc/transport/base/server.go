package base

import (
	"bufio"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"golang.org/x/net/netutil"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core stream server functionality
type serverTransport struct {
	connector  IServerConnector
	handler    transport.HandleFunc
	config     common.ServerConfig
	listener   net.Listener
	dispatcher *transport.Dispatcher
	metrics    *common.TransportMetrics

	stopCh  chan struct{}
	wg      sync.WaitGroup // accept loop and connection goroutines
	started atomic.Bool
	closed  atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new stream server transport with the
// specified connector
func NewBaseServerTransport(connector IServerConnector) transport.IServerTransport {
	return &serverTransport{
		connector: connector,
		metrics:   common.NewTransportMetrics(connector.GetName()),
		stopCh:    make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.HandleFunc) {
	t.handler = handler
}

func (t *serverTransport) Start(config common.ServerConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if !t.started.CompareAndSwap(false, true) {
		return fmt.Errorf("server already started")
	}
	t.config = config

	aead, err := codec.NewAEAD(config.Cipher, config.Key)
	if err != nil {
		return err
	}
	t.dispatcher = transport.NewDispatcher(t.handler, aead, t.metrics)

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}
	if config.MaxConns > 0 {
		listener = netutil.LimitListener(listener, config.MaxConns)
	}
	t.listener = listener

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), listener.Addr(), config.Workers())

	t.wg.Add(1)
	go t.acceptLoop()
	return nil
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if err := t.Start(config); err != nil {
		return err
	}
	<-t.stopCh
	t.wg.Wait()
	return nil
}

func (t *serverTransport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(t.stopCh)

	var err error
	if t.listener != nil {
		err = t.listener.Close()
	}
	t.wg.Wait()

	Logger.Infof("Stopped %s server", t.connector.GetName())
	return err
}

func (t *serverTransport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

func (t *serverTransport) Metrics() *common.TransportMetrics {
	return t.metrics
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// acceptLoop accepts connections until the listener is closed
func (t *serverTransport) acceptLoop() {
	defer t.wg.Done()

	for {
		conn, err := t.listener.Accept()
		if err != nil {
			if t.stopping() {
				return
			}
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, t.config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			conn.Close()
			continue
		}

		// Handle the connection in a goroutine
		t.wg.Add(1)
		go t.handleConnection(conn)
	}
}

func (t *serverTransport) stopping() bool {
	select {
	case <-t.stopCh:
		return true
	default:
		return false
	}
}

// handleConnection handles incoming packets of one connection. Decode errors
// are answered with an error packet and the connection stays open; EOF and
// socket errors end this connection only.
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.wg.Done()
	defer conn.Close()

	reader := bufio.NewReader(conn)
	poll := t.config.PollInterval()
	timeout := t.config.Timeout()
	limit := t.config.MessageLimit()

	// Create a semaphore to limit concurrent workers for this connection
	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.config.Workers())

	// Create a wait group to wait for all workers to finish
	var workers sync.WaitGroup

	// Create a mutex to protect writes to the connection
	var connMutex sync.Mutex

	write := func(p codec.Packet) {
		connMutex.Lock()
		defer connMutex.Unlock()

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}
		if err := codec.WritePacket(conn, p); err != nil {
			Logger.Errorf("Failed to write response %d: %v", p.PacketID, err)
			return
		}
		t.metrics.PacketsOut.Inc()
	}

	// Function to handle one incoming packet
	handlePacket := func() error {
		// wait for the first byte with a short deadline so Close is observed
		for {
			if err := conn.SetReadDeadline(time.Now().Add(poll)); err != nil {
				return fmt.Errorf("failed to set read deadline: %v", err)
			}
			_, err := reader.Peek(1)
			if err == nil {
				break
			}
			if !isTimeout(err) {
				return err
			}
			if t.stopping() {
				return io.EOF
			}
		}

		// the rest of the packet is read with the regular timeout
		var deadline time.Time
		if timeout > 0 {
			deadline = time.Now().Add(timeout)
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set read deadline: %v", err)
		}

		pkt, err := codec.ReadPacket(reader, limit)
		if err != nil {
			if !codec.IsDecodeError(err) {
				return err
			}
			t.metrics.DecodeErrors.Inc()
			id, _ := codec.PacketIDOf(err)
			Logger.Warningf("Invalid packet from %s (packet id %d): %v", conn.RemoteAddr(), id, err)
			write(t.dispatcher.ErrorPacket(id, err))
			return nil
		}
		t.metrics.PacketsIn.Inc()

		// Acquire a slot in the semaphore (blocks if MaxWorkersPerConn is reached)
		workerSemaphore <- struct{}{}
		workers.Add(1)

		go func() {
			defer func() {
				<-workerSemaphore
				workers.Done()
			}()
			write(t.dispatcher.Process(pkt))
		}()
		return nil
	}

	// Handle packets in a loop
	for {
		err := handlePacket()

		// Case EOF: Connection closed by client (or server shutdown)
		if err == io.EOF {
			Logger.Debugf("Connection %s closed", conn.RemoteAddr())
			break
		}

		// Case error: log and close connection
		if err != nil {
			Logger.Errorf("Error reading from %s: %v", conn.RemoteAddr(), err)
			break
		}
	}

	// Wait for all workers to finish before closing the connection
	workers.Wait()
}

// isTimeout reports whether err is a deadline expiry
func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
