package transport

import (
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"net"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// HandleFunc is a function type that handles incoming requests.
// It is called by a server transport once per fully decoded packet with the
// encoded plain request message and returns the encoded response message.
// A returned error is sent to the client as an error-typed message.
type HandleFunc func(req []byte) (resp []byte, err error)

// IServerTransport is the interface for the server side of a transport
type IServerTransport interface {
	// RegisterHandler registers the handler called for every request.
	// It must be called before Start or Listen
	RegisterHandler(handler HandleFunc)
	// Start binds the socket and serves requests in the background
	Start(config common.ServerConfig) error
	// Listen is Start followed by blocking until Close is called
	Listen(config common.ServerConfig) error
	// Close stops serving, waits for running handlers and releases the socket
	Close() error
	// Addr returns the bound address, nil before Start
	Addr() net.Addr
	// Metrics returns the metrics of this server instance
	Metrics() *common.TransportMetrics
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// FetchOptions control the retry behaviour of a single request
type FetchOptions struct {
	// RetryBudget is the total number of transmissions (at least one)
	RetryBudget int
	// ResendOnReorder resends the request under a fresh packet id when the
	// server reports the packet as behind
	ResendOnReorder bool
}

// DefaultFetchOptions returns the options configured for a client
func DefaultFetchOptions(config common.ClientConfig) FetchOptions {
	return FetchOptions{
		RetryBudget:     config.Budget(),
		ResendOnReorder: config.ResendOnReorder,
	}
}

// IClientTransport is the interface for the client side of a transport
type IClientTransport interface {
	// Connect opens the socket described by config
	Connect(config common.ClientConfig) error
	// Fetch sends a request and blocks until it is resolved. The returned
	// message is decrypted. Failures are returned as the error types in
	// rpc/common and rpc/codec.
	Fetch(msgType common.MessageType, payload []byte, opts FetchOptions) (codec.Message, error)
	// Metrics returns the metrics of this client instance
	Metrics() *common.ClientMetrics
	// Close closes the socket; pending requests fail with common.ErrClientClosed
	Close() error
}
