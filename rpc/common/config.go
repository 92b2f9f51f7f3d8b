package common

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultPollMillisecond          = 100
	DefaultMaxWorkersPerConn        = 16
	DefaultMaxMessageSize           = 4 * 1024 * 1024
	DefaultWindowTimeoutMillisecond = 2000
	DefaultPeerIdleSecond           = 60
	DefaultRetryIntervalMillisecond = 500
	DefaultRetryBudget              = 3
)

// Supported transports
const (
	TransportTCP  = "tcp"
	TransportUnix = "unix"
	TransportUDP  = "udp"
)

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

// ServerConfig holds all configuration parameters of a server transport
type ServerConfig struct {
	// Transport is one of tcp, unix, udp
	Transport string
	// BindAddress is the ip to bind (tcp, udp) or the socket path (unix)
	BindAddress string
	// Port is ignored for unix sockets, 0 picks a free port
	Port int
	// MaxConns caps the number of stream connections open at once (0 = unbounded).
	// Further connections wait in the kernel accept queue until one closes.
	MaxConns int

	// TimeoutSecond is the write deadline for responses (0 = none)
	TimeoutSecond int64
	// PollMillisecond is the read deadline used to observe shutdown
	PollMillisecond int64
	// MaxWorkersPerConn bounds concurrent handler invocations per stream connection
	MaxWorkersPerConn int
	// MaxMessageSize bounds the declared message length accepted from a stream
	MaxMessageSize uint32

	// Datagram settings
	MaxChunkSize             int
	WindowTimeoutMillisecond int64
	PeerIdleSecond           int64

	// Optional encryption, Key is hex encoded
	Cipher string
	Key    string

	// ReuseAddr sets SO_REUSEADDR on the listening socket
	ReuseAddr bool

	// MetricsEndpoint is the address of the prometheus endpoint ("" = disabled)
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// Endpoint returns the address the server listens on
func (c *ServerConfig) Endpoint() string {
	if c.Transport == TransportUnix {
		return c.BindAddress
	}
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// Timeout returns TimeoutSecond as duration
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// PollInterval returns the read poll interval, falling back to the default
func (c *ServerConfig) PollInterval() time.Duration {
	if c.PollMillisecond <= 0 {
		return DefaultPollMillisecond * time.Millisecond
	}
	return time.Duration(c.PollMillisecond) * time.Millisecond
}

// WindowTimeout returns the eviction timeout of incomplete fragment windows
func (c *ServerConfig) WindowTimeout() time.Duration {
	if c.WindowTimeoutMillisecond <= 0 {
		return DefaultWindowTimeoutMillisecond * time.Millisecond
	}
	return time.Duration(c.WindowTimeoutMillisecond) * time.Millisecond
}

// PeerIdle returns the idle timeout after which datagram peer state is dropped
func (c *ServerConfig) PeerIdle() time.Duration {
	if c.PeerIdleSecond <= 0 {
		return DefaultPeerIdleSecond * time.Second
	}
	return time.Duration(c.PeerIdleSecond) * time.Second
}

// Workers returns MaxWorkersPerConn, falling back to the default
func (c *ServerConfig) Workers() int {
	if c.MaxWorkersPerConn < 1 {
		return DefaultMaxWorkersPerConn
	}
	return c.MaxWorkersPerConn
}

// MessageLimit returns MaxMessageSize, falling back to the default
func (c *ServerConfig) MessageLimit() uint32 {
	if c.MaxMessageSize == 0 {
		return DefaultMaxMessageSize
	}
	return c.MaxMessageSize
}

// Validate checks the configuration for values the transports cannot work with
func (c *ServerConfig) Validate() error {
	if err := validateTransport(c.Transport); err != nil {
		return err
	}
	if c.Transport == TransportUnix && c.BindAddress == "" {
		return fmt.Errorf("unix transport requires a socket path as bind address")
	}
	if c.Transport != TransportUnix && (c.Port < 0 || c.Port > 65535) {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("max conns must not be negative")
	}
	if c.MaxChunkSize < 0 {
		return fmt.Errorf("max chunk size must not be negative")
	}
	if err := validateCipher(c.Cipher, c.Key); err != nil {
		return err
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("RPC Server")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint())
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Poll Interval", c.PollInterval().String())
	addField("Reuse Address", strconv.FormatBool(c.ReuseAddr))

	if c.Transport == TransportUDP {
		addSection("Datagram")
		addField("Max Chunk Size", fmt.Sprintf("%d bytes", c.MaxChunkSize))
		addField("Window Timeout", c.WindowTimeout().String())
		addField("Peer Idle Timeout", c.PeerIdle().String())
	} else {
		addSection("Stream")
		addField("Max Conns", strconv.Itoa(c.MaxConns))
		addField("Workers Per Conn", strconv.Itoa(c.Workers()))
		addField("Max Message Size", fmt.Sprintf("%d bytes", c.MessageLimit()))
	}

	addSection("Encryption")
	addField("Cipher", cipherName(c.Cipher))

	addSection("Observability")
	addField("Log Level", c.LogLevel)
	addField("Metrics Endpoint", orDisabled(c.MetricsEndpoint))

	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds all configuration parameters of a client transport
type ClientConfig struct {
	// Transport is one of tcp, unix, udp
	Transport string
	// Endpoint is host:port (tcp, udp) or a socket path (unix)
	Endpoint string
	// ClientID is written into every packet header
	ClientID uint8
	// UserID is written into every message header
	UserID uint32

	// TimeoutSecond is the dial and write timeout (0 = none)
	TimeoutSecond int
	// PollMillisecond is the read deadline used by the reader goroutine
	PollMillisecond int64

	// RetryIntervalMillisecond is the time between two transmissions of a request
	RetryIntervalMillisecond int64
	// RetryBudget is the total number of transmissions of a request
	RetryBudget int
	// ResendOnReorder resends a request under a fresh id on a packet-behind reply
	ResendOnReorder bool

	// Datagram settings
	MaxChunkSize int

	// Optional encryption, Key is hex encoded
	Cipher string
	Key    string
}

// Timeout returns TimeoutSecond as duration
func (c *ClientConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// PollInterval returns the read poll interval, falling back to the default
func (c *ClientConfig) PollInterval() time.Duration {
	if c.PollMillisecond <= 0 {
		return DefaultPollMillisecond * time.Millisecond
	}
	return time.Duration(c.PollMillisecond) * time.Millisecond
}

// RetryInterval returns the interval between transmissions, falling back to the default
func (c *ClientConfig) RetryInterval() time.Duration {
	if c.RetryIntervalMillisecond <= 0 {
		return DefaultRetryIntervalMillisecond * time.Millisecond
	}
	return time.Duration(c.RetryIntervalMillisecond) * time.Millisecond
}

// Budget returns RetryBudget, at least one transmission
func (c *ClientConfig) Budget() int {
	if c.RetryBudget < 1 {
		return 1
	}
	return c.RetryBudget
}

// Validate checks the configuration for values the transports cannot work with
func (c *ClientConfig) Validate() error {
	if err := validateTransport(c.Transport); err != nil {
		return err
	}
	if c.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if c.MaxChunkSize < 0 {
		return fmt.Errorf("max chunk size must not be negative")
	}
	return validateCipher(c.Cipher, c.Key)
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Client ID", strconv.Itoa(int(c.ClientID)))
	addField("User ID", strconv.FormatUint(uint64(c.UserID), 10))
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	addSection("Retries")
	addField("Retry Interval", c.RetryInterval().String())
	addField("Retry Budget", strconv.Itoa(c.Budget()))
	addField("Resend On Reorder", strconv.FormatBool(c.ResendOnReorder))

	addSection("Encryption")
	addField("Cipher", cipherName(c.Cipher))

	return sb.String()
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func validateTransport(t string) error {
	switch t {
	case TransportTCP, TransportUnix, TransportUDP:
		return nil
	default:
		return fmt.Errorf("invalid transport %q (expected one of tcp, unix, udp)", t)
	}
}

func validateCipher(cipher, key string) error {
	if cipher == "" {
		return nil
	}
	if key == "" {
		return fmt.Errorf("cipher %s requires a key", cipher)
	}
	return nil
}

func cipherName(c string) string {
	if c == "" {
		return "none (plain packets)"
	}
	return c
}

func orDisabled(s string) string {
	if s == "" {
		return "disabled"
	}
	return s
}
