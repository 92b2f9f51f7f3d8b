// Package base provides the stream transport (TCP, Unix sockets) of dRPC,
// implementing the packet exchange independent of the specific socket type.
// It serves as a base layer that is extended with protocol-specific connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Framing packets on a byte stream with codec.ReadPacket and codec.WritePacket
//   - Recovering from malformed packets without dropping the connection
//   - Concurrent request processing with a bounded number of workers per connection
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different socket types.
//
//   - clientTransport: Stream client. A single connection carries all requests,
//     a reader goroutine hands replies to the transport.Correlator. A read or
//     write failure breaks the client; callers construct a new one.
//
//   - serverTransport: Accepts connections (optionally capped at MaxConns open connections),
//     reads packets per connection and processes each in a worker goroutine.
//
// Error Handling:
//
//	A packet that fails to decode is answered with an error packet. The packet
//	id is echoed if it was read from a verified header, otherwise it is 0.
//	Reading continues with the next bytes; after a magic or header checksum
//	error the stream is not resynchronized, so a client sending garbage will
//	usually keep receiving error packets until it closes the connection.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized
//	by a mutex, reads happen on a single goroutine per connection.
package base
