// Package rpc provides the request/response layer of dRPC. It carries catalog
// operations as checksummed packets between clients and servers.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system, including
//     message types, payloads, errors, configuration, logging and metrics.
//
//   - codec: The wire format. Message and Packet encoding with CRC-16
//     checks, datagram fragmentation and reassembly, optional AEAD encryption.
//
//   - transport: Client correlation (packet ids, retries, timeouts) and the
//     server dispatcher, with pluggable socket implementations (TCP, Unix
//     sockets, UDP).
//
//   - serializer: Typed payload serialization (Binary, JSON, GOB).
//
//   - client: The typed catalog client.
//
//   - server: The RPC server binding a catalog store to a transport.
package rpc
