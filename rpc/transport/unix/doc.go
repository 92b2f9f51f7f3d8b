// Package unix implements the Unix domain socket transport of dRPC. It
// provides low overhead communication for processes on the same machine.
//
// This package extends the base transport layer with Unix socket-specific
// connectors while inheriting the packet handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners. An existing socket file at
//     the configured path is removed before binding.
package unix
