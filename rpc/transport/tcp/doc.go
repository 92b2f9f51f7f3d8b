// Package tcp implements the TCP socket transport of dRPC. It provides concrete
// implementations of the base package's connector interfaces.
//
// See the base package documentation for the packet handling shared by all
// stream transports.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector.
//     Listens through a net.ListenConfig so SO_REUSEADDR can be set before bind.
package tcp
