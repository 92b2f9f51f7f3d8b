// Package server implements the RPC server of dRPC. It binds a catalog.IStore
// to any server transport (tcp, unix, udp) through an adapter that decodes
// request messages, calls the store and encodes the response.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for server adapters,
//     with the Handle method that processes a decoded request against a
//     catalog.IStore.
//
//   - NewCatalogServerAdapter: Factory function creating the adapter for all
//     catalog operations. Failed operations (catalog.Error, malformed payloads,
//     unknown message types) are returned as errors and reach the client as
//     Error messages.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and store. If MetricsEndpoint is set, the server
//     exposes the transport metrics, process metrics and pprof over HTTP.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Transport:   common.TransportUDP,
//	  BindAddress: "0.0.0.0",
//	  Port:        8080,
//	  LogLevel:    "info",
//	}
//
//	s := server.NewRPCServer(config, udp.NewUDPServerTransport(), catalog.NewMemoryStore())
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Thread Safety:
//
//	The server handles concurrent requests across connections and peers.
//	Serve and Start must be called only once.
package server
