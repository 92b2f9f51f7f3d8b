// Package cmd implements the command-line interface of dRPC. It provides a
// hierarchical command structure for running a catalog server and for talking
// to it as a client.
//
// The package is organized into several subpackages:
//
//   - serve: Starts a catalog server on the tcp, unix or udp transport
//   - catalog: Client commands for catalog operations and a load test (perf)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Every flag can also be set with an environment variable DRPC_<FLAG>
// (e.g. DRPC_RETRY_INTERVAL=200) or in a .env / .env.local file.
//
// See drpc -help for a list of all commands.
package cmd
