// Package transport defines the contract between the RPC layer and the
// socket transports, plus the parts every transport shares.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transports
//   - Correlating replies with outstanding requests, independent of the socket type
//   - Turning decoded request packets into response packets on the server side
//
// Key Components:
//
//   - IServerTransport / IClientTransport: Interfaces implemented by the stream
//     transports (package base with the tcp and unix connectors) and the
//     datagram transport (package udp).
//
//   - HandleFunc: Function type for request handling callbacks. It receives and
//     returns encoded plain messages.
//
//   - Correlator: Client core. Assigns strictly increasing packet ids, keeps the
//     pending request table, retransmits on the expiry scheduler and resolves
//     callers with replies, timeouts or packet-behind errors.
//
//   - Dispatcher: Server core. Decrypts, calls the handler, maps errors to
//     error-typed messages and seals the response.
//
//   - Fetch / Operation: Typed layer on top of IClientTransport.Fetch that
//     serializes the request and deserializes the expected response type.
//
// Retries:
//
//	A request is transmitted at most RetryBudget times, one retry interval
//	apart. Stream clients only resend while their connection is up; datagram
//	clients resend unconditionally. When the budget is spent the caller gets a
//	*common.TimeoutError. Replies arriving after that are dropped.
package transport
