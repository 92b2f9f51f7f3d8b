// Package common provides the data structures and utilities shared by the
// codec, transport, server and client packages of dRPC.
//
// The package focuses on:
//   - Message type ids and the payload types bound to them
//   - Configuration structures for client and server transports
//   - The transport error taxonomy (timeouts, packet-behind, server errors, fatal errors)
//   - Custom logging integrated with the dragonboat logger package
//   - Server (VictoriaMetrics) and client (go-metrics) instrumentation
//
// Key Components:
//
//   - MessageType: Enumeration of all message types. The zero value MsgTUnknown
//     is never valid on the wire, so a decoder can reject unknown ids.
//
//   - Payloads: GetProductRequest, AddGroupRequest, Product, Ok, ... Every
//     payload implements encoding.BinaryMarshaler/BinaryUnmarshaler with a fixed
//     big-endian layout and carries json tags for the json serializer.
//
//   - ServerConfig / ClientConfig: Transport settings with defaults, Validate()
//     and a String() pretty printer used by the CLI.
//
//   - TransportMetrics / ClientMetrics: Per-instance metric sets.
package common
