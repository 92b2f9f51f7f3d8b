// Package udp implements the datagram transport of dRPC.
//
// Every packet is split into fragments of at most MaxChunkSize bytes (see
// codec.Split), each sent as its own datagram. The receiving side collects the
// fragments of a packet in a reassembly window keyed by sender and packet id;
// windows that stay incomplete for longer than the window timeout are evicted.
//
// Server
//
// The server keeps a PeerConnectionState per client address holding the
// highest packet id handed to the handler. A packet with an id at or below
// this mark is not processed again; the peer gets a packet-behind reply
// carrying the current mark instead. Peer state is dropped after the peer was
// idle for PeerIdleSecond.
//
// Completed packets are handled concurrently. Replies are funneled through a
// single MPSC queue to one writer goroutine, so the socket has one writer.
//
// Client
//
// The client writes to a connected UDP socket and reassembles replies in a
// reader goroutine. Lost datagrams are recovered by the retry timer of the
// correlator: a request is resent under the same packet id until a reply
// arrives or the retry budget is spent, which yields a TimeoutError.
package udp
