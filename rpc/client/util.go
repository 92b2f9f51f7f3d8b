package client

import (
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/ValentinKolb/dRPC/rpc/transport/tcp"
	"github.com/ValentinKolb/dRPC/rpc/transport/udp"
	"github.com/ValentinKolb/dRPC/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// NewTransport creates an unconnected client transport for the given name
// (tcp, unix or udp)
func NewTransport(name string) (transport.IClientTransport, error) {
	switch name {
	case common.TransportTCP:
		return tcp.NewTCPClientTransport(), nil
	case common.TransportUnix:
		return unix.NewUnixClientTransport(), nil
	case common.TransportUDP:
		return udp.NewUDPClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid transport %s", name)
	}
}

// rpcClientAdapter stores everything a typed client needs to send requests
type rpcClientAdapter struct {
	config    common.ClientConfig
	transport transport.IClientTransport
	opts      transport.FetchOptions
}

// operation builds the request/response description of one message type pair.
// The wire format is always the binary payload encoding.
func operation[Req, Resp any, PReq serializer.BinaryPayload[Req], PResp serializer.BinaryPayload[Resp]](
	reqType, respType common.MessageType,
) transport.Operation[Req, Resp] {
	return transport.Operation[Req, Resp]{
		RequestType:  reqType,
		ResponseType: respType,
		Request:      serializer.NewBinarySerializer[Req, PReq](),
		Response:     serializer.NewBinarySerializer[Resp, PResp](),
	}
}

// invokeRPCRequest is a helper function used by all typed clients to send requests
func invokeRPCRequest[Req, Resp any](a *rpcClientAdapter, op transport.Operation[Req, Resp], req Req) (Resp, error) {
	resp, err := transport.Fetch(a.transport, op, req, a.opts)
	if err != nil {
		Logger.Debugf("%s failed: %v", op.RequestType, err)
	}
	return resp, err
}
