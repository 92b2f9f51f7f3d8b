package transport

import (
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
)

// Operation describes one request/response pair: the message types on the
// wire and the serializers for both payloads
type Operation[Req, Resp any] struct {
	RequestType  common.MessageType
	ResponseType common.MessageType
	Request      serializer.ISerializer[Req]
	Response     serializer.ISerializer[Resp]
}

// Fetch serializes req, sends it over t and deserializes the reply into Resp.
// A reply of another type than op.ResponseType is an *common.UnexpectedTypeError,
// a payload that does not match Resp a *common.SerializationError.
func Fetch[Req, Resp any](t IClientTransport, op Operation[Req, Resp], req Req, opts FetchOptions) (Resp, error) {
	var resp Resp

	payload, err := op.Request.Serialize(req)
	if err != nil {
		return resp, &common.SerializationError{Type: op.RequestType, Err: err}
	}

	msg, err := t.Fetch(op.RequestType, payload, opts)
	if err != nil {
		return resp, err
	}

	if msg.Type != op.ResponseType {
		return resp, &common.UnexpectedTypeError{Expected: op.ResponseType, Got: msg.Type}
	}
	if err := op.Response.Deserialize(msg.Payload, &resp); err != nil {
		return resp, &common.SerializationError{Type: msg.Type, Err: err}
	}
	return resp, nil
}
