package server

import (
	"github.com/ValentinKolb/dRPC/lib/catalog"
	"github.com/ValentinKolb/dRPC/rpc/codec"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request and returns a response
	// It takes a decoded plain Message and a store as parameters.
	// A failed operation is returned as error, the transport turns it
	// into an Error message for the client.
	Handle(req codec.Message, store catalog.IStore) (resp codec.Message, err error)
}
