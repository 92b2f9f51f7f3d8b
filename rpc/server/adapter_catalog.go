package server

import (
	"encoding"
	"fmt"
	"github.com/ValentinKolb/dRPC/lib/catalog"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
)

// NewCatalogServerAdapter creates the adapter translating catalog messages
// into calls on a catalog.IStore
func NewCatalogServerAdapter() IRPCServerAdapter {
	return &catalogServerAdapterImpl{}
}

type catalogServerAdapterImpl struct{}

func (adapter *catalogServerAdapterImpl) Handle(req codec.Message, store catalog.IStore) (codec.Message, error) {
	// Check for nil store
	if store == nil {
		return codec.Message{}, fmt.Errorf("handler: store is nil")
	}

	// Handle different message types
	switch req.Type {
	case common.MsgTGetProduct:
		var r common.GetProductRequest
		if err := decode(req, &r); err != nil {
			return codec.Message{}, err
		}
		p, err := store.GetProduct(r.ProductID)
		if err != nil {
			return codec.Message{}, err
		}
		return respond(req, common.MsgTProduct, toProduct(p))

	case common.MsgTAddProduct:
		var r common.AddProductRequest
		if err := decode(req, &r); err != nil {
			return codec.Message{}, err
		}
		p, err := store.AddProduct(r.Name)
		if err != nil {
			return codec.Message{}, err
		}
		return respond(req, common.MsgTProduct, toProduct(p))

	case common.MsgTAddGroup:
		var r common.AddGroupRequest
		if err := decode(req, &r); err != nil {
			return codec.Message{}, err
		}
		id, err := store.AddGroup(r.Name)
		if err != nil {
			return codec.Message{}, err
		}
		return respond(req, common.MsgTOk, common.Ok{ID: id})

	case common.MsgTAssignGroup:
		var r common.AssignGroupRequest
		if err := decode(req, &r); err != nil {
			return codec.Message{}, err
		}
		return respondOk(req, store.AssignGroup(r.ProductID, r.GroupID))

	case common.MsgTSetPrice:
		var r common.SetPriceRequest
		if err := decode(req, &r); err != nil {
			return codec.Message{}, err
		}
		return respondOk(req, store.SetPrice(r.ProductID, r.Price))

	case common.MsgTIncludeQuantity:
		var r common.QuantityRequest
		if err := decode(req, &r); err != nil {
			return codec.Message{}, err
		}
		return respondOk(req, store.IncludeQuantity(r.ProductID, r.Quantity))

	case common.MsgTExcludeQuantity:
		var r common.QuantityRequest
		if err := decode(req, &r); err != nil {
			return codec.Message{}, err
		}
		return respondOk(req, store.ExcludeQuantity(r.ProductID, r.Quantity))

	default:
		return codec.Message{}, fmt.Errorf("RPC CatalogAdapter - Unsupported message type: %s", req.Type)
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func decode(req codec.Message, v encoding.BinaryUnmarshaler) error {
	if err := v.UnmarshalBinary(req.Payload); err != nil {
		return &common.SerializationError{Type: req.Type, Err: err}
	}
	return nil
}

func respond(req codec.Message, t common.MessageType, v encoding.BinaryMarshaler) (codec.Message, error) {
	payload, err := v.MarshalBinary()
	if err != nil {
		return codec.Message{}, &common.SerializationError{Type: t, Err: err}
	}
	return codec.Message{Type: t, UserID: req.UserID, Payload: payload}, nil
}

func respondOk(req codec.Message, err error) (codec.Message, error) {
	if err != nil {
		return codec.Message{}, err
	}
	return respond(req, common.MsgTOk, common.Ok{})
}

func toProduct(p catalog.Product) common.Product {
	return common.Product{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Quantity: p.Quantity,
		GroupID:  p.GroupID,
	}
}
