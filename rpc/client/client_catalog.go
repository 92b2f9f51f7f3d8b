package client

import (
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/transport"
)

var (
	opGetProduct      = operation[common.GetProductRequest, common.Product](common.MsgTGetProduct, common.MsgTProduct)
	opAddProduct      = operation[common.AddProductRequest, common.Product](common.MsgTAddProduct, common.MsgTProduct)
	opAddGroup        = operation[common.AddGroupRequest, common.Ok](common.MsgTAddGroup, common.MsgTOk)
	opAssignGroup     = operation[common.AssignGroupRequest, common.Ok](common.MsgTAssignGroup, common.MsgTOk)
	opSetPrice        = operation[common.SetPriceRequest, common.Ok](common.MsgTSetPrice, common.MsgTOk)
	opIncludeQuantity = operation[common.QuantityRequest, common.Ok](common.MsgTIncludeQuantity, common.MsgTOk)
	opExcludeQuantity = operation[common.QuantityRequest, common.Ok](common.MsgTExcludeQuantity, common.MsgTOk)
)

// NewCatalogClient connects the transport and returns a client for all catalog
// operations
func NewCatalogClient(config common.ClientConfig, t transport.IClientTransport) (*CatalogClient, error) {
	// Connect the transport
	if err := t.Connect(config); err != nil {
		return nil, err
	}

	c := CatalogClient{
		rpcClientAdapter{
			config:    config,
			transport: t,
			opts:      transport.DefaultFetchOptions(config),
		},
	}
	return &c, nil
}

// CatalogClient is the typed client of the catalog operations. It is safe for
// concurrent use.
type CatalogClient struct {
	rpcClientAdapter
}

func (c *CatalogClient) GetProduct(productID uint32) (common.Product, error) {
	return invokeRPCRequest(&c.rpcClientAdapter, opGetProduct, common.GetProductRequest{ProductID: productID})
}

func (c *CatalogClient) AddProduct(name string) (common.Product, error) {
	return invokeRPCRequest(&c.rpcClientAdapter, opAddProduct, common.AddProductRequest{Name: name})
}

// AddGroup returns the id of the new group
func (c *CatalogClient) AddGroup(name string) (uint32, error) {
	ok, err := invokeRPCRequest(&c.rpcClientAdapter, opAddGroup, common.AddGroupRequest{Name: name})
	return ok.ID, err
}

func (c *CatalogClient) AssignGroup(productID, groupID uint32) error {
	_, err := invokeRPCRequest(&c.rpcClientAdapter, opAssignGroup, common.AssignGroupRequest{ProductID: productID, GroupID: groupID})
	return err
}

func (c *CatalogClient) SetPrice(productID uint32, price uint64) error {
	_, err := invokeRPCRequest(&c.rpcClientAdapter, opSetPrice, common.SetPriceRequest{ProductID: productID, Price: price})
	return err
}

func (c *CatalogClient) IncludeQuantity(productID uint32, quantity uint64) error {
	_, err := invokeRPCRequest(&c.rpcClientAdapter, opIncludeQuantity, common.QuantityRequest{ProductID: productID, Quantity: quantity})
	return err
}

func (c *CatalogClient) ExcludeQuantity(productID uint32, quantity uint64) error {
	_, err := invokeRPCRequest(&c.rpcClientAdapter, opExcludeQuantity, common.QuantityRequest{ProductID: productID, Quantity: quantity})
	return err
}

// WithOptions returns a copy of the client that sends with opts
func (c *CatalogClient) WithOptions(opts transport.FetchOptions) *CatalogClient {
	cp := *c
	cp.opts = opts
	return &cp
}

// Metrics returns the metrics of the underlying transport
func (c *CatalogClient) Metrics() *common.ClientMetrics {
	return c.transport.Metrics()
}

// Close closes the underlying transport
func (c *CatalogClient) Close() error {
	return c.transport.Close()
}
