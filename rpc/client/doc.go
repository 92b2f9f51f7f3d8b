// Package client implements the typed RPC client of the product catalog.
//
// CatalogClient wraps a connected transport.IClientTransport and offers one
// method per catalog operation. Each method is a request/response pair of
// message types with binary payloads (see transport.Operation), sent with the
// retry budget and reorder policy of the client configuration.
//
// Errors are returned as the transport produced them, so callers can match
// them with errors.As:
//
//   - *common.ServerResponseError: the operation failed on the server, e.g.
//     a product does not exist
//   - *common.TimeoutError: no reply within the retry budget
//   - *common.PacketBehindError: the server already processed a newer packet
//   - *common.FatalError: the connection is lost, create a new client
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Transport:   common.TransportUDP,
//	  Endpoint:    "localhost:8080",
//	  RetryBudget: 3,
//	}
//
//	t, _ := client.NewTransport(config.Transport)
//	c, err := client.NewCatalogClient(config, t)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Close()
//
//	p, _ := c.AddProduct("tea")
//	groupID, _ := c.AddGroup("drinks")
//	_ = c.AssignGroup(p.ID, groupID)
//
// Thread Safety:
//
//	CatalogClient is safe for concurrent use. Concurrent requests share one
//	transport and are matched to their replies by packet id.
package client
