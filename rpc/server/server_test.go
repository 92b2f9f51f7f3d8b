package server

import (
	"encoding"
	"errors"
	"github.com/ValentinKolb/dRPC/lib/catalog"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"github.com/ValentinKolb/dRPC/rpc/transport"
	"github.com/ValentinKolb/dRPC/rpc/transport/tcp"
	"io"
	"net/http"
	"strings"
	"testing"
)

func request(t *testing.T, msgType common.MessageType, v encoding.BinaryMarshaler) codec.Message {
	t.Helper()
	payload, err := v.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	return codec.Message{Type: msgType, UserID: 3, Payload: payload}
}

func TestCatalogAdapter(t *testing.T) {
	store := catalog.NewMemoryStore()
	adapter := NewCatalogServerAdapter()

	// product 1 and group 1 exist for the table below
	if _, err := store.AddProduct("tea"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.AddGroup("drinks"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		req      codec.Message
		wantType common.MessageType
		wantErr  bool
	}{
		{"get product", request(t, common.MsgTGetProduct, common.GetProductRequest{ProductID: 1}), common.MsgTProduct, false},
		{"get missing product", request(t, common.MsgTGetProduct, common.GetProductRequest{ProductID: 99}), 0, true},
		{"add product", request(t, common.MsgTAddProduct, common.AddProductRequest{Name: "coffee"}), common.MsgTProduct, false},
		{"add product without name", request(t, common.MsgTAddProduct, common.AddProductRequest{}), 0, true},
		{"add group", request(t, common.MsgTAddGroup, common.AddGroupRequest{Name: "food"}), common.MsgTOk, false},
		{"assign group", request(t, common.MsgTAssignGroup, common.AssignGroupRequest{ProductID: 1, GroupID: 1}), common.MsgTOk, false},
		{"assign missing group", request(t, common.MsgTAssignGroup, common.AssignGroupRequest{ProductID: 1, GroupID: 42}), 0, true},
		{"set price", request(t, common.MsgTSetPrice, common.SetPriceRequest{ProductID: 1, Price: 250}), common.MsgTOk, false},
		{"include quantity", request(t, common.MsgTIncludeQuantity, common.QuantityRequest{ProductID: 1, Quantity: 10}), common.MsgTOk, false},
		{"exclude quantity", request(t, common.MsgTExcludeQuantity, common.QuantityRequest{ProductID: 1, Quantity: 4}), common.MsgTOk, false},
		{"exclude too much", request(t, common.MsgTExcludeQuantity, common.QuantityRequest{ProductID: 1, Quantity: 100}), 0, true},
		{"malformed payload", codec.Message{Type: common.MsgTSetPrice, Payload: []byte{1}}, 0, true},
		{"unsupported type", codec.Message{Type: common.MsgTOk}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := adapter.Handle(tt.req, store)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %s", resp.Type)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resp.Type != tt.wantType || resp.UserID != tt.req.UserID {
				t.Errorf("unexpected response %s (user %d)", resp.Type, resp.UserID)
			}
		})
	}

	p, _ := store.GetProduct(1)
	want := catalog.Product{ID: 1, Name: "tea", Price: 250, Quantity: 6, GroupID: 1}
	if p != want {
		t.Errorf("expected %+v, got %+v", want, p)
	}
}

func TestAdapterErrors(t *testing.T) {
	adapter := NewCatalogServerAdapter()

	_, err := adapter.Handle(request(t, common.MsgTGetProduct, common.GetProductRequest{ProductID: 1}), catalog.NewMemoryStore())
	var cErr *catalog.Error
	if !errors.As(err, &cErr) || cErr.Code != catalog.RetCNotFound {
		t.Errorf("expected NotFound catalog error, got %v", err)
	}

	_, err = adapter.Handle(codec.Message{Type: common.MsgTAddGroup, Payload: []byte{0, 0}}, catalog.NewMemoryStore())
	var sErr *common.SerializationError
	if !errors.As(err, &sErr) {
		t.Errorf("expected SerializationError, got %v", err)
	}

	if _, err := adapter.Handle(codec.Message{Type: common.MsgTGetProduct}, nil); err == nil {
		t.Error("expected error for nil store")
	}
}

func TestServerWithMetricsEndpoint(t *testing.T) {
	config := common.ServerConfig{
		Transport:       common.TransportTCP,
		BindAddress:     "127.0.0.1",
		PollMillisecond: 10,
		MetricsEndpoint: "127.0.0.1:0",
	}
	s := NewRPCServer(config, tcp.NewTCPServerTransport(), catalog.NewMemoryStore())
	if err := s.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer s.Close()

	c := tcp.NewTCPClientTransport()
	if err := c.Connect(common.ClientConfig{Transport: common.TransportTCP, Endpoint: s.Addr().String(), PollMillisecond: 10}); err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	op := transport.Operation[common.AddGroupRequest, common.Ok]{
		RequestType:  common.MsgTAddGroup,
		ResponseType: common.MsgTOk,
		Request:      serializer.NewBinarySerializer[common.AddGroupRequest](),
		Response:     serializer.NewBinarySerializer[common.Ok](),
	}
	ok, err := transport.Fetch(c, op, common.AddGroupRequest{Name: "tools"}, transport.FetchOptions{RetryBudget: 1})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if ok.ID != 1 {
		t.Errorf("expected group id 1, got %d", ok.ID)
	}

	// a failing operation counts as handler error
	_, err = transport.Fetch(c, op, common.AddGroupRequest{}, transport.FetchOptions{RetryBudget: 1})
	var sErr *common.ServerResponseError
	if !errors.As(err, &sErr) || !strings.Contains(sErr.Payload, "InvalidOperation") {
		t.Fatalf("expected ServerResponseError, got %v", err)
	}

	resp, err := http.Get("http://" + s.MetricsAddr().String() + "/metrics")
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`drpc_packets_in_total{transport="tcp"} 2`,
		`drpc_handler_errors_total{transport="tcp"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output misses %q", want)
		}
	}
}
