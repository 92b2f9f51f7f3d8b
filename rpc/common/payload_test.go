package common

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

type payload interface {
	encoding.BinaryMarshaler
}

func TestPayloadBinaryRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   payload
		out  encoding.BinaryUnmarshaler
	}{
		{"GetProduct", GetProductRequest{ProductID: 7}, &GetProductRequest{}},
		{"AddProduct", AddProductRequest{Name: "apple"}, &AddProductRequest{}},
		{"AddGroup", AddGroupRequest{Name: ""}, &AddGroupRequest{}},
		{"AssignGroup", AssignGroupRequest{ProductID: 1, GroupID: 2}, &AssignGroupRequest{}},
		{"SetPrice", SetPriceRequest{ProductID: 3, Price: 1 << 40}, &SetPriceRequest{}},
		{"Quantity", QuantityRequest{ProductID: 4, Quantity: 12}, &QuantityRequest{}},
		{"Product", Product{ID: 5, Name: "pear", Price: 99, Quantity: 3, GroupID: 1}, &Product{}},
		{"Ok", Ok{ID: 9}, &Ok{}},
		{"PacketBehind", PacketBehind{HighWater: 1234}, &PacketBehind{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := tt.in.MarshalBinary()
			if err != nil {
				t.Fatalf("MarshalBinary failed: %v", err)
			}
			if err := tt.out.UnmarshalBinary(data); err != nil {
				t.Fatalf("UnmarshalBinary failed: %v", err)
			}
			got := reflect.ValueOf(tt.out).Elem().Interface()
			if !reflect.DeepEqual(got, tt.in) {
				t.Errorf("round trip mismatch: want %+v, got %+v", tt.in, got)
			}
		})
	}
}

func TestPayloadRejectsWrongShape(t *testing.T) {
	product, _ := Product{ID: 1, Name: "x"}.MarshalBinary()
	ok, _ := Ok{ID: 1}.MarshalBinary()

	tests := []struct {
		name   string
		data   []byte
		target encoding.BinaryUnmarshaler
		substr string
	}{
		{"product as ok", product, &Ok{}, "trailing"},
		{"ok as product", ok, &Product{}, "too short"},
		{"empty quantity", nil, &QuantityRequest{}, "too short"},
		{"huge string length", []byte{0xff, 0xff, 0xff, 0xff}, &AddGroupRequest{}, "too short"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.UnmarshalBinary(tt.data)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("expected error containing %q, got %v", tt.substr, err)
			}
		})
	}
}

func TestMessageTypeJSON(t *testing.T) {
	for typ := range messageTypeNames {
		data, err := json.Marshal(typ)
		if err != nil {
			t.Fatalf("marshal %d: %v", typ, err)
		}
		var got MessageType
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got != typ {
			t.Errorf("expected %s, got %s", typ, got)
		}
	}

	var mt MessageType
	if err := json.Unmarshal([]byte(`"nope"`), &mt); err == nil {
		t.Error("expected error for unknown name")
	}
	if MsgTUnknown.Valid() {
		t.Error("MsgTUnknown must not be valid")
	}
	if !MsgTExcludeQuantity.Valid() {
		t.Error("MsgTExcludeQuantity must be valid")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		conf    ServerConfig
		wantErr bool
	}{
		{"tcp ok", ServerConfig{Transport: "tcp", BindAddress: "127.0.0.1", Port: 0}, false},
		{"udp ok", ServerConfig{Transport: "udp", BindAddress: "127.0.0.1", Port: 9000, LogLevel: "debug"}, false},
		{"bad transport", ServerConfig{Transport: "http"}, true},
		{"unix without path", ServerConfig{Transport: "unix"}, true},
		{"bad port", ServerConfig{Transport: "tcp", Port: 70000}, true},
		{"cipher without key", ServerConfig{Transport: "tcp", Cipher: "aes-gcm"}, true},
		{"bad log level", ServerConfig{Transport: "tcp", LogLevel: "verbose"}, true},
		{"negative max conns", ServerConfig{Transport: "tcp", MaxConns: -1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.conf.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	c := ClientConfig{Transport: "udp"}
	if err := c.Validate(); err == nil {
		t.Error("client config without endpoint should fail")
	}
	if c.Budget() != 1 {
		t.Errorf("budget below one should be raised to one, got %d", c.Budget())
	}
}

func TestServerConfigDefaults(t *testing.T) {
	var c ServerConfig
	if got := c.Workers(); got != DefaultMaxWorkersPerConn {
		t.Errorf("Workers() = %d, want %d", got, DefaultMaxWorkersPerConn)
	}
	if got := c.MessageLimit(); got != DefaultMaxMessageSize {
		t.Errorf("MessageLimit() = %d, want %d", got, DefaultMaxMessageSize)
	}
	if got := c.PollInterval(); got != DefaultPollMillisecond*time.Millisecond {
		t.Errorf("PollInterval() = %s", got)
	}

	c.MaxWorkersPerConn = -3
	if got := c.Workers(); got != DefaultMaxWorkersPerConn {
		t.Errorf("Workers() for a negative value = %d, want %d", got, DefaultMaxWorkersPerConn)
	}
	c.MaxWorkersPerConn = 2
	if got := c.Workers(); got != 2 {
		t.Errorf("Workers() = %d, want 2", got)
	}
}
