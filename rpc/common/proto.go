package common

import (
	"encoding/json"
	"fmt"
)

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType is the discriminator carried in the first four bytes of every
// encoded message. It selects the payload type of the message.
type MessageType uint32

// messageTypeNames maps every known type to its wire name
var messageTypeNames = map[MessageType]string{
	MsgTOk:              "ok",
	MsgTError:           "error",
	MsgTPacketBehind:    "packetBehind",
	MsgTProduct:         "product",
	MsgTGetProduct:      "getProduct",
	MsgTAddProduct:      "addProduct",
	MsgTAddGroup:        "addGroup",
	MsgTAssignGroup:     "assignGroup",
	MsgTSetPrice:        "setPrice",
	MsgTIncludeQuantity: "includeQuantity",
	MsgTExcludeQuantity: "excludeQuantity",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is a known message type. MsgTUnknown is not valid.
func (t MessageType) Valid() bool {
	_, ok := messageTypeNames[t]
	return ok
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for typ, name := range messageTypeNames {
		if name == s {
			*t = typ
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown      MessageType = iota // Never valid on the wire
	MsgTOk                              // Operation succeeded, payload Ok
	MsgTError                           // Operation failed, payload is the error text
	MsgTPacketBehind                    // Packet id not newer than the server high-water, payload PacketBehind
	MsgTProduct                         // Product response

	// Catalog operations

	MsgTGetProduct      // Get a product by id
	MsgTAddProduct      // Create a product
	MsgTAddGroup        // Create a product group
	MsgTAssignGroup     // Move a product into a group
	MsgTSetPrice        // Set the price of a product
	MsgTIncludeQuantity // Add stock
	MsgTExcludeQuantity // Remove stock
)
