package common

import (
	"encoding/binary"
	"fmt"
)

// --------------------------------------------------------------------------
// Payload Types
// --------------------------------------------------------------------------

/*
 All payloads implement encoding.BinaryMarshaler and encoding.BinaryUnmarshaler
 with a fixed big-endian layout. Strings are prefixed with their length as u32.
 UnmarshalBinary rejects trailing or missing bytes, so a payload decoded
 against the wrong type fails instead of silently producing garbage.
*/

// GetProductRequest is the payload of MsgTGetProduct
type GetProductRequest struct {
	ProductID uint32 `json:"product_id"`
}

// AddProductRequest is the payload of MsgTAddProduct
type AddProductRequest struct {
	Name string `json:"name"`
}

// AddGroupRequest is the payload of MsgTAddGroup
type AddGroupRequest struct {
	Name string `json:"name"`
}

// AssignGroupRequest is the payload of MsgTAssignGroup
type AssignGroupRequest struct {
	ProductID uint32 `json:"product_id"`
	GroupID   uint32 `json:"group_id"`
}

// SetPriceRequest is the payload of MsgTSetPrice
type SetPriceRequest struct {
	ProductID uint32 `json:"product_id"`
	Price     uint64 `json:"price"`
}

// QuantityRequest is the payload of MsgTIncludeQuantity and MsgTExcludeQuantity
type QuantityRequest struct {
	ProductID uint32 `json:"product_id"`
	Quantity  uint64 `json:"quantity"`
}

// Product is the payload of MsgTProduct
type Product struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Price    uint64 `json:"price"`
	Quantity uint64 `json:"quantity"`
	GroupID  uint32 `json:"group_id,omitempty"`
}

// Ok is the payload of MsgTOk. ID carries the id of a created entity (the
// group id for AddGroup) and is 0 otherwise.
type Ok struct {
	ID uint32 `json:"id"`
}

// PacketBehind is the payload of MsgTPacketBehind
type PacketBehind struct {
	HighWater uint64 `json:"high_water"`
}

// --------------------------------------------------------------------------
// Binary encoding
// --------------------------------------------------------------------------

func (r GetProductRequest) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, r.ProductID), nil
}

func (r *GetProductRequest) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.ProductID = d.u32()
	return d.finish("GetProductRequest")
}

func (r AddProductRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, r.Name), nil
}

func (r *AddProductRequest) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.Name = d.str()
	return d.finish("AddProductRequest")
}

func (r AddGroupRequest) MarshalBinary() ([]byte, error) {
	return appendString(nil, r.Name), nil
}

func (r *AddGroupRequest) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.Name = d.str()
	return d.finish("AddGroupRequest")
}

func (r AssignGroupRequest) MarshalBinary() ([]byte, error) {
	b := binary.BigEndian.AppendUint32(make([]byte, 0, 8), r.ProductID)
	return binary.BigEndian.AppendUint32(b, r.GroupID), nil
}

func (r *AssignGroupRequest) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.ProductID = d.u32()
	r.GroupID = d.u32()
	return d.finish("AssignGroupRequest")
}

func (r SetPriceRequest) MarshalBinary() ([]byte, error) {
	b := binary.BigEndian.AppendUint32(make([]byte, 0, 12), r.ProductID)
	return binary.BigEndian.AppendUint64(b, r.Price), nil
}

func (r *SetPriceRequest) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.ProductID = d.u32()
	r.Price = d.u64()
	return d.finish("SetPriceRequest")
}

func (r QuantityRequest) MarshalBinary() ([]byte, error) {
	b := binary.BigEndian.AppendUint32(make([]byte, 0, 12), r.ProductID)
	return binary.BigEndian.AppendUint64(b, r.Quantity), nil
}

func (r *QuantityRequest) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	r.ProductID = d.u32()
	r.Quantity = d.u64()
	return d.finish("QuantityRequest")
}

func (p Product) MarshalBinary() ([]byte, error) {
	b := make([]byte, 0, 4+4+len(p.Name)+8+8+4)
	b = binary.BigEndian.AppendUint32(b, p.ID)
	b = appendString(b, p.Name)
	b = binary.BigEndian.AppendUint64(b, p.Price)
	b = binary.BigEndian.AppendUint64(b, p.Quantity)
	return binary.BigEndian.AppendUint32(b, p.GroupID), nil
}

func (p *Product) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	p.ID = d.u32()
	p.Name = d.str()
	p.Price = d.u64()
	p.Quantity = d.u64()
	p.GroupID = d.u32()
	return d.finish("Product")
}

func (o Ok) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint32(nil, o.ID), nil
}

func (o *Ok) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	o.ID = d.u32()
	return d.finish("Ok")
}

func (p PacketBehind) MarshalBinary() ([]byte, error) {
	return binary.BigEndian.AppendUint64(nil, p.HighWater), nil
}

func (p *PacketBehind) UnmarshalBinary(data []byte) error {
	d := decoder{buf: data}
	p.HighWater = d.u64()
	return d.finish("PacketBehind")
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func appendString(b []byte, s string) []byte {
	b = binary.BigEndian.AppendUint32(b, uint32(len(s)))
	return append(b, s...)
}

// decoder reads fields sequentially and remembers the first short read
type decoder struct {
	buf   []byte
	pos   int
	short bool
}

func (d *decoder) take(n int) []byte {
	if d.short || n < 0 || len(d.buf)-d.pos < n {
		d.short = true
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return binary.BigEndian.Uint32(b)
	}
	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return binary.BigEndian.Uint64(b)
	}
	return 0
}

func (d *decoder) str() string {
	n := d.u32()
	if n > uint32(len(d.buf)) {
		d.short = true
		return ""
	}
	return string(d.take(int(n)))
}

func (d *decoder) finish(name string) error {
	if d.short {
		return fmt.Errorf("%s: payload too short (%d bytes)", name, len(d.buf))
	}
	if d.pos != len(d.buf) {
		return fmt.Errorf("%s: %d unexpected trailing bytes", name, len(d.buf)-d.pos)
	}
	return nil
}
