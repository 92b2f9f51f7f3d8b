package serializer

import (
	"encoding"
	"fmt"
)

// BinaryPayload is satisfied by pointers to payload types with a fixed
// binary layout (all types in rpc/common)
type BinaryPayload[T any] interface {
	*T
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// NewBinarySerializer creates a serializer using the binary layout of the
// payload type itself. This is the encoding used on the wire.
func NewBinarySerializer[T any, PT BinaryPayload[T]]() ISerializer[T] {
	return binarySerializerImpl[T, PT]{}
}

// binarySerializerImpl implements ISerializer by delegating to
// MarshalBinary and UnmarshalBinary
type binarySerializerImpl[T any, PT BinaryPayload[T]] struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.ISerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl[T, PT]) Serialize(v T) ([]byte, error) {
	return PT(&v).MarshalBinary()
}

func (b binarySerializerImpl[T, PT]) Deserialize(data []byte, v *T) error {
	if v == nil {
		return fmt.Errorf("cannot deserialize into nil %T", v)
	}
	return PT(v).UnmarshalBinary(data)
}

func (b binarySerializerImpl[T, PT]) Name() string {
	return "binary"
}
