// Package serializer converts typed request and response payloads to the
// payload bytes of a codec.Message and back. The transport itself only moves
// bytes; the serializer pair passed to a typed fetch decides what they mean.
//
// Key Components:
//
//   - ISerializer[T]: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Delegates to the fixed big-endian layout of the
//     payload types in rpc/common. This is the encoding spoken by the server
//     and the only one that is used on the wire.
//
//   - jsonSerializerImpl: JSON encoding, used by the CLI to print results and
//     useful for debugging.
//
//   - gobSerializerImpl: Go's gob encoding. Kept for the size and speed
//     comparison in the benchmarks.
//
// Performance Characteristics:
//
//   - Binary: Smallest payloads and by far the fastest, since every field has a
//     fixed position and strings are only length prefixed.
//
//   - JSON: Moderate sizes, human readable.
//
//   - GOB: Large for single values because every stream carries type
//     information. Not recommended for request payloads.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	s := serializer.NewBinarySerializer[common.Product]()
//	data, err := s.Serialize(product)
//	// ... send data ...
//	var received common.Product
//	err = s.Deserialize(data, &received)
package serializer
