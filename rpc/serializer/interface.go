package serializer

// ISerializer converts a payload value of type T to the bytes carried in a
// Message and back
type ISerializer[T any] interface {
	// Serialize returns the wire form of v
	Serialize(v T) ([]byte, error)
	// Deserialize decodes b into v.
	// It returns an error if b does not hold a value of type T
	Deserialize(b []byte, v *T) error
	// Name returns the name of the encoding (binary, json, gob)
	Name() string
}

// Factories maps encoding names to constructors for a payload type T
func Factories[T any, PT BinaryPayload[T]]() map[string]func() ISerializer[T] {
	return map[string]func() ISerializer[T]{
		"binary": func() ISerializer[T] { return NewBinarySerializer[T, PT]() },
		"json":   func() ISerializer[T] { return NewJSONSerializer[T]() },
		"gob":    func() ISerializer[T] { return NewGOBSerializer[T]() },
	}
}
