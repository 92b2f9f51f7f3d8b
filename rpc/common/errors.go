package common

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Transport Errors (resolved into the result of a single request)
// --------------------------------------------------------------------------

// TimeoutError is returned when the retry budget of a request is exhausted
// without a matching reply
type TimeoutError struct {
	PacketID uint64
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("request %d timed out after %d attempts", e.PacketID, e.Attempts)
}

// PacketBehindError is returned when the server reports that the packet id
// is not newer than the last one it processed for this client, and the
// request was not allowed to be resent
type PacketBehindError struct {
	PacketID  uint64
	HighWater uint64 // Server high-water id, 0 if unknown
}

func (e *PacketBehindError) Error() string {
	return fmt.Sprintf("packet %d is behind the server (high-water %d)", e.PacketID, e.HighWater)
}

// ServerResponseError carries the error text of an error-typed reply
type ServerResponseError struct {
	Payload string
}

func (e *ServerResponseError) Error() string {
	return "server error: " + e.Payload
}

// SerializationError is returned if a request could not be serialized or a
// reply does not match the expected response type
type SerializationError struct {
	Type MessageType
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("serialization of %s failed: %v", e.Type, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// UnexpectedTypeError is returned if a reply carries a type the caller did not ask for
type UnexpectedTypeError struct {
	Expected MessageType
	Got      MessageType
}

func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("unexpected response type %s, expected %s", e.Got, e.Expected)
}

// --------------------------------------------------------------------------
// Fatal Errors (terminate a connection or a client instance)
// --------------------------------------------------------------------------

// FatalError wraps a socket level failure. A client that returned a
// FatalError is broken and must be replaced by a new instance.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal transport error during %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// ErrClientClosed is returned for requests that were pending (or started)
// after the client was closed
var ErrClientClosed = errors.New("client closed")

// IsFatal reports whether err marks a broken transport instance
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
