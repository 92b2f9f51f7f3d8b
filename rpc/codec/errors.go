package codec

import (
	"errors"
	"fmt"
)

// --------------------------------------------------------------------------
// Decode Errors
// --------------------------------------------------------------------------

// DecodeError is implemented by every error that describes malformed input.
// Decode errors are always recoverable: they concern a single packet or
// fragment and never the state of the connection.
type DecodeError interface {
	error
	decodeError()
}

// LengthError reports that fewer bytes are available than required
type LengthError struct {
	Expected int
	Got      int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("length error: expected %d bytes, got %d", e.Expected, e.Got)
}

// MagicError reports a packet that does not start with Magic
type MagicError struct {
	Got byte
}

func (e *MagicError) Error() string {
	return fmt.Sprintf("magic error: expected 0x%02x, got 0x%02x", Magic, e.Got)
}

// CRCField names the checksum that failed
type CRCField uint8

const (
	CRCFieldHeader CRCField = iota
	CRCFieldMessage
)

func (f CRCField) String() string {
	if f == CRCFieldHeader {
		return "header"
	}
	return "message"
}

// CRCError reports a checksum mismatch
type CRCError struct {
	Field    CRCField
	Expected uint16 // Checksum carried on the wire
	Got      uint16 // Checksum computed over the received bytes
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("crc error: %s checksum 0x%04x does not match computed 0x%04x", e.Field, e.Expected, e.Got)
}

// InvalidTypeError reports an unknown message type id
type InvalidTypeError struct {
	ID uint32
}

func (e *InvalidTypeError) Error() string {
	return fmt.Sprintf("invalid message type id %d", e.ID)
}

// FragmentError reports a fragment header that violates sequenceID < window
type FragmentError struct {
	Window     uint8
	SequenceID uint8
}

func (e *FragmentError) Error() string {
	return fmt.Sprintf("fragment error: sequence id %d not valid for window %d", e.SequenceID, e.Window)
}

// PacketError tags a decode error with the id of the packet it occurred in.
// Only errors found after the header was verified carry an id.
type PacketError struct {
	PacketID uint64
	Err      error
}

func (e *PacketError) Error() string {
	return fmt.Sprintf("packet %d: %v", e.PacketID, e.Err)
}

func (e *PacketError) Unwrap() error {
	return e.Err
}

func (*LengthError) decodeError()      {}
func (*MagicError) decodeError()       {}
func (*CRCError) decodeError()         {}
func (*InvalidTypeError) decodeError() {}
func (*FragmentError) decodeError()    {}
func (*PacketError) decodeError()      {}

// IsDecodeError reports whether err (or an error it wraps) is a DecodeError
func IsDecodeError(err error) bool {
	var de DecodeError
	return errors.As(err, &de)
}

// PacketIDOf returns the packet id attached to a decode error, if any
func PacketIDOf(err error) (uint64, bool) {
	var pe *PacketError
	if errors.As(err, &pe) {
		return pe.PacketID, true
	}
	return 0, false
}

// --------------------------------------------------------------------------
// Other codec errors
// --------------------------------------------------------------------------

// CapacityError is returned by Split if the data does not fit into MaxWindow fragments
type CapacityError struct {
	Size int
	Max  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity error: %d bytes exceed the maximum of %d", e.Size, e.Max)
}

// CipherError is returned if a payload cannot be encrypted or decrypted
type CipherError struct {
	Err error
}

func (e *CipherError) Error() string {
	return fmt.Sprintf("cipher error: %v", e.Err)
}

func (e *CipherError) Unwrap() error {
	return e.Err
}

// ErrFragmentDropped is returned by Reassembler.Add for fragments that were
// discarded. Nothing is reported to the sender.
var ErrFragmentDropped = errors.New("fragment dropped")
