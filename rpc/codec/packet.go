package codec

import (
	"encoding/binary"
)

const (
	// Magic is the first byte of every packet
	Magic byte = 0x13

	// PacketHeaderSize covers magic, client id, packet id, message length and header crc
	PacketHeaderSize = 16
	// PacketOverhead is the header plus the trailing message crc
	PacketOverhead = PacketHeaderSize + 2

	// headerCRCSpan is the part of the header covered by the header crc
	headerCRCSpan = 14
)

// Packet is the framed, checksummed unit exchanged over the wire:
//
//	magic:u8 | clientID:u8 | packetID:u64 | messageLength:u32 | headerCRC:u16 | message | messageCRC:u16
//
// Length and checksums are derived on encode and verified on decode.
type Packet struct {
	ClientID uint8
	PacketID uint64
	Message  Message
}

// EncodePacket returns the wire representation of p
func EncodePacket(p Packet) []byte {
	msg := EncodeMessage(p.Message)
	b := make([]byte, PacketOverhead+len(msg))

	b[0] = Magic
	b[1] = p.ClientID
	binary.BigEndian.PutUint64(b[2:10], p.PacketID)
	binary.BigEndian.PutUint32(b[10:14], uint32(len(msg)))
	binary.BigEndian.PutUint16(b[14:16], Checksum(b[:headerCRCSpan]))

	copy(b[PacketHeaderSize:], msg)
	binary.BigEndian.PutUint16(b[PacketHeaderSize+len(msg):], Checksum(msg))
	return b
}

// DecodePacket parses and verifies a packet. Checks run in this order:
// minimum length, magic, declared length, header crc, message crc, message.
// Errors found after the header crc are wrapped in a *PacketError carrying
// the packet id. Bytes after the message crc are ignored.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < PacketOverhead {
		return Packet{}, &LengthError{Expected: PacketOverhead, Got: len(data)}
	}
	if data[0] != Magic {
		return Packet{}, &MagicError{Got: data[0]}
	}

	msgLen := binary.BigEndian.Uint32(data[10:14])
	total := uint64(PacketOverhead) + uint64(msgLen)
	if total > uint64(len(data)) {
		return Packet{}, &LengthError{Expected: int(total), Got: len(data)}
	}

	if err := verifyHeader(data[:PacketHeaderSize]); err != nil {
		return Packet{}, err
	}

	packetID := binary.BigEndian.Uint64(data[2:10])
	end := PacketHeaderSize + int(msgLen)
	msgBytes := data[PacketHeaderSize:end]

	wire := binary.BigEndian.Uint16(data[end : end+2])
	if sum := Checksum(msgBytes); sum != wire {
		return Packet{}, &PacketError{
			PacketID: packetID,
			Err:      &CRCError{Field: CRCFieldMessage, Expected: wire, Got: sum},
		}
	}

	msg, err := DecodeMessage(msgBytes)
	if err != nil {
		return Packet{}, &PacketError{PacketID: packetID, Err: err}
	}

	return Packet{
		ClientID: data[1],
		PacketID: packetID,
		Message:  msg,
	}, nil
}

// verifyHeader checks the header crc of a 16 byte header
func verifyHeader(header []byte) error {
	wire := binary.BigEndian.Uint16(header[headerCRCSpan:PacketHeaderSize])
	if sum := Checksum(header[:headerCRCSpan]); sum != wire {
		return &CRCError{Field: CRCFieldHeader, Expected: wire, Got: sum}
	}
	return nil
}
