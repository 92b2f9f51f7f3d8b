package codec

import (
	"encoding/binary"
)

const (
	// FragmentHeaderSize covers window, sequence id, packet id and chunk length
	FragmentHeaderSize = 14
	// MaxDatagramSize bounds a single fragment on the wire
	MaxDatagramSize = 1024
	// DefaultMaxChunk is the largest chunk that fits into MaxDatagramSize
	DefaultMaxChunk = MaxDatagramSize - FragmentHeaderSize
	// MaxWindow is the largest number of fragments per packet
	MaxWindow = 255
)

// Fragment is the datagram wire unit:
//
//	window:u8 | sequenceID:u8 | packetID:u64 | chunkLength:u32 | chunk
//
// Window is the total fragment count (1 = unfragmented), SequenceID the
// 0-based position within the window.
type Fragment struct {
	Window     uint8
	SequenceID uint8
	PacketID   uint64
	Chunk      []byte
}

// ChunkSize returns a usable chunk size for the configured value: values
// <= 0 or above DefaultMaxChunk fall back to DefaultMaxChunk
func ChunkSize(configured int) int {
	if configured <= 0 || configured > DefaultMaxChunk {
		return DefaultMaxChunk
	}
	return configured
}

// Split cuts data into fragments of at most maxChunk bytes. An empty buffer
// yields a single empty fragment.
func Split(packetID uint64, data []byte, maxChunk int) ([]Fragment, error) {
	if maxChunk <= 0 {
		maxChunk = DefaultMaxChunk
	}
	if len(data) > MaxWindow*maxChunk {
		return nil, &CapacityError{Size: len(data), Max: MaxWindow * maxChunk}
	}

	window := (len(data) + maxChunk - 1) / maxChunk
	if window == 0 {
		window = 1
	}

	frags := make([]Fragment, window)
	for i := 0; i < window; i++ {
		start := i * maxChunk
		end := min(start+maxChunk, len(data))
		frags[i] = Fragment{
			Window:     uint8(window),
			SequenceID: uint8(i),
			PacketID:   packetID,
			Chunk:      data[start:end],
		}
	}
	return frags, nil
}

// EncodeFragment returns the wire representation of f
func EncodeFragment(f Fragment) []byte {
	b := make([]byte, FragmentHeaderSize+len(f.Chunk))
	b[0] = f.Window
	b[1] = f.SequenceID
	binary.BigEndian.PutUint64(b[2:10], f.PacketID)
	binary.BigEndian.PutUint32(b[10:14], uint32(len(f.Chunk)))
	copy(b[FragmentHeaderSize:], f.Chunk)
	return b
}

// DecodeFragment parses a datagram. The chunk is copied, so data may be reused.
func DecodeFragment(data []byte) (Fragment, error) {
	if len(data) < FragmentHeaderSize {
		return Fragment{}, &LengthError{Expected: FragmentHeaderSize, Got: len(data)}
	}

	chunkLen := binary.BigEndian.Uint32(data[10:14])
	if uint64(chunkLen) > uint64(len(data)-FragmentHeaderSize) {
		return Fragment{}, &LengthError{Expected: FragmentHeaderSize + int(chunkLen), Got: len(data)}
	}

	f := Fragment{
		Window:     data[0],
		SequenceID: data[1],
		PacketID:   binary.BigEndian.Uint64(data[2:10]),
	}
	if f.Window == 0 || f.SequenceID >= f.Window {
		return Fragment{}, &FragmentError{Window: f.Window, SequenceID: f.SequenceID}
	}

	f.Chunk = make([]byte, chunkLen)
	copy(f.Chunk, data[FragmentHeaderSize:])
	return f, nil
}
