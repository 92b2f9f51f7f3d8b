package codec

import (
	"bytes"
	"encoding/binary"
	"io"
)

// bufferedReader is satisfied by *bufio.Reader
type bufferedReader interface {
	io.Reader
	Peek(n int) ([]byte, error)
	Discard(n int) (int, error)
	Buffered() int
}

// ReadPacket reads exactly one packet from a stream. It reads the header,
// verifies magic and header crc, then reads messageLength+2 more bytes and
// decodes them. Bodies declaring more than maxMessage bytes are discarded
// from the stream and reported as a *LengthError tagged with the packet id.
//
// After a header crc error the declared body is discarded as well, as long
// as its length is within maxMessage. If r is a *bufio.Reader, a magic error
// (or a header crc error with an oversized length) skips the buffered bytes
// up to the next magic byte that starts a valid header, so one corrupted
// packet does not misalign the packets after it.
//
// Errors of the underlying reader (io.EOF, timeouts, closed sockets) are
// returned unchanged; every other error is a DecodeError.
func ReadPacket(r io.Reader, maxMessage uint32) (Packet, error) {
	header, err := readHeader(r)
	if err != nil {
		return Packet{}, err
	}

	packetID := binary.BigEndian.Uint64(header[2:10])
	msgLen := binary.BigEndian.Uint32(header[10:14])

	if err := verifyHeader(header); err != nil {
		if msgLen <= maxMessage {
			if _, dErr := io.CopyN(io.Discard, r, int64(msgLen)+2); dErr != nil {
				return Packet{}, dErr
			}
		} else if br, ok := r.(bufferedReader); ok {
			scanToHeader(br)
		}
		return Packet{}, err
	}

	if msgLen > maxMessage {
		if _, err := io.CopyN(io.Discard, r, int64(msgLen)+2); err != nil {
			return Packet{}, err
		}
		return Packet{}, &PacketError{
			PacketID: packetID,
			Err:      &LengthError{Expected: int(maxMessage), Got: int(msgLen)},
		}
	}

	buf := make([]byte, PacketHeaderSize+int(msgLen)+2)
	copy(buf, header)
	if _, err := io.ReadFull(r, buf[PacketHeaderSize:]); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return Packet{}, err
	}

	return DecodePacket(buf)
}

// readHeader reads the next header and checks its magic byte. With a
// buffered reader the header is peeked first, so a bad magic byte only
// consumes the bytes skipped while resyncing.
func readHeader(r io.Reader) ([]byte, error) {
	header := make([]byte, PacketHeaderSize)

	br, ok := r.(bufferedReader)
	if !ok {
		if _, err := io.ReadFull(r, header); err != nil {
			return nil, err
		}
		if header[0] != Magic {
			return nil, &MagicError{Got: header[0]}
		}
		return header, nil
	}

	peeked, err := br.Peek(PacketHeaderSize)
	if err != nil {
		return nil, err
	}
	if peeked[0] != Magic {
		got := peeked[0]
		br.Discard(1)
		scanToHeader(br)
		return nil, &MagicError{Got: got}
	}
	copy(header, peeked)
	br.Discard(PacketHeaderSize)
	return header, nil
}

// scanToHeader discards buffered bytes until the reader is positioned at a
// magic byte followed by a valid header crc. Only bytes already buffered are
// inspected, so it never blocks. A magic byte whose header is not completely
// buffered yet is kept.
func scanToHeader(br bufferedReader) {
	for n := br.Buffered(); n > 0; n = br.Buffered() {
		buf, _ := br.Peek(n)
		i := bytes.IndexByte(buf, Magic)
		if i < 0 {
			br.Discard(n)
			return
		}
		br.Discard(i)

		if br.Buffered() < PacketHeaderSize {
			return
		}
		header, _ := br.Peek(PacketHeaderSize)
		if verifyHeader(header) == nil {
			return
		}
		br.Discard(1)
	}
}

// WritePacket encodes p and writes it with a single Write call
func WritePacket(w io.Writer, p Packet) error {
	_, err := w.Write(EncodePacket(p))
	return err
}
