// Package codec implements the dRPC wire formats.
//
// The package focuses on:
//   - Message: type:u32 | userID:u32 | payload, optionally with an AEAD sealed payload
//   - Packet: a Message framed with magic byte, client id, packet id, length and
//     two CRC-16 checksums (header, message)
//   - Fragment: the datagram unit a Packet is split into when it does not fit
//     into a single datagram, plus the Reassembler that puts windows back together
//
// All integers are big-endian. Checksums use CRC-16/CCITT-FALSE.
//
// Decoding never panics and never mutates caller state on failure. Every
// problem with the input is returned as a value implementing DecodeError;
// errors that were found after the packet header was verified are wrapped in
// a *PacketError so the receiver can still answer with the right packet id:
//
//	pkt, err := codec.DecodePacket(buf)
//	if err != nil {
//	  id, _ := codec.PacketIDOf(err) // 0 for header-stage errors
//	  ...
//	}
//
// Encryption is a pure transformation of the payload. Encrypt and Decrypt
// switch a Message between PayloadPlain and PayloadEncrypted, the header
// fields stay readable and are authenticated as additional data.
package codec
