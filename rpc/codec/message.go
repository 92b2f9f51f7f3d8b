package codec

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"github.com/ValentinKolb/dRPC/rpc/common"
)

// MessageHeaderSize is the size of type and user id
const MessageHeaderSize = 8

// PayloadKind tells whether the payload of a Message holds plaintext or ciphertext
type PayloadKind uint8

const (
	PayloadPlain PayloadKind = iota
	PayloadEncrypted
)

func (k PayloadKind) String() string {
	if k == PayloadEncrypted {
		return "encrypted"
	}
	return "plain"
}

// Message is the logical unit carried inside a Packet. Both kinds share the
// same wire layout: type:u32 | userID:u32 | payload.
type Message struct {
	Type    common.MessageType
	UserID  uint32
	Payload []byte
	Kind    PayloadKind
}

// EncodeMessage returns the wire representation of m
func EncodeMessage(m Message) []byte {
	b := make([]byte, MessageHeaderSize+len(m.Payload))
	binary.BigEndian.PutUint32(b[0:4], uint32(m.Type))
	binary.BigEndian.PutUint32(b[4:8], m.UserID)
	copy(b[MessageHeaderSize:], m.Payload)
	return b
}

// DecodeMessage parses a message. The payload aliases data. The returned
// message is PayloadPlain; callers that expect ciphertext use AsEncrypted.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) < MessageHeaderSize {
		return Message{}, &LengthError{Expected: MessageHeaderSize, Got: len(data)}
	}

	id := binary.BigEndian.Uint32(data[0:4])
	typ := common.MessageType(id)
	if !typ.Valid() {
		return Message{}, &InvalidTypeError{ID: id}
	}

	return Message{
		Type:    typ,
		UserID:  binary.BigEndian.Uint32(data[4:8]),
		Payload: data[MessageHeaderSize:],
		Kind:    PayloadPlain,
	}, nil
}

// AsEncrypted marks the payload as ciphertext without touching it
func (m Message) AsEncrypted() Message {
	m.Kind = PayloadEncrypted
	return m
}

// Encrypt seals the payload with aead. The result payload is nonce|ciphertext;
// type and user id are bound as additional data and stay in clear.
func (m Message) Encrypt(aead cipher.AEAD) (Message, error) {
	if m.Kind != PayloadPlain {
		return m, &CipherError{Err: errors.New("payload is already encrypted")}
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(m.Payload)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return m, &CipherError{Err: err}
	}

	out := m
	out.Payload = aead.Seal(nonce, nonce, m.Payload, m.additionalData())
	out.Kind = PayloadEncrypted
	return out, nil
}

// Decrypt opens the payload sealed by Encrypt
func (m Message) Decrypt(aead cipher.AEAD) (Message, error) {
	if m.Kind != PayloadEncrypted {
		return m, &CipherError{Err: errors.New("payload is not encrypted")}
	}

	ns := aead.NonceSize()
	if len(m.Payload) < ns+aead.Overhead() {
		return m, &CipherError{Err: errors.New("ciphertext too short")}
	}

	plain, err := aead.Open(nil, m.Payload[:ns], m.Payload[ns:], m.additionalData())
	if err != nil {
		return m, &CipherError{Err: err}
	}

	out := m
	out.Payload = plain
	out.Kind = PayloadPlain
	return out, nil
}

func (m Message) additionalData() []byte {
	ad := make([]byte, MessageHeaderSize)
	binary.BigEndian.PutUint32(ad[0:4], uint32(m.Type))
	binary.BigEndian.PutUint32(ad[4:8], m.UserID)
	return ad
}
