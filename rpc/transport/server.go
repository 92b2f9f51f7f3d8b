package transport

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"time"
)

// errNoHandler is sent to clients of a server without a registered handler
var errNoHandler = errors.New("no handler registered")

// Dispatcher turns a decoded request packet into the response packet. It is
// shared by all server transports: it decrypts the request, runs the handler,
// maps handler errors to error messages and seals the response.
type Dispatcher struct {
	handler HandleFunc
	aead    cipher.AEAD
	metrics *common.TransportMetrics
}

// NewDispatcher creates a dispatcher. aead may be nil for plain packets.
func NewDispatcher(handler HandleFunc, aead cipher.AEAD, metrics *common.TransportMetrics) *Dispatcher {
	return &Dispatcher{handler: handler, aead: aead, metrics: metrics}
}

// Process runs the handler for p and returns the response packet, which
// always carries the client id and packet id of p
func (d *Dispatcher) Process(p codec.Packet) codec.Packet {
	msg := p.Message
	if d.aead != nil {
		plain, err := msg.AsEncrypted().Decrypt(d.aead)
		if err != nil {
			d.metrics.DecodeErrors.Inc()
			return d.reply(p, errorMessage(msg.UserID, err))
		}
		msg = plain
	}

	if d.handler == nil {
		return d.reply(p, errorMessage(msg.UserID, errNoHandler))
	}

	start := time.Now()
	raw, err := d.handler(codec.EncodeMessage(msg))
	d.metrics.ObserveHandler(start)

	if err != nil {
		d.metrics.HandlerErrors.Inc()
		Logger.Debugf("Handler failed for packet %d (%s): %v", p.PacketID, msg.Type, err)
		return d.reply(p, errorMessage(msg.UserID, err))
	}

	resp, err := codec.DecodeMessage(raw)
	if err != nil {
		d.metrics.HandlerErrors.Inc()
		Logger.Errorf("Handler returned an invalid message for packet %d: %v", p.PacketID, err)
		return d.reply(p, errorMessage(msg.UserID, fmt.Errorf("invalid handler response: %w", err)))
	}
	return d.reply(p, resp)
}

// ErrorPacket builds the response to a packet that could not be decoded.
// packetID is 0 if the failure happened before the packet id was verified.
func (d *Dispatcher) ErrorPacket(packetID uint64, err error) codec.Packet {
	return d.seal(codec.Packet{
		ClientID: 0,
		PacketID: packetID,
		Message:  errorMessage(0, err),
	})
}

// PacketBehind builds the response to a packet whose id is not newer than
// highWater, the last id processed for its sender
func (d *Dispatcher) PacketBehind(p codec.Packet, highWater uint64) codec.Packet {
	payload, _ := common.PacketBehind{HighWater: highWater}.MarshalBinary()
	return d.reply(p, codec.Message{
		Type:    common.MsgTPacketBehind,
		UserID:  p.Message.UserID,
		Payload: payload,
	})
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (d *Dispatcher) reply(req codec.Packet, msg codec.Message) codec.Packet {
	return d.seal(codec.Packet{
		ClientID: req.ClientID,
		PacketID: req.PacketID,
		Message:  msg,
	})
}

// seal encrypts the response payload if a cipher is configured
func (d *Dispatcher) seal(p codec.Packet) codec.Packet {
	if d.aead == nil {
		return p
	}
	sealed, err := p.Message.Encrypt(d.aead)
	if err != nil {
		// the client fails to open the plain payload and resolves with a cipher error
		Logger.Errorf("Failed to encrypt response %d: %v", p.PacketID, err)
		return p
	}
	p.Message = sealed
	return p
}

func errorMessage(userID uint32, err error) codec.Message {
	return codec.Message{
		Type:    common.MsgTError,
		UserID:  userID,
		Payload: []byte(err.Error()),
	}
}
