package transport

import (
	"crypto/cipher"
	"errors"
	"github.com/ValentinKolb/dRPC/lib/expiry"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("transport/rpc")

// SendFunc transmits one packet. Returning a *common.FatalError marks the
// client as broken; any other error only fails the request being sent.
type SendFunc func(p codec.Packet) error

// result is what a suspended Fetch call is resumed with
type result struct {
	msg codec.Message
	err error
}

// PendingRequest is the correlation entry of one outstanding request
type PendingRequest struct {
	message         codec.Message // as sent, possibly encrypted
	attempts        atomic.Int32
	budget          int
	resendOnReorder bool
	done            chan result
}

// Correlator is the transport independent part of every client. It assigns
// packet ids, keeps the table of pending requests, retransmits requests whose
// retry interval passed and resolves callers with the matching reply.
//
// A request moves SENT -> RESOLVED, SENT -> RETRYING -> SENT or SENT -> TIMED_OUT.
// Every state change removes or replaces the table entry with a
// replace-if-identical update, so a reply racing a timeout resolves the
// caller exactly once.
type Correlator struct {
	config    common.ClientConfig
	aead      cipher.AEAD
	send      SendFunc
	connected func() bool

	nextID  atomic.Uint64
	pending *xsync.MapOf[uint64, *PendingRequest]
	retries *expiry.Scheduler[uint64]
	metrics *common.ClientMetrics

	broken atomic.Pointer[common.FatalError]
	closed atomic.Bool
}

// NewCorrelator creates and starts a correlator. connected is consulted
// before every retransmission; a request is not resent while it returns false.
func NewCorrelator(config common.ClientConfig, aead cipher.AEAD, send SendFunc, connected func() bool) *Correlator {
	c := &Correlator{
		config:    config,
		aead:      aead,
		send:      send,
		connected: connected,
		pending:   xsync.NewMapOf[uint64, *PendingRequest](),
		retries:   expiry.New[uint64](),
		metrics:   common.NewClientMetrics(),
	}
	c.retries.Start()
	return c
}

// --------------------------------------------------------------------------
// Public Methods
// --------------------------------------------------------------------------

// Fetch sends a request and blocks until it is resolved
func (c *Correlator) Fetch(msgType common.MessageType, payload []byte, opts FetchOptions) (codec.Message, error) {
	if c.closed.Load() {
		return codec.Message{}, common.ErrClientClosed
	}
	if fatal := c.broken.Load(); fatal != nil {
		return codec.Message{}, fatal
	}

	msg := codec.Message{Type: msgType, UserID: c.config.UserID, Payload: payload}
	if c.aead != nil {
		sealed, err := msg.Encrypt(c.aead)
		if err != nil {
			return codec.Message{}, err
		}
		msg = sealed
	}

	budget := opts.RetryBudget
	if budget < 1 {
		budget = 1
	}

	req := &PendingRequest{
		message:         msg,
		budget:          budget,
		resendOnReorder: opts.ResendOnReorder,
		done:            make(chan result, 1),
	}

	start := time.Now()
	c.register(req)

	res := <-req.done
	c.metrics.FetchLatency.UpdateSince(start)
	return res.msg, res.err
}

// Deliver resolves the request a reply belongs to. Replies without a pending
// request (late duplicates, replies after a timeout) are logged and dropped.
func (c *Correlator) Deliver(p codec.Packet) {
	req, ok := c.pending.LoadAndDelete(p.PacketID)
	if !ok {
		c.metrics.UnmatchedReplies.Inc(1)
		Logger.Debugf("Dropping reply %s for unknown packet %d", p.Message.Type, p.PacketID)
		return
	}
	c.retries.Cancel(p.PacketID)

	msg := p.Message
	if c.aead != nil {
		plain, err := msg.AsEncrypted().Decrypt(c.aead)
		if err != nil {
			c.resolve(req, result{err: err})
			return
		}
		msg = plain
	}

	switch msg.Type {
	case common.MsgTError:
		c.resolve(req, result{err: &common.ServerResponseError{Payload: string(msg.Payload)}})

	case common.MsgTPacketBehind:
		if req.resendOnReorder {
			c.metrics.ReorderResends.Inc(1)
			Logger.Debugf("Packet %d is behind the server, resending under a fresh id", p.PacketID)
			req.attempts.Store(0)
			c.register(req)
			return
		}
		var behind common.PacketBehind
		if err := behind.UnmarshalBinary(msg.Payload); err != nil {
			// the high-water mark is informational, report it as 0
			Logger.Debugf("Invalid packet behind payload for packet %d: %v", p.PacketID, err)
		}
		c.resolve(req, result{err: &common.PacketBehindError{PacketID: p.PacketID, HighWater: behind.HighWater}})

	default:
		c.resolve(req, result{msg: msg})
	}
}

// Fail resolves the request with id with err. It is used for replies that
// could not be decoded but still carry a packet id.
func (c *Correlator) Fail(id uint64, err error) {
	req, ok := c.pending.LoadAndDelete(id)
	if !ok {
		Logger.Debugf("Dropping undecodable reply for unknown packet %d: %v", id, err)
		return
	}
	c.retries.Cancel(id)
	c.resolve(req, result{err: err})
}

// Broken marks the client as unusable after a socket failure. All pending
// and future requests fail with err.
func (c *Correlator) Broken(err *common.FatalError) {
	if c.broken.CompareAndSwap(nil, err) {
		Logger.Errorf("Client is broken: %v", err)
	}
	c.failAll(c.broken.Load())
}

// IsBroken reports whether Broken was called
func (c *Correlator) IsBroken() bool {
	return c.broken.Load() != nil
}

// Pending returns the number of outstanding requests
func (c *Correlator) Pending() int {
	return c.pending.Size()
}

// Metrics returns the client metrics
func (c *Correlator) Metrics() *common.ClientMetrics {
	return c.metrics
}

// Close stops the retry timers and fails all pending requests with
// common.ErrClientClosed
func (c *Correlator) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.retries.Stop()
	c.failAll(common.ErrClientClosed)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// register assigns the next packet id to req, stores it and transmits it
func (c *Correlator) register(req *PendingRequest) {
	id := c.nextID.Add(1)
	c.pending.Store(id, req)

	if c.closed.Load() {
		c.Fail(id, common.ErrClientClosed)
		return
	}
	req.attempts.Add(1)
	c.retries.Schedule(id, c.config.RetryInterval(), c.retry)
	c.transmit(id, req)
}

// transmit sends req under id
func (c *Correlator) transmit(id uint64, req *PendingRequest) {
	err := c.send(codec.Packet{ClientID: c.config.ClientID, PacketID: id, Message: req.message})
	if err == nil {
		return
	}

	var fatal *common.FatalError
	if errors.As(err, &fatal) {
		c.Broken(fatal)
		return
	}
	c.Fail(id, err)
}

// retry is the scheduler callback for a request whose retry interval passed.
// An attempt is spent on every tick; the packet is only resent while the
// transport reports a connection.
func (c *Correlator) retry(id uint64) {
	req, ok := c.pending.Load(id)
	if !ok {
		return
	}

	attempts := int(req.attempts.Load())
	if attempts < req.budget {
		req.attempts.Add(1)
		c.retries.Schedule(id, c.config.RetryInterval(), c.retry)
		if !c.connected() {
			Logger.Debugf("Not resending packet %d while disconnected (attempt %d/%d)", id, attempts+1, req.budget)
			return
		}
		c.metrics.Retries.Inc(1)
		Logger.Debugf("Resending packet %d (attempt %d/%d)", id, attempts+1, req.budget)
		c.transmit(id, req)
		return
	}

	if !c.remove(id, req) {
		return // resolved concurrently
	}
	c.metrics.Timeouts.Inc(1)
	c.resolve(req, result{err: &common.TimeoutError{PacketID: id, Attempts: attempts}})
}

// remove deletes id from the table if it still maps to req
func (c *Correlator) remove(id uint64, req *PendingRequest) bool {
	removed := false
	c.pending.Compute(id, func(cur *PendingRequest, loaded bool) (*PendingRequest, bool) {
		if loaded && cur == req {
			removed = true
			return nil, true
		}
		return cur, !loaded
	})
	return removed
}

// failAll resolves every pending request with err
func (c *Correlator) failAll(err error) {
	c.pending.Range(func(id uint64, req *PendingRequest) bool {
		if c.remove(id, req) {
			c.retries.Cancel(id)
			c.resolve(req, result{err: err})
		}
		return true
	})
}

// resolve resumes the caller. Callers must have removed req from the table,
// which guarantees a single resolution per request.
func (c *Correlator) resolve(req *PendingRequest, res result) {
	req.done <- res
}
