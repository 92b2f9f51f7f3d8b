package transport

import (
	"errors"
	"github.com/ValentinKolb/dRPC/rpc/codec"
	"github.com/ValentinKolb/dRPC/rpc/common"
	"github.com/ValentinKolb/dRPC/rpc/serializer"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testClientConfig() common.ClientConfig {
	return common.ClientConfig{
		Transport:                common.TransportUDP,
		Endpoint:                 "test",
		ClientID:                 7,
		UserID:                   42,
		RetryIntervalMillisecond: 20,
		RetryBudget:              3,
	}
}

// recorder collects every transmitted packet
type recorder struct {
	mu   sync.Mutex
	sent []codec.Packet
	ch   chan codec.Packet
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan codec.Packet, 64)}
}

func (r *recorder) send(p codec.Packet) error {
	r.mu.Lock()
	r.sent = append(r.sent, p)
	r.mu.Unlock()
	r.ch <- p
	return nil
}

func (r *recorder) packets() []codec.Packet {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]codec.Packet(nil), r.sent...)
}

func (r *recorder) next(t *testing.T) codec.Packet {
	t.Helper()
	select {
	case p := <-r.ch:
		return p
	case <-time.After(time.Second):
		t.Fatal("no packet was sent")
		return codec.Packet{}
	}
}

func always() bool { return true }

// fetchAsync runs Fetch in a goroutine and returns a channel with the result
func fetchAsync(c *Correlator, msgType common.MessageType, payload []byte, opts FetchOptions) <-chan result {
	ch := make(chan result, 1)
	go func() {
		msg, err := c.Fetch(msgType, payload, opts)
		ch <- result{msg: msg, err: err}
	}()
	return ch
}

func await(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not return")
		return result{}
	}
}

func reply(req codec.Packet, msgType common.MessageType, payload []byte) codec.Packet {
	return codec.Packet{
		ClientID: req.ClientID,
		PacketID: req.PacketID,
		Message:  codec.Message{Type: msgType, UserID: req.Message.UserID, Payload: payload},
	}
}

func TestPacketIDsIncrease(t *testing.T) {
	rec := newRecorder()
	c := NewCorrelator(testClientConfig(), nil, rec.send, always)
	defer c.Close()

	for i := uint64(1); i <= 5; i++ {
		res := fetchAsync(c, common.MsgTGetProduct, []byte{0, 0, 0, 1}, FetchOptions{RetryBudget: 1})
		req := rec.next(t)

		if req.PacketID != i {
			t.Fatalf("expected packet id %d, got %d", i, req.PacketID)
		}
		if req.ClientID != 7 || req.Message.UserID != 42 || req.Message.Type != common.MsgTGetProduct {
			t.Fatalf("unexpected request header %+v", req)
		}

		c.Deliver(reply(req, common.MsgTOk, []byte{0, 0, 0, 0}))
		r := await(t, res)
		if r.err != nil || r.msg.Type != common.MsgTOk {
			t.Fatalf("exchange %d failed: %+v", i, r)
		}
	}

	if c.Pending() != 0 {
		t.Errorf("expected empty table, got %d", c.Pending())
	}
}

func TestRetryBudgetExhausted(t *testing.T) {
	rec := newRecorder()
	c := NewCorrelator(testClientConfig(), nil, rec.send, always)
	defer c.Close()

	start := time.Now()
	r := await(t, fetchAsync(c, common.MsgTAddGroup, nil, FetchOptions{RetryBudget: 2}))

	var tErr *common.TimeoutError
	if !errors.As(r.err, &tErr) {
		t.Fatalf("expected TimeoutError, got %v", r.err)
	}
	if tErr.Attempts != 2 || tErr.PacketID != 1 {
		t.Errorf("expected TimeoutError{1, 2}, got %+v", tErr)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("timed out after %s, expected two retry intervals", elapsed)
	}

	sent := rec.packets()
	if len(sent) != 2 {
		t.Fatalf("expected 2 transmissions, got %d", len(sent))
	}
	for _, p := range sent {
		if p.PacketID != 1 {
			t.Errorf("retransmission used packet id %d", p.PacketID)
		}
	}
	if c.Metrics().Retries.Count() != 1 || c.Metrics().Timeouts.Count() != 1 {
		t.Errorf("unexpected metrics: retries=%d timeouts=%d",
			c.Metrics().Retries.Count(), c.Metrics().Timeouts.Count())
	}

	// a reply after the timeout is dropped
	c.Deliver(reply(sent[0], common.MsgTOk, nil))
	if c.Metrics().UnmatchedReplies.Count() != 1 {
		t.Error("late reply was not counted as unmatched")
	}
}

func TestNoResendWhileDisconnected(t *testing.T) {
	rec := newRecorder()
	config := testClientConfig()
	c := NewCorrelator(config, nil, rec.send, func() bool { return false })
	defer c.Close()

	start := time.Now()
	r := await(t, fetchAsync(c, common.MsgTAddGroup, nil, FetchOptions{RetryBudget: 5}))

	// the budget is spent on retry ticks even though nothing is resent
	var tErr *common.TimeoutError
	if !errors.As(r.err, &tErr) || tErr.Attempts != 5 {
		t.Fatalf("expected TimeoutError after 5 attempts, got %v", r.err)
	}
	if elapsed := time.Since(start); elapsed < 4*config.RetryInterval() {
		t.Errorf("timed out after %s, expected five retry intervals", elapsed)
	}
	if n := len(rec.packets()); n != 1 {
		t.Errorf("expected a single transmission, got %d", n)
	}
	if c.Metrics().Retries.Count() != 0 {
		t.Errorf("expected no counted retries, got %d", c.Metrics().Retries.Count())
	}
}

func TestResendAfterReconnect(t *testing.T) {
	rec := newRecorder()
	config := testClientConfig()
	var up atomic.Bool
	c := NewCorrelator(config, nil, rec.send, up.Load)
	defer c.Close()

	res := fetchAsync(c, common.MsgTAddGroup, nil, FetchOptions{RetryBudget: 10})
	first := rec.next(t)

	// skip a few ticks while down, then the next tick resends the same id
	time.Sleep(3 * config.RetryInterval())
	up.Store(true)
	second := rec.next(t)
	if second.PacketID != first.PacketID {
		t.Fatalf("resend changed the packet id: %d -> %d", first.PacketID, second.PacketID)
	}

	c.Deliver(reply(second, common.MsgTOk, nil))
	if r := await(t, res); r.err != nil {
		t.Fatalf("expected success, got %v", r.err)
	}
}

func TestRetryThenReply(t *testing.T) {
	rec := newRecorder()
	c := NewCorrelator(testClientConfig(), nil, rec.send, always)
	defer c.Close()

	res := fetchAsync(c, common.MsgTAddGroup, nil, FetchOptions{RetryBudget: 3})
	first := rec.next(t)
	second := rec.next(t) // first reply "lost"
	if second.PacketID != first.PacketID {
		t.Fatalf("retransmission changed the packet id: %d -> %d", first.PacketID, second.PacketID)
	}

	c.Deliver(reply(second, common.MsgTOk, []byte{0, 0, 0, 9}))
	r := await(t, res)
	if r.err != nil {
		t.Fatalf("expected success, got %v", r.err)
	}

	// duplicate reply to the retransmission never re-resolves
	c.Deliver(reply(first, common.MsgTOk, []byte{0, 0, 0, 9}))
	if c.Metrics().UnmatchedReplies.Count() != 1 {
		t.Error("duplicate reply was not dropped")
	}
}

func TestServerErrorReply(t *testing.T) {
	rec := newRecorder()
	c := NewCorrelator(testClientConfig(), nil, rec.send, always)
	defer c.Close()

	res := fetchAsync(c, common.MsgTSetPrice, nil, FetchOptions{RetryBudget: 1})
	c.Deliver(reply(rec.next(t), common.MsgTError, []byte("product 3 not found")))

	var sErr *common.ServerResponseError
	if r := await(t, res); !errors.As(r.err, &sErr) || sErr.Payload != "product 3 not found" {
		t.Fatalf("expected ServerResponseError, got %v", r.err)
	}
}

func TestPacketBehind(t *testing.T) {
	behind, _ := common.PacketBehind{HighWater: 100}.MarshalBinary()

	t.Run("resolve", func(t *testing.T) {
		rec := newRecorder()
		c := NewCorrelator(testClientConfig(), nil, rec.send, always)
		defer c.Close()

		res := fetchAsync(c, common.MsgTSetPrice, nil, FetchOptions{RetryBudget: 1})
		c.Deliver(reply(rec.next(t), common.MsgTPacketBehind, behind))

		var pErr *common.PacketBehindError
		r := await(t, res)
		if !errors.As(r.err, &pErr) || pErr.PacketID != 1 || pErr.HighWater != 100 {
			t.Fatalf("expected PacketBehindError{1, 100}, got %v", r.err)
		}
	})

	t.Run("malformed high-water", func(t *testing.T) {
		rec := newRecorder()
		c := NewCorrelator(testClientConfig(), nil, rec.send, always)
		defer c.Close()

		res := fetchAsync(c, common.MsgTSetPrice, nil, FetchOptions{RetryBudget: 1})
		c.Deliver(reply(rec.next(t), common.MsgTPacketBehind, []byte{1, 2, 3}))

		var pErr *common.PacketBehindError
		r := await(t, res)
		if !errors.As(r.err, &pErr) || pErr.PacketID != 1 || pErr.HighWater != 0 {
			t.Fatalf("expected PacketBehindError{1, 0}, got %v", r.err)
		}
	})

	t.Run("resend", func(t *testing.T) {
		rec := newRecorder()
		c := NewCorrelator(testClientConfig(), nil, rec.send, always)
		defer c.Close()

		res := fetchAsync(c, common.MsgTSetPrice, []byte("payload"), FetchOptions{RetryBudget: 1, ResendOnReorder: true})
		first := rec.next(t)
		c.Deliver(reply(first, common.MsgTPacketBehind, behind))

		second := rec.next(t)
		if second.PacketID <= first.PacketID {
			t.Fatalf("resend must use a fresh id, got %d after %d", second.PacketID, first.PacketID)
		}
		if string(second.Message.Payload) != "payload" || second.Message.Type != common.MsgTSetPrice {
			t.Fatalf("resend changed the message: %+v", second.Message)
		}

		// the old id is no longer pending
		c.Deliver(reply(first, common.MsgTOk, nil))
		c.Deliver(reply(second, common.MsgTOk, []byte{0, 0, 0, 0}))

		r := await(t, res)
		if r.err != nil || r.msg.Type != common.MsgTOk {
			t.Fatalf("expected success after resend, got %+v", r)
		}
		if c.Metrics().ReorderResends.Count() != 1 {
			t.Error("reorder resend was not counted")
		}
	})
}

func TestFailWithDecodeError(t *testing.T) {
	rec := newRecorder()
	c := NewCorrelator(testClientConfig(), nil, rec.send, always)
	defer c.Close()

	res := fetchAsync(c, common.MsgTSetPrice, nil, FetchOptions{RetryBudget: 1})
	req := rec.next(t)

	decodeErr := &codec.PacketError{PacketID: req.PacketID, Err: &codec.CRCError{Field: codec.CRCFieldMessage}}
	c.Fail(req.PacketID, decodeErr)

	var crcErr *codec.CRCError
	if r := await(t, res); !errors.As(r.err, &crcErr) {
		t.Fatalf("expected CRCError, got %v", r.err)
	}
}

func TestBrokenClient(t *testing.T) {
	sendErr := &common.FatalError{Op: "write", Err: errors.New("broken pipe")}
	c := NewCorrelator(testClientConfig(), nil, func(codec.Packet) error { return sendErr }, always)
	defer c.Close()

	r := await(t, fetchAsync(c, common.MsgTSetPrice, nil, FetchOptions{RetryBudget: 3}))
	if !common.IsFatal(r.err) {
		t.Fatalf("expected FatalError, got %v", r.err)
	}
	if !c.IsBroken() {
		t.Fatal("client not marked broken")
	}

	// new requests fail without being sent
	if _, err := c.Fetch(common.MsgTSetPrice, nil, FetchOptions{}); !common.IsFatal(err) {
		t.Errorf("expected FatalError for new requests, got %v", err)
	}
}

func TestNonFatalSendError(t *testing.T) {
	sendErr := &codec.CapacityError{Size: 10, Max: 5}
	c := NewCorrelator(testClientConfig(), nil, func(codec.Packet) error { return sendErr }, always)
	defer c.Close()

	r := await(t, fetchAsync(c, common.MsgTSetPrice, nil, FetchOptions{RetryBudget: 3}))
	var cErr *codec.CapacityError
	if !errors.As(r.err, &cErr) {
		t.Fatalf("expected CapacityError, got %v", r.err)
	}
	if c.IsBroken() {
		t.Error("non fatal send error broke the client")
	}
}

func TestCloseFailsPending(t *testing.T) {
	rec := newRecorder()
	config := testClientConfig()
	config.RetryIntervalMillisecond = 10000
	c := NewCorrelator(config, nil, rec.send, always)

	res := fetchAsync(c, common.MsgTSetPrice, nil, FetchOptions{RetryBudget: 1})
	rec.next(t)
	c.Close()

	if r := await(t, res); !errors.Is(r.err, common.ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", r.err)
	}
	if _, err := c.Fetch(common.MsgTSetPrice, nil, FetchOptions{}); !errors.Is(err, common.ErrClientClosed) {
		t.Errorf("expected ErrClientClosed after Close, got %v", err)
	}
}

func TestConcurrentFetches(t *testing.T) {
	var c *Correlator
	// echo server answering in the background
	send := func(p codec.Packet) error {
		go c.Deliver(reply(p, common.MsgTOk, p.Message.Payload))
		return nil
	}
	c = NewCorrelator(testClientConfig(), nil, send, always)
	defer c.Close()

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := []byte{byte(i)}
			msg, err := c.Fetch(common.MsgTGetProduct, payload, FetchOptions{RetryBudget: 3})
			if err != nil {
				errs <- err
				return
			}
			if len(msg.Payload) != 1 || msg.Payload[0] != byte(i) {
				errs <- errors.New("reply delivered to the wrong caller")
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

// TestCorrelatorWithDispatcher runs a full exchange, including encryption,
// through a correlator wired directly to a dispatcher
func TestCorrelatorWithDispatcher(t *testing.T) {
	aead, err := codec.NewAEAD("chacha20poly1305", strings.Repeat("ab", 32))
	if err != nil {
		t.Fatal(err)
	}

	handler := func(req []byte) ([]byte, error) {
		msg, err := codec.DecodeMessage(req)
		if err != nil {
			return nil, err
		}
		var in common.AddGroupRequest
		if err := in.UnmarshalBinary(msg.Payload); err != nil {
			return nil, err
		}
		if in.Name == "" {
			return nil, errors.New("empty name")
		}
		payload, _ := common.Ok{ID: uint32(len(in.Name))}.MarshalBinary()
		return codec.EncodeMessage(codec.Message{Type: common.MsgTOk, UserID: msg.UserID, Payload: payload}), nil
	}

	metrics := common.NewTransportMetrics("test")
	d := NewDispatcher(handler, aead, metrics)

	var c *Correlator
	send := func(p codec.Packet) error {
		// the request must travel encrypted
		if strings.Contains(string(p.Message.Payload), "drinks") {
			t.Error("request payload is not encrypted")
		}
		// packets pass through the wire format in both directions
		req, err := codec.DecodePacket(codec.EncodePacket(p))
		if err != nil {
			return err
		}
		resp, err := codec.DecodePacket(codec.EncodePacket(d.Process(req)))
		if err != nil {
			return err
		}
		go c.Deliver(resp)
		return nil
	}
	c = NewCorrelator(testClientConfig(), aead, send, always)
	defer c.Close()

	op := Operation[common.AddGroupRequest, common.Ok]{
		RequestType:  common.MsgTAddGroup,
		ResponseType: common.MsgTOk,
		Request:      serializer.NewBinarySerializer[common.AddGroupRequest](),
		Response:     serializer.NewBinarySerializer[common.Ok](),
	}

	ok, err := Fetch[common.AddGroupRequest, common.Ok](c2t{c}, op, common.AddGroupRequest{Name: "drinks"}, FetchOptions{RetryBudget: 1})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if ok.ID != 6 {
		t.Errorf("expected id 6, got %d", ok.ID)
	}

	_, err = Fetch[common.AddGroupRequest, common.Ok](c2t{c}, op, common.AddGroupRequest{}, FetchOptions{RetryBudget: 1})
	var sErr *common.ServerResponseError
	if !errors.As(err, &sErr) || sErr.Payload != "empty name" {
		t.Errorf("expected ServerResponseError, got %v", err)
	}
	if metrics.HandlerErrors.Get() != 1 {
		t.Errorf("expected one handler error, got %d", metrics.HandlerErrors.Get())
	}

	// a response of the wrong shape is a serialization error
	wrong := Operation[common.AddGroupRequest, common.Product]{
		RequestType:  common.MsgTAddGroup,
		ResponseType: common.MsgTOk,
		Request:      op.Request,
		Response:     serializer.NewBinarySerializer[common.Product](),
	}
	_, err = Fetch[common.AddGroupRequest, common.Product](c2t{c}, wrong, common.AddGroupRequest{Name: "x"}, FetchOptions{RetryBudget: 1})
	var serErr *common.SerializationError
	if !errors.As(err, &serErr) {
		t.Errorf("expected SerializationError, got %v", err)
	}

	wrong.ResponseType = common.MsgTProduct
	_, err = Fetch[common.AddGroupRequest, common.Product](c2t{c}, wrong, common.AddGroupRequest{Name: "x"}, FetchOptions{RetryBudget: 1})
	var typeErr *common.UnexpectedTypeError
	if !errors.As(err, &typeErr) || typeErr.Got != common.MsgTOk {
		t.Errorf("expected UnexpectedTypeError, got %v", err)
	}
}

func TestDispatcherErrors(t *testing.T) {
	metrics := common.NewTransportMetrics("test")
	req := codec.Packet{ClientID: 3, PacketID: 11, Message: codec.Message{Type: common.MsgTGetProduct, UserID: 5}}

	// no handler
	resp := NewDispatcher(nil, nil, metrics).Process(req)
	if resp.Message.Type != common.MsgTError || resp.PacketID != 11 || resp.ClientID != 3 {
		t.Errorf("unexpected response without handler: %+v", resp)
	}

	// handler returns garbage
	garbage := func([]byte) ([]byte, error) { return []byte{1}, nil }
	resp = NewDispatcher(garbage, nil, metrics).Process(req)
	if resp.Message.Type != common.MsgTError || !strings.Contains(string(resp.Message.Payload), "invalid handler response") {
		t.Errorf("unexpected response for invalid handler output: %+v", resp)
	}

	// decode error packets use client id 0
	d := NewDispatcher(nil, nil, metrics)
	resp = d.ErrorPacket(9, &codec.MagicError{Got: 1})
	if resp.ClientID != 0 || resp.PacketID != 9 || resp.Message.Type != common.MsgTError {
		t.Errorf("unexpected error packet: %+v", resp)
	}

	// packet behind carries the high-water id
	resp = d.PacketBehind(req, 20)
	var behind common.PacketBehind
	if err := behind.UnmarshalBinary(resp.Message.Payload); err != nil || behind.HighWater != 20 {
		t.Errorf("unexpected packet behind payload: %v %+v", err, behind)
	}

	// undecryptable requests are answered with an error
	aead, _ := codec.NewAEAD("aes-gcm", strings.Repeat("01", 16))
	resp = NewDispatcher(garbage, aead, metrics).Process(req)
	opened, err := resp.Message.AsEncrypted().Decrypt(aead)
	if err != nil || opened.Type != common.MsgTError {
		t.Errorf("expected sealed error reply, got %+v (%v)", opened, err)
	}
}

// c2t adapts a bare correlator to IClientTransport
type c2t struct {
	*Correlator
}

func (c2t) Connect(common.ClientConfig) error { return nil }
func (c c2t) Close() error                    { c.Correlator.Close(); return nil }
