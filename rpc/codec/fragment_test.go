package codec

import (
	"bytes"
	"errors"
	"github.com/ValentinKolb/dRPC/lib/expiry"
	"math/rand"
	"testing"
	"time"
)

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.New(rand.NewSource(int64(n))).Read(b)
	return b
}

func newTestReassembler[K comparable](timeout time.Duration) (*Reassembler[K], *expiry.Scheduler[K]) {
	s := expiry.New[K](expiry.WithInterval(time.Millisecond))
	return NewReassembler[K](s, timeout), s
}

func TestSplitWindowSizes(t *testing.T) {
	tests := []struct {
		size     int
		maxChunk int
		window   int
	}{
		{0, 10, 1},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{2048, 1010, 3},
		{255 * 4, 4, 255},
	}

	for _, tt := range tests {
		frags, err := Split(1, randomBytes(tt.size), tt.maxChunk)
		if err != nil {
			t.Fatalf("Split(%d, %d) failed: %v", tt.size, tt.maxChunk, err)
		}
		if len(frags) != tt.window {
			t.Errorf("Split(%d, %d): expected %d fragments, got %d", tt.size, tt.maxChunk, tt.window, len(frags))
		}
		for i, f := range frags {
			if int(f.Window) != tt.window || int(f.SequenceID) != i || f.PacketID != 1 {
				t.Errorf("fragment %d has header %d/%d/%d", i, f.Window, f.SequenceID, f.PacketID)
			}
			if len(f.Chunk) > tt.maxChunk {
				t.Errorf("fragment %d has %d bytes, max %d", i, len(f.Chunk), tt.maxChunk)
			}
		}
	}
}

func TestSplitCapacity(t *testing.T) {
	_, err := Split(1, make([]byte, 255*4+1), 4)
	var cErr *CapacityError
	if !errors.As(err, &cErr) || cErr.Max != 1020 {
		t.Fatalf("expected CapacityError, got %v", err)
	}
}

func TestFragmentCodec(t *testing.T) {
	f := Fragment{Window: 3, SequenceID: 2, PacketID: 77, Chunk: []byte("chunk")}
	raw := EncodeFragment(f)
	if len(raw) != FragmentHeaderSize+5 {
		t.Fatalf("unexpected encoded size %d", len(raw))
	}

	got, err := DecodeFragment(raw)
	if err != nil {
		t.Fatalf("DecodeFragment failed: %v", err)
	}
	raw[FragmentHeaderSize] = 'X' // the decoded chunk must not alias the input
	if got.Window != 3 || got.SequenceID != 2 || got.PacketID != 77 || string(got.Chunk) != "chunk" {
		t.Errorf("unexpected fragment %+v", got)
	}

	tests := []struct {
		name string
		data []byte
		want interface{}
	}{
		{"short", raw[:13], &LengthError{}},
		{"chunk overrun", EncodeFragment(f)[:FragmentHeaderSize+2], &LengthError{}},
		{"window zero", EncodeFragment(Fragment{Window: 0}), &FragmentError{}},
		{"sequence out of range", EncodeFragment(Fragment{Window: 2, SequenceID: 2}), &FragmentError{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFragment(tt.data)
			switch tt.want.(type) {
			case *LengthError:
				var e *LengthError
				if !errors.As(err, &e) {
					t.Errorf("expected LengthError, got %v", err)
				}
			case *FragmentError:
				var e *FragmentError
				if !errors.As(err, &e) {
					t.Errorf("expected FragmentError, got %v", err)
				}
			}
		})
	}
}

// TestReassembleOutOfOrder covers a 2048 byte packet split with maxChunk 1010
// and delivered in the order [1, 0, 2]
func TestReassembleOutOfOrder(t *testing.T) {
	r, _ := newTestReassembler[uint64](time.Minute)

	data := randomBytes(2048)
	frags, err := Split(5, data, 1010)
	if err != nil {
		t.Fatal(err)
	}
	if len(frags) != 3 {
		t.Fatalf("expected window 3, got %d", len(frags))
	}

	for i, idx := range []int{1, 0, 2} {
		raw := EncodeFragment(frags[idx])
		f, err := DecodeFragment(raw)
		if err != nil {
			t.Fatal(err)
		}

		out, complete, err := r.Add(f.PacketID, f)
		if err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if i < 2 {
			if complete {
				t.Fatalf("window completed after %d fragments", i+1)
			}
			continue
		}
		if !complete {
			t.Fatal("window not complete after all fragments")
		}
		if !bytes.Equal(out, data) {
			t.Fatal("reassembled bytes differ from the original")
		}
	}

	if r.Len() != 0 {
		t.Errorf("completed window still in table (%d)", r.Len())
	}
}

func TestReassembleAnyOrder(t *testing.T) {
	data := randomBytes(5000)
	frags, _ := Split(1, data, 333)
	rng := rand.New(rand.NewSource(1))

	for round := 0; round < 20; round++ {
		r, _ := newTestReassembler[uint64](time.Minute)
		order := rng.Perm(len(frags))

		var out []byte
		for i, idx := range order {
			got, complete, err := r.Add(1, frags[idx])
			if err != nil {
				t.Fatal(err)
			}
			if complete != (i == len(order)-1) {
				t.Fatalf("round %d: complete=%v after %d of %d", round, complete, i+1, len(order))
			}
			out = got
		}
		if !bytes.Equal(out, data) {
			t.Fatalf("round %d: reassembled bytes differ", round)
		}
	}
}

func TestReassembleDropsAndDuplicates(t *testing.T) {
	r, _ := newTestReassembler[string](time.Minute)

	frags, _ := Split(9, randomBytes(30), 10)

	if _, _, err := r.Add("k", frags[0]); err != nil {
		t.Fatal(err)
	}

	// duplicate is ignored
	if _, complete, err := r.Add("k", frags[0]); err != nil || complete {
		t.Fatalf("duplicate changed state: %v %v", complete, err)
	}

	// window mismatch is dropped
	bad := frags[1]
	bad.Window = 4
	if _, _, err := r.Add("k", bad); !errors.Is(err, ErrFragmentDropped) {
		t.Fatalf("expected ErrFragmentDropped, got %v", err)
	}

	// out of range sequence id is dropped
	bad = frags[1]
	bad.SequenceID = 3
	if _, _, err := r.Add("k", bad); !errors.Is(err, ErrFragmentDropped) {
		t.Fatalf("expected ErrFragmentDropped, got %v", err)
	}

	// the window still completes with the right fragments
	r.Add("k", frags[1])
	_, complete, err := r.Add("k", frags[2])
	if err != nil || !complete {
		t.Fatalf("window did not complete: %v %v", complete, err)
	}
}

func TestPartialWindowIsEvicted(t *testing.T) {
	r, s := newTestReassembler[uint64](20 * time.Millisecond)
	s.Start()
	defer s.Stop()

	evicted := make(chan uint64, 1)
	r.OnEvict(func(k uint64) { evicted <- k })

	frags, _ := Split(3, randomBytes(40), 10)
	for _, f := range frags[:len(frags)-1] {
		if _, complete, _ := r.Add(3, f); complete {
			t.Fatal("partial window completed")
		}
	}
	if r.Len() != 1 {
		t.Fatalf("expected one window in flight, got %d", r.Len())
	}

	select {
	case k := <-evicted:
		if k != 3 {
			t.Errorf("evicted wrong key %d", k)
		}
	case <-time.After(time.Second):
		t.Fatal("partial window was not evicted")
	}
	if r.Len() != 0 {
		t.Errorf("expected empty table after eviction, got %d", r.Len())
	}

	// the last fragment alone now starts a new window and does not complete
	if _, complete, _ := r.Add(3, frags[len(frags)-1]); complete {
		t.Error("fragment after eviction completed a window")
	}
}

func TestCompletedWindowIsNotEvicted(t *testing.T) {
	r, s := newTestReassembler[uint64](10 * time.Millisecond)
	s.Start()
	defer s.Stop()

	evicted := make(chan uint64, 1)
	r.OnEvict(func(k uint64) { evicted <- k })

	frags, _ := Split(4, randomBytes(20), 10)
	for _, f := range frags {
		r.Add(4, f)
	}

	select {
	case <-evicted:
		t.Fatal("completed window fired the eviction hook")
	case <-time.After(50 * time.Millisecond):
	}
	if s.Len() != 0 {
		t.Errorf("eviction timer was not cancelled (%d pending)", s.Len())
	}
}
