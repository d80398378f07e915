package reliant

import (
	"bytes"
	"strings"
	"testing"
)

func TestFragmenterShortMessageSentUnchanged(t *testing.T) {
	f := newFragmenter(64)
	parts, err := f.Split([]byte("hi"))
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 || !bytes.Equal(parts[0], []byte("hi")) {
		t.Fatalf("expected a single unmodified part, got %v", parts)
	}
}

// TestFragmenterFiveByteMessageGetsHeader pins the boundary case that drove
// fragment.go's threshold fix: a message exactly fragmentHeaderSize bytes
// long ("hello") must round-trip through the reassembler, which it cannot do
// if sent bare, since its own bytes can be misparsed as a fragment header.
func TestFragmenterFiveByteMessageGetsHeader(t *testing.T) {
	f := newFragmenter(64)
	message := []byte("hello")
	parts, err := f.Split(message)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 {
		t.Fatalf("expected exactly one fragment, got %d", len(parts))
	}
	if bytes.Equal(parts[0], message) {
		t.Fatal("a 5-byte message must not be sent without a fragment header")
	}

	r := newReassembler()
	got, ok := r.Feed(parts[0], 0)
	if !ok {
		t.Fatal("expected reassembly to complete on the first and only fragment")
	}
	if !bytes.Equal(got, message) {
		t.Fatalf("got %q, want %q", got, message)
	}
}

func TestFragmenterMultiFragmentRoundTrip(t *testing.T) {
	f := newFragmenter(64)
	message := []byte(strings.Repeat("x", 3000))

	parts, err := f.Split(message)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) < 2 {
		t.Fatalf("expected a multi-fragment split, got %d part(s)", len(parts))
	}

	r := newReassembler()
	var got []byte
	var ok bool
	for i, p := range parts {
		got, ok = r.Feed(p, 0)
		if i < len(parts)-1 && ok {
			t.Fatalf("reassembly completed early at fragment %d", i)
		}
	}
	if !ok {
		t.Fatal("expected reassembly to complete on the last fragment")
	}
	if !bytes.Equal(got, message) {
		t.Fatal("reassembled message does not match original")
	}
}

func TestFragmenterOutOfOrderDelivery(t *testing.T) {
	f := newFragmenter(16)
	message := []byte(strings.Repeat("abcdefgh", 20))

	parts, err := f.Split(message)
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) < 3 {
		t.Fatalf("need at least 3 fragments for a meaningful reorder test, got %d", len(parts))
	}

	reversed := make([][]byte, len(parts))
	for i, p := range parts {
		reversed[len(parts)-1-i] = p
	}

	r := newReassembler()
	var got []byte
	var ok bool
	for _, p := range reversed {
		got, ok = r.Feed(p, 0)
	}
	if !ok {
		t.Fatal("expected reassembly to complete after the last (first-sent) fragment arrives")
	}
	if !bytes.Equal(got, message) {
		t.Fatal("out-of-order reassembly does not match original")
	}
}

func TestFragmenterTooManyFragmentsRejected(t *testing.T) {
	f := newFragmenter(1)
	_, err := f.Split(make([]byte, maxFragments+1))
	if err != ErrMessageTooLarge {
		t.Fatalf("got %v, want ErrMessageTooLarge", err)
	}
}

func TestFragmenterDistinctMessageIDsDoNotCollide(t *testing.T) {
	f := newFragmenter(4)
	r := newReassembler()

	first, err := f.Split([]byte("firstmsg"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.Split([]byte("secondmg"))
	if err != nil {
		t.Fatal(err)
	}

	// Interleave delivery of both messages' fragments.
	var firstResult, secondResult []byte
	var firstOK, secondOK bool
	for i := 0; i < len(first) || i < len(second); i++ {
		if i < len(first) {
			if m, ok := r.Feed(first[i], 0); ok {
				firstResult, firstOK = m, ok
			}
		}
		if i < len(second) {
			if m, ok := r.Feed(second[i], 0); ok {
				secondResult, secondOK = m, ok
			}
		}
	}

	if !firstOK || !bytes.Equal(firstResult, []byte("firstmsg")) {
		t.Errorf("first message reassembled incorrectly: %q ok=%v", firstResult, firstOK)
	}
	if !secondOK || !bytes.Equal(secondResult, []byte("secondmg")) {
		t.Errorf("second message reassembled incorrectly: %q ok=%v", secondResult, secondOK)
	}
}

func TestReassemblerEvictStale(t *testing.T) {
	f := newFragmenter(4)
	r := newReassembler()

	parts, err := f.Split([]byte("abcdefghij"))
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) < 2 {
		t.Fatal("expected multiple fragments")
	}

	// Feed only the first fragment, stamped at t=0, leaving the message incomplete.
	if _, ok := r.Feed(parts[0], 0); ok {
		t.Fatal("reassembly should not complete on a partial message")
	}
	if len(r.buffers) != 1 {
		t.Fatalf("expected one pending buffer, got %d", len(r.buffers))
	}

	r.EvictStale(1)
	if len(r.buffers) != 0 {
		t.Fatal("expected the stale buffer to be evicted")
	}
}
