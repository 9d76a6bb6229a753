package tftp

import (
	"bytes"
	"testing"
)

type closeTrackingWriter struct {
	bytes.Buffer
	closed bool
}

func (w *closeTrackingWriter) Close() error {
	w.closed = true
	return nil
}

func TestWRQModeUnnegotiatedStartsWithAck0(t *testing.T) {
	dst := &closeTrackingWriter{}
	m := newWRQMode(dst, newBlockWriter(dst, 512), nil, false)

	pkt, err := m.initial()
	if err != nil {
		t.Fatalf("initial: %v", err)
	}
	ack, ok := pkt.(*AckPacket)
	if !ok || ack.Block != 0 {
		t.Fatalf("initial() = %#v, want ACK(0)", pkt)
	}
}

func TestWRQModeNegotiatedStartsWithOack(t *testing.T) {
	dst := &closeTrackingWriter{}
	oack := Options{{Name: "blksize", Value: "1024"}}
	m := newWRQMode(dst, newBlockWriter(dst, 1024), oack, true)

	pkt, err := m.initial()
	if err != nil {
		t.Fatalf("initial: %v", err)
	}
	if _, ok := pkt.(*OackPacket); !ok {
		t.Fatalf("initial() = %#v, want OACK", pkt)
	}
}

func TestWRQModeAcceptsInOrderBlocksAndAcks(t *testing.T) {
	dst := &closeTrackingWriter{}
	m := newWRQMode(dst, newBlockWriter(dst, 4), nil, false)
	if _, err := m.initial(); err != nil {
		t.Fatal(err)
	}

	next, progressed, done, err := m.onPacket(&DataPacket{Block: 1, Payload: []byte("abcd")})
	if err != nil {
		t.Fatalf("onPacket(DATA 1): %v", err)
	}
	ack, ok := next.(*AckPacket)
	if !ok || ack.Block != 1 || !progressed || done {
		t.Fatalf("onPacket(DATA 1) = %#v,%v,%v, want ACK(1) progressed, not done", next, progressed, done)
	}

	next, progressed, done, err = m.onPacket(&DataPacket{Block: 2, Payload: []byte("ef")})
	if err != nil {
		t.Fatalf("onPacket(DATA 2): %v", err)
	}
	ack, ok = next.(*AckPacket)
	if !ok || ack.Block != 2 || !progressed || !done {
		t.Fatalf("onPacket(DATA 2) = %#v,%v,%v, want ACK(2) progressed and done (short block)", next, progressed, done)
	}

	if dst.String() != "abcdef" {
		t.Errorf("written = %q, want \"abcdef\"", dst.String())
	}
}

func TestWRQModeDuplicateDataReAcksWithoutRewriting(t *testing.T) {
	dst := &closeTrackingWriter{}
	m := newWRQMode(dst, newBlockWriter(dst, 512), nil, false)
	if _, err := m.initial(); err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := m.onPacket(&DataPacket{Block: 1, Payload: []byte("abc")}); err != nil {
		t.Fatal(err)
	}

	// The client resends block 1 because our ACK was lost; it must be
	// re-acked without writing the payload again.
	next, progressed, done, err := m.onPacket(&DataPacket{Block: 1, Payload: []byte("abc")})
	if err != nil {
		t.Fatalf("onPacket(duplicate DATA 1): %v", err)
	}
	ack, ok := next.(*AckPacket)
	if !ok || ack.Block != 1 || progressed || done {
		t.Fatalf("onPacket(duplicate DATA 1) = %#v,%v,%v, want ACK(1) not marked as progress", next, progressed, done)
	}
	if dst.String() != "abc" {
		t.Errorf("written = %q, want \"abc\" (no duplicate write)", dst.String())
	}
}

func TestWRQModeRejectsNonDataPacket(t *testing.T) {
	dst := &closeTrackingWriter{}
	m := newWRQMode(dst, newBlockWriter(dst, 512), nil, false)
	if _, err := m.initial(); err != nil {
		t.Fatal(err)
	}

	_, _, _, err := m.onPacket(&AckPacket{Block: 0})
	terr := AsTFTPError(err)
	if terr == nil || terr.Code != ErrIllegalOperation {
		t.Fatalf("onPacket(ACK) err = %v, want ErrIllegalOperation", err)
	}
}

func TestWRQModeCloseClosesUnderlyingFile(t *testing.T) {
	dst := &closeTrackingWriter{}
	m := newWRQMode(dst, newBlockWriter(dst, 512), nil, false)
	m.close()
	if !dst.closed {
		t.Error("close() did not close the underlying file")
	}
}
