package tftp

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func mustListen(t *testing.T) net.PacketConn {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenPacket: %v", err)
	}
	return conn
}

// TestEngineRetransmitsOnAckTimeout covers spec scenario 4 (a dropped ACK
// triggers a resend of the same datagram after ack_timeout), which only an
// engine-level test can observe: mode-level unit tests never exercise the
// retransmit timer at all.
func TestEngineRetransmitsOnAckTimeout(t *testing.T) {
	server := mustListen(t)
	client := mustListen(t)
	defer client.Close()

	reader := newBlockReader(bytes.NewReader([]byte("hi")), 512)
	mode := newRRQMode(nopFileReader{}, reader, nil, false)
	e := NewEngine(server, client.LocalAddr(), mode, 50*time.Millisecond, 2*time.Second, nil)
	go e.Run()

	buf := make([]byte, 1024)
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, from, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	first := append([]byte(nil), buf[:n]...)

	// Withhold the ACK; after ack_timeout the server must resend the
	// identical datagram.
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err = client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("retransmit read: %v", err)
	}
	if !bytes.Equal(buf[:n], first) {
		t.Fatalf("retransmit = %x, want identical to first send %x", buf[:n], first)
	}

	if _, err := client.WriteTo(mustMarshal(t, &AckPacket{Block: 1}), from); err != nil {
		t.Fatalf("send ACK: %v", err)
	}
}

// TestEngineRejectsUnknownTID covers spec scenario 8: a datagram from a
// different source port is answered with ErrUnknownTID and must not be
// mistaken for progress on the real transfer.
func TestEngineRejectsUnknownTID(t *testing.T) {
	server := mustListen(t)
	client := mustListen(t)
	defer client.Close()
	impostor := mustListen(t)
	defer impostor.Close()

	reader := newBlockReader(bytes.NewReader([]byte("hi")), 512)
	mode := newRRQMode(nopFileReader{}, reader, nil, false)
	e := NewEngine(server, client.LocalAddr(), mode, 50*time.Millisecond, 2*time.Second, nil)
	go e.Run()

	buf := make([]byte, 1024)
	client.SetReadDeadline(time.Now().Add(time.Second))
	n, from, err := client.ReadFrom(buf)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	data := append([]byte(nil), buf[:n]...)

	if _, err := impostor.WriteTo(mustMarshal(t, &AckPacket{Block: 1}), server.LocalAddr()); err != nil {
		t.Fatalf("send impostor ACK: %v", err)
	}

	impostor.SetReadDeadline(time.Now().Add(time.Second))
	n, _, err = impostor.ReadFrom(buf)
	if err != nil {
		t.Fatalf("impostor read: %v", err)
	}
	pkt, err := ParsePacket(buf[:n])
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	ep, ok := pkt.(*ErrorPacket)
	if !ok || ep.Code != ErrUnknownTID {
		t.Fatalf("impostor got %#v, want ErrUnknownTID", pkt)
	}

	// The real transfer must still be intact: acking the original DATA
	// completes it normally.
	if _, err := client.WriteTo(mustMarshal(t, &AckPacket{Block: 1}), from); err != nil {
		t.Fatalf("send real ACK: %v", err)
	}
	_ = data
}

func mustMarshal(t *testing.T, p Packet) []byte {
	t.Helper()
	b, err := p.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	return b
}
