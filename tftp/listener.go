/*
 * Copyright (c) 2013 author: LiTao
 * All rights reserved.
 *
 * Redistribution and use in source and binary forms, with or without
 * modification, are permitted provided that the following conditions
 * are met:
 * 1. Redistributions of source code must retain the above copyright
 *    notice, this list of conditions and the following disclaimer.
 * 2. Redistributions in binary form must reproduce the above copyright
 *    notice, this list of conditions and the following disclaimer in the
 *    documentation and/or other materials provided with the distribution.
 * 3. All advertising materials mentioning features or use of this software
 *    must display the following acknowledgement:
 *	This product includes software developed by the University of
 *	California, Berkeley and its contributors.
 * 4. Neither the name of the University nor the names of its contributors
 *    may be used to endorse or promote products derived from this software
 *    without specific prior written permission.
 *
 * THIS SOFTWARE IS PROVIDED BY THE REGENTS AND CONTRIBUTORS ``AS IS'' AND
 * ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE
 * IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE
 * ARE DISCLAIMED.  IN NO EVENT SHALL THE REGENTS OR CONTRIBUTORS BE LIABLE
 * FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL
 * DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS
 * OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION)
 * HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT
 * LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY
 * OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF
 * SUCH DAMAGE.
 */
package tftp

import (
	"context"
	"io"
	"net"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config bounds the options a Listener negotiates and the filesystem root it
// serves out of.
type Config struct {
	Root string
	// AckTimeout is the retransmit interval used for every datagram an
	// Engine sends; it is never subject to per-transfer negotiation.
	AckTimeout time.Duration
	// DefaultTimeout is the inactivity timeout applied when a transfer does
	// not negotiate RFC 2349's timeout option.
	DefaultTimeout time.Duration
	// DefaultMode is the transfer mode ("binary" or "netascii") assumed
	// when a request's mode field is empty.
	DefaultMode string
	Resolver    Resolver
	Log         *zap.SugaredLogger
}

// Listener accepts RRQ/WRQ datagrams on one well-known UDP socket and spawns
// a dedicated per-transfer Engine on its own ephemeral endpoint for each,
// mirroring the one-socket-per-peer design of the server this package is
// descended from.
type Listener struct {
	conn   net.PacketConn
	cfg    Config
	log    *zap.SugaredLogger
	cancel context.CancelFunc
}

// Listen binds addr (":69" in production, an ephemeral port in tests) and
// returns a Listener ready to Serve.
func Listen(addr string, cfg Config) (*Listener, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, err
	}
	if cfg.Resolver == nil {
		cfg.Resolver = IdentityResolver{}
	}
	if cfg.AckTimeout == 0 {
		cfg.AckTimeout = 500 * time.Millisecond
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 5 * time.Second
	}
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = "binary"
	}
	return &Listener{conn: conn, cfg: cfg, log: logger(cfg.Log)}, nil
}

// Addr reports the bound local address, useful for tests that bind to ":0".
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Serve reads request datagrams until ctx is cancelled, spawning one
// goroutine per accepted transfer under an errgroup so Serve can wait for
// in-flight transfers to wind down on shutdown.
func (l *Listener) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	go func() {
		<-gctx.Done()
		l.conn.Close()
	}()

	buf := make([]byte, 65535+64)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			l.log.Errorw("tftp: listener read failed", "err", err)
			continue
		}

		raw := make([]byte, n)
		copy(raw, buf[:n])
		g.Go(func() error {
			l.accept(raw, addr)
			return nil
		})
	}
	return g.Wait()
}

// Close stops Serve and closes the listening socket.
func (l *Listener) Close() error {
	if l.cancel != nil {
		l.cancel()
	}
	return l.conn.Close()
}

// accept parses the first datagram of a new transfer, negotiates options,
// opens the target file, and hands off to a freshly bound Engine. Any
// failure before the dedicated endpoint exists is reported from the
// well-known socket with the peer's original address, since no engine
// exists yet to own that responsibility.
func (l *Listener) accept(raw []byte, peer net.Addr) {
	pkt, err := ParsePacket(raw)
	if err != nil {
		l.replyError(peer, AsTFTPError(err))
		return
	}
	req, ok := pkt.(*RequestPacket)
	if !ok {
		l.replyError(peer, NewError(ErrIllegalOperation, "expected RRQ or WRQ"))
		return
	}

	filename := l.cfg.Resolver.Resolve(req.Filename, peer)
	path, err := resolvePath(l.cfg.Root, filename)
	if err != nil {
		l.replyError(peer, AsTFTPError(err))
		return
	}

	if req.Mode == "" {
		req.Mode = l.cfg.DefaultMode
	}

	negotiated := Negotiate(req.Options, uint16(l.cfg.DefaultTimeout/time.Second))
	oack := len(negotiated.Accepted) > 0

	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		l.log.Errorw("tftp: failed to allocate transfer endpoint", "peer", peer, "err", err)
		l.replyError(peer, NewError(ErrUndefined, "server resource exhausted"))
		return
	}

	switch req.Op {
	case OpRRQ:
		l.serveRRQ(conn, peer, path, req, negotiated, oack)
	case OpWRQ:
		l.serveWRQ(conn, peer, path, req, negotiated, oack)
	default:
		conn.Close()
		l.replyError(peer, NewError(ErrIllegalOperation, "expected RRQ or WRQ"))
	}
}

func (l *Listener) serveRRQ(conn net.PacketConn, peer net.Addr, path string, req *RequestPacket, negotiated NegotiatedOptions, oack bool) {
	file, err := openRead(path)
	if err != nil {
		conn.Close()
		l.replyError(peer, AsTFTPError(err))
		return
	}

	if _, ok := negotiated.Accepted.Get("tsize"); ok {
		if size, serr := file.Size(); serr == nil {
			negotiated.SetTsize(size)
		}
	}

	var src io.Reader = file
	if req.IsNetascii() {
		src = newNetasciiReader(file)
	}
	reader := newBlockReader(src, int(negotiated.BlockSize))

	mode := newRRQMode(file, reader, negotiated.Accepted, oack)
	e := NewEngine(conn, peer, mode, l.cfg.AckTimeout, time.Duration(negotiated.Timeout)*time.Second, l.log)
	e.Run()
}

func (l *Listener) serveWRQ(conn net.PacketConn, peer net.Addr, path string, req *RequestPacket, negotiated NegotiatedOptions, oack bool) {
	file, err := createWrite(path)
	if err != nil {
		conn.Close()
		l.replyError(peer, AsTFTPError(err))
		return
	}

	if v, ok := req.Options.Get("tsize"); ok {
		if size, perr := strconv.ParseInt(v, 10, 64); perr == nil {
			negotiated.SetTsize(size)
		}
	}

	var dst io.Writer = file
	var flusher interface{ Flush() error }
	if req.IsNetascii() {
		nw := newNetasciiWriter(file)
		dst = nw
		flusher = nw
	}
	writer := newBlockWriter(dst, int(negotiated.BlockSize))

	mode := newWRQMode(wrqFile{file, flusher}, writer, negotiated.Accepted, oack)
	e := NewEngine(conn, peer, mode, l.cfg.AckTimeout, time.Duration(negotiated.Timeout)*time.Second, l.log)
	e.Run()
}

// wrqFile closes the underlying file and, for netascii transfers, flushes
// any translator state pending a final bare CR first.
type wrqFile struct {
	FileWriter
	flusher interface{ Flush() error }
}

func (f wrqFile) Close() error {
	if f.flusher != nil {
		f.flusher.Flush()
	}
	return f.FileWriter.Close()
}

func (l *Listener) replyError(addr net.Addr, terr *Error) {
	p := &ErrorPacket{Code: terr.Code, Message: terr.Message}
	b, err := p.MarshalBinary()
	if err != nil {
		return
	}
	l.conn.WriteTo(b, addr)
}
