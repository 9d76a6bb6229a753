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
	"net"
	"time"

	"go.uber.org/zap"
)

// engineMode supplies the asymmetric half of the RRQ/WRQ state machines;
// Engine owns the transport, retransmission and timeout logic shared by
// both, per spec: "RRQ and WRQ engines share ~60% of their logic; keep the
// shared transport/retransmit code in one structure and parameterize by a
// small interface."
type engineMode interface {
	// initial returns the first datagram to send: an OACK if any option was
	// negotiated, otherwise DATA(1) for RRQ or ACK(0) for WRQ.
	initial() (Packet, error)

	// onPacket handles a datagram already confirmed to come from the
	// correct TID. next is the reply to send (nil if none); progressed
	// reports whether this was a progress-advancing packet (resets the
	// inactivity timer); done reports whether the transfer is complete.
	onPacket(p Packet) (next Packet, progressed bool, done bool, err error)

	close()
}

// Engine drives a single transfer to completion on its own dedicated UDP
// endpoint. One Engine is created per RRQ/WRQ and is never reused.
type Engine struct {
	conn              net.PacketConn
	peer              net.Addr
	mode              engineMode
	ackTimeout        time.Duration
	inactivityTimeout time.Duration
	log               *zap.SugaredLogger

	lastSent []byte
}

// NewEngine constructs an Engine bound to conn, talking only to peer, with
// the given retransmit interval, inactivity timeout and mode (RRQ- or
// WRQ-flavored).
func NewEngine(conn net.PacketConn, peer net.Addr, mode engineMode, ackTimeout, inactivityTimeout time.Duration, log *zap.SugaredLogger) *Engine {
	return &Engine{
		conn:              conn,
		peer:              peer,
		mode:              mode,
		ackTimeout:        ackTimeout,
		inactivityTimeout: inactivityTimeout,
		log:               logger(log),
	}
}

// Run drives the transfer to completion. It always closes conn before
// returning; per spec, any in-flight file I/O issued by the mode is allowed
// to finish and its result discarded on every termination path.
func (e *Engine) Run() {
	defer e.conn.Close()
	defer e.mode.close()

	first, err := e.mode.initial()
	if err != nil {
		e.log.Errorw("tftp: failed to begin transfer", "peer", e.peer, "err", err)
		e.sendErrorTo(e.peer, AsTFTPError(err))
		return
	}
	if !e.sendTracked(first) {
		return
	}

	lastProgress := time.Now()
	buf := make([]byte, 65535+64)

	for {
		deadline := lastProgress.Add(e.inactivityTimeout)
		readDeadline := time.Now().Add(e.ackTimeout)
		if readDeadline.After(deadline) {
			readDeadline = deadline
		}
		e.conn.SetReadDeadline(readDeadline)

		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if !time.Now().Before(deadline) {
					e.log.Warnw("tftp: transfer abandoned after inactivity timeout", "peer", e.peer)
					return
				}
				if !e.resend() {
					return
				}
				continue
			}
			e.log.Errorw("tftp: read failed", "peer", e.peer, "err", err)
			return
		}

		if addr.String() != e.peer.String() {
			e.log.Warnw("tftp: datagram from unknown TID", "expected", e.peer, "got", addr)
			e.sendErrorTo(addr, NewError(ErrUnknownTID, "unknown transfer id"))
			continue
		}

		pkt, perr := ParsePacket(buf[:n])
		if perr != nil {
			e.log.Errorw("tftp: malformed packet", "peer", e.peer, "err", perr)
			e.sendErrorTo(e.peer, AsTFTPError(perr))
			return
		}
		if ep, ok := pkt.(*ErrorPacket); ok {
			e.log.Infow("tftp: peer aborted transfer", "peer", e.peer, "code", ep.Code, "message", ep.Message)
			return
		}

		next, progressed, done, err := e.mode.onPacket(pkt)
		if err != nil {
			e.log.Errorw("tftp: transfer failed", "peer", e.peer, "err", err)
			e.sendErrorTo(e.peer, AsTFTPError(err))
			return
		}
		if progressed {
			lastProgress = time.Now()
		}
		if next != nil {
			if !e.sendTracked(next) {
				return
			}
		}
		if done {
			e.log.Infow("tftp: transfer complete", "peer", e.peer)
			return
		}
	}
}

func (e *Engine) sendTracked(p Packet) bool {
	b, err := p.MarshalBinary()
	if err != nil {
		e.log.Errorw("tftp: failed to encode outgoing packet", "err", err)
		return false
	}
	if _, err := e.conn.WriteTo(b, e.peer); err != nil {
		e.log.Errorw("tftp: failed to send packet", "peer", e.peer, "err", err)
		return false
	}
	e.lastSent = b
	return true
}

func (e *Engine) resend() bool {
	if e.lastSent == nil {
		return true
	}
	if _, err := e.conn.WriteTo(e.lastSent, e.peer); err != nil {
		e.log.Errorw("tftp: retransmit failed", "peer", e.peer, "err", err)
		return false
	}
	e.log.Debugw("tftp: retransmitting last datagram", "peer", e.peer)
	return true
}

func (e *Engine) sendErrorTo(addr net.Addr, terr *Error) {
	p := &ErrorPacket{Code: terr.Code, Message: terr.Message}
	b, err := p.MarshalBinary()
	if err != nil {
		return
	}
	e.conn.WriteTo(b, addr)
}
