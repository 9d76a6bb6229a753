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

// Package tftptest is a minimal lock-step TFTP client used only by this
// module's own acceptance tests, grounded on the same request/DATA/ACK
// sequencing as the production engine but written straight-line instead of
// as a state machine, since a test client can afford to block.
package tftptest

import (
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/litao91/tftpd/tftp"
)

// Client drives request/response exchanges against a single TFTP server
// address over its own ephemeral UDP socket.
type Client struct {
	Addr    string
	Timeout time.Duration
}

// New returns a Client with a 2 second default per-read timeout, generous
// enough for loopback acceptance tests without letting a hung test run
// forever.
func New(addr string) *Client {
	return &Client{Addr: addr, Timeout: 2 * time.Second}
}

// Get performs a full RRQ transfer and returns the reassembled file
// contents. opts, if non-empty, is sent on the RRQ and any OACK reply is
// ACKed with block 0 before the data loop begins.
func (c *Client) Get(filename, mode string, opts tftp.Options) ([]byte, error) {
	conn, raddr, err := c.dial()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	req := &tftp.RequestPacket{Op: tftp.OpRRQ, Filename: filename, Mode: mode, Options: opts}
	if err := c.send(conn, raddr, req); err != nil {
		return nil, errors.Wrap(err, "send RRQ")
	}

	var out []byte
	expect := uint16(1)
	blksize := int(tftp.DefaultBlockSize)

	pkt, from, err := c.recv(conn)
	if err != nil {
		return nil, err
	}
	raddr = from

	if oack, ok := pkt.(*tftp.OackPacket); ok {
		if v, ok := oack.Options.Get("blksize"); ok {
			if n, perr := strconv.Atoi(v); perr == nil {
				blksize = n
			}
		}
		if err := c.send(conn, raddr, &tftp.AckPacket{Block: 0}); err != nil {
			return nil, errors.Wrap(err, "ack OACK")
		}
		pkt, _, err = c.recv(conn)
		if err != nil {
			return nil, err
		}
	}

	for {
		switch p := pkt.(type) {
		case *tftp.DataPacket:
			if p.Block != expect {
				return nil, errors.Errorf("unexpected block %d, want %d", p.Block, expect)
			}
			out = append(out, p.Payload...)
			if err := c.send(conn, raddr, &tftp.AckPacket{Block: p.Block}); err != nil {
				return nil, errors.Wrap(err, "ack DATA")
			}
			if len(p.Payload) < blksize {
				return out, nil
			}
			expect++
		case *tftp.ErrorPacket:
			return nil, &tftp.Error{Code: p.Code, Message: p.Message}
		default:
			return nil, errors.Errorf("unexpected packet %T", p)
		}

		pkt, _, err = c.recv(conn)
		if err != nil {
			return nil, err
		}
	}
}

// Put performs a full WRQ transfer of data.
func (c *Client) Put(filename, mode string, opts tftp.Options, data []byte) error {
	conn, raddr, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	req := &tftp.RequestPacket{Op: tftp.OpWRQ, Filename: filename, Mode: mode, Options: opts}
	if err := c.send(conn, raddr, req); err != nil {
		return errors.Wrap(err, "send WRQ")
	}

	pkt, from, err := c.recv(conn)
	if err != nil {
		return err
	}
	raddr = from

	blksize := int(tftp.DefaultBlockSize)
	if oack, ok := pkt.(*tftp.OackPacket); ok {
		// Nothing to echo back for a WRQ OACK; the first DATA block is the
		// client's acknowledgement that negotiation completed.
		if v, ok := oack.Options.Get("blksize"); ok {
			if n, perr := strconv.Atoi(v); perr == nil {
				blksize = n
			}
		}
	} else if ack, ok := pkt.(*tftp.AckPacket); !ok || ack.Block != 0 {
		if ep, ok := pkt.(*tftp.ErrorPacket); ok {
			return &tftp.Error{Code: ep.Code, Message: ep.Message}
		}
		return errors.Errorf("expected ACK(0) or OACK, got %T", pkt)
	}
	var block uint16 = 1
	for off := 0; ; {
		end := off + blksize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[off:end]

		if err := c.send(conn, raddr, &tftp.DataPacket{Block: block, Payload: chunk}); err != nil {
			return errors.Wrap(err, "send DATA")
		}

		pkt, _, err := c.recv(conn)
		if err != nil {
			return err
		}
		ack, ok := pkt.(*tftp.AckPacket)
		if !ok {
			if ep, ok := pkt.(*tftp.ErrorPacket); ok {
				return &tftp.Error{Code: ep.Code, Message: ep.Message}
			}
			return errors.Errorf("expected ACK, got %T", pkt)
		}
		if ack.Block != block {
			return errors.Errorf("unexpected ACK %d, want %d", ack.Block, block)
		}

		off = end
		if len(chunk) < blksize {
			return nil
		}
		block++
	}
}

func (c *Client) dial() (net.PacketConn, net.Addr, error) {
	conn, err := net.ListenPacket("udp", ":0")
	if err != nil {
		return nil, nil, err
	}
	raddr, err := net.ResolveUDPAddr("udp", c.Addr)
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, raddr, nil
}

func (c *Client) send(conn net.PacketConn, addr net.Addr, p tftp.Packet) error {
	b, err := p.MarshalBinary()
	if err != nil {
		return err
	}
	_, err = conn.WriteTo(b, addr)
	return err
}

func (c *Client) recv(conn net.PacketConn) (tftp.Packet, net.Addr, error) {
	conn.SetReadDeadline(time.Now().Add(c.Timeout))
	buf := make([]byte, 65535+64)
	n, addr, err := conn.ReadFrom(buf)
	if err != nil {
		return nil, nil, err
	}
	p, err := tftp.ParsePacket(buf[:n])
	if err != nil {
		return nil, nil, err
	}
	return p, addr, nil
}
