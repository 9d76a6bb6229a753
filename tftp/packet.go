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
// Package tftp implements a TFTP (RFC 1350) server with the blksize and
// timeout option extensions of RFC 2347/2348/2349.
package tftp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// OpCode identifies the wire-level shape of a Packet.
type OpCode uint16

const (
	OpRRQ   OpCode = 1
	OpWRQ   OpCode = 2
	OpData  OpCode = 3
	OpAck   OpCode = 4
	OpError OpCode = 5
	OpOack  OpCode = 6
)

func (op OpCode) String() string {
	switch op {
	case OpRRQ:
		return "RRQ"
	case OpWRQ:
		return "WRQ"
	case OpData:
		return "DATA"
	case OpAck:
		return "ACK"
	case OpError:
		return "ERROR"
	case OpOack:
		return "OACK"
	default:
		return fmt.Sprintf("OpCode(%d)", uint16(op))
	}
}

// Packet is any of the six wire packet shapes this server speaks.
type Packet interface {
	Opcode() OpCode
	MarshalBinary() ([]byte, error)
}

// Option is a single negotiated TFTP option, as appended to an RRQ/WRQ or
// echoed back in an OACK. Option names are compared case-insensitively;
// Negotiate echoes accepted options under their lowercase canonical names.
type Option struct {
	Name  string
	Value string
}

// Options is an ordered sequence of options; order is preserved across
// marshal/unmarshal so that wire output is deterministic.
type Options []Option

// Get performs a case-insensitive lookup.
func (o Options) Get(name string) (string, bool) {
	for _, opt := range o {
		if strings.EqualFold(opt.Name, name) {
			return opt.Value, true
		}
	}
	return "", false
}

// RequestPacket is an RRQ or WRQ packet.
type RequestPacket struct {
	Op       OpCode // OpRRQ or OpWRQ
	Filename string
	Mode     string
	Options  Options
}

func (p *RequestPacket) Opcode() OpCode { return p.Op }

// IsNetascii reports whether the request's mode names netascii transfer,
// compared case-insensitively as RFC 1350 requires.
func (p *RequestPacket) IsNetascii() bool {
	return strings.EqualFold(p.Mode, "netascii")
}

func (p *RequestPacket) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint16(p.Op))
	buf.WriteString(p.Filename)
	buf.WriteByte(0)
	buf.WriteString(p.Mode)
	buf.WriteByte(0)
	for _, opt := range p.Options {
		buf.WriteString(opt.Name)
		buf.WriteByte(0)
		buf.WriteString(opt.Value)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// DataPacket carries one block of file content.
type DataPacket struct {
	Block   uint16
	Payload []byte
}

func (p *DataPacket) Opcode() OpCode { return OpData }

func (p *DataPacket) MarshalBinary() ([]byte, error) {
	out := make([]byte, 4, 4+len(p.Payload))
	binary.BigEndian.PutUint16(out[0:2], uint16(OpData))
	binary.BigEndian.PutUint16(out[2:4], p.Block)
	return append(out, p.Payload...), nil
}

// AckPacket acknowledges receipt of the DATA (or OACK, when Block==0) for
// the given block number.
type AckPacket struct {
	Block uint16
}

func (p *AckPacket) Opcode() OpCode { return OpAck }

func (p *AckPacket) MarshalBinary() ([]byte, error) {
	out := make([]byte, 4)
	binary.BigEndian.PutUint16(out[0:2], uint16(OpAck))
	binary.BigEndian.PutUint16(out[2:4], p.Block)
	return out, nil
}

// ErrorPacket terminates a transfer (or rejects a single offending
// datagram, in the unknown-TID case) with a taxonomy code and message.
type ErrorPacket struct {
	Code    ErrorCode
	Message string
}

func (p *ErrorPacket) Opcode() OpCode { return OpError }

func (p *ErrorPacket) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint16(OpError))
	binary.Write(buf, binary.BigEndian, uint16(p.Code))
	buf.WriteString(p.Message)
	buf.WriteByte(0)
	return buf.Bytes(), nil
}

// OackPacket acknowledges the subset of requested options the server
// accepted. Per RFC 2347 it is sent in place of the first DATA (RRQ) or ACK
// (WRQ) whenever the accepted option set is non-empty.
type OackPacket struct {
	Options Options
}

func (p *OackPacket) Opcode() OpCode { return OpOack }

func (p *OackPacket) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.BigEndian, uint16(OpOack))
	for _, opt := range p.Options {
		buf.WriteString(opt.Name)
		buf.WriteByte(0)
		buf.WriteString(opt.Value)
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}

// readNulString reads bytes up to and including the next NUL from buf,
// returning the string with the terminator stripped.
func readNulString(buf *bytes.Buffer) (string, error) {
	s, err := buf.ReadString(0)
	if err != nil {
		return "", NewError(ErrIllegalOperation, "truncated packet")
	}
	return s[:len(s)-1], nil
}

// ParsePacket decodes a raw datagram into one of the Packet variants. A
// truncated packet or unknown opcode fails with ErrIllegalOperation, as
// required by spec: "The parser fails with IllegalOperation on truncation
// or unknown opcode."
func ParsePacket(data []byte) (Packet, error) {
	if len(data) < 2 {
		return nil, NewError(ErrIllegalOperation, "packet shorter than opcode")
	}
	op := OpCode(binary.BigEndian.Uint16(data[0:2]))
	buf := bytes.NewBuffer(data[2:])

	switch op {
	case OpRRQ, OpWRQ:
		filename, err := readNulString(buf)
		if err != nil {
			return nil, err
		}
		mode, err := readNulString(buf)
		if err != nil {
			return nil, err
		}
		var opts Options
		for buf.Len() > 0 {
			name, err := readNulString(buf)
			if err != nil {
				return nil, err
			}
			if buf.Len() == 0 {
				break
			}
			value, err := readNulString(buf)
			if err != nil {
				return nil, err
			}
			opts = append(opts, Option{Name: name, Value: value})
		}
		return &RequestPacket{Op: op, Filename: filename, Mode: mode, Options: opts}, nil

	case OpData:
		if buf.Len() < 2 {
			return nil, NewError(ErrIllegalOperation, "truncated DATA packet")
		}
		block := binary.BigEndian.Uint16(buf.Next(2))
		payload := make([]byte, buf.Len())
		copy(payload, buf.Bytes())
		return &DataPacket{Block: block, Payload: payload}, nil

	case OpAck:
		if buf.Len() < 2 {
			return nil, NewError(ErrIllegalOperation, "truncated ACK packet")
		}
		block := binary.BigEndian.Uint16(buf.Next(2))
		return &AckPacket{Block: block}, nil

	case OpError:
		if buf.Len() < 2 {
			return nil, NewError(ErrIllegalOperation, "truncated ERROR packet")
		}
		code := ErrorCode(binary.BigEndian.Uint16(buf.Next(2)))
		msg, _ := readNulString(buf)
		return &ErrorPacket{Code: code, Message: msg}, nil

	case OpOack:
		var opts Options
		for buf.Len() > 0 {
			name, err := readNulString(buf)
			if err != nil {
				return nil, err
			}
			if buf.Len() == 0 {
				break
			}
			value, err := readNulString(buf)
			if err != nil {
				return nil, err
			}
			opts = append(opts, Option{Name: name, Value: value})
		}
		return &OackPacket{Options: opts}, nil

	default:
		return nil, NewError(ErrIllegalOperation, fmt.Sprintf("unknown opcode %d", op))
	}
}
