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

// wrqMode implements engineMode for a write request: the client sends DATA,
// the server ACKs.
type wrqMode struct {
	file   FileWriter
	writer *blockWriter

	oack       Options
	negotiated bool

	expectBlock uint16
	lastAcked   uint16
}

func newWRQMode(file FileWriter, dst *blockWriter, oack Options, negotiated bool) *wrqMode {
	return &wrqMode{file: file, writer: dst, oack: oack, negotiated: negotiated, expectBlock: 1}
}

// initial returns the OACK when options were negotiated, or ACK(0) to
// start an unnegotiated transfer; either way the client's first DATA is
// expected to carry block 1.
func (m *wrqMode) initial() (Packet, error) {
	if m.negotiated {
		return &OackPacket{Options: m.oack}, nil
	}
	return &AckPacket{Block: 0}, nil
}

func (m *wrqMode) onPacket(p Packet) (Packet, bool, bool, error) {
	data, ok := p.(*DataPacket)
	if !ok {
		return nil, false, false, NewError(ErrIllegalOperation, "expected DATA")
	}

	if data.Block != m.expectBlock {
		// Already-written block resent after our ACK was lost: re-ack it
		// without writing again, per spec idempotent-duplicate handling.
		return &AckPacket{Block: m.lastAcked}, false, false, nil
	}

	final, err := m.writer.Accept(data.Payload)
	if err != nil {
		return nil, false, false, err
	}

	m.lastAcked = data.Block
	m.expectBlock++
	return &AckPacket{Block: data.Block}, true, final, nil
}

func (m *wrqMode) close() {
	if m.file != nil {
		m.file.Close()
	}
}
