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

// rrqMode implements engineMode for a read request: the server sends DATA,
// the client ACKs.
type rrqMode struct {
	file FileReader

	reader *blockReader

	// awaitingAck0 is true from construction until the client's ACK(0) for
	// the OACK is seen. It is a dedicated flag rather than an inference from
	// expectBlock==0, because block numbers legitimately wrap back to 0
	// after 65535 and must not be mistaken for the post-OACK handshake.
	awaitingAck0 bool
	oack         Options

	expectBlock uint16
	lastFinal   bool
}

func newRRQMode(file FileReader, src *blockReader, oack Options, negotiated bool) *rrqMode {
	return &rrqMode{file: file, reader: src, oack: oack, awaitingAck0: negotiated}
}

// initial returns the OACK packet when options were negotiated (ACK(0) is
// then awaited before any DATA is sent), or DATA(1) directly otherwise.
func (m *rrqMode) initial() (Packet, error) {
	if m.awaitingAck0 {
		return &OackPacket{Options: m.oack}, nil
	}
	return m.nextData(1)
}

func (m *rrqMode) nextData(block uint16) (Packet, error) {
	payload, final, err := m.reader.Next()
	if err != nil {
		return nil, err
	}
	m.expectBlock = block
	m.lastFinal = final
	return &DataPacket{Block: block, Payload: payload}, nil
}

func (m *rrqMode) onPacket(p Packet) (Packet, bool, bool, error) {
	ack, ok := p.(*AckPacket)
	if !ok {
		return nil, false, false, NewError(ErrIllegalOperation, "expected ACK")
	}

	if m.awaitingAck0 {
		if ack.Block != 0 {
			return nil, false, false, nil // duplicate/out-of-order, ignore
		}
		m.awaitingAck0 = false
		pkt, err := m.nextData(1)
		if err != nil {
			return nil, false, false, err
		}
		return pkt, true, false, nil
	}

	if ack.Block != m.expectBlock {
		return nil, false, false, nil // duplicate ACK, ignore per spec
	}
	if m.lastFinal {
		return nil, true, true, nil
	}
	pkt, err := m.nextData(m.expectBlock + 1)
	if err != nil {
		return nil, false, false, err
	}
	return pkt, true, false, nil
}

func (m *rrqMode) close() {
	if m.file != nil {
		m.file.Close()
	}
}
