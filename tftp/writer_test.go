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
	"bytes"
	"testing"
)

func TestBlockWriterAccept(t *testing.T) {
	var buf bytes.Buffer
	w := newBlockWriter(&buf, 512)

	final, err := w.Accept(bytes.Repeat([]byte{1}, 512))
	if err != nil || final {
		t.Fatalf("full block: final=%v err=%v", final, err)
	}
	final, err = w.Accept(bytes.Repeat([]byte{2}, 100))
	if err != nil || !final {
		t.Fatalf("short block: final=%v err=%v", final, err)
	}
	if buf.Len() != 612 {
		t.Errorf("wrote %d bytes, want 612", buf.Len())
	}
}

func TestBlockWriterZeroLengthIsFinal(t *testing.T) {
	var buf bytes.Buffer
	w := newBlockWriter(&buf, 512)
	final, err := w.Accept(nil)
	if err != nil || !final {
		t.Fatalf("empty block: final=%v err=%v", final, err)
	}
}
