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

import "io"

// netasciiReader wraps a binary file reader and expands it into netascii
// form: CR becomes CR LF, and standalone LF becomes CR LF. Translation
// happens before chunk boundaries are computed, so the wrapper sits between
// the raw file and the block chunker.
type netasciiReader struct {
	r       io.Reader
	pending []byte // bytes already translated but not yet returned to the caller
	buf     []byte // scratch read buffer
	err     error
}

func newNetasciiReader(r io.Reader) *netasciiReader {
	return &netasciiReader{r: r, buf: make([]byte, 4096)}
}

func (n *netasciiReader) Read(p []byte) (int, error) {
	for len(n.pending) == 0 {
		if n.err != nil {
			return 0, n.err
		}
		nr, err := n.r.Read(n.buf)
		if nr > 0 {
			n.pending = translateToNetascii(n.buf[:nr])
		}
		if err != nil {
			n.err = err
		}
		if nr == 0 && err != nil {
			return 0, err
		}
	}
	c := copy(p, n.pending)
	n.pending = n.pending[c:]
	return c, nil
}

func translateToNetascii(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case '\r':
			out = append(out, '\r', '\n')
		case '\n':
			out = append(out, '\r', '\n')
		default:
			out = append(out, c)
		}
	}
	return out
}

// netasciiWriter wraps a binary file writer and collapses an incoming
// netascii stream back to local form: CR LF becomes LF, and CR NUL becomes
// a bare CR. It holds back a trailing CR between Write calls in case the
// following byte (LF or NUL) arrives in the next call.
type netasciiWriter struct {
	w          io.Writer
	pendingCR  bool
	underlying []byte // scratch output buffer
}

func newNetasciiWriter(w io.Writer) *netasciiWriter {
	return &netasciiWriter{w: w, underlying: make([]byte, 0, 4096)}
}

func (n *netasciiWriter) Write(p []byte) (int, error) {
	out := n.underlying[:0]
	for _, c := range p {
		if n.pendingCR {
			n.pendingCR = false
			switch c {
			case '\n':
				out = append(out, '\n')
				continue
			case 0:
				out = append(out, '\r')
				continue
			default:
				// Malformed netascii (bare CR); pass the CR through and
				// reconsider this byte on its own.
				out = append(out, '\r')
			}
		}
		if c == '\r' {
			n.pendingCR = true
			continue
		}
		out = append(out, c)
	}
	if _, err := n.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush writes out a trailing bare CR left pending at end of stream, if
// any; call it once after the final Write.
func (n *netasciiWriter) Flush() error {
	if n.pendingCR {
		n.pendingCR = false
		_, err := n.w.Write([]byte{'\r'})
		return err
	}
	return nil
}
