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

import "strconv"

const (
	optBlksize = "blksize"
	optTimeout = "timeout"
	optTsize   = "tsize"

	DefaultBlockSize uint16 = 512
	minBlockSize     int    = 8
	maxBlockSize     int    = 65464

	minTimeoutSeconds int = 1
	maxTimeoutSeconds int = 255
)

// NegotiatedOptions is the outcome of intersecting a client's requested
// options with what the server supports: the subset to echo back in an
// OACK, plus the effective blksize/timeout the engine should use regardless
// of whether negotiation produced an OACK.
type NegotiatedOptions struct {
	BlockSize uint16
	Timeout   uint16 // seconds

	// Accepted holds, in request order, the options that will be echoed
	// back in an OACK. Empty means no OACK is sent at all.
	Accepted Options
}

// Negotiate intersects the options requested on an RRQ/WRQ with the
// server's supported option set and bounds, per RFC 2347/2348/2349.
//
// blksize is accepted only if the requested value parses and falls in
// [8, 65464]; otherwise it is silently omitted from the OACK (never
// clamped) and the default of 512 applies. timeout is accepted only if in
// [1, 255]; defaultTimeout applies otherwise. tsize, if present, is
// accepted unconditionally and its value is filled in by the caller
// (the real file size for RRQ, the client's declared size echoed back for
// WRQ) before the OACK is sent.
func Negotiate(requested Options, defaultTimeout uint16) NegotiatedOptions {
	out := NegotiatedOptions{
		BlockSize: DefaultBlockSize,
		Timeout:   defaultTimeout,
	}

	if v, ok := requested.Get(optBlksize); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= minBlockSize && n <= maxBlockSize {
			out.BlockSize = uint16(n)
			out.Accepted = append(out.Accepted, Option{Name: optBlksize, Value: v})
		}
	}

	if v, ok := requested.Get(optTimeout); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= minTimeoutSeconds && n <= maxTimeoutSeconds {
			out.Timeout = uint16(n)
			out.Accepted = append(out.Accepted, Option{Name: optTimeout, Value: v})
		}
	}

	if _, ok := requested.Get(optTsize); ok {
		// The real value is filled in by the caller once it knows the
		// transfer size; reserve the slot here to preserve request order.
		out.Accepted = append(out.Accepted, Option{Name: optTsize, Value: "0"})
	}

	return out
}

// SetTsize overwrites the reserved tsize slot (if any) with the real
// transfer size, in bytes.
func (n *NegotiatedOptions) SetTsize(size int64) {
	for i := range n.Accepted {
		if n.Accepted[i].Name == optTsize {
			n.Accepted[i].Value = strconv.FormatInt(size, 10)
			return
		}
	}
}
