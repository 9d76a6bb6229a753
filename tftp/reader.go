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
	"io"
	"os"

	"github.com/pkg/errors"
)

// FileReader is a file opened for a read transfer: enough to stat its size
// (needed for the tsize option) and stream its bytes.
type FileReader interface {
	io.ReadCloser
	Size() (int64, error)
}

type osFileReader struct{ *os.File }

func (f osFileReader) Size() (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// openRead opens path for a read transfer, translating OS errors into the
// TFTP error taxonomy.
func openRead(path string) (FileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, NewError(ErrNotFound, "file not found")
		case os.IsPermission(err):
			return nil, NewError(ErrAccessViolation, "permission denied")
		default:
			return nil, errors.Wrap(NewError(ErrUndefined, err.Error()), "open for read")
		}
	}
	return osFileReader{f}, nil
}

// blockReader turns a FileReader (optionally netascii-translated) into the
// finite sequence of fixed-size blocks the RRQ state machine sends. The
// final block has length strictly less than blksize, including length 0
// when the (possibly translated) stream length is an exact multiple of
// blksize — callers detect end of transfer from that length alone.
type blockReader struct {
	src     io.Reader
	blksize int
	done    bool
}

func newBlockReader(src io.Reader, blksize int) *blockReader {
	return &blockReader{src: src, blksize: blksize}
}

// Next returns the next block and whether it is the final one. It must not
// be called again after returning final=true.
func (b *blockReader) Next() (payload []byte, final bool, err error) {
	buf := make([]byte, b.blksize)
	n, err := io.ReadFull(b.src, buf)
	switch {
	case err == nil:
		// full block read; more may follow
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		b.done = true
		err = nil
	default:
		return nil, false, err
	}
	if n < b.blksize {
		b.done = true
	}
	return buf[:n], b.done, nil
}
