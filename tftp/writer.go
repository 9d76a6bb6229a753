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

// FileWriter is a file opened for a write transfer.
type FileWriter interface {
	io.WriteCloser
}

// createWrite exclusively creates path for a write transfer: the spec
// requires creation to fail with FileExists if the target is already
// there, so this always passes O_EXCL.
func createWrite(path string) (FileWriter, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		switch {
		case os.IsExist(err):
			return nil, NewError(ErrFileExists, "file already exists")
		case os.IsPermission(err):
			return nil, NewError(ErrAccessViolation, "permission denied")
		default:
			return nil, errors.Wrap(NewError(ErrUndefined, err.Error()), "create for write")
		}
	}
	return f, nil
}

// blockWriter consumes blocks in order, appending to dst, and reports
// whether the block it just accepted was the final one (length strictly
// less than blksize, per the same predicate the reader side uses).
type blockWriter struct {
	dst     io.Writer
	blksize int
}

func newBlockWriter(dst io.Writer, blksize int) *blockWriter {
	return &blockWriter{dst: dst, blksize: blksize}
}

func (b *blockWriter) Accept(payload []byte) (final bool, err error) {
	if len(payload) > 0 {
		if _, err := b.dst.Write(payload); err != nil {
			if os.IsNotExist(err) {
				return false, NewError(ErrDiskFull, err.Error())
			}
			return false, errors.Wrap(NewError(ErrDiskFull, err.Error()), "write block")
		}
	}
	return len(payload) < b.blksize, nil
}
