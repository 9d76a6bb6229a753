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

import "fmt"

// ErrorCode is a TFTP error code as carried on the wire by an ERROR packet,
// per RFC 1350 appendix I.
type ErrorCode uint16

const (
	ErrUndefined        ErrorCode = 0
	ErrNotFound         ErrorCode = 1
	ErrAccessViolation  ErrorCode = 2
	ErrDiskFull         ErrorCode = 3
	ErrIllegalOperation ErrorCode = 4
	ErrUnknownTID       ErrorCode = 5
	ErrFileExists       ErrorCode = 6
	ErrNoSuchUser       ErrorCode = 7
)

func (c ErrorCode) String() string {
	switch c {
	case ErrUndefined:
		return "undefined"
	case ErrNotFound:
		return "file not found"
	case ErrAccessViolation:
		return "access violation"
	case ErrDiskFull:
		return "disk full or allocation exceeded"
	case ErrIllegalOperation:
		return "illegal TFTP operation"
	case ErrUnknownTID:
		return "unknown transfer id"
	case ErrFileExists:
		return "file already exists"
	case ErrNoSuchUser:
		return "no such user"
	default:
		return "undefined"
	}
}

// Error is the Go-level representation of a TFTP error: every fault that
// reaches a transfer boundary is converted into one of these before it is
// either sent on the wire as an ERROR packet or logged and discarded.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError builds an *Error with the taxonomy's default message when msg is
// empty.
func NewError(code ErrorCode, msg string) *Error {
	if msg == "" {
		msg = code.String()
	}
	return &Error{Code: code, Message: msg}
}

// AsTFTPError unwraps err looking for a *tftp.Error, defaulting to
// ErrUndefined if none is found. Used at transfer boundaries to decide what
// ERROR packet to emit for an arbitrary filesystem or parsing failure.
func AsTFTPError(err error) *Error {
	if err == nil {
		return nil
	}
	type causer interface {
		Cause() error
	}
	for {
		if te, ok := err.(*Error); ok {
			return te
		}
		c, ok := err.(causer)
		if !ok {
			break
		}
		err = c.Cause()
	}
	return NewError(ErrUndefined, err.Error())
}
