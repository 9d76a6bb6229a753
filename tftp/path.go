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
	"path/filepath"
	"strings"
)

// reservedNames mirrors the classic DOS device names; rejecting them keeps
// the server's path handling portable even though TFTP service is most
// commonly Unix-hosted.
var reservedNames = map[string]bool{
	"con": true, "prn": true, "aux": true, "nul": true,
	"com1": true, "com2": true, "com3": true, "com4": true,
	"com5": true, "com6": true, "com7": true, "com8": true, "com9": true,
	"lpt1": true, "lpt2": true, "lpt3": true, "lpt4": true,
	"lpt5": true, "lpt6": true, "lpt7": true, "lpt8": true, "lpt9": true,
}

func isReserved(rel string) bool {
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		base := strings.ToLower(strings.TrimSuffix(part, filepath.Ext(part)))
		if reservedNames[base] {
			return true
		}
	}
	return false
}

// resolvePath resolves a client-supplied filename to a path confined under
// root, per spec: strip leading '/' and '..' tokens by logical resolution,
// then assert root is a proper prefix of the fully resolved path, following
// no symlink out of root. NUL bytes and platform-reserved names fail.
func resolvePath(root, filename string) (string, error) {
	if strings.IndexByte(filename, 0) >= 0 {
		return "", NewError(ErrIllegalOperation, "filename contains NUL byte")
	}

	// Joining onto "/" and cleaning collapses any leading "/" and "../"
	// tokens logically, without touching the filesystem: an absolute path
	// can never climb above its own root.
	clean := filepath.Clean(string(filepath.Separator) + filename)
	rel := strings.TrimPrefix(clean, string(filepath.Separator))
	if rel == "" || rel == "." {
		return "", NewError(ErrNotFound, "empty filename")
	}
	if isReserved(rel) {
		return "", NewError(ErrNotFound, "reserved filename")
	}

	full := filepath.Join(root, rel)

	resolvedRoot := evalSymlinksBestEffort(root)
	resolvedFull := evalSymlinksBestEffort(full)
	if !isDescendant(resolvedRoot, resolvedFull) {
		return "", NewError(ErrNotFound, "path escapes serving root")
	}
	return full, nil
}

// evalSymlinksBestEffort resolves symlinks in the longest existing prefix
// of path, then reattaches whatever suffix doesn't exist yet (the target
// file of a WRQ, which by definition doesn't exist).
func evalSymlinksBestEffort(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	dir, base := filepath.Split(filepath.Clean(path))
	if dir == "" || dir == path {
		return path
	}
	return filepath.Join(evalSymlinksBestEffort(filepath.Clean(dir)), base)
}

func isDescendant(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
