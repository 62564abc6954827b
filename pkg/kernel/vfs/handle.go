// Copyright 2024 The NyxKernel Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package vfs

import (
	"io"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// OpenFlags mirrors the Open{path,flags,mode} syscall's flag bits.
type OpenFlags struct {
	Create bool
	Append bool
	Trunc  bool
}

// Seekwhence mirrors Lseek's whence argument.
type SeekWhence int

const (
	SeekStart SeekWhence = iota
	SeekCurrent
	SeekEnd
)

// Handle is the open-file interface Open returns: a seekable
// read/write cursor over one file, independent of other handles open
// on the same path. fdtable.EpochFdTable[any] stores these (or a
// diskfs.Handle implementing the same interface) as the value behind a
// process's file descriptors.
type Handle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Seek(offset int64, whence SeekWhence) (int64, error)
	Close() error
	Path() string
}

// memHandle is MemFS's Handle implementation: a cursor into the node's
// byte slice, re-read/written through the owning MemFS's lock on every
// call so concurrent handles on the same path stay consistent.
type memHandle struct {
	fs     *MemFS
	path   string
	flags  OpenFlags
	cursor int64
	closed bool
}

func (h *memHandle) Read(p []byte) (int, error) {
	if h.closed {
		return 0, types.InvalidArgument("vfs: read on closed handle")
	}
	h.fs.mu.RLock()
	n, err := h.fs.fileNode(h.path)
	if err != nil {
		h.fs.mu.RUnlock()
		return 0, err
	}
	data := n.Data
	h.fs.mu.RUnlock()

	if h.cursor >= int64(len(data)) {
		return 0, io.EOF
	}
	nRead := copy(p, data[h.cursor:])
	h.cursor += int64(nRead)
	return nRead, nil
}

func (h *memHandle) Write(p []byte) (int, error) {
	if h.closed {
		return 0, types.InvalidArgument("vfs: write on closed handle")
	}
	h.fs.mu.Lock()
	defer h.fs.mu.Unlock()
	n, err := h.fs.fileNode(h.path)
	if err != nil {
		return 0, err
	}
	if !n.Permissions.Write {
		return 0, types.PermissionDenied("vfs: %q is read-only", h.path)
	}
	end := h.cursor + int64(len(p))
	if end > int64(len(n.Data)) {
		grown := make([]byte, end)
		copy(grown, n.Data)
		h.fs.size += uint64(len(grown) - len(n.Data))
		n.Data = grown
	}
	copy(n.Data[h.cursor:end], p)
	h.cursor = end
	n.Modified = h.fs.now()
	return len(p), nil
}

func (h *memHandle) Seek(offset int64, whence SeekWhence) (int64, error) {
	h.fs.mu.RLock()
	n, err := h.fs.fileNode(h.path)
	h.fs.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = h.cursor
	case SeekEnd:
		base = int64(len(n.Data))
	default:
		return 0, types.InvalidArgument("vfs: invalid whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return 0, types.InvalidArgument("vfs: negative resulting offset")
	}
	h.cursor = next
	return h.cursor, nil
}

func (h *memHandle) Close() error {
	h.closed = true
	return nil
}

func (h *memHandle) Path() string { return h.path }
