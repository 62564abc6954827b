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

package ipc

import (
	"github.com/nyxkernel/kernel/pkg/kernel/memory"
	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// ByteStore pairs the memory manager's address-space accounting (which
// tracks only offsets and sizes) with the actual backing bytes those
// addresses represent. Shared-memory segments and typed queues both
// need "allocate an address, then read/write real bytes at it"; the
// memory manager alone only answers "is this address currently
// allocated, and how big".
type ByteStore struct {
	mem  *memory.Manager
	data *stripedmap.StripedMap[types.Address, []byte]
}

// NewByteStore wraps mem with a parallel byte-backed store.
func NewByteStore(mem *memory.Manager) *ByteStore {
	return &ByteStore{mem: mem, data: stripedmap.New[types.Address, []byte]()}
}

// Alloc reserves size bytes for pid via the wrapped memory manager and
// zero-initializes the backing store at the returned address.
func (s *ByteStore) Alloc(pid types.Pid, size types.Size) (types.Address, error) {
	addr, err := s.mem.Allocate(pid, size)
	if err != nil {
		return 0, err
	}
	s.data.Set(addr, make([]byte, size))
	return addr, nil
}

// Free releases addr from both the memory manager and the byte store.
func (s *ByteStore) Free(addr types.Address) error {
	if err := s.mem.Deallocate(addr); err != nil {
		return err
	}
	s.data.Delete(addr)
	return nil
}

// WriteBytes overwrites the backing buffer at addr starting at offset.
// Fails if the write would run past the allocation's size.
func (s *ByteStore) WriteBytes(addr types.Address, offset int, p []byte) error {
	buf, ok := s.data.Get(addr)
	if !ok {
		return types.InvalidAddress(addr)
	}
	if offset < 0 || offset+len(p) > len(buf) {
		return types.InvalidArgument("write [%d:%d) out of bounds for %d-byte segment at %s", offset, offset+len(p), len(buf), addr)
	}
	copy(buf[offset:], p)
	return nil
}

// ReadBytes copies n bytes starting at offset out of the backing buffer
// at addr.
func (s *ByteStore) ReadBytes(addr types.Address, offset, n int) ([]byte, error) {
	buf, ok := s.data.Get(addr)
	if !ok {
		return nil, types.InvalidAddress(addr)
	}
	if offset < 0 || n < 0 || offset+n > len(buf) {
		return nil, types.InvalidArgument("read [%d:%d) out of bounds for %d-byte segment at %s", offset, offset+n, len(buf), addr)
	}
	out := make([]byte, n)
	copy(out, buf[offset:offset+n])
	return out, nil
}

// Len reports the backing buffer's size at addr, or 0 if unknown.
func (s *ByteStore) Len(addr types.Address) int {
	buf, _ := s.data.Get(addr)
	return len(buf)
}
