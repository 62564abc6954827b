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
	"sync"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// segment is a fixed-size shared-memory region with per-Pid attachments,
// each recording the access mode that attachment was granted.
type segment struct {
	mu          sync.RWMutex
	id          SegmentId
	owner       types.Pid
	size        types.Size
	addr        types.Address
	attachments map[types.Pid]AccessMode
}

// SharedMemory owns every segment, backed by a ByteStore for the actual
// bytes (the memory manager itself only accounts address-space offsets,
// not storage).
type SharedMemory struct {
	mu       sync.Mutex
	nextID   SegmentId
	byID     map[SegmentId]*segment
	store    *ByteStore
}

// NewSharedMemory builds an empty segment table over store.
func NewSharedMemory(store *ByteStore) *SharedMemory {
	return &SharedMemory{byID: make(map[SegmentId]*segment), store: store}
}

// Create allocates a size-byte segment owned by pid, attaching the owner
// read-write by default.
func (s *SharedMemory) Create(pid types.Pid, size types.Size) (SegmentId, error) {
	addr, err := s.store.Alloc(pid, size)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.byID[id] = &segment{
		id: id, owner: pid, size: size, addr: addr,
		attachments: map[types.Pid]AccessMode{pid: AccessReadWrite},
	}
	s.mu.Unlock()
	return id, nil
}

func (s *SharedMemory) get(id SegmentId) (*segment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seg, ok := s.byID[id]
	return seg, ok
}

// Attach records pid's attachment to segment id with the given mode.
func (s *SharedMemory) Attach(id SegmentId, pid types.Pid, mode AccessMode) error {
	seg, ok := s.get(id)
	if !ok {
		return types.NotFound("segment %d not found", id)
	}
	seg.mu.Lock()
	seg.attachments[pid] = mode
	seg.mu.Unlock()
	return nil
}

// Detach removes pid's attachment to segment id, if any.
func (s *SharedMemory) Detach(id SegmentId, pid types.Pid) error {
	seg, ok := s.get(id)
	if !ok {
		return types.NotFound("segment %d not found", id)
	}
	seg.mu.Lock()
	delete(seg.attachments, pid)
	seg.mu.Unlock()
	return nil
}

// Write stores data at offset in segment id on behalf of pid, which must
// hold a read-write attachment.
func (s *SharedMemory) Write(id SegmentId, pid types.Pid, offset int, data []byte) error {
	seg, ok := s.get(id)
	if !ok {
		return types.NotFound("segment %d not found", id)
	}
	seg.mu.RLock()
	mode, attached := seg.attachments[pid]
	addr := seg.addr
	seg.mu.RUnlock()
	if !attached {
		return types.PermissionDenied("pid %s is not attached to segment %d", pid, id)
	}
	if mode != AccessReadWrite {
		return types.PermissionDenied("pid %s holds read-only attachment to segment %d", pid, id)
	}
	return s.store.WriteBytes(addr, offset, data)
}

// Read returns n bytes from offset in segment id on behalf of pid, which
// must hold any attachment (read-only suffices).
func (s *SharedMemory) Read(id SegmentId, pid types.Pid, offset, n int) ([]byte, error) {
	seg, ok := s.get(id)
	if !ok {
		return nil, types.NotFound("segment %d not found", id)
	}
	seg.mu.RLock()
	_, attached := seg.attachments[pid]
	addr := seg.addr
	seg.mu.RUnlock()
	if !attached {
		return nil, types.PermissionDenied("pid %s is not attached to segment %d", pid, id)
	}
	return s.store.ReadBytes(addr, offset, n)
}

// Destroy frees a segment's backing bytes and removes it from the table.
// Only the owner may destroy a segment.
func (s *SharedMemory) Destroy(id SegmentId, pid types.Pid) error {
	seg, ok := s.get(id)
	if !ok {
		return types.NotFound("segment %d not found", id)
	}
	seg.mu.RLock()
	owner, addr := seg.owner, seg.addr
	seg.mu.RUnlock()
	if owner != pid {
		return types.PermissionDenied("pid %s is not the owner of segment %d", pid, id)
	}
	s.mu.Lock()
	delete(s.byID, id)
	s.mu.Unlock()
	return s.store.Free(addr)
}

// AttachmentCount reports how many processes are currently attached to
// segment id.
func (s *SharedMemory) AttachmentCount(id SegmentId) int {
	seg, ok := s.get(id)
	if !ok {
		return 0
	}
	seg.mu.RLock()
	defer seg.mu.RUnlock()
	return len(seg.attachments)
}

// SegmentStats is the Shm Stats syscall's read.
type SegmentStats struct {
	Size        types.Size
	Attachments int
}

// Stats reports id's size and attachment count, false if id is unknown.
func (s *SharedMemory) Stats(id SegmentId) (SegmentStats, bool) {
	seg, ok := s.get(id)
	if !ok {
		return SegmentStats{}, false
	}
	seg.mu.RLock()
	defer seg.mu.RUnlock()
	return SegmentStats{Size: seg.size, Attachments: len(seg.attachments)}, true
}
