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

// pipe is a bounded byte buffer between exactly one reader and one
// writer, with a default and a max capacity per the IPC objects section.
type pipe struct {
	mu       sync.Mutex
	id       PipeId
	reader   types.Pid
	writer   types.Pid
	buf      []byte
	capacity int
	closed   bool
}

// Pipes owns every pipe plus the global 50 MiB pipe-memory budget and
// the 100-pipes-per-process count limit.
type Pipes struct {
	mu       sync.Mutex
	nextID   PipeId
	byID     map[PipeId]*pipe
	countPid map[types.Pid]int
	bytes    *budget
}

// NewPipes builds an empty pipe table.
func NewPipes() *Pipes {
	return &Pipes{
		byID:     make(map[PipeId]*pipe),
		countPid: make(map[types.Pid]int),
		bytes:    newBudget(MaxGlobalPipeBytes),
	}
}

// Create opens a pipe between reader and writer with the given capacity
// (0 selects DefaultPipeBytes); capacity is clamped to MaxPipeBytes.
// Fails if either endpoint is already at its per-process pipe count cap.
func (p *Pipes) Create(reader, writer types.Pid, capacity int) (PipeId, error) {
	if capacity <= 0 {
		capacity = DefaultPipeBytes
	}
	if capacity > MaxPipeBytes {
		capacity = MaxPipeBytes
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.countPid[writer] >= MaxPipesPerPid {
		return 0, types.LimitExceeded(uint64(p.countPid[writer]), MaxPipesPerPid, "pid %s at pipe count cap", writer)
	}
	if p.countPid[reader] >= MaxPipesPerPid {
		return 0, types.LimitExceeded(uint64(p.countPid[reader]), MaxPipesPerPid, "pid %s at pipe count cap", reader)
	}

	p.nextID++
	id := p.nextID
	p.byID[id] = &pipe{id: id, reader: reader, writer: writer, capacity: capacity}
	p.countPid[reader]++
	p.countPid[writer]++
	return id, nil
}

func (p *Pipes) get(id PipeId) (*pipe, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pp, ok := p.byID[id]
	return pp, ok
}

// Write appends data to the pipe's buffer, rejecting with WouldBlock if
// the write would overflow the pipe's capacity or the global byte
// budget. Partial writes are not supported: a write either fits whole
// or is rejected whole.
func (p *Pipes) Write(id PipeId, data []byte) (int, error) {
	pp, ok := p.get(id)
	if !ok {
		return 0, types.NotFound("pipe %d not found", id)
	}
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if pp.closed {
		return 0, types.InvalidArgument("pipe %d is closed", id)
	}
	if len(pp.buf)+len(data) > pp.capacity {
		return 0, types.WouldBlock("pipe %d full (%d/%d bytes)", id, len(pp.buf), pp.capacity)
	}
	if !p.bytes.reserve(uint64(len(data))) {
		return 0, types.WouldBlock("global pipe byte budget exhausted")
	}
	pp.buf = append(pp.buf, data...)
	return len(data), nil
}

// Read copies up to n bytes out of the pipe's buffer in FIFO order. When
// the buffer is empty: if the pipe is closed this returns (nil, nil)
// signalling end-of-stream; if still open it returns WouldBlock.
func (p *Pipes) Read(id PipeId, n int) ([]byte, error) {
	pp, ok := p.get(id)
	if !ok {
		return nil, types.NotFound("pipe %d not found", id)
	}
	pp.mu.Lock()
	defer pp.mu.Unlock()
	if len(pp.buf) == 0 {
		if pp.closed {
			return nil, nil // end-of-stream
		}
		return nil, types.WouldBlock("pipe %d empty", id)
	}
	if n > len(pp.buf) {
		n = len(pp.buf)
	}
	out := make([]byte, n)
	copy(out, pp.buf[:n])
	pp.buf = pp.buf[n:]
	p.bytes.release(uint64(n))
	return out, nil
}

// Close marks the pipe closed; subsequent empty Reads report
// end-of-stream instead of WouldBlock, and further Writes fail.
func (p *Pipes) Close(id PipeId) error {
	pp, ok := p.get(id)
	if !ok {
		return types.NotFound("pipe %d not found", id)
	}
	pp.mu.Lock()
	pp.closed = true
	pp.mu.Unlock()
	return nil
}

// Destroy releases a pipe's remaining buffered bytes from the global
// budget, drops its per-process counts, and removes it from the table.
func (p *Pipes) Destroy(id PipeId) uint64 {
	p.mu.Lock()
	pp, ok := p.byID[id]
	if !ok {
		p.mu.Unlock()
		return 0
	}
	delete(p.byID, id)
	p.countPid[pp.reader]--
	p.countPid[pp.writer]--
	p.mu.Unlock()

	pp.mu.Lock()
	reclaimed := uint64(len(pp.buf))
	pp.buf = nil
	pp.mu.Unlock()
	p.bytes.release(reclaimed)
	return reclaimed
}

// ClearProcessPipes destroys every pipe where pid is reader or writer,
// returning total bytes reclaimed. Part of the terminated-process
// reclaim fan-out alongside MessageQueues.ClearProcessQueue.
func (p *Pipes) ClearProcessPipes(pid types.Pid) uint64 {
	p.mu.Lock()
	var owned []PipeId
	for id, pp := range p.byID {
		if pp.reader == pid || pp.writer == pid {
			owned = append(owned, id)
		}
	}
	p.mu.Unlock()

	var reclaimed uint64
	for _, id := range owned {
		reclaimed += p.Destroy(id)
	}
	return reclaimed
}

// GlobalBytesUsed reports the shared pipe-memory counter.
func (p *Pipes) GlobalBytesUsed() uint64 { return p.bytes.Used() }

// PipeStats is the PipeStats syscall's read: current buffered length,
// configured capacity, and whether the pipe has been closed.
type PipeStats struct {
	Length, Capacity int
	Closed           bool
}

// Stats reports id's current occupancy, false if id is unknown.
func (p *Pipes) Stats(id PipeId) (PipeStats, bool) {
	pp, ok := p.get(id)
	if !ok {
		return PipeStats{}, false
	}
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return PipeStats{Length: len(pp.buf), Capacity: pp.capacity, Closed: pp.closed}, true
}
