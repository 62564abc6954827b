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
	"sync/atomic"

	"github.com/nyxkernel/kernel/pkg/kernel/bufpool"
	"github.com/nyxkernel/kernel/pkg/kernel/ring"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// BufferId indexes a reserved buffer in a per-Pid buffer pool. Rings
// carry these instead of the bytes themselves, the same
// addresses-not-bytes discipline the typed queues use.
type BufferId uint64

// Submission is one zero-copy send request: a reserved buffer plus its
// used length.
type Submission struct {
	Buffer BufferId
	Length int
	To     types.Pid
}

// Completion reports a submission finished, so the caller can release
// the buffer back to the pool.
type Completion struct {
	Buffer BufferId
	Length int
	Err    error
}

const (
	defaultRingCapacity = 256
)

// perPidRings is one process's submission/completion ring pair plus the
// buffer table backing its reserved BufferIds.
type perPidRings struct {
	submission *ring.LockFreeRing[Submission]
	completion *ring.LockFreeRing[Completion]

	mu      sync.Mutex
	buffers map[BufferId][]byte
	nextBuf uint64
}

// ZeroCopyRings owns every process's submission/completion ring pair,
// directly adapting pkg/kernel/ring's lock-free ring and pkg/kernel/
// bufpool's size-classed buffer pool: rather than copying payload bytes
// through a queue, a caller reserves a buffer, fills it in place, and
// submits only the BufferId + length.
type ZeroCopyRings struct {
	pool *bufpool.Pool

	mu    sync.Mutex
	byPid map[types.Pid]*perPidRings
}

// NewZeroCopyRings builds an empty ring set backed by pool (a new
// bufpool.Pool is constructed if pool is nil).
func NewZeroCopyRings(pool *bufpool.Pool) *ZeroCopyRings {
	if pool == nil {
		pool = bufpool.New()
	}
	return &ZeroCopyRings{pool: pool, byPid: make(map[types.Pid]*perPidRings)}
}

func (z *ZeroCopyRings) ringsFor(pid types.Pid) *perPidRings {
	z.mu.Lock()
	defer z.mu.Unlock()
	r, ok := z.byPid[pid]
	if !ok {
		r = &perPidRings{
			submission: ring.NewLockFreeRing[Submission](defaultRingCapacity),
			completion: ring.NewLockFreeRing[Completion](defaultRingCapacity),
			buffers:    make(map[BufferId][]byte),
		}
		z.byPid[pid] = r
	}
	return r
}

// Reserve draws a buffer of at least size capacity from the pool and
// returns its BufferId plus the backing slice, ready to be filled
// in-place before Submit.
func (z *ZeroCopyRings) Reserve(pid types.Pid, size int) (BufferId, []byte) {
	r := z.ringsFor(pid)
	buf := z.pool.Acquire(size)
	buf = buf[:size]

	r.mu.Lock()
	id := BufferId(atomic.AddUint64(&r.nextBuf, 1))
	r.buffers[id] = buf
	r.mu.Unlock()
	return id, buf
}

// Submit pushes a Submission for a previously Reserved buffer onto pid's
// submission ring; ok=false if the ring is full.
func (z *ZeroCopyRings) Submit(pid types.Pid, s Submission) bool {
	return z.ringsFor(pid).submission.Push(s)
}

// NextSubmission pops the oldest pending submission for pid.
func (z *ZeroCopyRings) NextSubmission(pid types.Pid) (Submission, bool) {
	return z.ringsFor(pid).submission.Pop()
}

// Complete pushes a Completion for pid, signalling the submission
// finished (successfully or not).
func (z *ZeroCopyRings) Complete(pid types.Pid, c Completion) bool {
	return z.ringsFor(pid).completion.Push(c)
}

// NextCompletion pops the oldest pending completion for pid. Callers
// must call Release on the buffer once they've read it — a buffer stays
// reserved (and thus un-reusable) from Reserve until the matching
// Release, regardless of how many rings it passed through.
func (z *ZeroCopyRings) NextCompletion(pid types.Pid) (Completion, bool) {
	return z.ringsFor(pid).completion.Pop()
}

// BufferFor returns the backing slice for a still-reserved BufferId.
func (z *ZeroCopyRings) BufferFor(pid types.Pid, id BufferId) ([]byte, bool) {
	r := z.ringsFor(pid)
	r.mu.Lock()
	defer r.mu.Unlock()
	buf, ok := r.buffers[id]
	return buf, ok
}

// Release returns a reserved buffer to the pool, ending its lifetime.
// Reading it through BufferFor after Release is a use-after-free in the
// simulated sense: the slice may already be handed out to a new
// reservation.
func (z *ZeroCopyRings) Release(pid types.Pid, id BufferId) {
	r := z.ringsFor(pid)
	r.mu.Lock()
	buf, ok := r.buffers[id]
	delete(r.buffers, id)
	r.mu.Unlock()
	if ok {
		z.pool.Release(buf)
	}
}

// ReleaseAll returns every buffer still reserved for pid back to the
// pool and drops pid's ring pair entirely, returning the number of
// buffers released. Called by the process manager's resource
// orchestrator when pid terminates, so a dying process can't leak
// reserved buffers it never got around to releasing itself.
func (z *ZeroCopyRings) ReleaseAll(pid types.Pid) int {
	z.mu.Lock()
	r, ok := z.byPid[pid]
	if ok {
		delete(z.byPid, pid)
	}
	z.mu.Unlock()
	if !ok {
		return 0
	}

	r.mu.Lock()
	n := len(r.buffers)
	for _, buf := range r.buffers {
		z.pool.Release(buf)
	}
	r.buffers = nil
	r.mu.Unlock()
	return n
}

// RingStats is the MmapStats syscall's read: pending submission/
// completion counts plus how many buffers pid currently has reserved.
type RingStats struct {
	PendingSubmissions int
	PendingCompletions int
	ReservedBuffers    int
}

// Stats snapshots pid's ring occupancy.
func (z *ZeroCopyRings) Stats(pid types.Pid) RingStats {
	r := z.ringsFor(pid)
	r.mu.Lock()
	buffers := len(r.buffers)
	r.mu.Unlock()
	return RingStats{
		PendingSubmissions: r.submission.Len(),
		PendingCompletions: r.completion.Len(),
		ReservedBuffers:    buffers,
	}
}
