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

import "github.com/nyxkernel/kernel/pkg/kernel/klock"

// budget tracks a single global byte counter against a fixed cap, used
// independently for the message-queue budget (100 MiB) and the pipe
// budget (50 MiB). Mirrors the memory manager's used/total accounting.
type budget struct {
	used *klock.AdaptiveLock[uint64]
	cap  uint64
}

func newBudget(cap uint64) *budget {
	return &budget{used: klock.NewAdaptiveLock[uint64](0), cap: cap}
}

// reserve atomically adds n to the counter, failing without effect if
// that would exceed cap.
func (b *budget) reserve(n uint64) bool {
	_, ok := b.used.TryReserve(n, b.cap, klock.SeqCst)
	return ok
}

// release subtracts n from the counter via two's-complement FetchAdd,
// the same trick the memory manager's Deallocate uses to decrement an
// unsigned atomic without a separate Sub operation.
func (b *budget) release(n uint64) {
	if n == 0 {
		return
	}
	b.used.FetchAdd(^uint64(n-1), klock.SeqCst)
}

func (b *budget) Used() uint64 { return b.used.Load(klock.SeqCst) }
func (b *budget) Cap() uint64  { return b.cap }
