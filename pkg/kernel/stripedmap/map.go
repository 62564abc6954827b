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

// Package stripedmap implements a concurrent map sharded across a fixed
// number of RWMutex-guarded buckets, used wherever a subsystem needs a
// short-critical-section map rather than a single global lock: the
// process table, the memory manager's block map, and the sandbox
// manager's per-Pid config map are all a StripedMap.
package stripedmap

import (
	"fmt"
	"hash/maphash"
	"sync"
)

const defaultStripes = 32

// StripedMap is a concurrent map[K]V sharded into N independent buckets.
type StripedMap[K comparable, V any] struct {
	seed    maphash.Seed
	buckets []bucket[K, V]
}

type bucket[K comparable, V any] struct {
	mu sync.RWMutex
	m  map[K]V
}

// New builds a StripedMap with the default stripe count.
func New[K comparable, V any]() *StripedMap[K, V] {
	return NewStripes[K, V](defaultStripes)
}

// NewStripes builds a StripedMap with an explicit stripe count.
func NewStripes[K comparable, V any](stripes int) *StripedMap[K, V] {
	if stripes < 1 {
		stripes = 1
	}
	sm := &StripedMap[K, V]{seed: maphash.MakeSeed(), buckets: make([]bucket[K, V], stripes)}
	for i := range sm.buckets {
		sm.buckets[i].m = make(map[K]V)
	}
	return sm
}

func (sm *StripedMap[K, V]) bucketFor(k K) *bucket[K, V] {
	h := maphash.String(sm.seed, keyString(k))
	return &sm.buckets[h%uint64(len(sm.buckets))]
}

// keyString stringifies a comparable key for hashing. Hot-path callers
// in this tree key by Pid/Address (both fmt.Stringer-backed uint
// wrappers) or plain strings, so the allocation this causes is small and
// bounded; if profiling ever shows this hot, callers can switch to
// NewStripes with a pre-hashed key type instead.
func keyString[K comparable](k K) string {
	if s, ok := any(k).(string); ok {
		return s
	}
	if s, ok := any(k).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(k)
}

// Get returns the value for k and whether it was present.
func (sm *StripedMap[K, V]) Get(k K) (V, bool) {
	b := sm.bucketFor(k)
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.m[k]
	return v, ok
}

// Set stores v under k.
func (sm *StripedMap[K, V]) Set(k K, v V) {
	b := sm.bucketFor(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[k] = v
}

// Delete removes k, if present.
func (sm *StripedMap[K, V]) Delete(k K) {
	b := sm.bucketFor(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, k)
}

// Len sums occupancy across all buckets. O(stripes), safe to call often.
func (sm *StripedMap[K, V]) Len() int {
	n := 0
	for i := range sm.buckets {
		sm.buckets[i].mu.RLock()
		n += len(sm.buckets[i].m)
		sm.buckets[i].mu.RUnlock()
	}
	return n
}

// Range calls f for every entry; iteration order is unspecified and f
// must not mutate the map. Stops early if f returns false.
func (sm *StripedMap[K, V]) Range(f func(K, V) bool) {
	for i := range sm.buckets {
		sm.buckets[i].mu.RLock()
		for k, v := range sm.buckets[i].m {
			if !f(k, v) {
				sm.buckets[i].mu.RUnlock()
				return
			}
		}
		sm.buckets[i].mu.RUnlock()
	}
}
