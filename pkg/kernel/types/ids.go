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

// Package types holds the kernel's primitive identifiers and shared data
// model: opaque ids, the process record, capabilities, and the error
// taxonomy. Every other package in the tree depends on this one and it
// depends on nothing else in the module, so it's safe for sandbox,
// process, scheduler and ipc to all reference Process/Capability without
// import cycles.
package types

import "fmt"

// Pid identifies a managed process. Allocated from a single shared
// counter (see process.Manager); never reused within a run.
type Pid uint32

// Fd is a handle into a per-Pid file descriptor table.
type Fd uint32

// SockFd is a socket descriptor number. The syscall layer allocates
// sockets from the same per-Pid descriptor table as files, so socket and
// file descriptors share one numbering.
type SockFd uint32

// QueueId identifies a typed IPC queue (fifo, priority or pubsub).
type QueueId uint32

// Address is an offset into the simulated address space the memory
// manager hands out.
type Address uint64

// Size is a byte count, architecture-word sized.
type Size uint64

// Priority is a scheduling priority in [0, 9]; higher values get a larger
// CPU share.
type Priority uint8

// MinPriority and MaxPriority bound the valid Priority range.
const (
	MinPriority Priority = 0
	MaxPriority Priority = 9
)

// Clamp returns p constrained to [MinPriority, MaxPriority].
func (p Priority) Clamp() Priority {
	if p > MaxPriority {
		return MaxPriority
	}
	return p
}

func (p Pid) String() string    { return fmt.Sprintf("pid:%d", uint32(p)) }
func (f Fd) String() string     { return fmt.Sprintf("fd:%d", uint32(f)) }
func (a Address) String() string { return fmt.Sprintf("0x%x", uint64(a)) }
