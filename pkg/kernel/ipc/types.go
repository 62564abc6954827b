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

// Package ipc implements the kernel's inter-process communication
// surface: per-Pid message queues, pipes, shared-memory segments, typed
// queues (Fifo/Priority/PubSub), and a zero-copy submission/completion
// ring. Every byte-bearing object here is accounted against a global
// budget via klock.AdaptiveLock's TryReserve, the same reserve-then-undo
// pattern the memory manager (C2) uses for used_memory.
package ipc

import "github.com/nyxkernel/kernel/pkg/kernel/types"

// Size and count caps from the IPC objects section of the design.
const (
	MaxMessageBytes   = 1 << 20        // 1 MiB per message payload
	MaxQueueLength     = 1000          // messages per per-Pid queue
	MaxGlobalIPCBytes  = 100 << 20     // 100 MiB across all message queues

	DefaultPipeBytes = 64 << 10   // 64 KiB default pipe buffer
	MaxPipeBytes     = 1 << 20    // 1 MiB max pipe buffer
	MaxPipesPerPid   = 100
	MaxGlobalPipeBytes = 50 << 20 // 50 MiB across all pipes

	MaxQueuesPerProcess = 64
)

// MessageId identifies one enqueued message, unique within its queue.
type MessageId uint64

// PipeId identifies a pipe.
type PipeId uint64

// SegmentId identifies a shared-memory segment.
type SegmentId uint64

// Message is one IPC message: a bounded byte payload routed from one Pid
// to another.
type Message struct {
	ID        MessageId
	From      types.Pid
	To        types.Pid
	Data      []byte
	Timestamp int64
}

// QueueType discriminates the three typed-queue backing stores.
type QueueType uint8

const (
	QueueFifo QueueType = iota
	QueuePriority
	QueuePubSub
)

func (t QueueType) String() string {
	switch t {
	case QueueFifo:
		return "fifo"
	case QueuePriority:
		return "priority"
	case QueuePubSub:
		return "pubsub"
	default:
		return "unknown"
	}
}

// AccessMode is the permission a shared-memory attachment was granted.
type AccessMode uint8

const (
	AccessReadOnly AccessMode = iota
	AccessReadWrite
)
