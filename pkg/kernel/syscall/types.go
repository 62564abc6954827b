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

// Package syscall is the kernel's dispatcher: a closed tagged union of
// syscalls across the Filesystem, Process, IPC, Network, Scheduler and
// System groups, a synchronous dispatch path that checks permissions
// before invoking the relevant component, and a completion-ring path
// for I/O-bound syscalls. Named syscall rather than syscalls to match
// the dispatcher's own vocabulary (Syscall, SyscallResult); it is never
// imported under an alias next to the standard library's own package of
// that name.
package syscall

import "github.com/nyxkernel/kernel/pkg/kernel/vfs"

// Syscall is the closed tagged union every dispatch call accepts. Every
// concrete variant lives in one of the six group files (fs.go,
// processgroup.go, ipcgroup.go, network.go, schedulergroup.go,
// systemgroup.go) and implements isSyscall as a marker.
type Syscall interface {
	isSyscall()
	// Name is the stable identifier used in SyscallExit/SyscallSlow
	// events and the permission audit trail.
	Name() string
}

// Outcome discriminates the three shapes a SyscallResult can take.
type Outcome uint8

const (
	OutcomeSuccess Outcome = iota
	OutcomeError
	OutcomePermissionDenied
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "Success"
	case OutcomeError:
		return "Error"
	case OutcomePermissionDenied:
		return "PermissionDenied"
	default:
		return "Unknown"
	}
}

// SyscallResult is the result of dispatching a Syscall: exactly one of
// a success payload, an error message, or a permission denial reason.
type SyscallResult struct {
	Outcome Outcome
	Data    any    // OutcomeSuccess, optional
	Message string // OutcomeError
	Reason  string // OutcomePermissionDenied
}

func Success(data any) SyscallResult { return SyscallResult{Outcome: OutcomeSuccess, Data: data} }

func Failure(err error) SyscallResult {
	if err == nil {
		return Success(nil)
	}
	return SyscallResult{Outcome: OutcomeError, Message: err.Error()}
}

func Denied(reason string) SyscallResult {
	return SyscallResult{Outcome: OutcomePermissionDenied, Reason: reason}
}

// reexported so callers building Open syscalls don't need a separate
// import of pkg/kernel/vfs just for flag/whence constants.
type OpenFlags = vfs.OpenFlags
type SeekWhence = vfs.SeekWhence

const (
	SeekStart   = vfs.SeekStart
	SeekCurrent = vfs.SeekCurrent
	SeekEnd     = vfs.SeekEnd
)
