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

package syscall

import (
	"github.com/nyxkernel/kernel/pkg/kernel/ipc"
	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// IPC group, per spec.md §6: Pipe, Shm, Mmap (zero-copy rings) and
// typed-queue families.

type PipeCreate struct {
	Reader, Writer types.Pid
	Capacity       int
}
type PipeWrite struct {
	Id   ipc.PipeId
	Data []byte
}
type PipeRead struct {
	Id ipc.PipeId
	N  int
}
type PipeCloseCall struct{ Id ipc.PipeId }
type PipeDestroy struct{ Id ipc.PipeId }
type PipeStats struct{ Id ipc.PipeId }

type ShmCreate struct{ Size types.Size }
type ShmAttach struct {
	Id   ipc.SegmentId
	Mode ipc.AccessMode
}
type ShmDetach struct{ Id ipc.SegmentId }
type ShmWrite struct {
	Id     ipc.SegmentId
	Offset int
	Data   []byte
}
type ShmRead struct {
	Id     ipc.SegmentId
	Offset int
	N      int
}
type ShmDestroy struct{ Id ipc.SegmentId }
type ShmStats struct{ Id ipc.SegmentId }

type Mmap struct{ Size int }
type MmapRead struct {
	Buffer ipc.BufferId
	N      int
}
type MmapWrite struct {
	Buffer ipc.BufferId
	Offset int
	Data   []byte
}
type Msync struct{ Buffer ipc.BufferId }
type Munmap struct{ Buffer ipc.BufferId }
type MmapStats struct{}

type QueueCreate struct {
	Type     ipc.QueueType
	Capacity int
}
type QueueSend struct {
	Id       types.QueueId
	Data     []byte
	Priority types.Priority
}
type QueueReceive struct{ Id types.QueueId }
type QueueSubscribe struct {
	Id     types.QueueId
	Buffer int
}
type QueueUnsubscribe struct {
	Id  types.QueueId
	Sub uint64
}
type QueueCloseCall struct{ Id types.QueueId }
type QueueDestroy struct{ Id types.QueueId }
type QueueStats struct{ Id types.QueueId }

func (PipeCreate) isSyscall()       {}
func (PipeWrite) isSyscall()        {}
func (PipeRead) isSyscall()         {}
func (PipeCloseCall) isSyscall()    {}
func (PipeDestroy) isSyscall()      {}
func (PipeStats) isSyscall()        {}
func (ShmCreate) isSyscall()        {}
func (ShmAttach) isSyscall()        {}
func (ShmDetach) isSyscall()        {}
func (ShmWrite) isSyscall()         {}
func (ShmRead) isSyscall()          {}
func (ShmDestroy) isSyscall()       {}
func (ShmStats) isSyscall()         {}
func (Mmap) isSyscall()             {}
func (MmapRead) isSyscall()         {}
func (MmapWrite) isSyscall()        {}
func (Msync) isSyscall()            {}
func (Munmap) isSyscall()           {}
func (MmapStats) isSyscall()        {}
func (QueueCreate) isSyscall()      {}
func (QueueSend) isSyscall()        {}
func (QueueReceive) isSyscall()     {}
func (QueueSubscribe) isSyscall()   {}
func (QueueUnsubscribe) isSyscall() {}
func (QueueCloseCall) isSyscall()   {}
func (QueueDestroy) isSyscall()     {}
func (QueueStats) isSyscall()       {}

func (PipeCreate) Name() string       { return "PipeCreate" }
func (PipeWrite) Name() string        { return "PipeWrite" }
func (PipeRead) Name() string         { return "PipeRead" }
func (PipeCloseCall) Name() string    { return "PipeClose" }
func (PipeDestroy) Name() string      { return "PipeDestroy" }
func (PipeStats) Name() string        { return "PipeStats" }
func (ShmCreate) Name() string        { return "ShmCreate" }
func (ShmAttach) Name() string        { return "ShmAttach" }
func (ShmDetach) Name() string        { return "ShmDetach" }
func (ShmWrite) Name() string         { return "ShmWrite" }
func (ShmRead) Name() string          { return "ShmRead" }
func (ShmDestroy) Name() string       { return "ShmDestroy" }
func (ShmStats) Name() string         { return "ShmStats" }
func (Mmap) Name() string             { return "Mmap" }
func (MmapRead) Name() string         { return "MmapRead" }
func (MmapWrite) Name() string        { return "MmapWrite" }
func (Msync) Name() string            { return "Msync" }
func (Munmap) Name() string           { return "Munmap" }
func (MmapStats) Name() string        { return "MmapStats" }
func (QueueCreate) Name() string      { return "QueueCreate" }
func (QueueSend) Name() string        { return "QueueSend" }
func (QueueReceive) Name() string     { return "QueueReceive" }
func (QueueSubscribe) Name() string   { return "QueueSubscribe" }
func (QueueUnsubscribe) Name() string { return "QueueUnsubscribe" }
func (QueueCloseCall) Name() string   { return "QueueClose" }
func (QueueDestroy) Name() string     { return "QueueDestroy" }
func (QueueStats) Name() string       { return "QueueStats" }

func ipcChannelResource(channel string, action sandbox.Action) (sandbox.Resource, sandbox.Action) {
	return sandbox.Resource{Tag: sandbox.ResourceIpcChannel, IpcChannel: channel}, action
}

func ipcPermission(pid types.Pid, sc Syscall) (sandbox.Resource, sandbox.Action) {
	switch s := sc.(type) {
	case PipeCreate:
		return ipcChannelResource("pipe", sandbox.ActionCreate)
	case PipeWrite:
		return ipcChannelResource(pipeChannel(s.Id), sandbox.ActionSend)
	case PipeRead:
		return ipcChannelResource(pipeChannel(s.Id), sandbox.ActionReceive)
	case PipeCloseCall:
		return ipcChannelResource(pipeChannel(s.Id), sandbox.ActionWrite)
	case PipeDestroy:
		return ipcChannelResource(pipeChannel(s.Id), sandbox.ActionDelete)
	case PipeStats:
		return ipcChannelResource(pipeChannel(s.Id), sandbox.ActionInspect)
	case ShmCreate:
		return ipcChannelResource("shm", sandbox.ActionCreate)
	case ShmAttach:
		return ipcChannelResource(shmChannel(s.Id), sandbox.ActionConnect)
	case ShmDetach:
		return ipcChannelResource(shmChannel(s.Id), sandbox.ActionWrite)
	case ShmWrite:
		return ipcChannelResource(shmChannel(s.Id), sandbox.ActionWrite)
	case ShmRead:
		return ipcChannelResource(shmChannel(s.Id), sandbox.ActionRead)
	case ShmDestroy:
		return ipcChannelResource(shmChannel(s.Id), sandbox.ActionDelete)
	case ShmStats:
		return ipcChannelResource(shmChannel(s.Id), sandbox.ActionInspect)
	case Mmap:
		return ipcChannelResource("mmap", sandbox.ActionCreate)
	case MmapRead:
		return ipcChannelResource("mmap", sandbox.ActionRead)
	case MmapWrite:
		return ipcChannelResource("mmap", sandbox.ActionWrite)
	case Msync:
		return ipcChannelResource("mmap", sandbox.ActionWrite)
	case Munmap:
		return ipcChannelResource("mmap", sandbox.ActionDelete)
	case MmapStats:
		return ipcChannelResource("mmap", sandbox.ActionInspect)
	case QueueCreate:
		return ipcChannelResource("queue", sandbox.ActionCreate)
	case QueueSend:
		return ipcChannelResource(queueChannel(s.Id), sandbox.ActionSend)
	case QueueReceive:
		return ipcChannelResource(queueChannel(s.Id), sandbox.ActionReceive)
	case QueueSubscribe:
		return ipcChannelResource(queueChannel(s.Id), sandbox.ActionConnect)
	case QueueUnsubscribe:
		return ipcChannelResource(queueChannel(s.Id), sandbox.ActionWrite)
	case QueueCloseCall:
		return ipcChannelResource(queueChannel(s.Id), sandbox.ActionWrite)
	case QueueDestroy:
		return ipcChannelResource(queueChannel(s.Id), sandbox.ActionDelete)
	case QueueStats:
		return ipcChannelResource(queueChannel(s.Id), sandbox.ActionInspect)
	}
	return sandbox.Resource{}, sandbox.ActionInspect
}

func pipeChannel(id ipc.PipeId) string   { return "pipe:" + itoa(uint64(id)) }
func shmChannel(id ipc.SegmentId) string { return "shm:" + itoa(uint64(id)) }
func queueChannel(id types.QueueId) string { return "queue:" + itoa(uint64(id)) }

func (d *Dispatcher) execIPC(pid types.Pid, sc Syscall) SyscallResult {
	switch s := sc.(type) {
	case PipeCreate:
		id, err := d.ipc.Pipes.Create(s.Reader, s.Writer, s.Capacity)
		if err != nil {
			return Failure(err)
		}
		return Success(id)
	case PipeWrite:
		n, err := d.ipc.Pipes.Write(s.Id, s.Data)
		if err != nil {
			return Failure(err)
		}
		return Success(n)
	case PipeRead:
		data, err := d.ipc.Pipes.Read(s.Id, s.N)
		if err != nil {
			return Failure(err)
		}
		return Success(data)
	case PipeCloseCall:
		return Failure(d.ipc.Pipes.Close(s.Id))
	case PipeDestroy:
		return Success(d.ipc.Pipes.Destroy(s.Id))
	case PipeStats:
		st, ok := d.ipc.Pipes.Stats(s.Id)
		if !ok {
			return Failure(unknownQueue)
		}
		return Success(st)
	case ShmCreate:
		id, err := d.ipc.Shared.Create(pid, s.Size)
		if err != nil {
			return Failure(err)
		}
		return Success(id)
	case ShmAttach:
		return Failure(d.ipc.Shared.Attach(s.Id, pid, s.Mode))
	case ShmDetach:
		return Failure(d.ipc.Shared.Detach(s.Id, pid))
	case ShmWrite:
		return Failure(d.ipc.Shared.Write(s.Id, pid, s.Offset, s.Data))
	case ShmRead:
		data, err := d.ipc.Shared.Read(s.Id, pid, s.Offset, s.N)
		if err != nil {
			return Failure(err)
		}
		return Success(data)
	case ShmDestroy:
		return Failure(d.ipc.Shared.Destroy(s.Id, pid))
	case ShmStats:
		st, ok := d.ipc.Shared.Stats(s.Id)
		if !ok {
			return Failure(unknownQueue)
		}
		return Success(st)
	case Mmap:
		id, buf := d.ipc.ZeroCopy.Reserve(pid, s.Size)
		_ = buf
		return Success(id)
	case MmapRead:
		buf, ok := d.ipc.ZeroCopy.BufferFor(pid, s.Buffer)
		if !ok {
			return Failure(unknownQueue)
		}
		n := s.N
		if n > len(buf) {
			n = len(buf)
		}
		out := make([]byte, n)
		copy(out, buf[:n])
		return Success(out)
	case MmapWrite:
		buf, ok := d.ipc.ZeroCopy.BufferFor(pid, s.Buffer)
		if !ok {
			return Failure(unknownQueue)
		}
		if s.Offset+len(s.Data) > len(buf) {
			return Failure(bufferOverflow)
		}
		copy(buf[s.Offset:], s.Data)
		return Success(len(s.Data))
	case Msync:
		if _, ok := d.ipc.ZeroCopy.BufferFor(pid, s.Buffer); !ok {
			return Failure(unknownQueue)
		}
		return Success(nil) // writes already landed in-place; nothing to flush
	case Munmap:
		d.ipc.ZeroCopy.Release(pid, s.Buffer)
		return Success(nil)
	case MmapStats:
		return Success(d.ipc.ZeroCopy.Stats(pid))
	case QueueCreate:
		id, err := d.ipc.Queues.Create(pid, s.Type, s.Capacity)
		if err != nil {
			return Failure(err)
		}
		return Success(id)
	case QueueSend:
		return Failure(d.ipc.Queues.Enqueue(s.Id, s.Data, s.Priority))
	case QueueReceive:
		data, err := d.ipc.Queues.Dequeue(s.Id)
		if err != nil {
			return Failure(err)
		}
		return Success(data)
	case QueueSubscribe:
		sub, err := d.ipc.Queues.Subscribe(s.Id, s.Buffer)
		if err != nil {
			return Failure(err)
		}
		return Success(sub)
	case QueueUnsubscribe:
		return Failure(d.ipc.Queues.Unsubscribe(s.Id, s.Sub))
	case QueueCloseCall:
		return Failure(d.ipc.Queues.Close(s.Id))
	case QueueDestroy:
		return Failure(d.ipc.Queues.Destroy(s.Id))
	case QueueStats:
		st, err := d.ipc.Queues.Stats(s.Id)
		if err != nil {
			return Failure(err)
		}
		return Success(st)
	}
	return Failure(unknownSyscall)
}

var bufferOverflow = types.InvalidArgument("syscall: write would overflow buffer")
