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

// Package codec converts the syscall package's closed Syscall union to
// and from external wire formats. syscall.Syscall is an interface with
// 97 concrete variants, so rather than give each
// one its own MarshalJSON/UnmarshalJSON (the approach taken for the
// smaller types.Capability and sandbox.Resource unions), this package
// wraps any Syscall in a single envelope keyed by its own Name() and
// dispatches decode through one explicit switch. The envelope's own
// tag/payload fields are snake_case; the payload itself keeps each
// variant's default Go field casing, since none of the 97 structs
// carry json tags and retrofitting all of them would not change what
// the wire format can express, only how verbose this file is.
package codec

import (
	"encoding/json"
	"fmt"

	"github.com/nyxkernel/kernel/pkg/kernel/syscall"
)

// syscallEnvelope is every Syscall's external wire shape: its Name()
// as a discriminator plus the struct's own fields as an opaque blob.
type syscallEnvelope struct {
	Tag     string          `json:"tag"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeSyscall renders sc as a tagged JSON envelope.
func EncodeSyscall(sc syscall.Syscall) ([]byte, error) {
	payload, err := json.Marshal(sc)
	if err != nil {
		return nil, fmt.Errorf("codec: marshaling %s payload: %w", sc.Name(), err)
	}
	return json.Marshal(syscallEnvelope{Tag: sc.Name(), Payload: payload})
}

// DecodeSyscall parses an envelope produced by EncodeSyscall back into
// the concrete Syscall variant its tag names.
func DecodeSyscall(data []byte) (syscall.Syscall, error) {
	var env syscallEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("codec: parsing envelope: %w", err)
	}

	sc, ok := zeroSyscall(env.Tag)
	if !ok {
		return nil, fmt.Errorf("codec: unrecognized syscall tag %q", env.Tag)
	}
	if len(env.Payload) == 0 {
		return sc, nil
	}
	if err := json.Unmarshal(env.Payload, &sc); err != nil {
		return nil, fmt.Errorf("codec: unmarshaling %s payload: %w", env.Tag, err)
	}
	return derefSyscall(sc), nil
}

// zeroSyscall returns an addressable pointer to tag's zero value, so
// DecodeSyscall can json.Unmarshal straight into it regardless of
// which concrete struct tag names.
func zeroSyscall(tag string) (syscall.Syscall, bool) {
	switch tag {
	// Filesystem group.
	case "ReadFile":
		return &syscall.ReadFile{}, true
	case "WriteFile":
		return &syscall.WriteFile{}, true
	case "CreateFile":
		return &syscall.CreateFile{}, true
	case "DeleteFile":
		return &syscall.DeleteFile{}, true
	case "ListDirectory":
		return &syscall.ListDirectory{}, true
	case "FileExists":
		return &syscall.FileExists{}, true
	case "FileStat":
		return &syscall.FileStat{}, true
	case "MoveFile":
		return &syscall.MoveFile{}, true
	case "CopyFile":
		return &syscall.CopyFile{}, true
	case "CreateDirectory":
		return &syscall.CreateDirectory{}, true
	case "RemoveDirectory":
		return &syscall.RemoveDirectory{}, true
	case "GetWorkingDirectory":
		return &syscall.GetWorkingDirectory{}, true
	case "SetWorkingDirectory":
		return &syscall.SetWorkingDirectory{}, true
	case "TruncateFile":
		return &syscall.TruncateFile{}, true
	case "Open":
		return &syscall.Open{}, true
	case "Close":
		return &syscall.Close{}, true
	case "Dup":
		return &syscall.Dup{}, true
	case "Dup2":
		return &syscall.Dup2{}, true
	case "Lseek":
		return &syscall.Lseek{}, true
	case "Fcntl":
		return &syscall.Fcntl{}, true

	// Process group.
	case "SpawnProcess":
		return &syscall.SpawnProcess{}, true
	case "KillProcess":
		return &syscall.KillProcess{}, true
	case "GetProcessInfo":
		return &syscall.GetProcessInfo{}, true
	case "GetProcessList":
		return &syscall.GetProcessList{}, true
	case "SetProcessPriority":
		return &syscall.SetProcessPriority{}, true
	case "GetProcessState":
		return &syscall.GetProcessState{}, true
	case "GetProcessStats":
		return &syscall.GetProcessStats{}, true
	case "WaitProcess":
		return &syscall.WaitProcess{}, true

	// IPC group.
	case "PipeCreate":
		return &syscall.PipeCreate{}, true
	case "PipeWrite":
		return &syscall.PipeWrite{}, true
	case "PipeRead":
		return &syscall.PipeRead{}, true
	case "PipeCloseCall":
		return &syscall.PipeCloseCall{}, true
	case "PipeDestroy":
		return &syscall.PipeDestroy{}, true
	case "PipeStats":
		return &syscall.PipeStats{}, true
	case "ShmCreate":
		return &syscall.ShmCreate{}, true
	case "ShmAttach":
		return &syscall.ShmAttach{}, true
	case "ShmDetach":
		return &syscall.ShmDetach{}, true
	case "ShmWrite":
		return &syscall.ShmWrite{}, true
	case "ShmRead":
		return &syscall.ShmRead{}, true
	case "ShmDestroy":
		return &syscall.ShmDestroy{}, true
	case "ShmStats":
		return &syscall.ShmStats{}, true
	case "Mmap":
		return &syscall.Mmap{}, true
	case "MmapRead":
		return &syscall.MmapRead{}, true
	case "MmapWrite":
		return &syscall.MmapWrite{}, true
	case "Msync":
		return &syscall.Msync{}, true
	case "Munmap":
		return &syscall.Munmap{}, true
	case "MmapStats":
		return &syscall.MmapStats{}, true
	case "QueueCreate":
		return &syscall.QueueCreate{}, true
	case "QueueSend":
		return &syscall.QueueSend{}, true
	case "QueueReceive":
		return &syscall.QueueReceive{}, true
	case "QueueSubscribe":
		return &syscall.QueueSubscribe{}, true
	case "QueueUnsubscribe":
		return &syscall.QueueUnsubscribe{}, true
	case "QueueCloseCall":
		return &syscall.QueueCloseCall{}, true
	case "QueueDestroy":
		return &syscall.QueueDestroy{}, true
	case "QueueStats":
		return &syscall.QueueStats{}, true

	// Network group.
	case "Socket":
		return &syscall.Socket{}, true
	case "Bind":
		return &syscall.Bind{}, true
	case "Listen":
		return &syscall.Listen{}, true
	case "Accept":
		return &syscall.Accept{}, true
	case "Connect":
		return &syscall.Connect{}, true
	case "Send":
		return &syscall.Send{}, true
	case "Recv":
		return &syscall.Recv{}, true
	case "SendTo":
		return &syscall.SendTo{}, true
	case "RecvFrom":
		return &syscall.RecvFrom{}, true
	case "CloseSocket":
		return &syscall.CloseSocket{}, true
	case "SetSockOpt":
		return &syscall.SetSockOpt{}, true
	case "GetSockOpt":
		return &syscall.GetSockOpt{}, true
	case "NetworkRequest":
		return &syscall.NetworkRequest{}, true

	// Scheduler group.
	case "ScheduleNext":
		return &syscall.ScheduleNext{}, true
	case "YieldProcess":
		return &syscall.YieldProcess{}, true
	case "GetCurrentScheduled":
		return &syscall.GetCurrentScheduled{}, true
	case "GetSchedulerStats":
		return &syscall.GetSchedulerStats{}, true
	case "SetSchedulingPolicy":
		return &syscall.SetSchedulingPolicy{}, true
	case "GetSchedulingPolicy":
		return &syscall.GetSchedulingPolicy{}, true
	case "SetTimeQuantum":
		return &syscall.SetTimeQuantum{}, true
	case "GetTimeQuantum":
		return &syscall.GetTimeQuantum{}, true
	case "GetProcessSchedulerStats":
		return &syscall.GetProcessSchedulerStats{}, true
	case "GetAllProcessSchedulerStats":
		return &syscall.GetAllProcessSchedulerStats{}, true
	case "BoostPriority":
		return &syscall.BoostPriority{}, true
	case "LowerPriority":
		return &syscall.LowerPriority{}, true

	// System group.
	case "GetSystemInfo":
		return &syscall.GetSystemInfo{}, true
	case "GetCurrentTime":
		return &syscall.GetCurrentTime{}, true
	case "GetEnvironmentVar":
		return &syscall.GetEnvironmentVar{}, true
	case "SetEnvironmentVar":
		return &syscall.SetEnvironmentVar{}, true
	case "Sleep":
		return &syscall.Sleep{}, true
	case "GetUptime":
		return &syscall.GetUptime{}, true
	case "GetMemoryStats":
		return &syscall.GetMemoryStats{}, true
	case "GetProcessMemoryStats":
		return &syscall.GetProcessMemoryStats{}, true
	case "TriggerGC":
		return &syscall.TriggerGC{}, true
	case "SendSignal":
		return &syscall.SendSignal{}, true
	case "RegisterSignalHandler":
		return &syscall.RegisterSignalHandler{}, true
	case "BlockSignal":
		return &syscall.BlockSignal{}, true
	case "UnblockSignal":
		return &syscall.UnblockSignal{}, true
	case "GetPendingSignals":
		return &syscall.GetPendingSignals{}, true
	case "GetSignalStats":
		return &syscall.GetSignalStats{}, true
	case "WaitForSignal":
		return &syscall.WaitForSignal{}, true
	case "GetSignalState":
		return &syscall.GetSignalState{}, true

	default:
		return nil, false
	}
}

// derefSyscall unwraps the pointer zeroSyscall handed to json.Unmarshal
// back into the plain value every Syscall implementation is a receiver
// for, so callers get back exactly the type syscall.Dispatcher.Dispatch
// expects in its type switch.
func derefSyscall(sc syscall.Syscall) syscall.Syscall {
	switch v := sc.(type) {
	case *syscall.ReadFile:
		return *v
	case *syscall.WriteFile:
		return *v
	case *syscall.CreateFile:
		return *v
	case *syscall.DeleteFile:
		return *v
	case *syscall.ListDirectory:
		return *v
	case *syscall.FileExists:
		return *v
	case *syscall.FileStat:
		return *v
	case *syscall.MoveFile:
		return *v
	case *syscall.CopyFile:
		return *v
	case *syscall.CreateDirectory:
		return *v
	case *syscall.RemoveDirectory:
		return *v
	case *syscall.GetWorkingDirectory:
		return *v
	case *syscall.SetWorkingDirectory:
		return *v
	case *syscall.TruncateFile:
		return *v
	case *syscall.Open:
		return *v
	case *syscall.Close:
		return *v
	case *syscall.Dup:
		return *v
	case *syscall.Dup2:
		return *v
	case *syscall.Lseek:
		return *v
	case *syscall.Fcntl:
		return *v

	case *syscall.SpawnProcess:
		return *v
	case *syscall.KillProcess:
		return *v
	case *syscall.GetProcessInfo:
		return *v
	case *syscall.GetProcessList:
		return *v
	case *syscall.SetProcessPriority:
		return *v
	case *syscall.GetProcessState:
		return *v
	case *syscall.GetProcessStats:
		return *v
	case *syscall.WaitProcess:
		return *v

	case *syscall.PipeCreate:
		return *v
	case *syscall.PipeWrite:
		return *v
	case *syscall.PipeRead:
		return *v
	case *syscall.PipeCloseCall:
		return *v
	case *syscall.PipeDestroy:
		return *v
	case *syscall.PipeStats:
		return *v
	case *syscall.ShmCreate:
		return *v
	case *syscall.ShmAttach:
		return *v
	case *syscall.ShmDetach:
		return *v
	case *syscall.ShmWrite:
		return *v
	case *syscall.ShmRead:
		return *v
	case *syscall.ShmDestroy:
		return *v
	case *syscall.ShmStats:
		return *v
	case *syscall.Mmap:
		return *v
	case *syscall.MmapRead:
		return *v
	case *syscall.MmapWrite:
		return *v
	case *syscall.Msync:
		return *v
	case *syscall.Munmap:
		return *v
	case *syscall.MmapStats:
		return *v
	case *syscall.QueueCreate:
		return *v
	case *syscall.QueueSend:
		return *v
	case *syscall.QueueReceive:
		return *v
	case *syscall.QueueSubscribe:
		return *v
	case *syscall.QueueUnsubscribe:
		return *v
	case *syscall.QueueCloseCall:
		return *v
	case *syscall.QueueDestroy:
		return *v
	case *syscall.QueueStats:
		return *v

	case *syscall.Socket:
		return *v
	case *syscall.Bind:
		return *v
	case *syscall.Listen:
		return *v
	case *syscall.Accept:
		return *v
	case *syscall.Connect:
		return *v
	case *syscall.Send:
		return *v
	case *syscall.Recv:
		return *v
	case *syscall.SendTo:
		return *v
	case *syscall.RecvFrom:
		return *v
	case *syscall.CloseSocket:
		return *v
	case *syscall.SetSockOpt:
		return *v
	case *syscall.GetSockOpt:
		return *v
	case *syscall.NetworkRequest:
		return *v

	case *syscall.ScheduleNext:
		return *v
	case *syscall.YieldProcess:
		return *v
	case *syscall.GetCurrentScheduled:
		return *v
	case *syscall.GetSchedulerStats:
		return *v
	case *syscall.SetSchedulingPolicy:
		return *v
	case *syscall.GetSchedulingPolicy:
		return *v
	case *syscall.SetTimeQuantum:
		return *v
	case *syscall.GetTimeQuantum:
		return *v
	case *syscall.GetProcessSchedulerStats:
		return *v
	case *syscall.GetAllProcessSchedulerStats:
		return *v
	case *syscall.BoostPriority:
		return *v
	case *syscall.LowerPriority:
		return *v

	case *syscall.GetSystemInfo:
		return *v
	case *syscall.GetCurrentTime:
		return *v
	case *syscall.GetEnvironmentVar:
		return *v
	case *syscall.SetEnvironmentVar:
		return *v
	case *syscall.Sleep:
		return *v
	case *syscall.GetUptime:
		return *v
	case *syscall.GetMemoryStats:
		return *v
	case *syscall.GetProcessMemoryStats:
		return *v
	case *syscall.TriggerGC:
		return *v
	case *syscall.SendSignal:
		return *v
	case *syscall.RegisterSignalHandler:
		return *v
	case *syscall.BlockSignal:
		return *v
	case *syscall.UnblockSignal:
		return *v
	case *syscall.GetPendingSignals:
		return *v
	case *syscall.GetSignalStats:
		return *v
	case *syscall.WaitForSignal:
		return *v
	case *syscall.GetSignalState:
		return *v

	default:
		return sc
	}
}
