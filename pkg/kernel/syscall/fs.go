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
	"path"

	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
	"github.com/nyxkernel/kernel/pkg/kernel/vfs"
)

// Filesystem group, per spec.md §6.

type ReadFile struct{ Path string }
type WriteFile struct {
	Path string
	Data []byte
}
type CreateFile struct{ Path string }
type DeleteFile struct{ Path string }
type ListDirectory struct{ Path string }
type FileExists struct{ Path string }
type FileStat struct{ Path string }
type MoveFile struct{ Source, Destination string }
type CopyFile struct{ Source, Destination string }
type CreateDirectory struct{ Path string }
type RemoveDirectory struct{ Path string }
type GetWorkingDirectory struct{}
type SetWorkingDirectory struct{ Path string }
type TruncateFile struct {
	Path string
	Size int
}
type Open struct {
	Path  string
	Flags OpenFlags
	Mode  vfs.Permissions
}
type Close struct{ Fd int }
type Dup struct{ Fd int }
type Dup2 struct{ OldFd, NewFd int }
type Lseek struct {
	Fd     int
	Offset int64
	Whence SeekWhence
}
type Fcntl struct {
	Fd  int
	Cmd int
	Arg int
}

func (ReadFile) isSyscall()            {}
func (WriteFile) isSyscall()           {}
func (CreateFile) isSyscall()          {}
func (DeleteFile) isSyscall()          {}
func (ListDirectory) isSyscall()       {}
func (FileExists) isSyscall()          {}
func (FileStat) isSyscall()            {}
func (MoveFile) isSyscall()            {}
func (CopyFile) isSyscall()            {}
func (CreateDirectory) isSyscall()     {}
func (RemoveDirectory) isSyscall()     {}
func (GetWorkingDirectory) isSyscall() {}
func (SetWorkingDirectory) isSyscall() {}
func (TruncateFile) isSyscall()        {}
func (Open) isSyscall()                {}
func (Close) isSyscall()               {}
func (Dup) isSyscall()                 {}
func (Dup2) isSyscall()                {}
func (Lseek) isSyscall()               {}
func (Fcntl) isSyscall()               {}

func (ReadFile) Name() string            { return "ReadFile" }
func (WriteFile) Name() string           { return "WriteFile" }
func (CreateFile) Name() string          { return "CreateFile" }
func (DeleteFile) Name() string          { return "DeleteFile" }
func (ListDirectory) Name() string       { return "ListDirectory" }
func (FileExists) Name() string          { return "FileExists" }
func (FileStat) Name() string            { return "FileStat" }
func (MoveFile) Name() string            { return "MoveFile" }
func (CopyFile) Name() string            { return "CopyFile" }
func (CreateDirectory) Name() string     { return "CreateDirectory" }
func (RemoveDirectory) Name() string     { return "RemoveDirectory" }
func (GetWorkingDirectory) Name() string { return "GetWorkingDirectory" }
func (SetWorkingDirectory) Name() string { return "SetWorkingDirectory" }
func (TruncateFile) Name() string        { return "TruncateFile" }
func (Open) Name() string                { return "Open" }
func (Close) Name() string               { return "Close" }
func (Dup) Name() string                 { return "Dup" }
func (Dup2) Name() string                { return "Dup2" }
func (Lseek) Name() string               { return "Lseek" }
func (Fcntl) Name() string               { return "Fcntl" }

func fileResource(p string, action sandbox.Action) (sandbox.Resource, sandbox.Action) {
	return sandbox.Resource{Tag: sandbox.ResourceFile, Path: p}, action
}

func dirResource(p string, action sandbox.Action) (sandbox.Resource, sandbox.Action) {
	return sandbox.Resource{Tag: sandbox.ResourceDirectory, Path: p}, action
}

// fsPermission is the fixed syscall->(resource,action) row for every
// Filesystem-group variant. Close/Dup/Dup2/Lseek/Fcntl operate on an
// already-open fd rather than a fresh path, so they're checked against
// ResourceSystem/ActionInspect — the path itself was already checked at
// Open time.
func fsPermission(sc Syscall) (sandbox.Resource, sandbox.Action) {
	switch s := sc.(type) {
	case ReadFile:
		return fileResource(s.Path, sandbox.ActionRead)
	case WriteFile:
		return fileResource(s.Path, sandbox.ActionWrite)
	case CreateFile:
		return fileResource(s.Path, sandbox.ActionCreate)
	case DeleteFile:
		return fileResource(s.Path, sandbox.ActionDelete)
	case ListDirectory:
		return dirResource(s.Path, sandbox.ActionList)
	case FileExists:
		return fileResource(s.Path, sandbox.ActionRead)
	case FileStat:
		return fileResource(s.Path, sandbox.ActionRead)
	case MoveFile:
		return fileResource(s.Source, sandbox.ActionWrite)
	case CopyFile:
		return fileResource(s.Source, sandbox.ActionRead)
	case CreateDirectory:
		return dirResource(s.Path, sandbox.ActionCreate)
	case RemoveDirectory:
		return dirResource(s.Path, sandbox.ActionDelete)
	case GetWorkingDirectory:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "cwd"}, sandbox.ActionInspect
	case SetWorkingDirectory:
		return dirResource(s.Path, sandbox.ActionRead)
	case TruncateFile:
		return fileResource(s.Path, sandbox.ActionWrite)
	case Open:
		if s.Flags.Create {
			return fileResource(s.Path, sandbox.ActionCreate)
		}
		return fileResource(s.Path, sandbox.ActionRead)
	case Close, Dup, Dup2, Lseek, Fcntl:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "fd"}, sandbox.ActionInspect
	}
	return sandbox.Resource{}, sandbox.ActionInspect
}

func (d *Dispatcher) execFS(pid types.Pid, sc Syscall) SyscallResult {
	fs := d.vfs
	switch s := sc.(type) {
	case ReadFile:
		data, err := fs.Read(s.Path)
		if err != nil {
			return Failure(err)
		}
		return Success(data)
	case WriteFile:
		return Failure(fs.Write(s.Path, s.Data))
	case CreateFile:
		return Failure(fs.Create(s.Path, vfs.DefaultFilePermissions))
	case DeleteFile:
		return Failure(fs.Delete(s.Path))
	case ListDirectory:
		entries, err := fs.ListDir(s.Path)
		if err != nil {
			return Failure(err)
		}
		return Success(entries)
	case FileExists:
		return Success(fs.Exists(s.Path))
	case FileStat:
		info, err := fs.Stat(s.Path)
		if err != nil {
			return Failure(err)
		}
		return Success(info)
	case MoveFile:
		return Failure(fs.Rename(s.Source, s.Destination))
	case CopyFile:
		return Failure(fs.Copy(s.Source, s.Destination))
	case CreateDirectory:
		return Failure(fs.CreateDir(s.Path, vfs.DefaultFilePermissions))
	case RemoveDirectory:
		return Failure(fs.RemoveDir(s.Path))
	case GetWorkingDirectory:
		return Success(d.cwd(pid))
	case SetWorkingDirectory:
		if !fs.Exists(s.Path) {
			return Failure(vfsNotFound(s.Path))
		}
		d.setCwd(pid, path.Clean("/"+s.Path))
		return Success(nil)
	case TruncateFile:
		return Failure(fs.Truncate(s.Path, s.Size))
	case Open:
		return d.execOpen(pid, s)
	case Close:
		return d.execClose(pid, s)
	case Dup:
		return d.execDup(pid, s)
	case Dup2:
		return d.execDup2(pid, s)
	case Lseek:
		return d.execLseek(pid, s)
	case Fcntl:
		return d.execFcntl(pid, s)
	}
	return Failure(unknownSyscall)
}

func (d *Dispatcher) execOpen(pid types.Pid, s Open) SyscallResult {
	table, ok := d.procs.FDTable(pid)
	if !ok {
		return Failure(noFDTable)
	}
	h, err := d.vfs.Open(s.Path, s.Flags)
	if err != nil {
		return Failure(err)
	}
	fd, ok := table.Insert(h, 0)
	if !ok {
		h.Close()
		return Failure(fdTableFull)
	}
	return Success(fd)
}

func (d *Dispatcher) execClose(pid types.Pid, s Close) SyscallResult {
	table, ok := d.procs.FDTable(pid)
	if !ok {
		return Failure(noFDTable)
	}
	v, ok := table.Remove(s.Fd)
	if !ok {
		return Failure(badFd)
	}
	if h, ok := v.(vfs.Handle); ok {
		h.Close()
	}
	return Success(nil)
}

func (d *Dispatcher) execDup(pid types.Pid, s Dup) SyscallResult {
	table, ok := d.procs.FDTable(pid)
	if !ok {
		return Failure(noFDTable)
	}
	g, ok := table.Get(s.Fd)
	if !ok {
		return Failure(badFd)
	}
	defer g.Release()
	fd, ok := table.Insert(g.Value(), 0)
	if !ok {
		return Failure(fdTableFull)
	}
	return Success(fd)
}

func (d *Dispatcher) execDup2(pid types.Pid, s Dup2) SyscallResult {
	table, ok := d.procs.FDTable(pid)
	if !ok {
		return Failure(noFDTable)
	}
	g, ok := table.Get(s.OldFd)
	if !ok {
		return Failure(badFd)
	}
	defer g.Release()
	if !table.InsertAt(s.NewFd, g.Value(), 0) {
		return Failure(fdTableFull)
	}
	return Success(s.NewFd)
}

func (d *Dispatcher) execLseek(pid types.Pid, s Lseek) SyscallResult {
	table, ok := d.procs.FDTable(pid)
	if !ok {
		return Failure(noFDTable)
	}
	g, ok := table.Get(s.Fd)
	if !ok {
		return Failure(badFd)
	}
	defer g.Release()
	h, ok := g.Value().(vfs.Handle)
	if !ok {
		return Failure(badFd)
	}
	off, err := h.Seek(s.Offset, s.Whence)
	if err != nil {
		return Failure(err)
	}
	return Success(off)
}

func (d *Dispatcher) execFcntl(pid types.Pid, s Fcntl) SyscallResult {
	table, ok := d.procs.FDTable(pid)
	if !ok {
		return Failure(noFDTable)
	}
	switch s.Cmd {
	case FcntlGetFl:
		flags, ok := table.Flags(s.Fd)
		if !ok {
			return Failure(badFd)
		}
		return Success(flags)
	case FcntlSetFl:
		if !table.UpdateFlags(s.Fd, uint32(s.Arg)) {
			return Failure(badFd)
		}
		return Success(nil)
	default:
		return Failure(invalidFcntlCmd)
	}
}

// Fcntl command constants, the small fixed subset this kernel honors.
const (
	FcntlGetFl = iota
	FcntlSetFl
)
