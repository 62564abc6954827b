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
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/process"
	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
	"github.com/nyxkernel/kernel/pkg/kernel/vfs"
)

func newTestDispatcher(t *testing.T, sb *sandbox.Manager) (*Dispatcher, *process.Manager, types.Pid) {
	t.Helper()
	procs := process.New(process.Deps{Sandbox: sb})
	pid, err := procs.Create(process.CreateOptions{Name: "init", Priority: 5})
	if err != nil {
		t.Fatalf("Create() err = %v, want nil", err)
	}
	d := New(Deps{
		VFS:     vfs.NewMemFS(),
		Procs:   procs,
		Sandbox: sb,
	}, nil)
	return d, procs, pid
}

func TestDispatchFilesystemRoundTrip(t *testing.T) {
	d, _, pid := newTestDispatcher(t, nil)

	if r := d.Dispatch(pid, CreateFile{Path: "/a.txt"}); r.Outcome != OutcomeSuccess {
		t.Fatalf("CreateFile outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	if r := d.Dispatch(pid, WriteFile{Path: "/a.txt", Data: []byte("hello")}); r.Outcome != OutcomeSuccess {
		t.Fatalf("WriteFile outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	r := d.Dispatch(pid, ReadFile{Path: "/a.txt"})
	if r.Outcome != OutcomeSuccess {
		t.Fatalf("ReadFile outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	data, ok := r.Data.([]byte)
	if !ok || string(data) != "hello" {
		t.Fatalf("ReadFile data = %v, want %q", r.Data, "hello")
	}

	if r := d.Dispatch(pid, FileExists{Path: "/a.txt"}); r.Data != true {
		t.Fatalf("FileExists = %v, want true", r.Data)
	}
	if r := d.Dispatch(pid, FileExists{Path: "/missing.txt"}); r.Data != false {
		t.Fatalf("FileExists(missing) = %v, want false", r.Data)
	}
}

func TestDispatchWorkingDirectory(t *testing.T) {
	d, _, pid := newTestDispatcher(t, nil)

	if r := d.Dispatch(pid, GetWorkingDirectory{}); r.Data != "/" {
		t.Fatalf("GetWorkingDirectory = %v, want /", r.Data)
	}
	if r := d.Dispatch(pid, CreateDirectory{Path: "/sub"}); r.Outcome != OutcomeSuccess {
		t.Fatalf("CreateDirectory outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	if r := d.Dispatch(pid, SetWorkingDirectory{Path: "/sub"}); r.Outcome != OutcomeSuccess {
		t.Fatalf("SetWorkingDirectory outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	if r := d.Dispatch(pid, GetWorkingDirectory{}); r.Data != "/sub" {
		t.Fatalf("GetWorkingDirectory after Set = %v, want /sub", r.Data)
	}

	// Setting to a directory that doesn't exist must fail and leave cwd
	// unchanged.
	if r := d.Dispatch(pid, SetWorkingDirectory{Path: "/nope"}); r.Outcome == OutcomeSuccess {
		t.Fatalf("SetWorkingDirectory(missing) outcome = %v, want error", r.Outcome)
	}
	if r := d.Dispatch(pid, GetWorkingDirectory{}); r.Data != "/sub" {
		t.Fatalf("GetWorkingDirectory after failed Set = %v, want /sub unchanged", r.Data)
	}
}

func TestDispatchOpenCloseFD(t *testing.T) {
	d, _, pid := newTestDispatcher(t, nil)

	r := d.Dispatch(pid, Open{Path: "/b.txt", Flags: OpenFlags{Create: true}})
	if r.Outcome != OutcomeSuccess {
		t.Fatalf("Open outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	fd, ok := r.Data.(int)
	if !ok {
		t.Fatalf("Open data = %v (%T), want int fd", r.Data, r.Data)
	}

	if r := d.Dispatch(pid, Close{Fd: fd}); r.Outcome != OutcomeSuccess {
		t.Fatalf("Close outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	// Closing an already-closed fd must fail, not panic.
	if r := d.Dispatch(pid, Close{Fd: fd}); r.Outcome != OutcomeError {
		t.Fatalf("double Close outcome = %v, want Error", r.Outcome)
	}
}

func TestDispatchSystemGroup(t *testing.T) {
	d, _, pid := newTestDispatcher(t, nil)

	if r := d.Dispatch(pid, SetEnvironmentVar{Key: "HOME", Value: "/root"}); r.Outcome != OutcomeSuccess {
		t.Fatalf("SetEnvironmentVar outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	r := d.Dispatch(pid, GetEnvironmentVar{Key: "HOME"})
	if r.Outcome != OutcomeSuccess || r.Data != "/root" {
		t.Fatalf("GetEnvironmentVar = %+v, want Success(/root)", r)
	}
	if r := d.Dispatch(pid, GetEnvironmentVar{Key: "MISSING"}); r.Outcome != OutcomeError {
		t.Fatalf("GetEnvironmentVar(missing) outcome = %v, want Error", r.Outcome)
	}

	if r := d.Dispatch(pid, GetSystemInfo{}); r.Outcome != OutcomeSuccess {
		t.Fatalf("GetSystemInfo outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	info, ok := r.Data.(SystemInfo)
	if !ok || info.ProcessCount < 1 {
		t.Fatalf("GetSystemInfo data = %+v, want ProcessCount >= 1", r.Data)
	}
}

func TestDispatchProcessGroup(t *testing.T) {
	d, procs, pid := newTestDispatcher(t, nil)

	r := d.Dispatch(pid, SpawnProcess{Command: "child"})
	if r.Outcome != OutcomeSuccess {
		t.Fatalf("SpawnProcess outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	child, ok := r.Data.(types.Pid)
	if !ok {
		t.Fatalf("SpawnProcess data = %v (%T), want types.Pid", r.Data, r.Data)
	}
	if _, ok := procs.Get(child); !ok {
		t.Fatalf("child pid %d not present in process table after SpawnProcess", child)
	}

	if r := d.Dispatch(pid, GetProcessList{}); r.Outcome != OutcomeSuccess {
		t.Fatalf("GetProcessList outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}

	if r := d.Dispatch(pid, KillProcess{TargetPid: child}); r.Outcome != OutcomeSuccess {
		t.Fatalf("KillProcess outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	if r := d.Dispatch(pid, GetProcessInfo{TargetPid: types.Pid(999999)}); r.Outcome != OutcomeError {
		t.Fatalf("GetProcessInfo(unknown pid) outcome = %v, want Error", r.Outcome)
	}
}

func TestDispatchRateLimit(t *testing.T) {
	d, _, pid := newTestDispatcher(t, nil)
	d.limiterFor(pid) // pre-create so the burst bucket starts full and known

	denied := false
	for i := 0; i < RateLimitBurst+10; i++ {
		if r := d.Dispatch(pid, GetUptime{}); r.Outcome == OutcomePermissionDenied {
			denied = true
			break
		}
	}
	if !denied {
		t.Fatalf("expected rate limiting to deny at least one of %d rapid calls", RateLimitBurst+10)
	}
}

func TestDispatchPermissionDenied(t *testing.T) {
	sb := sandbox.New(nil, nil)
	d, _, pid := newTestDispatcher(t, sb)
	// pid's SandboxConfig grants no capabilities, so every capability
	// check must fail closed.
	sb.Create(pid, sandbox.SandboxConfig{})

	r := d.Dispatch(pid, ReadFile{Path: "/etc/secret"})
	if r.Outcome != OutcomePermissionDenied {
		t.Fatalf("ReadFile outcome = %v, want PermissionDenied (reason %q)", r.Outcome, r.Reason)
	}
	if r.Reason == "" {
		t.Fatalf("denied result carries no reason")
	}
}

func TestDispatchPermissionAllowed(t *testing.T) {
	sb := sandbox.New(nil, nil)
	d, _, pid := newTestDispatcher(t, sb)
	sb.Create(pid, sandbox.SandboxConfig{
		Capabilities: []types.Capability{
			{Tag: types.CapReadFile},
			{Tag: types.CapWriteFile},
			{Tag: types.CapCreateFile},
		},
	})

	if r := d.Dispatch(pid, CreateFile{Path: "/ok.txt"}); r.Outcome != OutcomeSuccess {
		t.Fatalf("CreateFile outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	if r := d.Dispatch(pid, ReadFile{Path: "/ok.txt"}); r.Outcome != OutcomeSuccess {
		t.Fatalf("ReadFile outcome = %v, want Success (msg %q)", r.Outcome, r.Message)
	}
	// DeleteFile was never granted, so it must still be denied even
	// though ReadFile/WriteFile/CreateFile are allowed.
	if r := d.Dispatch(pid, DeleteFile{Path: "/ok.txt"}); r.Outcome != OutcomePermissionDenied {
		t.Fatalf("DeleteFile outcome = %v, want PermissionDenied", r.Outcome)
	}
}
