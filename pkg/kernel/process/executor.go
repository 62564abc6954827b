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

package process

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/kr/pty"
	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// shellMetacharacters is the exact denylist spec.md's executor
// validation names: a command string containing any of these is
// rejected outright rather than ever reaching exec.Command, since this
// kernel never runs a command through a shell.
const shellMetacharacters = ";|&\n\x00`$()"

// ExecConfig describes how to launch an OS process backing a logical
// one.
type ExecConfig struct {
	Command string
	Args    []string
	// UsePty redirects stdio through a pseudo-terminal (via kr/pty)
	// instead of plain pipes, for interactive child processes.
	UsePty bool
	// Capabilities is the spawning process's sandbox grant set, bridged
	// onto the real child's Linux capability bounding set via
	// moby/sys/capability once it starts.
	Capabilities []types.Capability
	// Limits is the spawning process's sandbox resource ceiling,
	// translated into an OCI-shaped specs.Process and applied to the
	// real child via prlimit(2) once it starts.
	Limits types.ResourceLimits
}

// ValidateCommand applies spec.md's executor validation: non-empty, no
// shell metacharacters, no ".." path component, no URL-encoded
// traversal ("%2e%2e").
func ValidateCommand(cfg ExecConfig) error {
	if strings.TrimSpace(cfg.Command) == "" {
		return types.InvalidArgument("executor: command must not be empty")
	}
	full := cfg.Command + " " + strings.Join(cfg.Args, " ")
	if strings.ContainsAny(full, shellMetacharacters) {
		return types.InvalidArgument("executor: command contains a shell metacharacter")
	}
	lower := strings.ToLower(full)
	if strings.Contains(full, "..") || strings.Contains(lower, "%2e%2e") {
		return types.InvalidArgument("executor: command contains a path traversal sequence")
	}
	return nil
}

// child is the internal handle the executor keeps per launched OS
// process: {internal pid, os pid, child handle} per spec.md.
type child struct {
	pid   types.Pid
	cmd   *exec.Cmd
	ptmx  *os.File // non-nil only when UsePty
}

// Executor launches and supervises real OS processes backing logical
// ones, mirroring the teacher's runsc sandbox launch/kill/wait shape:
// a clean inherited-nothing environment, stdio redirected per config,
// and a bounded backoff retry when waiting for exit.
type Executor struct {
	mu       sync.Mutex
	children map[types.Pid]*child
	log      *logrus.Entry
}

// NewExecutor builds an empty executor logging through the standard
// logger; use NewExecutorWithLogger to wire a component-scoped one.
func NewExecutor() *Executor {
	return NewExecutorWithLogger(logrus.NewEntry(logrus.StandardLogger()))
}

// NewExecutorWithLogger builds an empty executor logging through log.
func NewExecutorWithLogger(log *logrus.Entry) *Executor {
	return &Executor{children: make(map[types.Pid]*child), log: log}
}

// Spawn validates cfg, builds a clean environment (inheriting none) and
// starts the child, recording {pid, os pid, handle}.
func (e *Executor) Spawn(pid types.Pid, cfg ExecConfig) (osPid int, err error) {
	if err := ValidateCommand(cfg); err != nil {
		return 0, err
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = nil // inherit nothing, per spec.md's "Build a clean environment"
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	c := &child{pid: pid, cmd: cmd}
	if cfg.UsePty {
		ptmx, err := pty.Start(cmd)
		if err != nil {
			return 0, fmt.Errorf("process: pty start: %w", err)
		}
		c.ptmx = ptmx
	} else {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = nil, nil, nil
		if err := cmd.Start(); err != nil {
			return 0, fmt.Errorf("process: start: %w", err)
		}
	}

	e.mu.Lock()
	e.children[pid] = c
	e.mu.Unlock()

	osPid := cmd.Process.Pid
	if err := applyCapabilityBounds(osPid, cfg.Capabilities); err != nil {
		e.log.WithError(err).WithField("pid", pid).Warn("capability bounds not applied, continuing on simulated policy alone")
	}
	spec := buildOCIProcess(cfg, cfg.Limits)
	if err := applyRlimits(osPid, spec); err != nil {
		e.log.WithError(err).WithField("pid", pid).Warn("rlimits not applied")
	}

	return osPid, nil
}

// Stop sends SIGSTOP to pid's OS child, implementing
// scheduler.PreemptionController for a context switch away from it.
func (e *Executor) Stop(pid types.Pid) error {
	e.mu.Lock()
	c, ok := e.children[pid]
	e.mu.Unlock()
	if !ok || c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Signal(syscall.SIGSTOP)
}

// Continue sends SIGCONT to pid's OS child, implementing
// scheduler.PreemptionController for a context switch onto it.
func (e *Executor) Continue(pid types.Pid) error {
	e.mu.Lock()
	c, ok := e.children[pid]
	e.mu.Unlock()
	if !ok || c.cmd.Process == nil {
		return nil
	}
	return c.cmd.Process.Signal(syscall.SIGCONT)
}

// Kill sends SIGTERM then waits briefly, escalating to SIGKILL if the
// child hasn't exited — "kill() sends terminate then waits" per
// spec.md.
func (e *Executor) Kill(pid types.Pid) error {
	e.mu.Lock()
	c, ok := e.children[pid]
	e.mu.Unlock()
	if !ok {
		return types.NotFound("process: no OS child tracked for pid %s", pid)
	}

	if c.cmd.Process == nil {
		return nil
	}
	_ = c.cmd.Process.Signal(syscall.SIGTERM)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b := backoff.WithContext(backoff.NewConstantBackOff(100*time.Millisecond), ctx)
	err := backoff.Retry(func() error {
		if exited(c.cmd) {
			return nil
		}
		return fmt.Errorf("process: pid %s still running", pid)
	}, b)
	if err != nil {
		_ = c.cmd.Process.Kill()
	}
	return nil
}

func exited(cmd *exec.Cmd) bool {
	if cmd.ProcessState != nil {
		return true
	}
	var ws syscall.WaitStatus
	wpid, err := syscall.Wait4(cmd.Process.Pid, &ws, syscall.WNOHANG, nil)
	return err == nil && wpid == cmd.Process.Pid
}

// Cleanup reaps a terminated child's zombie and releases its pty, if
// any — "cleanup() reaps zombies" per spec.md.
func (e *Executor) Cleanup(pid types.Pid) {
	e.mu.Lock()
	c, ok := e.children[pid]
	if ok {
		delete(e.children, pid)
	}
	e.mu.Unlock()
	if !ok {
		return
	}
	if c.ptmx != nil {
		c.ptmx.Close()
	}
	_, _ = c.cmd.Process.Wait()
}
