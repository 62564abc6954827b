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
	"fmt"

	specs "github.com/opencontainers/runtime-spec/specs-go"
	"golang.org/x/sys/unix"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// buildOCIProcess describes cfg/limits the way an OCI runtime bundle's
// config.json process field would — the same args/cwd/rlimit
// vocabulary the container ecosystem (and nestybox-sysbox-libs) builds
// against — even though this kernel never writes an actual bundle to
// disk; it only uses the struct as the translation step into the
// prlimit(2) calls applyRlimits issues.
func buildOCIProcess(cfg ExecConfig, limits types.ResourceLimits) *specs.Process {
	return &specs.Process{
		Args: append([]string{cfg.Command}, cfg.Args...),
		Cwd:  "/",
		Rlimits: []specs.POSIXRlimit{
			{Type: "RLIMIT_NOFILE", Hard: uint64(limits.MaxFileDescriptors), Soft: uint64(limits.MaxFileDescriptors)},
			{Type: "RLIMIT_NPROC", Hard: uint64(limits.MaxProcesses), Soft: uint64(limits.MaxProcesses)},
			{Type: "RLIMIT_AS", Hard: limits.MaxMemoryBytes, Soft: limits.MaxMemoryBytes},
			{Type: "RLIMIT_CPU", Hard: ceilMsToSeconds(limits.MaxCPUTimeMs), Soft: ceilMsToSeconds(limits.MaxCPUTimeMs)},
		},
	}
}

func ceilMsToSeconds(ms uint64) uint64 {
	return (ms + 999) / 1000
}

// ociRlimitResource maps an OCI POSIXRlimit.Type name onto the
// unix.RLIMIT_* constant prlimit(2) expects.
func ociRlimitResource(name string) (int, bool) {
	switch name {
	case "RLIMIT_NOFILE":
		return unix.RLIMIT_NOFILE, true
	case "RLIMIT_NPROC":
		return unix.RLIMIT_NPROC, true
	case "RLIMIT_AS":
		return unix.RLIMIT_AS, true
	case "RLIMIT_CPU":
		return unix.RLIMIT_CPU, true
	default:
		return 0, false
	}
}

// applyRlimits issues a prlimit(2) per non-zero rlimit in spec against
// osPid. A zero Hard value means the sandbox's ResourceLimits left that
// ceiling unset, so it is skipped rather than actually zeroing the
// child's limit. Best-effort like applyCapabilityBounds: the caller
// logs and continues past any error.
func applyRlimits(osPid int, spec *specs.Process) error {
	for _, rl := range spec.Rlimits {
		if rl.Hard == 0 {
			continue
		}
		resource, ok := ociRlimitResource(rl.Type)
		if !ok {
			continue
		}
		limit := unix.Rlimit{Cur: rl.Soft, Max: rl.Hard}
		if err := unix.Prlimit(osPid, resource, &limit, nil); err != nil {
			return fmt.Errorf("process: prlimit %s on pid %d: %w", rl.Type, osPid, err)
		}
	}
	return nil
}
