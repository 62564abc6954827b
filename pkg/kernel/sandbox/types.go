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

// Package sandbox enforces the capability policy every syscall checks
// against: a per-Pid SandboxConfig, an ordered policy engine, a
// permission cache, and an audit trail. Built from spec.md's own policy
// table directly — gVisor enforces syscalls structurally rather than
// through a data-driven table, so there is no teacher analogue to adapt.
package sandbox

import (
	"time"

	"github.com/nyxkernel/kernel/pkg/kernel/netfit"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// ResourceTag discriminates the Resource tagged union.
type ResourceTag uint8

const (
	ResourceFile ResourceTag = iota
	ResourceDirectory
	ResourceNetwork
	ResourceIpcChannel
	ResourceProcess
	ResourceSystem
)

func (t ResourceTag) String() string {
	switch t {
	case ResourceFile:
		return "file"
	case ResourceDirectory:
		return "directory"
	case ResourceNetwork:
		return "network"
	case ResourceIpcChannel:
		return "ipc_channel"
	case ResourceProcess:
		return "process"
	case ResourceSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Resource is the target of a PermissionRequest.
type Resource struct {
	Tag ResourceTag

	Path string // File, Directory

	Host string // Network
	Port uint16 // Network, optional (0 = unset)
	HasPort bool

	IpcChannel string  // IpcChannel
	Pid        types.Pid // Process
	System     string  // System
}

// Action is what the caller wants to do to a Resource.
type Action uint8

const (
	ActionRead Action = iota
	ActionWrite
	ActionCreate
	ActionDelete
	ActionExecute
	ActionList
	ActionConnect
	ActionBind
	ActionSend
	ActionReceive
	ActionKill
	ActionInspect
)

// PermissionRequest is what the policy engine and cache key on.
type PermissionRequest struct {
	Pid       types.Pid
	Resource  Resource
	Action    Action
	Timestamp time.Time
}

// PermissionResponse is the policy engine's verdict.
type PermissionResponse struct {
	Allowed   bool
	Reason    string
	DecidedAt time.Time
	Cached    bool
}

// SandboxConfig is a process's capability grant set and resource
// ceiling, per spec.md §3.
type SandboxConfig struct {
	Capabilities  []types.Capability
	NetworkRules  []types.NetworkRule
	Limits        types.ResourceLimits
	AllowedPaths  []string
}

// HasCapability reports whether cfg grants tag, and if tag carries a
// path restriction, that path is covered.
func (cfg SandboxConfig) HasCapability(tag types.CapabilityTag, path string) bool {
	for _, c := range cfg.Capabilities {
		if c.Tag == tag && c.AllowsPath(path) {
			return true
		}
	}
	return false
}

// AllowsNetwork reports whether cfg's network rules permit (host, port).
// Matching is delegated to netfit.MatchesRule so CIDR rules get the same
// evaluation here as the real-route cross-check does.
func (cfg SandboxConfig) AllowsNetwork(host string, port uint16) bool {
	for _, r := range cfg.NetworkRules {
		if netfit.MatchesRule(r, host, port) {
			return true
		}
	}
	return false
}
