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

// Package netfit gives the sandbox's NetworkRule checks and the
// NetworkNamespace capability real teeth on Linux hosts: it cross-checks
// an allow-host/CIDR/port rule against the host's actual routes via
// vishvananda/netlink, and it can create/join a real network namespace
// via vishvananda/netns for a process granted CapNetworkNamespace.
// Best-effort everywhere else — neither check is required for the
// sandbox's own (simulated) allow/deny decision to be correct.
package netfit

import (
	"fmt"
	"net"
	"runtime"

	"github.com/vishvananda/netlink"
	"github.com/vishvananda/netns"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// RouteExists reports whether the host currently has a route capable of
// reaching host (best-effort: resolution failures count as "no route"
// rather than propagating an error, since this is only a cross-check
// alongside the sandbox's own policy decision).
func RouteExists(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := net.LookupIP(host)
		if err != nil || len(ips) == 0 {
			return false
		}
		ip = ips[0]
	}
	routes, err := netlink.RouteGet(ip)
	if err != nil {
		return false
	}
	return len(routes) > 0
}

// MatchesRule reports whether rule permits reaching host:port. DenyAll
// refuses everything; a nonzero AllowPort must equal port; then host must
// equal AllowHost or fall inside AllowCIDR, and a rule with neither
// AllowHost nor AllowCIDR set allows any host. SandboxConfig.AllowsNetwork
// evaluates every NetworkRule through this function.
func MatchesRule(rule types.NetworkRule, host string, port uint16) bool {
	if rule.DenyAll {
		return false
	}
	if rule.AllowPort != 0 && rule.AllowPort != port {
		return false
	}
	if rule.AllowHost != "" && rule.AllowHost == host {
		return true
	}
	if rule.AllowCIDR != "" {
		_, cidr, err := net.ParseCIDR(rule.AllowCIDR)
		if err == nil {
			ip := net.ParseIP(host)
			if ip == nil {
				if ips, err := net.LookupIP(host); err == nil && len(ips) > 0 {
					ip = ips[0]
				}
			}
			if ip != nil && cidr.Contains(ip) {
				return true
			}
		}
	}
	return rule.AllowHost == "" && rule.AllowCIDR == ""
}

// Namespace wraps a real Linux network namespace handle for one Pid,
// created on demand for a process granted CapNetworkNamespace.
type Namespace struct {
	pid    types.Pid
	handle netns.NsHandle
}

// CreateNamespace allocates a fresh, named network namespace for pid.
// Creating a namespace switches the calling thread into it, so this locks
// the goroutine to its OS thread, saves the thread's current namespace,
// and switches back to it before unlocking.
func CreateNamespace(pid types.Pid) (*Namespace, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origin, err := netns.Get()
	if err != nil {
		return nil, fmt.Errorf("netfit: read current namespace: %w", err)
	}
	defer origin.Close()
	defer netns.Set(origin)

	h, err := netns.NewNamed(fmt.Sprintf("nyxkernel-%d", uint32(pid)))
	if err != nil {
		return nil, fmt.Errorf("netfit: create namespace for %s: %w", pid, err)
	}
	return &Namespace{pid: pid, handle: h}, nil
}

// Join switches the calling OS thread into ns. Caller must have called
// runtime.LockOSThread first and must restore the original namespace
// (e.g. via netns.Set back to a saved handle) before unlocking.
func (ns *Namespace) Join() error {
	return netns.Set(ns.handle)
}

// Close deletes the namespace, releasing its resources.
func (ns *Namespace) Close() error {
	defer ns.handle.Close()
	return netns.DeleteNamed(fmt.Sprintf("nyxkernel-%d", uint32(ns.pid)))
}
