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

	"github.com/moby/sys/capability"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// linuxCapabilityBits maps the simulated capability tags this kernel's
// sandbox policy actually gates onto the real Linux capability bits a
// spawned OS child's bounding set should carry, so a tag the sandbox
// never grants is also absent from the real child, not just rejected by
// the simulated policy table.
var linuxCapabilityBits = map[types.CapabilityTag]capability.Cap{
	types.CapSpawnProcess:      capability.CAP_SYS_ADMIN,
	types.CapKillProcess:       capability.CAP_KILL,
	types.CapNetworkAccess:     capability.CAP_NET_RAW,
	types.CapBindPort:          capability.CAP_NET_BIND_SERVICE,
	types.CapNetworkNamespace:  capability.CAP_SYS_ADMIN,
}

// bridgedCapabilities is the fixed set of bits applyCapabilityBounds
// ever touches; every other real capability bit is left exactly as the
// host's default bounding set already has it.
var bridgedCapabilities = []capability.Cap{
	capability.CAP_SYS_ADMIN,
	capability.CAP_KILL,
	capability.CAP_NET_RAW,
	capability.CAP_NET_BIND_SERVICE,
}

// applyCapabilityBounds narrows osPid's bounding capability set to
// exactly the bridged bits grants maps to, via moby/sys/capability.
// Best-effort: a host without CAP_SETPCAP (most unprivileged
// containers, CI runners) returns an error the caller logs and
// continues past, since the simulated sandbox policy still gates every
// syscall regardless of what the real bounding set allows.
func applyCapabilityBounds(osPid int, grants []types.Capability) error {
	c, err := capability.NewPid2(osPid)
	if err != nil {
		return fmt.Errorf("capability: new pid %d: %w", osPid, err)
	}
	if err := c.Load(); err != nil {
		return fmt.Errorf("capability: load pid %d: %w", osPid, err)
	}

	granted := make(map[capability.Cap]bool, len(grants))
	for _, g := range grants {
		if bit, ok := linuxCapabilityBits[g.Tag]; ok {
			granted[bit] = true
		}
	}
	for _, bit := range bridgedCapabilities {
		if !granted[bit] {
			c.Unset(capability.BOUNDING, bit)
		}
	}
	if err := c.Apply(capability.BOUNDING); err != nil {
		return fmt.Errorf("capability: apply pid %d: %w", osPid, err)
	}
	return nil
}
