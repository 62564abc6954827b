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
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestLinuxCapabilityBitsCoverBridgedSet(t *testing.T) {
	bridged := make(map[int]bool, len(bridgedCapabilities))
	for _, bit := range bridgedCapabilities {
		bridged[int(bit)] = true
	}
	for tag, bit := range linuxCapabilityBits {
		if !bridged[int(bit)] {
			t.Errorf("capability tag %v maps to bit %v, which is not in bridgedCapabilities", tag, bit)
		}
	}
}

func TestApplyCapabilityBoundsRejectsInvalidPid(t *testing.T) {
	err := applyCapabilityBounds(-1, []types.Capability{{Tag: types.CapSpawnProcess}})
	if err == nil {
		t.Fatal("expected error applying capability bounds to an invalid pid")
	}
}
