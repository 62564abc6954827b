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

package sandbox

import (
	"encoding/json"
	"fmt"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// resourceJSON is Resource's external wire shape: a snake_case tag
// discriminator plus only the fields that tag's variant uses.
type resourceJSON struct {
	Tag        string    `json:"tag"`
	Path       string    `json:"path,omitempty"`
	Host       string    `json:"host,omitempty"`
	Port       uint16    `json:"port,omitempty"`
	IpcChannel string    `json:"ipc_channel,omitempty"`
	Pid        types.Pid `json:"pid,omitempty"`
	System     string    `json:"system,omitempty"`
}

func (r Resource) MarshalJSON() ([]byte, error) {
	out := resourceJSON{Tag: r.Tag.String()}
	switch r.Tag {
	case ResourceFile, ResourceDirectory:
		out.Path = r.Path
	case ResourceNetwork:
		out.Host = r.Host
		if r.HasPort {
			out.Port = r.Port
		}
	case ResourceIpcChannel:
		out.IpcChannel = r.IpcChannel
	case ResourceProcess:
		out.Pid = r.Pid
	case ResourceSystem:
		out.System = r.System
	}
	return json.Marshal(out)
}

func (r *Resource) UnmarshalJSON(data []byte) error {
	var in resourceJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	tag, ok := resourceTagFromString(in.Tag)
	if !ok {
		return fmt.Errorf("sandbox: unrecognized resource tag %q", in.Tag)
	}
	*r = Resource{Tag: tag}
	switch tag {
	case ResourceFile, ResourceDirectory:
		r.Path = in.Path
	case ResourceNetwork:
		r.Host = in.Host
		if in.Port != 0 {
			r.Port = in.Port
			r.HasPort = true
		}
	case ResourceIpcChannel:
		r.IpcChannel = in.IpcChannel
	case ResourceProcess:
		r.Pid = in.Pid
	case ResourceSystem:
		r.System = in.System
	}
	return nil
}

func resourceTagFromString(s string) (ResourceTag, bool) {
	for t := ResourceFile; t <= ResourceSystem; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return 0, false
}
