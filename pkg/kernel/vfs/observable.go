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

package vfs

import (
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
)

// Observable decorates any FileSystem, broadcasting {Created,
// Modified, Deleted, Renamed} events on successful mutations.
// Non-mutating operations delegate unchanged, per spec.md §4.9.
type Observable struct {
	FileSystem
	sink kevent.Sink
}

// NewObservable wraps fs, publishing VFSMutation events to sink.
func NewObservable(fs FileSystem, sink kevent.Sink) *Observable {
	if sink == nil {
		sink = kevent.NopSink{}
	}
	return &Observable{FileSystem: fs, sink: sink}
}

func (o *Observable) publish(kind, path, from, to string) {
	o.sink.Publish(kevent.New(kevent.Info, kevent.CategoryProcess, nil, kevent.VFSMutation{
		Kind: kind, Path: path, From: from, To: to,
	}))
}

func (o *Observable) Write(path string, data []byte) error {
	if err := o.FileSystem.Write(path, data); err != nil {
		return err
	}
	o.publish("Modified", path, "", "")
	return nil
}

func (o *Observable) Append(path string, data []byte) error {
	if err := o.FileSystem.Append(path, data); err != nil {
		return err
	}
	o.publish("Modified", path, "", "")
	return nil
}

func (o *Observable) Create(path string, perms Permissions) error {
	if err := o.FileSystem.Create(path, perms); err != nil {
		return err
	}
	o.publish("Created", path, "", "")
	return nil
}

func (o *Observable) Delete(path string) error {
	if err := o.FileSystem.Delete(path); err != nil {
		return err
	}
	o.publish("Deleted", path, "", "")
	return nil
}

func (o *Observable) CreateDir(path string, perms Permissions) error {
	if err := o.FileSystem.CreateDir(path, perms); err != nil {
		return err
	}
	o.publish("Created", path, "", "")
	return nil
}

func (o *Observable) RemoveDir(path string) error {
	if err := o.FileSystem.RemoveDir(path); err != nil {
		return err
	}
	o.publish("Deleted", path, "", "")
	return nil
}

func (o *Observable) RemoveDirAll(path string) error {
	if err := o.FileSystem.RemoveDirAll(path); err != nil {
		return err
	}
	o.publish("Deleted", path, "", "")
	return nil
}

func (o *Observable) Rename(source, destination string) error {
	if err := o.FileSystem.Rename(source, destination); err != nil {
		return err
	}
	o.publish("Renamed", destination, source, destination)
	return nil
}

func (o *Observable) Copy(source, destination string) error {
	if err := o.FileSystem.Copy(source, destination); err != nil {
		return err
	}
	o.publish("Created", destination, "", "")
	return nil
}

func (o *Observable) Truncate(path string, size int) error {
	if err := o.FileSystem.Truncate(path, size); err != nil {
		return err
	}
	o.publish("Modified", path, "", "")
	return nil
}

func (o *Observable) SetPermissions(path string, perms Permissions) error {
	if err := o.FileSystem.SetPermissions(path, perms); err != nil {
		return err
	}
	o.publish("Modified", path, "", "")
	return nil
}
