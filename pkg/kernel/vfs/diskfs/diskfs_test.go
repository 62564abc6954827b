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

package diskfs

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
	"github.com/nyxkernel/kernel/pkg/kernel/vfs"
)

func TestCreateWriteReadRoundTrip(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := fs.Create("/a.txt", vfs.DefaultFilePermissions); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fs.Write("/a.txt", []byte("hello")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := fs.Read("/a.txt")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestReadOnlyFileDeniesWrite(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := fs.Create("/ro.txt", vfs.Permissions{Read: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	err = fs.Write("/ro.txt", []byte("nope"))
	if !types.IsKind(err, types.KindPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestCreateDirAndListDir(t *testing.T) {
	fs, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := fs.CreateDir("/sub", vfs.DefaultFilePermissions); err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	if err := fs.Create("/sub/f", vfs.DefaultFilePermissions); err != nil {
		t.Fatalf("Create: %v", err)
	}
	entries, err := fs.ListDir("/sub")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "/sub/f" {
		t.Fatalf("got %+v, want one entry /sub/f", entries)
	}
}
