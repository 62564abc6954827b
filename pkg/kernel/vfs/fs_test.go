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
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestCreateThenReadWriteRoundTrip(t *testing.T) {
	fs := NewMemFS()
	if err := fs.Create("/a.txt", DefaultFilePermissions); err != nil {
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
	if fs.TotalSize() != 5 {
		t.Fatalf("got total size %d, want 5", fs.TotalSize())
	}
}

func TestParentDirectoryTracksChild(t *testing.T) {
	fs := NewMemFS()
	if err := fs.CreateDir("/sub", DefaultFilePermissions); err != nil {
		t.Fatalf("CreateDir: %v", err)
	}
	if err := fs.Create("/sub/f.txt", DefaultFilePermissions); err != nil {
		t.Fatalf("Create: %v", err)
	}
	entries, err := fs.ListDir("/sub")
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "/sub/f.txt" {
		t.Fatalf("got %+v, want one entry /sub/f.txt", entries)
	}
}

func TestSizeReconciliationAcrossWrites(t *testing.T) {
	fs := NewMemFS()
	fs.Create("/a", DefaultFilePermissions)
	fs.Write("/a", []byte("abcdef"))
	fs.Create("/b", DefaultFilePermissions)
	fs.Write("/b", []byte("xyz"))
	if fs.TotalSize() != 9 {
		t.Fatalf("got %d, want 9", fs.TotalSize())
	}
	fs.Write("/a", []byte("ab"))
	if fs.TotalSize() != 5 {
		t.Fatalf("after shrink, got %d, want 5", fs.TotalSize())
	}
	fs.Delete("/b")
	if fs.TotalSize() != 2 {
		t.Fatalf("after delete, got %d, want 2", fs.TotalSize())
	}
}

func TestReadOnlyFileDeniesWrite(t *testing.T) {
	fs := NewMemFS()
	fs.Create("/ro.txt", Permissions{Read: true})
	err := fs.Write("/ro.txt", []byte("nope"))
	if !types.IsKind(err, types.KindPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestReadOnlyParentDeniesCreate(t *testing.T) {
	fs := NewMemFS()
	fs.CreateDir("/locked", Permissions{Read: true, Execute: true})
	err := fs.Create("/locked/x", DefaultFilePermissions)
	if !types.IsKind(err, types.KindPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
}

func TestRemoveDirRequiresEmpty(t *testing.T) {
	fs := NewMemFS()
	fs.CreateDir("/d", DefaultFilePermissions)
	fs.Create("/d/f", DefaultFilePermissions)
	if err := fs.RemoveDir("/d"); err == nil {
		t.Fatal("expected error removing a non-empty directory")
	}
	if err := fs.RemoveDirAll("/d"); err != nil {
		t.Fatalf("RemoveDirAll: %v", err)
	}
	if fs.Exists("/d") || fs.Exists("/d/f") {
		t.Fatal("expected RemoveDirAll to remove the directory and its contents")
	}
}

func TestHandleReadWriteSeek(t *testing.T) {
	fs := NewMemFS()
	fs.Create("/h.txt", DefaultFilePermissions)
	h, err := fs.Open("/h.txt", OpenFlags{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := h.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := h.Seek(0, SeekStart); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	buf := make([]byte, 4)
	n, err := h.Read(buf)
	if err != nil || n != 4 || string(buf) != "0123" {
		t.Fatalf("got (%d,%v,%q), want (4,nil,\"0123\")", n, err, buf)
	}
}

type capturingSink struct{ events []kevent.Event }

func (s *capturingSink) Publish(e kevent.Event) bool {
	s.events = append(s.events, e)
	return true
}

func TestObservableBroadcastsMutations(t *testing.T) {
	sink := &capturingSink{}
	fs := NewObservable(NewMemFS(), sink)

	if err := fs.Create("/o.txt", DefaultFilePermissions); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := fs.Write("/o.txt", []byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := fs.Read("/o.txt"); err != nil {
		t.Fatalf("Read: %v", err)
	}

	if len(sink.events) != 2 {
		t.Fatalf("got %d events, want 2 (Create, Write) — Read must not publish", len(sink.events))
	}
}
