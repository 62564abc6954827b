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
	"path"
	"strings"
	"sync"
	"time"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// FileInfo is the read-only view FileStat and directory listings
// return.
type FileInfo struct {
	Path        string
	Kind        NodeKind
	Size        int
	Permissions Permissions
	Created     time.Time
	Modified    time.Time
}

// FileSystem is the interface both the in-memory core (MemFS) and the
// disk-backed adapter (pkg/kernel/vfs/diskfs) implement, so either can
// sit behind the syscall dispatcher's filesystem calls unchanged.
type FileSystem interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Append(path string, data []byte) error
	Create(path string, perms Permissions) error
	Delete(path string) error
	ListDir(path string) ([]FileInfo, error)
	CreateDir(path string, perms Permissions) error
	RemoveDir(path string) error
	RemoveDirAll(path string) error
	Rename(source, destination string) error
	Copy(source, destination string) error
	Truncate(path string, size int) error
	SetPermissions(path string, perms Permissions) error
	Exists(path string) bool
	Stat(path string) (FileInfo, error)
	Open(path string, flags OpenFlags) (Handle, error)
	TotalSize() uint64
}

// MemFS is the root-mounted in-memory hierarchy spec.md §4.9 describes:
// a concurrent map path->node plus a reconciled total-size counter.
type MemFS struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	size  uint64
	now   func() time.Time
}

var _ FileSystem = (*MemFS)(nil)
var _ FileSystem = (*Observable)(nil)

// NewMemFS builds an empty filesystem with just the root directory.
func NewMemFS() *MemFS {
	return NewMemFSWithClock(time.Now)
}

// NewMemFSWithClock builds an empty filesystem using now for
// timestamps, so tests can control Created/Modified deterministically.
func NewMemFSWithClock(now func() time.Time) *MemFS {
	fs := &MemFS{nodes: make(map[string]*Node), now: now}
	fs.nodes["/"] = newDirectory(Permissions{Read: true, Write: true, Execute: true}, now())
	return fs
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	c := path.Clean("/" + p)
	return c
}

func parentOf(p string) string {
	if p == "/" {
		return "/"
	}
	d := path.Dir(p)
	if d == "" {
		return "/"
	}
	return d
}

func baseOf(p string) string {
	return path.Base(p)
}

// dirNode returns p's directory node, requiring it exist and be a
// directory.
func (fs *MemFS) dirNode(p string) (*Node, error) {
	n, ok := fs.nodes[p]
	if !ok {
		return nil, types.NotFound("vfs: no such directory %q", p)
	}
	if n.Kind != KindDirectory {
		return nil, types.InvalidArgument("vfs: %q is not a directory", p)
	}
	return n, nil
}

func (fs *MemFS) fileNode(p string) (*Node, error) {
	n, ok := fs.nodes[p]
	if !ok {
		return nil, types.NotFound("vfs: no such file %q", p)
	}
	if n.Kind != KindFile {
		return nil, types.InvalidArgument("vfs: %q is not a file", p)
	}
	return n, nil
}

// Read returns path's full contents.
func (fs *MemFS) Read(p string) ([]byte, error) {
	p = clean(p)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, err := fs.fileNode(p)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), n.Data...), nil
}

// Write replaces path's contents, denying if the file's write bit is
// unset — spec.md's "permission bits gate writes" invariant.
func (fs *MemFS) Write(p string, data []byte) error {
	p = clean(p)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, err := fs.fileNode(p)
	if err != nil {
		return err
	}
	if !n.Permissions.Write {
		return types.PermissionDenied("vfs: %q is read-only", p)
	}
	fs.size -= uint64(len(n.Data))
	n.Data = append([]byte(nil), data...)
	fs.size += uint64(len(n.Data))
	n.Modified = fs.now()
	return nil
}

// Append appends data to path's contents, under the same write-bit
// gate as Write.
func (fs *MemFS) Append(p string, data []byte) error {
	p = clean(p)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, err := fs.fileNode(p)
	if err != nil {
		return err
	}
	if !n.Permissions.Write {
		return types.PermissionDenied("vfs: %q is read-only", p)
	}
	n.Data = append(n.Data, data...)
	fs.size += uint64(len(data))
	n.Modified = fs.now()
	return nil
}

// Create makes an empty file at path. The parent directory must exist
// and be write-enabled.
func (fs *MemFS) Create(p string, perms Permissions) error {
	p = clean(p)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, exists := fs.nodes[p]; exists {
		return types.InvalidArgument("vfs: %q already exists", p)
	}
	parent, err := fs.dirNode(parentOf(p))
	if err != nil {
		return err
	}
	if !parent.Permissions.Write {
		return types.PermissionDenied("vfs: parent directory of %q is read-only", p)
	}
	now := fs.now()
	fs.nodes[p] = newFile(perms, now)
	parent.Children[baseOf(p)] = p
	parent.Modified = now
	return nil
}

// Delete removes a file, gated by the parent directory's write bit.
func (fs *MemFS) Delete(p string) error {
	p = clean(p)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, err := fs.fileNode(p)
	if err != nil {
		return err
	}
	parent, err := fs.dirNode(parentOf(p))
	if err != nil {
		return err
	}
	if !parent.Permissions.Write {
		return types.PermissionDenied("vfs: parent directory of %q is read-only", p)
	}
	fs.size -= uint64(len(n.Data))
	delete(fs.nodes, p)
	delete(parent.Children, baseOf(p))
	parent.Modified = fs.now()
	return nil
}

// ListDir returns path's immediate children.
func (fs *MemFS) ListDir(p string) ([]FileInfo, error) {
	p = clean(p)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	dir, err := fs.dirNode(p)
	if err != nil {
		return nil, err
	}
	out := make([]FileInfo, 0, len(dir.Children))
	for _, childPath := range dir.Children {
		n := fs.nodes[childPath]
		out = append(out, fs.infoFor(childPath, n))
	}
	return out, nil
}

// CreateDir makes a new directory under an existing, write-enabled
// parent.
func (fs *MemFS) CreateDir(p string, perms Permissions) error {
	p = clean(p)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, exists := fs.nodes[p]; exists {
		return types.InvalidArgument("vfs: %q already exists", p)
	}
	parent, err := fs.dirNode(parentOf(p))
	if err != nil {
		return err
	}
	if !parent.Permissions.Write {
		return types.PermissionDenied("vfs: parent directory of %q is read-only", p)
	}
	now := fs.now()
	fs.nodes[p] = newDirectory(perms, now)
	parent.Children[baseOf(p)] = p
	parent.Modified = now
	return nil
}

// RemoveDir removes an empty directory.
func (fs *MemFS) RemoveDir(p string) error {
	p = clean(p)
	if p == "/" {
		return types.InvalidArgument("vfs: cannot remove the root directory")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	dir, err := fs.dirNode(p)
	if err != nil {
		return err
	}
	if len(dir.Children) > 0 {
		return types.InvalidArgument("vfs: directory %q is not empty", p)
	}
	parent, err := fs.dirNode(parentOf(p))
	if err != nil {
		return err
	}
	if !parent.Permissions.Write {
		return types.PermissionDenied("vfs: parent directory of %q is read-only", p)
	}
	delete(fs.nodes, p)
	delete(parent.Children, baseOf(p))
	parent.Modified = fs.now()
	return nil
}

// RemoveDirAll removes path and everything beneath it.
func (fs *MemFS) RemoveDirAll(p string) error {
	p = clean(p)
	if p == "/" {
		return types.InvalidArgument("vfs: cannot remove the root directory")
	}
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, err := fs.dirNode(p); err != nil {
		return err
	}
	parent, err := fs.dirNode(parentOf(p))
	if err != nil {
		return err
	}
	if !parent.Permissions.Write {
		return types.PermissionDenied("vfs: parent directory of %q is read-only", p)
	}
	prefix := p + "/"
	for path := range fs.nodes {
		if path == p || strings.HasPrefix(path, prefix) {
			if n := fs.nodes[path]; n.Kind == KindFile {
				fs.size -= uint64(len(n.Data))
			}
			delete(fs.nodes, path)
		}
	}
	delete(parent.Children, baseOf(p))
	parent.Modified = fs.now()
	return nil
}

// Rename moves source to destination, gated by both parents' write
// bits.
func (fs *MemFS) Rename(source, destination string) error {
	source, destination = clean(source), clean(destination)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[source]
	if !ok {
		return types.NotFound("vfs: no such path %q", source)
	}
	if _, exists := fs.nodes[destination]; exists {
		return types.InvalidArgument("vfs: %q already exists", destination)
	}
	srcParent, err := fs.dirNode(parentOf(source))
	if err != nil {
		return err
	}
	dstParent, err := fs.dirNode(parentOf(destination))
	if err != nil {
		return err
	}
	if !srcParent.Permissions.Write || !dstParent.Permissions.Write {
		return types.PermissionDenied("vfs: rename requires write access to both parent directories")
	}
	delete(fs.nodes, source)
	delete(srcParent.Children, baseOf(source))
	fs.nodes[destination] = n
	dstParent.Children[baseOf(destination)] = destination
	now := fs.now()
	srcParent.Modified, dstParent.Modified, n.Modified = now, now, now
	return nil
}

// Copy duplicates a file from source to destination.
func (fs *MemFS) Copy(source, destination string) error {
	source, destination = clean(source), clean(destination)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, err := fs.fileNode(source)
	if err != nil {
		return err
	}
	if _, exists := fs.nodes[destination]; exists {
		return types.InvalidArgument("vfs: %q already exists", destination)
	}
	dstParent, err := fs.dirNode(parentOf(destination))
	if err != nil {
		return err
	}
	if !dstParent.Permissions.Write {
		return types.PermissionDenied("vfs: parent directory of %q is read-only", destination)
	}
	now := fs.now()
	cp := newFile(n.Permissions, now)
	cp.Data = append([]byte(nil), n.Data...)
	fs.nodes[destination] = cp
	dstParent.Children[baseOf(destination)] = destination
	dstParent.Modified = now
	fs.size += uint64(len(cp.Data))
	return nil
}

// Truncate resizes a file's contents to size, zero-padding growth and
// discarding past size on shrink. Gated by the write bit.
func (fs *MemFS) Truncate(p string, size int) error {
	p = clean(p)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, err := fs.fileNode(p)
	if err != nil {
		return err
	}
	if !n.Permissions.Write {
		return types.PermissionDenied("vfs: %q is read-only", p)
	}
	if size < 0 {
		return types.InvalidArgument("vfs: negative truncate size")
	}
	fs.size -= uint64(len(n.Data))
	switch {
	case size <= len(n.Data):
		n.Data = n.Data[:size]
	default:
		grown := make([]byte, size)
		copy(grown, n.Data)
		n.Data = grown
	}
	fs.size += uint64(len(n.Data))
	n.Modified = fs.now()
	return nil
}

// SetPermissions replaces path's permission bits.
func (fs *MemFS) SetPermissions(p string, perms Permissions) error {
	p = clean(p)
	fs.mu.Lock()
	defer fs.mu.Unlock()
	n, ok := fs.nodes[p]
	if !ok {
		return types.NotFound("vfs: no such path %q", p)
	}
	n.Permissions = perms
	n.Modified = fs.now()
	return nil
}

// Exists reports whether path names any node.
func (fs *MemFS) Exists(p string) bool {
	p = clean(p)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	_, ok := fs.nodes[p]
	return ok
}

// Stat returns path's metadata.
func (fs *MemFS) Stat(p string) (FileInfo, error) {
	p = clean(p)
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	n, ok := fs.nodes[p]
	if !ok {
		return FileInfo{}, types.NotFound("vfs: no such path %q", p)
	}
	return fs.infoFor(p, n), nil
}

func (fs *MemFS) infoFor(p string, n *Node) FileInfo {
	return FileInfo{
		Path: p, Kind: n.Kind, Size: len(n.Data),
		Permissions: n.Permissions, Created: n.Created, Modified: n.Modified,
	}
}

// TotalSize returns the reconciled sum of every file's byte length.
func (fs *MemFS) TotalSize() uint64 {
	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return fs.size
}

// Open returns a Handle implementing the open-file interface, per
// spec.md's "open (returning a handle implementing the open-file
// interface)".
func (fs *MemFS) Open(p string, flags OpenFlags) (Handle, error) {
	p = clean(p)
	fs.mu.Lock()
	if _, ok := fs.nodes[p]; !ok {
		if flags.Create {
			fs.mu.Unlock()
			if err := fs.Create(p, DefaultFilePermissions); err != nil {
				return nil, err
			}
			fs.mu.Lock()
		} else {
			fs.mu.Unlock()
			return nil, types.NotFound("vfs: no such file %q", p)
		}
	}
	fs.mu.Unlock()
	fs.mu.RLock()
	_, err := fs.fileNode(p)
	fs.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return &memHandle{fs: fs, path: p, flags: flags}, nil
}
