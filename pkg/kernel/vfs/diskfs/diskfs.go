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

// Package diskfs is the pluggable disk-backed FileSystem the VFS core's
// non-goal carve-out allows: it implements vfs.FileSystem over real
// files under a configured root, taking an advisory gofrs/flock for the
// duration of mutating operations so two kernel instances sharing a
// mount don't race. Not wired into the default kernel (in-memory is the
// default); selectable via KernelConfig.VFS.Backend.
package diskfs

import (
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
	"github.com/nyxkernel/kernel/pkg/kernel/vfs"
)

// FS backs vfs.FileSystem with a real directory tree rooted at Root.
type FS struct {
	Root string
	lock *flock.Flock
}

var _ vfs.FileSystem = (*FS)(nil)

// New builds an FS rooted at root, creating it if necessary. The
// advisory lock file lives at root/.nyxkernel.lock.
func New(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, types.OperationFailed(err)
	}
	return &FS{Root: root, lock: flock.New(filepath.Join(root, ".nyxkernel.lock"))}, nil
}

func (f *FS) resolve(p string) string {
	clean := path.Clean("/" + p)
	return filepath.Join(f.Root, filepath.FromSlash(clean))
}

func (f *FS) withLock(fn func() error) error {
	if err := f.lock.Lock(); err != nil {
		return types.OperationFailed(err)
	}
	defer f.lock.Unlock()
	return fn()
}

func toPermissions(mode os.FileMode) vfs.Permissions {
	return vfs.Permissions{
		Read:    mode&0o400 != 0,
		Write:   mode&0o200 != 0,
		Execute: mode&0o100 != 0,
	}
}

func toFileMode(p vfs.Permissions) os.FileMode {
	var m os.FileMode
	if p.Read {
		m |= 0o400
	}
	if p.Write {
		m |= 0o200
	}
	if p.Execute {
		m |= 0o100
	}
	return m
}

func wrapErr(p string, err error) error {
	if os.IsNotExist(err) {
		return types.NotFound("diskfs: no such path %q", p)
	}
	if os.IsPermission(err) {
		return types.PermissionDenied("diskfs: permission denied for %q", p)
	}
	return types.OperationFailed(err)
}

func (f *FS) Read(p string) ([]byte, error) {
	data, err := os.ReadFile(f.resolve(p))
	if err != nil {
		return nil, wrapErr(p, err)
	}
	return data, nil
}

func (f *FS) Write(p string, data []byte) error {
	full := f.resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		return wrapErr(p, err)
	}
	if !toPermissions(info.Mode().Perm()).Write {
		return types.PermissionDenied("diskfs: %q is read-only", p)
	}
	return f.withLock(func() error {
		return wrapErr(p, os.WriteFile(full, data, info.Mode().Perm()))
	})
}

func (f *FS) Append(p string, data []byte) error {
	full := f.resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		return wrapErr(p, err)
	}
	if !toPermissions(info.Mode().Perm()).Write {
		return types.PermissionDenied("diskfs: %q is read-only", p)
	}
	return f.withLock(func() error {
		fh, err := os.OpenFile(full, os.O_WRONLY|os.O_APPEND, info.Mode().Perm())
		if err != nil {
			return wrapErr(p, err)
		}
		defer fh.Close()
		_, err = fh.Write(data)
		return err
	})
}

func (f *FS) Create(p string, perms vfs.Permissions) error {
	full := f.resolve(p)
	return f.withLock(func() error {
		fh, err := os.OpenFile(full, os.O_CREATE|os.O_EXCL|os.O_WRONLY, toFileMode(perms))
		if err != nil {
			return wrapErr(p, err)
		}
		return fh.Close()
	})
}

func (f *FS) Delete(p string) error {
	return f.withLock(func() error { return wrapErr(p, os.Remove(f.resolve(p))) })
}

func (f *FS) ListDir(p string) ([]vfs.FileInfo, error) {
	full := f.resolve(p)
	entries, err := os.ReadDir(full)
	if err != nil {
		return nil, wrapErr(p, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := make([]vfs.FileInfo, 0, len(entries))
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, toFileInfo(path.Join(p, e.Name()), info))
	}
	return out, nil
}

func (f *FS) CreateDir(p string, perms vfs.Permissions) error {
	mode := toFileMode(perms) | 0o100
	return f.withLock(func() error { return wrapErr(p, os.Mkdir(f.resolve(p), mode)) })
}

func (f *FS) RemoveDir(p string) error {
	return f.withLock(func() error { return wrapErr(p, os.Remove(f.resolve(p))) })
}

func (f *FS) RemoveDirAll(p string) error {
	return f.withLock(func() error { return wrapErr(p, os.RemoveAll(f.resolve(p))) })
}

func (f *FS) Rename(source, destination string) error {
	return f.withLock(func() error {
		return wrapErr(source, os.Rename(f.resolve(source), f.resolve(destination)))
	})
}

func (f *FS) Copy(source, destination string) error {
	return f.withLock(func() error {
		in, err := os.Open(f.resolve(source))
		if err != nil {
			return wrapErr(source, err)
		}
		defer in.Close()
		info, err := in.Stat()
		if err != nil {
			return wrapErr(source, err)
		}
		out, err := os.OpenFile(f.resolve(destination), os.O_CREATE|os.O_EXCL|os.O_WRONLY, info.Mode().Perm())
		if err != nil {
			return wrapErr(destination, err)
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}

func (f *FS) Truncate(p string, size int) error {
	full := f.resolve(p)
	info, err := os.Stat(full)
	if err != nil {
		return wrapErr(p, err)
	}
	if !toPermissions(info.Mode().Perm()).Write {
		return types.PermissionDenied("diskfs: %q is read-only", p)
	}
	return f.withLock(func() error { return wrapErr(p, os.Truncate(full, int64(size))) })
}

func (f *FS) SetPermissions(p string, perms vfs.Permissions) error {
	return f.withLock(func() error { return wrapErr(p, os.Chmod(f.resolve(p), toFileMode(perms))) })
}

func (f *FS) Exists(p string) bool {
	_, err := os.Stat(f.resolve(p))
	return err == nil
}

func (f *FS) Stat(p string) (vfs.FileInfo, error) {
	info, err := os.Stat(f.resolve(p))
	if err != nil {
		return vfs.FileInfo{}, wrapErr(p, err)
	}
	return toFileInfo(p, info), nil
}

func toFileInfo(p string, info os.FileInfo) vfs.FileInfo {
	kind := vfs.KindFile
	if info.IsDir() {
		kind = vfs.KindDirectory
	}
	return vfs.FileInfo{
		Path: path.Clean("/" + p), Kind: kind, Size: int(info.Size()),
		Permissions: toPermissions(info.Mode().Perm()), Modified: info.ModTime(),
		Created: info.ModTime(), // real filesystems rarely expose birth time portably
	}
}

func (f *FS) Open(p string, flags vfs.OpenFlags) (vfs.Handle, error) {
	full := f.resolve(p)
	mode := os.O_RDWR
	if flags.Create {
		mode |= os.O_CREATE
	}
	if flags.Append {
		mode |= os.O_APPEND
	}
	if flags.Trunc {
		mode |= os.O_TRUNC
	}
	fh, err := os.OpenFile(full, mode, 0o600)
	if err != nil {
		return nil, wrapErr(p, err)
	}
	return &handle{file: fh, path: path.Clean("/" + p)}, nil
}

// TotalSize walks the tree summing file sizes. Disk-backed, so this is
// O(n) per call rather than a maintained counter — acceptable since
// this adapter is opt-in and not on the default hot path.
func (f *FS) TotalSize() uint64 {
	var total uint64
	filepath.Walk(f.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		total += uint64(info.Size())
		return nil
	})
	return total
}

type handle struct {
	file *os.File
	path string
}

func (h *handle) Read(p []byte) (int, error)  { return h.file.Read(p) }
func (h *handle) Write(p []byte) (int, error) { return h.file.Write(p) }
func (h *handle) Seek(offset int64, whence vfs.SeekWhence) (int64, error) {
	return h.file.Seek(offset, int(whence))
}
func (h *handle) Close() error { return h.file.Close() }
func (h *handle) Path() string { return h.path }
