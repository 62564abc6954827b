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

package syscall

import "github.com/nyxkernel/kernel/pkg/kernel/types"

var (
	unknownSyscall   = types.InvalidArgument("syscall: unrecognized variant")
	noFDTable        = types.NotFound("syscall: pid has no file descriptor table")
	fdTableFull      = types.LimitExceeded(1, 0, "syscall: file descriptor table full")
	badFd            = types.NotFound("syscall: bad file descriptor")
	invalidFcntlCmd  = types.InvalidArgument("syscall: unrecognized fcntl command")
	unknownSocket    = types.NotFound("syscall: bad socket descriptor")
	unknownQueue     = types.NotFound("syscall: bad ipc descriptor")
	unknownSignal    = types.InvalidArgument("syscall: invalid signal number")
)

func vfsNotFound(path string) error {
	return types.NotFound("syscall: no such path %q", path)
}
