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

import (
	"net/url"
	"sync"

	"github.com/nyxkernel/kernel/pkg/kernel/sandbox"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Network group, per spec.md §6. Sockets are simulated entirely
// in-process: the dispatcher never opens a real OS socket or joins a
// real network namespace (both are explicit non-goals), but the
// syscall surface, fd lifecycle and sandbox checks are real. A listener
// is addressed by "host:port" and a connect finds it by that key,
// giving accept/connect/send/recv working stream semantics without any
// host networking.
type netSocket struct {
	mu         sync.Mutex
	owner      types.Pid
	localHost  string
	localPort  uint16
	remoteHost string
	remotePort uint16
	listening  bool
	backlog    []*netSocket
	inbox      [][]byte
	opts       map[int]int
	closed     bool
	peer       *netSocket
}

// socketRegistry is the process-independent table of listening sockets,
// keyed by "host:port", that Connect and Accept rendezvous through.
type socketRegistry struct {
	mu        sync.Mutex
	listeners map[string]*netSocket
}

func newSocketRegistry() *socketRegistry {
	return &socketRegistry{listeners: make(map[string]*netSocket)}
}

func addrKey(host string, port uint16) string { return host + ":" + itoa(uint64(port)) }

type Socket struct {
	Domain int
	Type   int
}
type Bind struct {
	Fd   int
	Host string
	Port uint16
}
type Listen struct {
	Fd      int
	Backlog int
}
type Accept struct{ Fd int }
type Connect struct {
	Fd   int
	Host string
	Port uint16
}
type Send struct {
	Fd   int
	Data []byte
}
type Recv struct {
	Fd int
	N  int
}
type SendTo struct {
	Fd   int
	Host string
	Port uint16
	Data []byte
}
type RecvFrom struct {
	Fd int
	N  int
}
type CloseSocket struct{ Fd int }
type SetSockOpt struct {
	Fd    int
	Opt   int
	Value int
}
type GetSockOpt struct {
	Fd  int
	Opt int
}
type NetworkRequest struct{ URL string }

func (Socket) isSyscall()         {}
func (Bind) isSyscall()           {}
func (Listen) isSyscall()         {}
func (Accept) isSyscall()         {}
func (Connect) isSyscall()        {}
func (Send) isSyscall()           {}
func (Recv) isSyscall()           {}
func (SendTo) isSyscall()         {}
func (RecvFrom) isSyscall()       {}
func (CloseSocket) isSyscall()    {}
func (SetSockOpt) isSyscall()     {}
func (GetSockOpt) isSyscall()     {}
func (NetworkRequest) isSyscall() {}

func (Socket) Name() string         { return "Socket" }
func (Bind) Name() string           { return "Bind" }
func (Listen) Name() string         { return "Listen" }
func (Accept) Name() string         { return "Accept" }
func (Connect) Name() string        { return "Connect" }
func (Send) Name() string           { return "Send" }
func (Recv) Name() string           { return "Recv" }
func (SendTo) Name() string         { return "SendTo" }
func (RecvFrom) Name() string       { return "RecvFrom" }
func (CloseSocket) Name() string    { return "CloseSocket" }
func (SetSockOpt) Name() string     { return "SetSockOpt" }
func (GetSockOpt) Name() string     { return "GetSockOpt" }
func (NetworkRequest) Name() string { return "NetworkRequest" }

func networkResource(host string, port uint16, action sandbox.Action) (sandbox.Resource, sandbox.Action) {
	return sandbox.Resource{Tag: sandbox.ResourceNetwork, Host: host, Port: port, HasPort: port != 0}, action
}

func networkPermission(sc Syscall) (sandbox.Resource, sandbox.Action) {
	switch s := sc.(type) {
	case Socket:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "socket"}, sandbox.ActionCreate
	case Bind:
		return networkResource(s.Host, s.Port, sandbox.ActionBind)
	case Listen:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "socket"}, sandbox.ActionWrite
	case Accept:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "socket"}, sandbox.ActionReceive
	case Connect:
		return networkResource(s.Host, s.Port, sandbox.ActionConnect)
	case Send:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "socket"}, sandbox.ActionSend
	case Recv:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "socket"}, sandbox.ActionReceive
	case SendTo:
		return networkResource(s.Host, s.Port, sandbox.ActionSend)
	case RecvFrom:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "socket"}, sandbox.ActionReceive
	case CloseSocket:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "socket"}, sandbox.ActionDelete
	case SetSockOpt, GetSockOpt:
		return sandbox.Resource{Tag: sandbox.ResourceSystem, System: "socket"}, sandbox.ActionInspect
	case NetworkRequest:
		host := s.URL
		if u, err := url.Parse(s.URL); err == nil && u.Host != "" {
			host = u.Hostname()
		}
		return networkResource(host, 0, sandbox.ActionConnect)
	}
	return sandbox.Resource{}, sandbox.ActionInspect
}

func (d *Dispatcher) socketFor(pid types.Pid, fd int) (*netSocket, bool) {
	table, ok := d.procs.FDTable(pid)
	if !ok {
		return nil, false
	}
	g, ok := table.Get(fd)
	if !ok {
		return nil, false
	}
	defer g.Release()
	sock, ok := g.Value().(*netSocket)
	return sock, ok
}

func (d *Dispatcher) execNetwork(pid types.Pid, sc Syscall) SyscallResult {
	switch s := sc.(type) {
	case Socket:
		table, ok := d.procs.FDTable(pid)
		if !ok {
			return Failure(noFDTable)
		}
		sock := &netSocket{owner: pid, opts: make(map[int]int)}
		fd, ok := table.Insert(sock, 0)
		if !ok {
			return Failure(fdTableFull)
		}
		return Success(fd)
	case Bind:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		sock.mu.Lock()
		sock.localHost, sock.localPort = s.Host, s.Port
		sock.mu.Unlock()
		return Success(nil)
	case Listen:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		sock.mu.Lock()
		sock.listening = true
		key := addrKey(sock.localHost, sock.localPort)
		sock.mu.Unlock()
		d.sockets.mu.Lock()
		d.sockets.listeners[key] = sock
		d.sockets.mu.Unlock()
		return Success(nil)
	case Accept:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		sock.mu.Lock()
		if len(sock.backlog) == 0 {
			sock.mu.Unlock()
			return Failure(types.WouldBlock("socket %d: no pending connection", s.Fd))
		}
		peer := sock.backlog[0]
		sock.backlog = sock.backlog[1:]
		sock.mu.Unlock()

		table, ok := d.procs.FDTable(pid)
		if !ok {
			return Failure(noFDTable)
		}
		fd, ok := table.Insert(peer, 0)
		if !ok {
			return Failure(fdTableFull)
		}
		return Success(fd)
	case Connect:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		key := addrKey(s.Host, s.Port)
		d.sockets.mu.Lock()
		listener, ok := d.sockets.listeners[key]
		d.sockets.mu.Unlock()
		if !ok {
			return Failure(types.NotFound("network: no listener at %s", key))
		}
		serverSide := &netSocket{owner: listener.owner, remoteHost: sock.localHost, remotePort: sock.localPort, opts: make(map[int]int), peer: sock}
		sock.mu.Lock()
		sock.remoteHost, sock.remotePort = s.Host, s.Port
		sock.peer = serverSide
		sock.mu.Unlock()
		listener.mu.Lock()
		listener.backlog = append(listener.backlog, serverSide)
		listener.mu.Unlock()
		return Success(nil)
	case Send:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		sock.mu.Lock()
		peer := sock.peer
		sock.mu.Unlock()
		if peer == nil {
			return Failure(types.NotFound("network: socket %d not connected", s.Fd))
		}
		peer.mu.Lock()
		peer.inbox = append(peer.inbox, append([]byte(nil), s.Data...))
		peer.mu.Unlock()
		return Success(len(s.Data))
	case Recv:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		sock.mu.Lock()
		defer sock.mu.Unlock()
		if len(sock.inbox) == 0 {
			return Failure(types.WouldBlock("socket %d: no data available", s.Fd))
		}
		data := sock.inbox[0]
		if len(data) > s.N {
			data = data[:s.N]
		}
		sock.inbox = sock.inbox[1:]
		return Success(data)
	case SendTo:
		key := addrKey(s.Host, s.Port)
		d.sockets.mu.Lock()
		peer := d.sockets.listeners[key]
		d.sockets.mu.Unlock()
		if peer == nil {
			return Failure(types.NotFound("network: no listener at %s", key))
		}
		peer.mu.Lock()
		peer.inbox = append(peer.inbox, append([]byte(nil), s.Data...))
		peer.mu.Unlock()
		return Success(len(s.Data))
	case RecvFrom:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		sock.mu.Lock()
		defer sock.mu.Unlock()
		if len(sock.inbox) == 0 {
			return Failure(types.WouldBlock("socket %d: no data available", s.Fd))
		}
		data := sock.inbox[0]
		if len(data) > s.N {
			data = data[:s.N]
		}
		sock.inbox = sock.inbox[1:]
		return Success(data)
	case CloseSocket:
		table, ok := d.procs.FDTable(pid)
		if !ok {
			return Failure(noFDTable)
		}
		v, ok := table.Remove(s.Fd)
		if !ok {
			return Failure(badFd)
		}
		if sock, ok := v.(*netSocket); ok {
			sock.mu.Lock()
			sock.closed = true
			key := addrKey(sock.localHost, sock.localPort)
			sock.mu.Unlock()
			d.sockets.mu.Lock()
			delete(d.sockets.listeners, key)
			d.sockets.mu.Unlock()
		}
		return Success(nil)
	case SetSockOpt:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		sock.mu.Lock()
		sock.opts[s.Opt] = s.Value
		sock.mu.Unlock()
		return Success(nil)
	case GetSockOpt:
		sock, ok := d.socketFor(pid, s.Fd)
		if !ok {
			return Failure(unknownSocket)
		}
		sock.mu.Lock()
		v := sock.opts[s.Opt]
		sock.mu.Unlock()
		return Success(v)
	case NetworkRequest:
		// Permission already gated this against the parsed host above;
		// no real outbound request is made (non-goal: real OS network
		// primitives), just an acknowledgement that it would be allowed.
		return Success(s.URL)
	}
	return Failure(unknownSyscall)
}
