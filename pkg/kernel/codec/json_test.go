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

package codec

import (
	"reflect"
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/syscall"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func TestEncodeDecodeSyscallRoundTrip(t *testing.T) {
	cases := []syscall.Syscall{
		syscall.ReadFile{Path: "/etc/hostname"},
		syscall.WriteFile{Path: "/tmp/x", Data: []byte("payload")},
		syscall.GetWorkingDirectory{},
		syscall.SpawnProcess{Command: "/bin/sh", Args: []string{"-c", "echo hi"}},
		syscall.KillProcess{TargetPid: types.Pid(7)},
		syscall.PipeRead{Id: 3, N: 64},
		syscall.Socket{Domain: 2, Type: 1},
		syscall.SendTo{Fd: 4, Host: "10.0.0.1", Port: 53, Data: []byte{1, 2, 3}},
		syscall.SetSchedulingPolicy{Policy: 1},
		syscall.GetUptime{},
		syscall.SendSignal{TargetPid: types.Pid(9), Signal: 15},
	}

	for _, sc := range cases {
		data, err := EncodeSyscall(sc)
		if err != nil {
			t.Fatalf("EncodeSyscall(%s) err = %v", sc.Name(), err)
		}
		got, err := DecodeSyscall(data)
		if err != nil {
			t.Fatalf("DecodeSyscall(%s) err = %v", sc.Name(), err)
		}
		if got.Name() != sc.Name() {
			t.Fatalf("DecodeSyscall name = %s, want %s", got.Name(), sc.Name())
		}
		if !reflect.DeepEqual(got, sc) {
			t.Fatalf("DecodeSyscall(%s) = %#v, want %#v", sc.Name(), got, sc)
		}
	}
}

func TestDecodeSyscallUnrecognizedTag(t *testing.T) {
	_, err := DecodeSyscall([]byte(`{"tag":"NotARealSyscall"}`))
	if err == nil {
		t.Fatalf("DecodeSyscall() err = nil, want error for unrecognized tag")
	}
}

func TestDecodeSyscallMalformedEnvelope(t *testing.T) {
	_, err := DecodeSyscall([]byte(`not json`))
	if err == nil {
		t.Fatalf("DecodeSyscall() err = nil, want error for malformed envelope")
	}
}

func TestEncodeSyscallTagMatchesName(t *testing.T) {
	sc := syscall.FileExists{Path: "/tmp"}
	data, err := EncodeSyscall(sc)
	if err != nil {
		t.Fatalf("EncodeSyscall() err = %v", err)
	}
	if got, want := string(data), `"tag":"FileExists"`; !contains(got, want) {
		t.Fatalf("encoded envelope = %s, want it to contain %s", got, want)
	}
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}
