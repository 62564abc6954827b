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

import "testing"

func TestValidateCommandRejectsEmpty(t *testing.T) {
	if err := ValidateCommand(ExecConfig{Command: "  "}); err == nil {
		t.Fatal("expected error for empty command")
	}
}

func TestValidateCommandRejectsShellMetacharacters(t *testing.T) {
	cases := []ExecConfig{
		{Command: "echo", Args: []string{"a; rm -rf /"}},
		{Command: "sh -c whoami;id"},
		{Command: "echo", Args: []string{"$(whoami)"}},
		{Command: "echo", Args: []string{"a`b`"}},
		{Command: "echo", Args: []string{"a&b"}},
		{Command: "echo", Args: []string{"a|b"}},
	}
	for _, cfg := range cases {
		if err := ValidateCommand(cfg); err == nil {
			t.Fatalf("expected rejection for %+v", cfg)
		}
	}
}

func TestValidateCommandRejectsTraversal(t *testing.T) {
	cases := []ExecConfig{
		{Command: "/bin/cat", Args: []string{"../../etc/shadow"}},
		{Command: "/bin/cat", Args: []string{"%2e%2e/secret"}},
	}
	for _, cfg := range cases {
		if err := ValidateCommand(cfg); err == nil {
			t.Fatalf("expected rejection for %+v", cfg)
		}
	}
}

func TestValidateCommandAcceptsClean(t *testing.T) {
	cfg := ExecConfig{Command: "/bin/echo", Args: []string{"hello", "world"}}
	if err := ValidateCommand(cfg); err != nil {
		t.Fatalf("expected clean command to validate, got %v", err)
	}
}
