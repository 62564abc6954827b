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

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/internal/kerneld"
	"github.com/nyxkernel/kernel/pkg/kernel/config"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

type killCommand struct {
	configFlag
}

func (*killCommand) Name() string     { return "kill" }
func (*killCommand) Synopsis() string { return "terminate a tracked process by pid" }
func (*killCommand) Usage() string {
	return "kill [-config path] <pid>:\n  terminate the process with the given pid.\n"
}

func (c *killCommand) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *killCommand) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "kill: exactly one pid argument is required")
		return subcommands.ExitUsageError
	}
	raw, err := strconv.ParseUint(f.Arg(0), 10, 32)
	if err != nil {
		fmt.Fprintf(os.Stderr, "kill: invalid pid %q: %v\n", f.Arg(0), err)
		return subcommands.ExitUsageError
	}
	pid := types.Pid(raw)

	cfg, err := config.Load(c.path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		return subcommands.ExitFailure
	}
	k, err := kerneld.Build(cfg, logrus.New())
	if err != nil {
		fmt.Fprintf(os.Stderr, "building kernel: %v\n", err)
		return subcommands.ExitFailure
	}
	defer k.Close()

	if err := k.Procs.Terminate(pid); err != nil {
		fmt.Fprintf(os.Stderr, "kill: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("terminated pid %d\n", pid)
	return subcommands.ExitSuccess
}
