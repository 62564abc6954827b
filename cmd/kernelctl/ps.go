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
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/internal/kerneld"
	"github.com/nyxkernel/kernel/pkg/kernel/config"
)

type psCommand struct {
	configFlag
}

func (*psCommand) Name() string     { return "ps" }
func (*psCommand) Synopsis() string { return "list every process the kernel currently tracks" }
func (*psCommand) Usage() string {
	return "ps [-config path]:\n  list processes, their state, priority and parent.\n"
}

func (c *psCommand) SetFlags(f *flag.FlagSet) { c.register(f) }

func (c *psCommand) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
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

	procs := k.Procs.List()
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PID\tNAME\tSTATE\tPRIORITY\tPARENT")
	for _, p := range procs {
		parent := "-"
		if p.ParentPid != nil {
			parent = fmt.Sprintf("%d", *p.ParentPid)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", p.Pid, p.Name, p.State, p.Priority, parent)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
