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

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/internal/kerneld"
	"github.com/nyxkernel/kernel/pkg/kernel/config"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

type statsCommand struct {
	configFlag
	pid int
}

func (*statsCommand) Name() string { return "stats" }
func (*statsCommand) Synopsis() string {
	return "dump memory and event-stream statistics"
}
func (*statsCommand) Usage() string {
	return "stats [-config path] [-pid pid]:\n  print kernel-wide memory and event stream stats;\n  -pid additionally prints that process's memory usage.\n"
}

func (c *statsCommand) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.IntVar(&c.pid, "pid", -1, "also print memory stats for this pid")
}

func (c *statsCommand) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
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

	fmt.Printf("memory: used=%d total=%d bytes\n", k.Mem.UsedMemory(), k.Mem.TotalMemory())

	snap := k.Stream.Snapshot()
	fmt.Printf("events: produced=%d consumed=%d dropped=%d active_subscribers=%d utilization=%.2f%% under_pressure=%v\n",
		snap.Produced, snap.Consumed, snap.Dropped, snap.ActiveSubscribers, snap.Utilization*100, snap.UnderPressure)
	fmt.Printf("sample_rate=%d%%\n", k.Sampler.Rate())

	if c.pid >= 0 {
		pid := types.Pid(c.pid)
		ps := k.Mem.Stats(pid)
		fmt.Printf("pid %d: current=%d peak=%d allocations=%d\n",
			pid, ps.CurrentBytes, ps.PeakBytes, ps.AllocationCount)
	}
	return subcommands.ExitSuccess
}
