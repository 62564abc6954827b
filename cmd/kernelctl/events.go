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
	"time"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/internal/kerneld"
	"github.com/nyxkernel/kernel/pkg/kernel/config"
	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/observability"
)

// eventsCommand tails the live event stream for a fixed duration. Since
// kernelctl builds its own ephemeral Kernel rather than attaching to a
// running kerneld's stream, this only shows events produced by
// activity this process itself drives meanwhile (e.g. a concurrent ps
// or kill from another invocation hits a different Kernel instance) —
// documented in internal/kerneld's package doc.
type eventsCommand struct {
	configFlag
	duration    time.Duration
	minSeverity int
}

func (*eventsCommand) Name() string     { return "events" }
func (*eventsCommand) Synopsis() string { return "tail the kernel event stream" }
func (*eventsCommand) Usage() string {
	return "events [-config path] [-duration 5s] [-min-severity 0]:\n  print events published to the stream for the given duration.\n"
}

func (c *eventsCommand) SetFlags(f *flag.FlagSet) {
	c.register(f)
	f.DurationVar(&c.duration, "duration", 5*time.Second, "how long to tail the stream before exiting")
	f.IntVar(&c.minSeverity, "min-severity", 0, "minimum kevent.Severity to print")
}

func (c *eventsCommand) Execute(ctx context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
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

	sub := observability.NewSubscriber(k.Stream)
	defer sub.Close()

	filter := observability.EventFilter{MinSeverity: kevent.Severity(c.minSeverity)}
	deadline := time.After(c.duration)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return subcommands.ExitSuccess
		case <-deadline:
			fmt.Fprintf(os.Stderr, "tailed %d events over %s\n", sub.Consumed(), c.duration)
			return subcommands.ExitSuccess
		case <-ticker.C:
			for {
				ev, ok := sub.Pull(filter)
				if !ok {
					break
				}
				printEvent(ev)
			}
		}
	}
}

func printEvent(ev kevent.Event) {
	pid := "-"
	if ev.Pid != nil {
		pid = fmt.Sprintf("%d", *ev.Pid)
	}
	fmt.Printf("[%d] severity=%v category=%v pid=%s payload=%+v\n",
		ev.TimestampNanos, ev.Severity, ev.Category, pid, ev.Payload)
}
