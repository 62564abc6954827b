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

// Command kernelctl is the operator CLI: each action (inspect
// processes, dump stats, tail the event stream) is one
// subcommands.Command, the same structure runsc's own command-line
// tool uses this module's google/subcommands dependency for.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&psCommand{}, "")
	subcommands.Register(&killCommand{}, "")
	subcommands.Register(&statsCommand{}, "")
	subcommands.Register(&eventsCommand{}, "")

	flag.Parse()
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(int(subcommands.Execute(context.Background())))
}

// configFlag is embedded by every subcommand so -config is spelled the
// same way everywhere; each kernelctl invocation builds its own Kernel
// against that config rather than attaching to a remote kerneld (see
// internal/kerneld's package doc for why).
type configFlag struct {
	path string
}

func (c *configFlag) register(f *flag.FlagSet) {
	f.StringVar(&c.path, "config", "", "path to the KernelConfig YAML file kerneld was started with")
}
