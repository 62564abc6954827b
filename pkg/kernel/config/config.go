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

// Package config loads the single KernelConfig every cmd/kerneld
// component is wired against: built-in defaults, then an optional YAML
// file, then environment variable overrides — the same
// defaults-then-file-then-env layering lazydocker's pkg/config applies,
// generalized here with an explicit env pass since operators running a
// kernel instance under a process supervisor expect env overrides a
// packaged GUI tool doesn't need.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// LogConfig controls the package-level logrus.Logger cmd/kerneld builds.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MemoryConfig sizes the simulated address space memory.New hands out.
type MemoryConfig struct {
	TotalBytes uint64 `yaml:"total_bytes"`
}

// SchedulerConfig is the scheduler.New(policy, quantum) pair.
type SchedulerConfig struct {
	Policy    string `yaml:"policy"`     // "fair" | "round_robin" | "priority"
	QuantumMs int    `yaml:"quantum_ms"`
}

// VFSConfig selects MemFS vs. the disk-backed adapter (§4.9.1); disk
// backing is opt-in, never the default.
type VFSConfig struct {
	Backend  string `yaml:"backend"` // "memory" | "disk"
	DiskRoot string `yaml:"disk_root"`
}

// DispatcherConfig holds per-Pid syscall rate limiter settings. syscall.New
// does not read them; the dispatcher uses its own RateLimitPerSecond and
// RateLimitBurst constants, which have the same default values.
type DispatcherConfig struct {
	RateLimitPerSecond int `yaml:"rate_limit_per_second"`
	RateLimitBurst     int `yaml:"rate_limit_burst"`
}

// SecprobeConfig gates the eBPF security probe (§4.4.1); disabled by
// default since it requires root and a Linux kernel with BPF enabled.
type SecprobeConfig struct {
	Enabled bool `yaml:"enabled"`
}

// CgroupsConfig gates the best-effort systemd cgroup adapter (§4.6.1).
type CgroupsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// KernelConfig is the single configuration value cmd/kerneld loads and
// wires every component against.
type KernelConfig struct {
	Log        LogConfig        `yaml:"log"`
	Memory     MemoryConfig     `yaml:"memory"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	VFS        VFSConfig        `yaml:"vfs"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Secprobe   SecprobeConfig   `yaml:"secprobe"`
	Cgroups    CgroupsConfig    `yaml:"cgroups"`
}

// Default returns the built-in baseline every Load starts from.
func Default() *KernelConfig {
	return &KernelConfig{
		Log: LogConfig{Level: "info"},
		Memory: MemoryConfig{
			TotalBytes: uint64(types.DefaultResourceLimits().MaxMemoryBytes) * 4,
		},
		Scheduler: SchedulerConfig{Policy: "fair", QuantumMs: 10},
		VFS:       VFSConfig{Backend: "memory"},
		Dispatcher: DispatcherConfig{
			RateLimitPerSecond: 2000,
			RateLimitBurst:     500,
		},
		Secprobe: SecprobeConfig{Enabled: false},
		Cgroups:  CgroupsConfig{Enabled: false},
	}
}

// envPrefix namespaces every override this package recognizes.
const envPrefix = "NYXKERNEL_"

// Load builds a KernelConfig: Default(), overlaid with path's YAML
// contents if path is non-empty and the file exists, overlaid with any
// recognized NYXKERNEL_* environment variable. A missing path is not an
// error — a kernel instance with no config file still runs on defaults.
func Load(path string) (*KernelConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// no file: defaults stand
		default:
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays recognized NYXKERNEL_* variables onto cfg in place.
func applyEnv(cfg *KernelConfig) error {
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := lookupEnvUint("MEMORY_TOTAL_BYTES"); ok {
		cfg.Memory.TotalBytes = v
	}
	if v, ok := lookupEnv("SCHEDULER_POLICY"); ok {
		cfg.Scheduler.Policy = v
	}
	if v, ok := lookupEnvInt("SCHEDULER_QUANTUM_MS"); ok {
		cfg.Scheduler.QuantumMs = v
	}
	if v, ok := lookupEnv("VFS_BACKEND"); ok {
		cfg.VFS.Backend = v
	}
	if v, ok := lookupEnv("VFS_DISK_ROOT"); ok {
		cfg.VFS.DiskRoot = v
	}
	if v, ok := lookupEnvInt("DISPATCHER_RATE_LIMIT_PER_SECOND"); ok {
		cfg.Dispatcher.RateLimitPerSecond = v
	}
	if v, ok := lookupEnvInt("DISPATCHER_RATE_LIMIT_BURST"); ok {
		cfg.Dispatcher.RateLimitBurst = v
	}
	if v, ok := lookupEnvBool("SECPROBE_ENABLED"); ok {
		cfg.Secprobe.Enabled = v
	}
	if v, ok := lookupEnvBool("CGROUPS_ENABLED"); ok {
		cfg.Cgroups.Enabled = v
	}
	return nil
}

func lookupEnv(suffix string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + suffix)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func lookupEnvInt(suffix string) (int, bool) {
	v, ok := lookupEnv(suffix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvUint(suffix string) (uint64, bool) {
	v, ok := lookupEnv(suffix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func lookupEnvBool(suffix string) (bool, bool) {
	v, ok := lookupEnv(suffix)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// SchedulerPolicyValid reports whether the config's policy name is one
// of "fair", "round_robin" or "priority", returning false for an
// unrecognized name so callers can fail fast at startup rather than
// silently falling back.
func (c *KernelConfig) SchedulerPolicyValid() bool {
	switch c.Scheduler.Policy {
	case "fair", "round_robin", "priority":
		return true
	default:
		return false
	}
}
