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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultsWithNoFile(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") err = %v, want nil", err)
	}
	if cfg.Scheduler.Policy != "fair" {
		t.Fatalf("Scheduler.Policy = %q, want fair", cfg.Scheduler.Policy)
	}
	if cfg.VFS.Backend != "memory" {
		t.Fatalf("VFS.Backend = %q, want memory", cfg.VFS.Backend)
	}
	if cfg.Secprobe.Enabled {
		t.Fatalf("Secprobe.Enabled = true, want false by default")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() err = %v, want nil for a missing file", err)
	}
	if cfg.Dispatcher.RateLimitPerSecond != 2000 {
		t.Fatalf("RateLimitPerSecond = %d, want 2000", cfg.Dispatcher.RateLimitPerSecond)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	contents := "scheduler:\n  policy: priority\n  quantum_ms: 25\nvfs:\n  backend: disk\n  disk_root: /var/lib/nyxkernel\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile() err = %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err = %v, want nil", err)
	}
	if cfg.Scheduler.Policy != "priority" {
		t.Fatalf("Scheduler.Policy = %q, want priority", cfg.Scheduler.Policy)
	}
	if cfg.Scheduler.QuantumMs != 25 {
		t.Fatalf("Scheduler.QuantumMs = %d, want 25", cfg.Scheduler.QuantumMs)
	}
	if cfg.VFS.DiskRoot != "/var/lib/nyxkernel" {
		t.Fatalf("VFS.DiskRoot = %q, want /var/lib/nyxkernel", cfg.VFS.DiskRoot)
	}
	// Fields the file didn't mention keep their defaults.
	if cfg.Log.Level != "info" {
		t.Fatalf("Log.Level = %q, want info (untouched by file)", cfg.Log.Level)
	}
}

func TestLoadEnvOverridesFileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kernel.yaml")
	if err := os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() err = %v", err)
	}

	t.Setenv("NYXKERNEL_LOG_LEVEL", "debug")
	t.Setenv("NYXKERNEL_SECPROBE_ENABLED", "true")
	t.Setenv("NYXKERNEL_DISPATCHER_RATE_LIMIT_BURST", "750")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() err = %v, want nil", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("Log.Level = %q, want debug (env override)", cfg.Log.Level)
	}
	if !cfg.Secprobe.Enabled {
		t.Fatalf("Secprobe.Enabled = false, want true (env override)")
	}
	if cfg.Dispatcher.RateLimitBurst != 750 {
		t.Fatalf("RateLimitBurst = %d, want 750 (env override)", cfg.Dispatcher.RateLimitBurst)
	}
}

func TestSchedulerPolicyValid(t *testing.T) {
	cfg := Default()
	for _, p := range []string{"fair", "round_robin", "priority"} {
		cfg.Scheduler.Policy = p
		if !cfg.SchedulerPolicyValid() {
			t.Errorf("SchedulerPolicyValid() = false for %q, want true", p)
		}
	}
	cfg.Scheduler.Policy = "bogus"
	if cfg.SchedulerPolicyValid() {
		t.Fatalf("SchedulerPolicyValid() = true for bogus policy, want false")
	}
}
