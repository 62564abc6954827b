package sandbox

import (
	"testing"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

func readWriteConfig(paths ...string) SandboxConfig {
	var caps []types.Capability
	for _, p := range paths {
		caps = append(caps,
			types.Capability{Tag: types.CapReadFile, Path: p},
			types.Capability{Tag: types.CapWriteFile, Path: p},
		)
	}
	return SandboxConfig{Capabilities: caps, Limits: types.DefaultResourceLimits()}
}

func TestCheckAllowsMatchingCapability(t *testing.T) {
	m := New(nil, nil)
	m.Create(1, readWriteConfig("/data"))

	resp := m.Check(PermissionRequest{Pid: 1, Resource: Resource{Tag: ResourceFile, Path: "/data/file.txt"}, Action: ActionRead})
	if !resp.Allowed {
		t.Fatalf("Check got Allowed=false want true: %s", resp.Reason)
	}
}

func TestCheckDeniesMissingCapability(t *testing.T) {
	m := New(nil, nil)
	m.Create(1, SandboxConfig{})

	resp := m.Check(PermissionRequest{Pid: 1, Resource: Resource{Tag: ResourceFile, Path: "/data/file.txt"}, Action: ActionRead})
	if resp.Allowed {
		t.Fatalf("Check got Allowed=true want false")
	}
}

func TestCheckCachesSecondLookup(t *testing.T) {
	m := New(nil, nil)
	m.Create(1, readWriteConfig("/data"))
	req := PermissionRequest{Pid: 1, Resource: Resource{Tag: ResourceFile, Path: "/data/a"}, Action: ActionRead}

	first := m.Check(req)
	if first.Cached {
		t.Fatalf("first Check got Cached=true want false")
	}
	second := m.Check(req)
	if !second.Cached {
		t.Fatalf("second Check got Cached=false want true")
	}
}

func TestCheckAndAuditEmitsPermissionDeniedEvent(t *testing.T) {
	received := make(chan kevent.Event, 1)
	sink := sinkFunc(func(ev kevent.Event) bool {
		received <- ev
		return true
	})
	m := New(sink, nil)
	m.Create(1, SandboxConfig{})

	resp := m.CheckAndAudit(PermissionRequest{Pid: 1, Resource: Resource{Tag: ResourceFile, Path: "/x"}, Action: ActionRead})
	if resp.Allowed {
		t.Fatalf("CheckAndAudit got Allowed=true want false")
	}
	select {
	case ev := <-received:
		if ev.Category != kevent.CategorySecurity {
			t.Fatalf("event Category got %v want CategorySecurity", ev.Category)
		}
	default:
		t.Fatalf("no PermissionDenied event published")
	}
}

func TestAuditRecordsDenialCount(t *testing.T) {
	m := New(nil, nil)
	m.Create(1, SandboxConfig{})
	m.CheckAndAudit(PermissionRequest{Pid: 1, Resource: Resource{Tag: ResourceFile, Path: "/x"}, Action: ActionRead})
	m.CheckAndAudit(PermissionRequest{Pid: 1, Resource: Resource{Tag: ResourceFile, Path: "/y"}, Action: ActionWrite})

	if got, want := m.Audit().DenialCount(1), uint64(2); got != want {
		t.Fatalf("DenialCount got %v want %v", got, want)
	}
}

func TestCanSpawnProcessRespectsLimit(t *testing.T) {
	m := New(nil, nil)
	cfg := SandboxConfig{Limits: types.ResourceLimits{MaxProcesses: 1}}
	m.Create(1, cfg)

	if !m.CanSpawnProcess(1) {
		t.Fatalf("CanSpawnProcess before any spawn got false want true")
	}
	m.RecordSpawn(1)
	if m.CanSpawnProcess(1) {
		t.Fatalf("CanSpawnProcess at limit got true want false")
	}
	m.RecordTermination(1)
	if !m.CanSpawnProcess(1) {
		t.Fatalf("CanSpawnProcess after termination got false want true")
	}
}

type sinkFunc func(kevent.Event) bool

func (f sinkFunc) Publish(ev kevent.Event) bool { return f(ev) }
