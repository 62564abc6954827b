package sandbox

import (
	"github.com/sirupsen/logrus"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/stripedmap"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Manager is the sandbox: a concurrent Pid->SandboxConfig map, a spawn
// counter per Pid, the policy engine, permission cache, and audit trail.
type Manager struct {
	log *logrus.Entry

	configs *stripedmap.StripedMap[types.Pid, SandboxConfig]
	spawns  *stripedmap.StripedMap[types.Pid, uint32]

	engine *Engine
	cache  *Cache
	audit  *Audit

	sink kevent.Sink
}

// New builds a Manager with the default policy table and a 4096-entry
// permission cache.
func New(sink kevent.Sink, log *logrus.Entry) *Manager {
	if sink == nil {
		sink = kevent.NopSink{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		log:     log.WithField("component", "sandbox"),
		configs: stripedmap.New[types.Pid, SandboxConfig](),
		spawns:  stripedmap.New[types.Pid, uint32](),
		engine:  NewEngine(),
		cache:   NewCache(4096),
		audit:   NewAudit(),
		sink:    sink,
	}
}

// Create installs cfg for pid.
func (m *Manager) Create(pid types.Pid, cfg SandboxConfig) {
	m.configs.Set(pid, cfg)
}

// Update replaces pid's config, if any exists; returns false if pid is
// unknown.
func (m *Manager) Update(pid types.Pid, cfg SandboxConfig) bool {
	if _, ok := m.configs.Get(pid); !ok {
		return false
	}
	m.configs.Set(pid, cfg)
	return true
}

// Get returns pid's config.
func (m *Manager) Get(pid types.Pid) (SandboxConfig, bool) {
	return m.configs.Get(pid)
}

// Remove drops pid's config and spawn counter.
func (m *Manager) Remove(pid types.Pid) {
	m.configs.Delete(pid)
	m.spawns.Delete(pid)
}

// CanSpawnProcess reports whether pid has not yet reached its
// MaxProcesses ceiling.
func (m *Manager) CanSpawnProcess(pid types.Pid) bool {
	cfg, ok := m.configs.Get(pid)
	if !ok {
		return false
	}
	n, _ := m.spawns.Get(pid)
	return uint32(n) < cfg.Limits.MaxProcesses
}

// RecordSpawn increments pid's spawn counter.
func (m *Manager) RecordSpawn(pid types.Pid) {
	n, _ := m.spawns.Get(pid)
	m.spawns.Set(pid, n+1)
}

// RecordTermination decrements pid's spawn counter, floored at zero.
func (m *Manager) RecordTermination(pid types.Pid) {
	n, ok := m.spawns.Get(pid)
	if !ok || n == 0 {
		return
	}
	m.spawns.Set(pid, n-1)
}

// Check consults the cache, falls through to the policy engine on a
// miss, and caches the result. It does not audit — callers that want an
// audit trail entry and PermissionDenied event use CheckAndAudit.
func (m *Manager) Check(req PermissionRequest) PermissionResponse {
	if resp, ok := m.cache.Get(req); ok {
		return resp
	}
	cfg, _ := m.configs.Get(req.Pid)
	resp := m.engine.Check(cfg, req)
	m.cache.Put(req, resp)
	return resp
}

// CheckAndAudit runs Check, appends the decision to the audit trail, and
// emits a PermissionDenied event on denial.
func (m *Manager) CheckAndAudit(req PermissionRequest) PermissionResponse {
	resp := m.Check(req)
	m.audit.Record(req, resp)
	if !resp.Allowed {
		pid := req.Pid
		m.sink.Publish(kevent.New(kevent.Warn, kevent.CategorySecurity, &pid, kevent.PermissionDenied{
			Pid:                req.Pid,
			Operation:          actionName(req.Action),
			RequiredCapability: resp.Reason,
			Reason:             resp.Reason,
		}))
	}
	return resp
}

func actionName(a Action) string {
	switch a {
	case ActionRead:
		return "Read"
	case ActionWrite:
		return "Write"
	case ActionCreate:
		return "Create"
	case ActionDelete:
		return "Delete"
	case ActionExecute:
		return "Execute"
	case ActionList:
		return "List"
	case ActionConnect:
		return "Connect"
	case ActionBind:
		return "Bind"
	case ActionSend:
		return "Send"
	case ActionReceive:
		return "Receive"
	case ActionKill:
		return "Kill"
	case ActionInspect:
		return "Inspect"
	default:
		return "Unknown"
	}
}

// CheckPermission is the capability-only convenience path spec.md names
// directly (check_permission(pid, capability)).
func (m *Manager) CheckPermission(pid types.Pid, tag types.CapabilityTag) bool {
	cfg, ok := m.configs.Get(pid)
	if !ok {
		return false
	}
	return cfg.HasCapability(tag, "")
}

// CheckPathAccess is check_path_access(pid, path): true if any
// file-family capability covers path.
func (m *Manager) CheckPathAccess(pid types.Pid, path string) bool {
	cfg, ok := m.configs.Get(pid)
	if !ok {
		return false
	}
	for _, tag := range []types.CapabilityTag{types.CapReadFile, types.CapWriteFile, types.CapCreateFile, types.CapDeleteFile, types.CapListDirectory} {
		if cfg.HasCapability(tag, path) {
			return true
		}
	}
	return false
}

// CheckFileOperation is check_file_operation(pid, op, path) routed
// through the full policy engine so caching and audit apply uniformly.
func (m *Manager) CheckFileOperation(pid types.Pid, action Action, path string) PermissionResponse {
	return m.CheckAndAudit(PermissionRequest{
		Pid:      pid,
		Resource: Resource{Tag: ResourceFile, Path: path},
		Action:   action,
	})
}

// CheckNetworkAccess is check_network_access(pid, host, port).
func (m *Manager) CheckNetworkAccess(pid types.Pid, host string, port uint16) PermissionResponse {
	return m.CheckAndAudit(PermissionRequest{
		Pid:      pid,
		Resource: Resource{Tag: ResourceNetwork, Host: host, Port: port, HasPort: port != 0},
		Action:   ActionConnect,
	})
}

// Audit exposes the audit trail for operator inspection.
func (m *Manager) Audit() *Audit { return m.audit }

// CacheHitRate exposes the permission cache's hit-rate statistic.
func (m *Manager) CacheHitRate() float64 { return m.cache.HitRate() }

// InvalidateCache drops every cached permission decision for pid,
// returning the count removed. Part of the process manager's resource
// orchestrator sweep; distinct from Remove, which drops the sandbox
// config and spawn counter themselves.
func (m *Manager) InvalidateCache(pid types.Pid) int {
	return m.cache.InvalidatePid(pid)
}
