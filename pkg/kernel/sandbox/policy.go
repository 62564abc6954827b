package sandbox

import (
	"time"

	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// Decision is a single policy's verdict on a request.
type Decision uint8

const (
	Abstain Decision = iota
	Allow
	Deny
)

// Policy evaluates one request against one process's config.
type Policy interface {
	Evaluate(cfg SandboxConfig, req PermissionRequest) (Decision, string)
}

// Engine runs an ordered list of policies; the first non-abstain
// decision wins. If every policy abstains, the request is denied.
type Engine struct {
	policies []Policy
}

// NewEngine builds an Engine that runs any extra policies supplied
// first, in order, followed by the default capability/path/network
// table policy; the first non-abstain verdict wins, and the default
// never abstains.
func NewEngine(extra ...Policy) *Engine {
	policies := append([]Policy{}, extra...)
	policies = append(policies, defaultPolicy{})
	return &Engine{policies: policies}
}

// Check runs every policy in order and returns the first non-abstain
// verdict.
func (e *Engine) Check(cfg SandboxConfig, req PermissionRequest) PermissionResponse {
	for _, p := range e.policies {
		if d, reason := p.Evaluate(cfg, req); d != Abstain {
			return PermissionResponse{Allowed: d == Allow, Reason: reason, DecidedAt: time.Now()}
		}
	}
	return PermissionResponse{Allowed: false, Reason: "No policy allowed this request", DecidedAt: time.Now()}
}

// defaultPolicy implements spec.md §4.4's (Resource, Action) -> required
// capability table.
type defaultPolicy struct{}

func (defaultPolicy) Evaluate(cfg SandboxConfig, req PermissionRequest) (Decision, string) {
	r, a := req.Resource, req.Action

	switch r.Tag {
	case ResourceFile:
		switch a {
		case ActionRead:
			return capAndPath(cfg, types.CapReadFile, r.Path)
		case ActionWrite:
			return capAndPath(cfg, types.CapWriteFile, r.Path)
		case ActionCreate:
			return capAndPath(cfg, types.CapCreateFile, r.Path)
		case ActionDelete:
			return capAndPath(cfg, types.CapDeleteFile, r.Path)
		}
	case ResourceDirectory:
		if a == ActionList {
			return capAndPath(cfg, types.CapListDirectory, r.Path)
		}
	case ResourceNetwork:
		if a == ActionConnect {
			if cfg.AllowsNetwork(r.Host, r.Port) {
				return Allow, ""
			}
			return Deny, "network rules do not permit this host/port"
		}
	case ResourceProcess:
		switch a {
		case ActionKill:
			return capOnly(cfg, types.CapKillProcess, r.Path)
		case ActionCreate:
			return capOnly(cfg, types.CapSpawnProcess, r.Path)
		case ActionInspect:
			return capOnly(cfg, types.CapSystemInfo, r.Path)
		}
	case ResourceSystem:
		if r.System == "time" {
			switch a {
			case ActionRead, ActionInspect, ActionList:
				return capOnly(cfg, types.CapTimeAccess, r.Path)
			}
		} else {
			switch a {
			case ActionRead, ActionInspect, ActionList, ActionExecute, ActionWrite:
				return capOnly(cfg, types.CapSystemInfo, r.Path)
			}
		}
	case ResourceIpcChannel:
		switch a {
		case ActionSend:
			return capOnly(cfg, types.CapSendMessage, r.Path)
		case ActionReceive:
			return capOnly(cfg, types.CapReceiveMessage, r.Path)
		}
	}
	return Deny, "no policy rule matches this (resource, action) pair"
}

func capAndPath(cfg SandboxConfig, tag types.CapabilityTag, path string) (Decision, string) {
	if cfg.HasCapability(tag, path) {
		return Allow, ""
	}
	return Deny, "missing capability " + tag.String() + " for path " + path
}

func capOnly(cfg SandboxConfig, tag types.CapabilityTag, path string) (Decision, string) {
	if cfg.HasCapability(tag, path) {
		return Allow, ""
	}
	return Deny, "missing capability " + tag.String()
}
