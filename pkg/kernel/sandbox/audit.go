package sandbox

import (
	"sync"

	"github.com/nyxkernel/kernel/pkg/kernel/kevent"
	"github.com/nyxkernel/kernel/pkg/kernel/types"
)

// MaxAuditEvents bounds the global audit ring.
const MaxAuditEvents = 4096

// MaxPidEvents bounds each per-Pid audit ring.
const MaxPidEvents = 256

// AuditEntry is one recorded permission decision.
type AuditEntry struct {
	Request  PermissionRequest
	Response PermissionResponse
	Severity kevent.Severity
}

func severityFor(req PermissionRequest, resp PermissionResponse) kevent.Severity {
	if resp.Allowed {
		return kevent.Info
	}
	if req.Resource.Tag == ResourceSystem || req.Resource.Tag == ResourceProcess {
		return kevent.Critical
	}
	return kevent.Warn
}

// ringBuf is a fixed-capacity overwrite-oldest buffer, the shape both
// the global and per-Pid audit trails share.
type ringBuf struct {
	entries []AuditEntry
	cap     int
	next    int
	full    bool
}

func newRingBuf(capacity int) *ringBuf {
	return &ringBuf{entries: make([]AuditEntry, capacity), cap: capacity}
}

func (r *ringBuf) push(e AuditEntry) {
	r.entries[r.next] = e
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.full = true
	}
}

func (r *ringBuf) snapshot() []AuditEntry {
	if !r.full {
		out := make([]AuditEntry, r.next)
		copy(out, r.entries[:r.next])
		return out
	}
	out := make([]AuditEntry, r.cap)
	copy(out, r.entries[r.next:])
	copy(out[r.cap-r.next:], r.entries[:r.next])
	return out
}

// Audit is the bounded audit trail: one global ring, one ring per Pid,
// and a per-Pid denial counter.
type Audit struct {
	mu       sync.Mutex
	global   *ringBuf
	perPid   map[types.Pid]*ringBuf
	denials  map[types.Pid]uint64
}

// NewAudit builds an empty Audit trail.
func NewAudit() *Audit {
	return &Audit{
		global:  newRingBuf(MaxAuditEvents),
		perPid:  make(map[types.Pid]*ringBuf),
		denials: make(map[types.Pid]uint64),
	}
}

// Record appends a decision to the global and per-Pid rings, bumping the
// denial counter on a deny.
func (a *Audit) Record(req PermissionRequest, resp PermissionResponse) {
	entry := AuditEntry{Request: req, Response: resp, Severity: severityFor(req, resp)}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.global.push(entry)
	pidRing, ok := a.perPid[req.Pid]
	if !ok {
		pidRing = newRingBuf(MaxPidEvents)
		a.perPid[req.Pid] = pidRing
	}
	pidRing.push(entry)
	if !resp.Allowed {
		a.denials[req.Pid]++
	}
}

// Global returns a snapshot of the global audit ring, oldest first.
func (a *Audit) Global() []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.global.snapshot()
}

// ForPid returns a snapshot of pid's audit ring, oldest first.
func (a *Audit) ForPid(pid types.Pid) []AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.perPid[pid]
	if !ok {
		return nil
	}
	return r.snapshot()
}

// DenialCount returns the number of denials recorded for pid.
func (a *Audit) DenialCount(pid types.Pid) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.denials[pid]
}
