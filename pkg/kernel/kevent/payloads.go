package kevent

import "github.com/nyxkernel/kernel/pkg/kernel/types"

// Payload structs for the event categories referenced throughout the
// spec (§4.2, §4.4, §4.6, §4.8, §4.9). Keeping these as small structs
// instead of a generic map[string]any lets consumers type-switch
// exhaustively.

type MemoryAllocated struct {
	Size     types.Size
	RegionID types.Address
}

type MemoryFreed struct {
	Size     types.Size
	RegionID types.Address
}

type MemoryPressure struct {
	UsagePercent   float64
	AvailableMiB   float64
	Level          string
}

type ProcessCreated struct {
	Pid    types.Pid
	Name   string
	Parent *types.Pid
}

type ProcessTerminated struct {
	Pid types.Pid
}

type ResourceCleanup struct {
	Pid            types.Pid
	Resource       string
	BytesReclaimed uint64
}

type PermissionDenied struct {
	Pid                types.Pid
	Operation          string
	RequiredCapability string
	Reason             string
}

type SyscallExit struct {
	Pid        types.Pid
	Syscall    string
	DurationUs int64
	Outcome    string // "Success" | "Error" | "PermissionDenied"
}

// DurationMicros lets the observability query engine's DurationStats
// aggregation pick this payload out without a hardcoded type list.
func (s SyscallExit) DurationMicros() int64 { return s.DurationUs }

type SyscallSlow struct {
	Pid        types.Pid
	Syscall    string
	DurationUs int64
	ThresholdUs int64
}

// DurationMicros mirrors SyscallExit's.
func (s SyscallSlow) DurationMicros() int64 { return s.DurationUs }

type VFSMutation struct {
	Kind string // "Created" | "Modified" | "Deleted" | "Renamed"
	Path string
	From string
	To   string
}

type SchedulerStep struct {
	Pid             types.Pid
	ContextSwitch   bool
	Preempted       bool
}

type SecurityDivergence struct {
	Pid     types.Pid
	Syscall string
	Matched bool
}
