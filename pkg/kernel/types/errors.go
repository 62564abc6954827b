package types

import (
	"errors"
	"fmt"
)

// Kind is the closed error taxonomy from the spec's error handling
// design. It is a small comparable set, mirroring the way gVisor's
// linuxerr package exposes a fixed set of sentinel-ish errno values
// instead of ad hoc formatted strings at every call site.
type Kind uint8

const (
	// KindNotFound: resource missing by id or path.
	KindNotFound Kind = iota
	// KindPermissionDenied: sandbox or policy refusal; always carries a reason.
	KindPermissionDenied
	// KindLimitExceeded: a numeric cap would be breached.
	KindLimitExceeded
	// KindInvalidArgument: malformed parameters, bad flag combinations.
	KindInvalidArgument
	// KindOutOfMemory: simulated address space exhausted.
	KindOutOfMemory
	// KindWouldBlock: non-blocking operation on an empty pipe/queue.
	KindWouldBlock
	// KindPoisoned: a lock holder panicked; recoverable once the invariant
	// is restored.
	KindPoisoned
	// KindOperationFailed: generic catch-all with a descriptive message.
	KindOperationFailed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindPermissionDenied:
		return "PermissionDenied"
	case KindLimitExceeded:
		return "LimitExceeded"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindWouldBlock:
		return "WouldBlock"
	case KindPoisoned:
		return "Poisoned"
	case KindOperationFailed:
		return "OperationFailed"
	default:
		return "Unknown"
	}
}

// KernelError is the single error type returned by every component
// method in this tree. Component code never panics on user input;
// everything that can go wrong is one of these.
type KernelError struct {
	Kind    Kind
	Message string

	// Fields populated by specific kinds; zero otherwise.
	Requested uint64 // LimitExceeded / OutOfMemory
	Limit     uint64 // LimitExceeded
	Available uint64 // OutOfMemory
	Used      uint64 // OutOfMemory
	Total     uint64 // OutOfMemory
	Address   Address // InvalidAddress-flavored NotFound

	wrapped error
}

func (e *KernelError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/As see through to a wrapped cause.
func (e *KernelError) Unwrap() error { return e.wrapped }

// Is supports errors.Is(err, types.NotFound) style sentinel checks by
// kind rather than by identity.
func (e *KernelError) Is(target error) bool {
	var ke *KernelError
	if errors.As(target, &ke) {
		return ke.Kind == e.Kind
	}
	return false
}

func newErr(kind Kind, format string, args ...any) *KernelError {
	return &KernelError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(format string, args ...any) *KernelError {
	return newErr(KindNotFound, format, args...)
}

// PermissionDenied builds a KindPermissionDenied error. reason is
// mandatory per spec.md (§3 PermissionResponse always carries one).
func PermissionDenied(reason string, args ...any) *KernelError {
	return newErr(KindPermissionDenied, reason, args...)
}

// LimitExceeded builds a KindLimitExceeded error carrying the offending
// requested/limit values so callers can report without reparsing Message.
func LimitExceeded(requested, limit uint64, format string, args ...any) *KernelError {
	e := newErr(KindLimitExceeded, format, args...)
	e.Requested, e.Limit = requested, limit
	return e
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(format string, args ...any) *KernelError {
	return newErr(KindInvalidArgument, format, args...)
}

// OutOfMemory builds a KindOutOfMemory error with the accounting snapshot
// spec.md's Allocate step 1 requires.
func OutOfMemory(requested, available, used, total uint64) *KernelError {
	e := newErr(KindOutOfMemory, "requested %d bytes, %d available (used %d/%d)", requested, available, used, total)
	e.Requested, e.Available, e.Used, e.Total = requested, available, used, total
	return e
}

// InvalidAddress builds the memory manager's "missing or already freed"
// error, surfaced but never fatal per spec.md §4.2 failure semantics.
func InvalidAddress(addr Address) *KernelError {
	e := newErr(KindNotFound, "invalid address %s", addr)
	e.Address = addr
	return e
}

// WouldBlock builds a KindWouldBlock error.
func WouldBlock(format string, args ...any) *KernelError {
	return newErr(KindWouldBlock, format, args...)
}

// Poisoned builds a KindPoisoned error.
func Poisoned(format string, args ...any) *KernelError {
	return newErr(KindPoisoned, format, args...)
}

// OperationFailed wraps an arbitrary cause as the catch-all kind.
func OperationFailed(cause error) *KernelError {
	if cause == nil {
		return newErr(KindOperationFailed, "operation failed")
	}
	e := newErr(KindOperationFailed, "%s", cause.Error())
	e.wrapped = cause
	return e
}

// IsKind reports whether err is a *KernelError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}
